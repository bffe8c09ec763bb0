package completion

import (
	"context"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"go.uber.org/zap"
)

// Locator finds the most recent submission of a work item
type Locator struct {
	submissions port.SubmissionProvider
	normalizer  *Normalizer
	logger      *zap.Logger
}

// NewLocator creates a new Locator
func NewLocator(submissions port.SubmissionProvider, normalizer *Normalizer, logger *zap.Logger) *Locator {
	return &Locator{
		submissions: submissions,
		normalizer:  normalizer,
		logger:      logger,
	}
}

// Locate returns the newest submission for the work item, or nil when there
// is none. The provider lists newest first; its order is trusted as-is.
// Read failures degrade to "not found"; only cancellation is returned.
func (l *Locator) Locate(ctx context.Context, workItemID string) (*entity.Submission, error) {
	summaries, err := l.submissions.ListForWorkItem(ctx, workItemID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logger.Warn("Listing submissions failed, treating as none",
			zap.String("work_item_id", workItemID),
			zap.Error(transportError("list submissions", err)))
		return nil, nil
	}
	if len(summaries) == 0 || summaries[0] == nil {
		return nil, nil
	}

	summary := summaries[0]
	submissionID := firstString(summary, "id", "submission_id")
	if submissionID == "" {
		l.logger.Warn("Newest submission summary has no identifier",
			zap.String("work_item_id", workItemID),
			zap.Int("candidates", len(summaries)))
		return nil, nil
	}

	payload, err := l.submissions.GetByID(ctx, submissionID)
	if err != nil || payload == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			err = &NotFoundError{Resource: "submission", ID: submissionID}
		}
		l.logger.Warn("Submission detail unavailable, using summary",
			zap.String("submission_id", submissionID),
			zap.Error(err))
		payload = summary
	}

	// The detail was already requested once above, successful or not
	sub := l.normalizer.Normalize(ctx, payload, nil)
	if sub.ID == "" {
		sub.ID = submissionID
	}
	if sub.WorkItemID == "" {
		sub.WorkItemID = workItemID
	}

	l.logger.Info("Located submission",
		zap.String("work_item_id", workItemID),
		zap.String("submission_id", sub.ID),
		zap.Int("expenses", len(sub.Expenses)),
		zap.Int("attachments", len(sub.Attachments)))

	return sub, nil
}
