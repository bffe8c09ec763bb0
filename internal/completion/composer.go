package completion

import (
	"fmt"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	json "github.com/goccy/go-json"
)

// Composer assembles the outbound create-or-update request
type Composer struct{}

// NewComposer creates a new Composer
func NewComposer() *Composer {
	return &Composer{}
}

// Compose validates the ledger and builds one request from the session state.
// existingSubmissionID alone decides update (non-empty) versus create; the
// work item's status is never consulted because a submitted item can be
// reopened for editing.
func (c *Composer) Compose(
	workItem *entity.WorkItem,
	existingSubmissionID string,
	liaisonID string,
	notes string,
	ledger *Ledger,
	registry *Registry,
) (*port.OutboundRequest, error) {
	lines, err := ledger.Serialize()
	if err != nil {
		return nil, err
	}

	expensesJSON, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("failed to encode expenses: %w", err)
	}

	uploads := registry.SerializeForUpload()

	return &port.OutboundRequest{
		WorkItemID:            workItem.ID,
		LiaisonID:             liaisonID,
		Notes:                 notes,
		ExpensesJSON:          expensesJSON,
		Files:                 uploads.Files,
		ManualNames:           uploads.ManualNames,
		RetainedAttachmentIDs: uploads.RetainedIDs,
		SubmissionID:          existingSubmissionID,
	}, nil
}
