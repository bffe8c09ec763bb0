package port

import (
	"context"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
)

// WorkItemProvider reads work items assigned to liaisons
type WorkItemProvider interface {
	GetWorkItem(ctx context.Context, id string) (*entity.WorkItem, error)
}

// SubmissionProvider reads and writes completion submissions
type SubmissionProvider interface {
	// ListForWorkItem returns submission summaries, newest first
	ListForWorkItem(ctx context.Context, workItemID string) ([]*entity.RawSubmission, error)

	// GetByID returns the full submission payload
	GetByID(ctx context.Context, id string) (*entity.RawSubmission, error)

	// Create persists a new submission and returns its identifier
	Create(ctx context.Context, req *OutboundRequest) (string, error)

	// Update overwrites an existing submission and returns its identifier
	Update(ctx context.Context, req *OutboundRequest) (string, error)
}

// AttachmentProvider manages attachments already stored by the portal
type AttachmentProvider interface {
	Delete(ctx context.Context, attachmentID string) error
}

// FilePart is one binary file to upload with a submission
type FilePart struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SourceRef string `json:"source_ref"`
}

// OutboundRequest is a single create-or-update submission request.
// SubmissionID is set only for updates.
type OutboundRequest struct {
	WorkItemID            string     `json:"work_item_id"`
	LiaisonID             string     `json:"liaison_id"`
	Notes                 string     `json:"notes"`
	ExpensesJSON          []byte     `json:"expenses"`
	Files                 []FilePart `json:"files"`
	ManualNames           []string   `json:"manual_attachments"`
	RetainedAttachmentIDs []string   `json:"existing_attachment_ids"`
	SubmissionID          string     `json:"submission_id,omitempty"`
}

// IsUpdate reports update semantics; its absence means create
func (r *OutboundRequest) IsUpdate() bool {
	return r.SubmissionID != ""
}
