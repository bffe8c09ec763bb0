package entity

import "time"

// ReconcileEvent is an audit record of what happened while reconciling a work item
type ReconcileEvent struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	WorkItemID   string    `json:"work_item_id"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Type         string    `json:"type"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
