package entity

import "strings"

// WorkItemKind distinguishes job orders from tasks
type WorkItemKind string

// Work item kinds
const (
	WorkItemKindJobOrder WorkItemKind = "JOB_ORDER"
	WorkItemKindTask     WorkItemKind = "TASK"
)

// WorkItemStatus is the lifecycle status reported by the work-item provider
type WorkItemStatus string

// Work item status constants
const (
	WorkItemStatusPending    WorkItemStatus = "PENDING"
	WorkItemStatusInProgress WorkItemStatus = "IN_PROGRESS"
	WorkItemStatusSubmitted  WorkItemStatus = "SUBMITTED"
	WorkItemStatusCompleted  WorkItemStatus = "COMPLETED"
	WorkItemStatusCancelled  WorkItemStatus = "CANCELLED"
)

// AttachmentKind tags the three attachment lifecycles
type AttachmentKind string

// Attachment kinds
const (
	AttachmentKindNewLocal       AttachmentKind = "NEW_LOCAL"
	AttachmentKindExistingRemote AttachmentKind = "EXISTING_REMOTE"
	AttachmentKindManual         AttachmentKind = "MANUAL"
)

// DisplayKind is the presentation hint for a rehydrated attachment
type DisplayKind string

// Display kinds
const (
	DisplayKindImage    DisplayKind = "IMAGE"
	DisplayKindDocument DisplayKind = "DOCUMENT"
	DisplayKindManual   DisplayKind = "MANUAL"
)

// ManualPathSentinel is the path value the portal stores for attachments
// that were created as name-only entries.
const ManualPathSentinel = "__manual__"

// Reconcile event types
const (
	EventOpened                 = "OPENED"
	EventLocated                = "LOCATED"
	EventSubmittedWithoutRecord = "SUBMITTED_WITHOUT_RECORD"
	EventAmountCoerced          = "AMOUNT_COERCED"
	EventAttachmentDeleteFailed = "ATTACHMENT_DELETE_FAILED"
	EventSubmitted              = "SUBMITTED"
	EventSubmitFailed           = "SUBMIT_FAILED"
)

var workItemStatuses = map[string]WorkItemStatus{
	"pending":    WorkItemStatusPending,
	"inprogress": WorkItemStatusInProgress,
	"submitted":  WorkItemStatusSubmitted,
	"completed":  WorkItemStatusCompleted,
	"cancelled":  WorkItemStatusCancelled,
	"canceled":   WorkItemStatusCancelled,
}

var workItemKinds = map[string]WorkItemKind{
	"joborder": WorkItemKindJobOrder,
	"job":      WorkItemKindJobOrder,
	"task":     WorkItemKindTask,
}

// ParseWorkItemStatus maps the status spellings used by the portal
// ("InProgress", "in_progress", "IN PROGRESS") onto WorkItemStatus.
// Unknown values are returned upper-cased as-is.
func ParseWorkItemStatus(s string) WorkItemStatus {
	if status, ok := workItemStatuses[foldKey(s)]; ok {
		return status
	}
	return WorkItemStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// ParseWorkItemKind maps kind spellings onto WorkItemKind, defaulting to task
func ParseWorkItemKind(s string) WorkItemKind {
	if kind, ok := workItemKinds[foldKey(s)]; ok {
		return kind
	}
	return WorkItemKindTask
}

func foldKey(s string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(s)))
}
