package entity

// WorkItem is a job order or task assigned to a liaison.
// It is owned by the work-item provider and never mutated here.
type WorkItem struct {
	ID           string         `json:"id"`
	Kind         WorkItemKind   `json:"kind"`
	Description  string         `json:"description"`
	ServiceLabel string         `json:"service_label"`
	Status       WorkItemStatus `json:"status"`
}

// IsSubmitted reports whether the provider claims a prior submission exists
func (w *WorkItem) IsSubmitted() bool {
	return w.Status == WorkItemStatusSubmitted
}
