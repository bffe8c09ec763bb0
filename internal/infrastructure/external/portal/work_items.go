package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	json "github.com/goccy/go-json"
)

type workItemPayload struct {
	ID           flexString `json:"id"`
	Kind         string     `json:"kind"`
	Type         string     `json:"type"`
	Description  string     `json:"description"`
	ServiceLabel string     `json:"service_label"`
	ServiceType  string     `json:"service_type"`
	Status       string     `json:"status"`
}

func (p *workItemPayload) toEntity(requestedID string) *entity.WorkItem {
	id := string(p.ID)
	if id == "" {
		id = requestedID
	}
	kind := p.Kind
	if kind == "" {
		kind = p.Type
	}
	label := p.ServiceLabel
	if label == "" {
		label = p.ServiceType
	}

	return &entity.WorkItem{
		ID:           id,
		Kind:         entity.ParseWorkItemKind(kind),
		Description:  p.Description,
		ServiceLabel: label,
		Status:       entity.ParseWorkItemStatus(p.Status),
	}
}

// GetWorkItem fetches a job order or task. Returns nil, nil on 404.
func (c *Client) GetWorkItem(ctx context.Context, id string) (*entity.WorkItem, error) {
	data, err := c.get(ctx, resourcePath("/api/work-items/%s", id))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return nil, nil
		}
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}

	var payload workItemPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode work item %s: %w", id, err)
	}
	return payload.toEntity(id), nil
}
