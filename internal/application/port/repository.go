package port

import (
	"context"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
)

// EventRepository defines persistence operations for ReconcileEvent
type EventRepository interface {
	Create(ctx context.Context, event *entity.ReconcileEvent) error
	ListByWorkItem(ctx context.Context, workItemID string, limit int) ([]*entity.ReconcileEvent, error)
}
