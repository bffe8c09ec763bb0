package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/garyjia/fieldops-portal/pkg/database"
	"go.uber.org/zap"
)

const defaultEventLimit = 100

// EventRepository implements port.EventRepository
type EventRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewEventRepository creates a new reconcile event repository
func NewEventRepository(db *database.DB, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores an event and sets its ID
func (r *EventRepository) Create(ctx context.Context, event *entity.ReconcileEvent) error {
	query := `
		INSERT INTO reconcile_events (
			session_id, work_item_id, submission_id, event_type, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		event.SessionID,
		event.WorkItemID,
		event.SubmissionID,
		event.Type,
		event.Detail,
		event.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create reconcile event",
			zap.String("work_item_id", event.WorkItemID),
			zap.String("type", event.Type),
			zap.Error(err))
		return fmt.Errorf("failed to create reconcile event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	event.ID = id
	return nil
}

// ListByWorkItem returns a work item's events, newest first
func (r *EventRepository) ListByWorkItem(ctx context.Context, workItemID string, limit int) ([]*entity.ReconcileEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}

	query := `
		SELECT id, session_id, work_item_id, submission_id, event_type, detail, created_at
		FROM reconcile_events
		WHERE work_item_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, workItemID, limit)
	if err != nil {
		r.logger.Error("Failed to list reconcile events",
			zap.String("work_item_id", workItemID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list reconcile events: %w", err)
	}
	defer rows.Close()

	var events []*entity.ReconcileEvent
	for rows.Next() {
		var event entity.ReconcileEvent
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.WorkItemID,
			&event.SubmissionID,
			&event.Type,
			&event.Detail,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconcile event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reconcile events: %w", err)
	}

	return events, nil
}

// Verify interface compliance
var _ port.EventRepository = (*EventRepository)(nil)
