package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/garyjia/fieldops-portal/internal/domain/lifecycle"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineConfig holds engine behaviour switches
type EngineConfig struct {
	// StrictAmounts rejects non-numeric expense amounts instead of submitting zero
	StrictAmounts bool
}

// Engine opens reconciliation sessions against the portal providers
type Engine struct {
	workItems   port.WorkItemProvider
	submissions port.SubmissionProvider
	attachments port.AttachmentProvider
	events      port.EventRepository
	locator     *Locator
	composer    *Composer
	config      EngineConfig
	logger      *zap.Logger
}

// NewEngine creates a new Engine. events may be nil.
func NewEngine(
	workItems port.WorkItemProvider,
	submissions port.SubmissionProvider,
	attachments port.AttachmentProvider,
	events port.EventRepository,
	config EngineConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		workItems:   workItems,
		submissions: submissions,
		attachments: attachments,
		events:      events,
		locator:     NewLocator(submissions, NewNormalizer(logger), logger),
		composer:    NewComposer(),
		config:      config,
		logger:      logger,
	}
}

// Session is the working state of one opened work item. It is owned by the
// caller and is not safe for concurrent use.
type Session struct {
	ID        string
	OpenedAt  time.Time
	engine    *Engine
	machine   lifecycle.StateMachine
	workItem  *entity.WorkItem
	liaisonID string

	submissionID string
	notes        string
	ledger       *Ledger
	registry     *Registry

	// set when the item claims a submission the portal cannot produce
	missingRecord bool
}

// SubmitResult describes a successful submit
type SubmitResult struct {
	SubmissionID      string
	Created           bool
	StagedRefs        []string
	CoercedExpenseIDs []string
}

// Open loads the work item and, when it reports a prior submission, locates
// and hydrates it. A failed work-item fetch returns a *TransportError.
func (e *Engine) Open(ctx context.Context, workItemID, liaisonID string) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		OpenedAt:  time.Now(),
		engine:    e,
		liaisonID: liaisonID,
		ledger:    NewLedger(e.config.StrictAmounts, e.logger),
		registry:  NewRegistry(e.attachments, e.logger),
	}
	s.machine = lifecycle.NewSessionMachine(func(ctx context.Context) bool {
		return s.workItem != nil && s.workItem.IsSubmitted()
	})

	item, err := e.workItems.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, transportError("get work item", err)
	}
	if item == nil {
		return nil, &NotFoundError{Resource: "work item", ID: workItemID}
	}
	s.workItem = item

	if err := s.machine.Fire(ctx, lifecycle.TriggerLoad); err != nil {
		return nil, err
	}
	if err := s.machine.Fire(ctx, lifecycle.TriggerEvaluate); err != nil {
		return nil, err
	}

	e.record(ctx, s, entity.EventOpened, string(item.Status))

	if s.machine.State() != lifecycle.StateLocating {
		e.logger.Info("Opened work item for drafting",
			zap.String("session_id", s.ID),
			zap.String("work_item_id", item.ID),
			zap.String("status", string(item.Status)))
		return s, nil
	}

	sub, err := e.locator.Locate(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	if sub == nil {
		// Status says submitted but no record exists. Drafting keeps the liaison
		// unblocked; the mismatch is flagged separately from a normal first draft.
		s.missingRecord = true
		e.logger.Warn("Work item is SUBMITTED but no submission could be located; drafting a new one",
			zap.String("session_id", s.ID),
			zap.String("work_item_id", item.ID))
		e.record(ctx, s, entity.EventSubmittedWithoutRecord, "no submission located")
		if err := s.machine.Fire(ctx, lifecycle.TriggerNotFound); err != nil {
			return nil, err
		}
		return s, nil
	}

	s.hydrate(sub)
	if err := s.machine.Fire(ctx, lifecycle.TriggerFound); err != nil {
		return nil, err
	}
	e.record(ctx, s, entity.EventLocated, fmt.Sprintf("expenses=%d attachments=%d", len(sub.Expenses), len(sub.Attachments)))

	return s, nil
}

func (s *Session) hydrate(sub *entity.Submission) {
	s.submissionID = sub.ID
	s.notes = sub.Notes
	if s.liaisonID == "" {
		s.liaisonID = sub.LiaisonID
	}
	s.ledger.Hydrate(sub.Expenses)
	s.registry.Hydrate(sub.Attachments...)
}

// State returns the current lifecycle state
func (s *Session) State() lifecycle.State {
	return s.machine.State()
}

// WorkItem returns the opened work item
func (s *Session) WorkItem() *entity.WorkItem {
	return s.workItem
}

// LiaisonID returns the liaison the session submits for
func (s *Session) LiaisonID() string {
	return s.liaisonID
}

// SubmissionID returns the located submission id; empty while drafting
func (s *Session) SubmissionID() string {
	return s.submissionID
}

// MissingRecord reports a SUBMITTED item whose submission could not be located
func (s *Session) MissingRecord() bool {
	return s.missingRecord
}

// Ledger returns the session's expense rows
func (s *Session) Ledger() *Ledger {
	return s.ledger
}

// Registry returns the session's attachments
func (s *Session) Registry() *Registry {
	return s.registry
}

// Notes returns the free-text notes
func (s *Session) Notes() string {
	return s.notes
}

// SetNotes replaces the free-text notes
func (s *Session) SetNotes(notes string) error {
	if !s.State().IsEditable() {
		return ErrSessionClosed
	}
	s.notes = notes
	return nil
}

// RemoveAttachment removes an attachment and records a failed remote delete.
// See Registry.Remove for the confirmation and best-effort delete rules.
func (s *Session) RemoveAttachment(ctx context.Context, id string, confirmed bool) error {
	if !s.State().IsEditable() {
		return ErrSessionClosed
	}

	err := s.registry.Remove(ctx, id, confirmed)
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		s.engine.record(ctx, s, entity.EventAttachmentDeleteFailed, err.Error())
	}
	return err
}

// Compose builds the outbound request for the current state without sending it
func (s *Session) Compose() (*port.OutboundRequest, error) {
	if !s.State().IsEditable() {
		return nil, ErrSessionClosed
	}
	return s.engine.composer.Compose(s.workItem, s.submissionID, s.liaisonID, s.notes, s.ledger, s.registry)
}

// Submit composes and sends the request, creating or updating as decided by
// the located submission. Success is terminal for the session and releases
// its state; failure leaves everything as it was so the user can retry.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	req, err := s.Compose()
	if err != nil {
		return nil, err
	}

	coerced := s.ledger.Coerced()
	if len(coerced) > 0 {
		s.engine.record(ctx, s, entity.EventAmountCoerced, strings.Join(coerced, ","))
	}

	var (
		id     string
		sendOp string
	)
	if req.IsUpdate() {
		sendOp = "update submission"
		id, err = s.engine.submissions.Update(ctx, req)
	} else {
		sendOp = "create submission"
		id, err = s.engine.submissions.Create(ctx, req)
	}
	if err != nil {
		s.engine.logger.Error("Submit failed",
			zap.String("session_id", s.ID),
			zap.String("work_item_id", s.workItem.ID),
			zap.Bool("update", req.IsUpdate()),
			zap.Error(err))
		s.engine.record(ctx, s, entity.EventSubmitFailed, err.Error())
		return nil, transportError(sendOp, err)
	}
	if id == "" {
		id = req.SubmissionID
	}

	result := &SubmitResult{
		SubmissionID:      id,
		Created:           !req.IsUpdate(),
		CoercedExpenseIDs: coerced,
	}
	for _, f := range req.Files {
		result.StagedRefs = append(result.StagedRefs, f.SourceRef)
	}

	if err := s.machine.Fire(ctx, lifecycle.TriggerSubmitSucceeded); err != nil {
		return nil, err
	}
	s.submissionID = id
	s.engine.record(ctx, s, entity.EventSubmitted, sendOp)
	s.release()

	s.engine.logger.Info("Submission sent",
		zap.String("session_id", s.ID),
		zap.String("work_item_id", s.workItem.ID),
		zap.String("submission_id", id),
		zap.Bool("created", result.Created))

	return result, nil
}

// Refresh re-locates the submission from the portal. The result is returned
// as-is and never merged into local edits.
func (s *Session) Refresh(ctx context.Context) (*entity.Submission, error) {
	return s.engine.locator.Locate(ctx, s.workItem.ID)
}

func (s *Session) release() {
	s.notes = ""
	s.ledger = NewLedger(s.engine.config.StrictAmounts, s.engine.logger)
	s.registry.Clear()
}

// record writes an audit event; failures are logged and otherwise ignored
func (e *Engine) record(ctx context.Context, s *Session, eventType, detail string) {
	if e.events == nil {
		return
	}

	event := &entity.ReconcileEvent{
		SessionID:    s.ID,
		WorkItemID:   s.workItem.ID,
		SubmissionID: s.submissionID,
		Type:         eventType,
		Detail:       detail,
		CreatedAt:    time.Now(),
	}
	if err := e.events.Create(ctx, event); err != nil {
		e.logger.Warn("Failed to record reconcile event",
			zap.String("type", eventType),
			zap.String("session_id", s.ID),
			zap.Error(err))
	}
}
