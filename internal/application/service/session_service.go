package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/completion"
	"github.com/garyjia/fieldops-portal/internal/domain/entity"
)

// ErrSessionNotFound is returned for unknown or already released sessions
var ErrSessionNotFound = errors.New("session not found")

// Logger is the structured logger used by services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SessionService owns the open reconciliation sessions.
// Operations on one session are serialized; different sessions run in parallel.
type SessionService interface {
	// Open loads a work item and starts a session for it
	Open(ctx context.Context, workItemID, liaisonID string) (*completion.Session, error)

	// WithSession runs fn with exclusive access to the session
	WithSession(ctx context.Context, sessionID string, fn func(s *completion.Session) error) error

	// StageFile stores an uploaded file and registers it as a new attachment
	StageFile(ctx context.Context, sessionID, fileName, mimeHint string, content io.Reader) (*entity.LocalAttachment, error)

	// Submit sends the session; on success the session and its staged files are released
	Submit(ctx context.Context, sessionID string) (*completion.SubmitResult, error)

	// Discard drops a session without submitting
	Discard(ctx context.Context, sessionID string) error

	// ExpireIdle discards sessions unused for longer than the configured TTL
	ExpireIdle(ctx context.Context) int

	// Events returns a work item's reconcile audit trail, newest first
	Events(ctx context.Context, workItemID string) ([]*entity.ReconcileEvent, error)

	// Count returns the number of open sessions
	Count() int

	// IDs returns the ids of the open sessions
	IDs() []string
}

// SessionServiceConfig holds session service settings
type SessionServiceConfig struct {
	TTL        time.Duration
	EventLimit int
}

type sessionEntry struct {
	mu       sync.Mutex
	session  *completion.Session
	lastUsed time.Time
	released bool
}

type sessionServiceImpl struct {
	engine  *completion.Engine
	staging port.StagingStorage
	events  port.EventRepository
	config  SessionServiceConfig
	logger  Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewSessionService creates a new SessionService. events may be nil.
func NewSessionService(
	engine *completion.Engine,
	staging port.StagingStorage,
	events port.EventRepository,
	config SessionServiceConfig,
	logger Logger,
) SessionService {
	return &sessionServiceImpl{
		engine:   engine,
		staging:  staging,
		events:   events,
		config:   config,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *sessionServiceImpl) Open(ctx context.Context, workItemID, liaisonID string) (*completion.Session, error) {
	session, err := s.engine.Open(ctx, workItemID, liaisonID)
	if err != nil {
		s.logger.Error("Failed to open work item", "work_item_id", workItemID, "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionEntry{session: session, lastUsed: s.now()}
	s.mu.Unlock()

	s.logger.Info("Session opened",
		"session_id", session.ID,
		"work_item_id", workItemID,
		"state", session.State().String(),
		"missing_record", session.MissingRecord())

	return session, nil
}

func (s *sessionServiceImpl) WithSession(ctx context.Context, sessionID string, fn func(session *completion.Session) error) error {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Released while waiting for the lock
	if entry.released {
		return ErrSessionNotFound
	}
	entry.lastUsed = s.now()
	return fn(entry.session)
}

func (s *sessionServiceImpl) StageFile(ctx context.Context, sessionID, fileName, mimeHint string, content io.Reader) (*entity.LocalAttachment, error) {
	var added *entity.LocalAttachment
	err := s.WithSession(ctx, sessionID, func(session *completion.Session) error {
		if !session.State().IsEditable() {
			return completion.ErrSessionClosed
		}

		ref, err := s.staging.Stage(ctx, sessionID, fileName, content)
		if err != nil {
			return fmt.Errorf("failed to stage %s: %w", fileName, err)
		}
		added = session.Registry().AddFromFile(ref, fileName, mimeHint)
		return nil
	})
	return added, err
}

func (s *sessionServiceImpl) Submit(ctx context.Context, sessionID string) (*completion.SubmitResult, error) {
	var result *completion.SubmitResult
	err := s.WithSession(ctx, sessionID, func(session *completion.Session) error {
		var err error
		result, err = session.Submit(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.release(ctx, sessionID)
	return result, nil
}

func (s *sessionServiceImpl) Discard(ctx context.Context, sessionID string) error {
	s.mu.RLock()
	_, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.release(ctx, sessionID)
	s.logger.Info("Session discarded", "session_id", sessionID)
	return nil
}

func (s *sessionServiceImpl) ExpireIdle(ctx context.Context) int {
	if s.config.TTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.config.TTL)

	var idle []string
	s.mu.RLock()
	for id, entry := range s.sessions {
		// Busy sessions are in use and not idle
		if !entry.mu.TryLock() {
			continue
		}
		if entry.lastUsed.Before(cutoff) {
			idle = append(idle, id)
		}
		entry.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, id := range idle {
		s.release(ctx, id)
		s.logger.Info("Idle session expired", "session_id", id)
	}
	return len(idle)
}

func (s *sessionServiceImpl) Events(ctx context.Context, workItemID string) ([]*entity.ReconcileEvent, error) {
	if s.events == nil {
		return []*entity.ReconcileEvent{}, nil
	}

	events, err := s.events.ListByWorkItem(ctx, workItemID, s.config.EventLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if events == nil {
		events = []*entity.ReconcileEvent{}
	}
	return events, nil
}

func (s *sessionServiceImpl) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *sessionServiceImpl) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// release forgets the session and deletes its staged files
func (s *sessionServiceImpl) release(ctx context.Context, sessionID string) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		// Submit calls release after WithSession has returned, so the
		// entry lock is free here.
		entry.mu.Lock()
		entry.released = true
		entry.mu.Unlock()
	}

	if err := s.staging.Release(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to release staged files", "session_id", sessionID, "error", err)
	}
}
