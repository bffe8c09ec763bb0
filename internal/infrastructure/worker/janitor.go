package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionExpirer discards idle reconciliation sessions
type SessionExpirer interface {
	ExpireIdle(ctx context.Context) int
}

// SessionJanitorConfig holds configuration for the session janitor
type SessionJanitorConfig struct {
	Interval time.Duration
}

// DefaultSessionJanitorConfig returns default configuration
func DefaultSessionJanitorConfig() SessionJanitorConfig {
	return SessionJanitorConfig{Interval: time.Minute}
}

// SessionJanitor periodically expires idle sessions so their staged
// files do not pile up on disk.
type SessionJanitor struct {
	config   SessionJanitorConfig
	sessions SessionExpirer
	logger   *zap.Logger

	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	isRunning    bool
	lastSweep    time.Time
	expiredCount int
}

// NewSessionJanitor creates a new session janitor
func NewSessionJanitor(config SessionJanitorConfig, sessions SessionExpirer, logger *zap.Logger) *SessionJanitor {
	if config.Interval <= 0 {
		config.Interval = DefaultSessionJanitorConfig().Interval
	}
	return &SessionJanitor{
		config:   config,
		sessions: sessions,
		logger:   logger,
	}
}

// Start begins the sweep loop
func (j *SessionJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.isRunning {
		j.mu.Unlock()
		return fmt.Errorf("session janitor already running")
	}

	j.ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	j.isRunning = true
	j.mu.Unlock()

	j.logger.Info("SessionJanitor started", zap.Duration("interval", j.config.Interval))

	go j.sweepLoop(j.ctx, j.done)
	return nil
}

// Stop terminates the sweep loop and waits for an in-flight sweep
func (j *SessionJanitor) Stop() error {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return nil
	}
	j.isRunning = false
	cancel, done := j.cancel, j.done
	j.mu.Unlock()

	cancel()
	<-done

	j.logger.Info("SessionJanitor stopped", zap.Int("expired_count", j.ExpiredCount()))
	return nil
}

// Name returns the worker name for identification
func (j *SessionJanitor) Name() string {
	return "SessionJanitor"
}

// IsRunning reports whether the sweep loop is active
func (j *SessionJanitor) IsRunning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.isRunning
}

// ExpiredCount returns how many sessions the janitor has expired
func (j *SessionJanitor) ExpiredCount() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.expiredCount
}

// LastSweep returns when the last sweep finished
func (j *SessionJanitor) LastSweep() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastSweep
}

func (j *SessionJanitor) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Debug("Sweep loop context cancelled")
			return

		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *SessionJanitor) sweep(ctx context.Context) {
	expired := j.sessions.ExpireIdle(ctx)

	j.mu.Lock()
	j.expiredCount += expired
	j.lastSweep = time.Now()
	j.mu.Unlock()

	if expired > 0 {
		j.logger.Info("Expired idle sessions", zap.Int("count", expired))
	}
}
