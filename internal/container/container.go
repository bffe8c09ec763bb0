package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/application/service"
	"github.com/garyjia/fieldops-portal/internal/completion"
	"github.com/garyjia/fieldops-portal/internal/export"
	"github.com/garyjia/fieldops-portal/internal/infrastructure/external/portal"
	"github.com/garyjia/fieldops-portal/internal/infrastructure/worker"
	"github.com/garyjia/fieldops-portal/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config        *Config
	logger        *zap.Logger
	portalOptions []portal.Option

	// Infrastructure
	db      *database.DB
	events  port.EventRepository
	staging port.StagingStorage
	portal  *PortalBundle

	// Application
	services *ServiceBundle

	// Background
	janitor *worker.SessionJanitor

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option customizes a Container
type Option func(*Container)

// WithPortalOptions passes options through to the portal client
func WithPortalOptions(opts ...portal.Option) Option {
	return func(c *Container) {
		c.portalOptions = append(c.portalOptions, opts...)
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database, migrations and the event repository
// 2. Staging storage
// 3. Portal client
// 4. Engine and application services
// 5. Session janitor
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized", zap.String("staging_dir", c.config.Storage.StagingDir))

	if err := c.initPortal(); err != nil {
		return fmt.Errorf("failed to initialize portal client: %w", err)
	}
	c.logger.Info("Portal client initialized", zap.String("base_url", c.config.Portal.BaseURL))

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized",
		zap.Bool("strict_amounts", c.config.Engine.StrictAmounts))

	if err := c.initJanitor(); err != nil {
		return fmt.Errorf("failed to initialize session janitor: %w", err)
	}
	c.logger.Info("Session janitor started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.janitor != nil {
		if err := c.janitor.Stop(); err != nil {
			c.logger.Error("Failed to stop session janitor", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop janitor: %w", err))
		}
	}

	// Open sessions hold staged files; drop them before the process exits
	if c.services != nil {
		discarded := 0
		for _, id := range c.services.Sessions.IDs() {
			if err := c.services.Sessions.Discard(context.Background(), id); err == nil {
				discarded++
			}
		}
		c.logger.Info("Open sessions discarded", zap.Int("count", discarded))
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	mark := func(name string, health ComponentHealth) {
		status.Components[name] = health
		if !health.Healthy {
			status.Overall = false
		}
	}

	if c.db != nil {
		if err := c.db.PingContext(ctx); err != nil {
			mark("database", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			mark("database", ComponentHealth{Healthy: true})
		}
	} else {
		mark("database", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	if c.janitor != nil {
		mark("janitor", ComponentHealth{
			Healthy: c.janitor.IsRunning(),
			Message: fmt.Sprintf("expired sessions: %d", c.janitor.ExpiredCount()),
		})
	} else {
		mark("janitor", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	if c.services != nil {
		mark("sessions", ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("open sessions: %d", c.services.Sessions.Count()),
		})
	} else {
		mark("sessions", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = bundle.DB
	c.events = bundle.Events
	return nil
}

func (c *Container) initStorage() error {
	staging, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.staging = staging
	return nil
}

func (c *Container) initPortal() error {
	bundle, err := ProvidePortalClient(&c.config.Portal, c.staging, c.logger, c.portalOptions...)
	if err != nil {
		return err
	}
	c.portal = bundle
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Portal:  c.portal,
		Staging: c.staging,
		Events:  c.events,
		Engine:  &c.config.Engine,
		Logger:  c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

func (c *Container) initJanitor() error {
	janitor, err := ProvideJanitor(&c.config.Worker, c.services.Sessions, c.logger)
	if err != nil {
		return err
	}
	c.janitor = janitor

	return c.janitor.Start(c.ctx)
}

// Getters for accessing container components

// DB returns the audit database.
func (c *Container) DB() *database.DB {
	return c.db
}

// Events returns the reconcile event repository.
func (c *Container) Events() port.EventRepository {
	return c.events
}

// Staging returns the staging storage.
func (c *Container) Staging() port.StagingStorage {
	return c.staging
}

// Portal returns the portal client bundle.
func (c *Container) Portal() *PortalBundle {
	return c.portal
}

// Engine returns the reconciliation engine.
func (c *Container) Engine() *completion.Engine {
	return c.services.Engine
}

// Sessions returns the session service.
func (c *Container) Sessions() service.SessionService {
	return c.services.Sessions
}

// Sheets returns the expense sheet writer.
func (c *Container) Sheets() *export.ExpenseSheetWriter {
	return c.services.Sheets
}

// Janitor returns the idle session janitor.
func (c *Container) Janitor() *worker.SessionJanitor {
	return c.janitor
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
