package container

import (
	"context"
	"fmt"

	"github.com/garyjia/fieldops-portal/internal/application/port"
	"github.com/garyjia/fieldops-portal/internal/application/service"
	"github.com/garyjia/fieldops-portal/internal/completion"
	"github.com/garyjia/fieldops-portal/internal/export"
	"github.com/garyjia/fieldops-portal/internal/infrastructure/external/portal"
	"github.com/garyjia/fieldops-portal/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fieldops-portal/internal/infrastructure/storage"
	"github.com/garyjia/fieldops-portal/internal/infrastructure/worker"
	"github.com/garyjia/fieldops-portal/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB     *database.DB
	Events port.EventRepository
}

// PortalBundle holds the portal client behind its three provider ports.
type PortalBundle struct {
	Client      *portal.Client
	WorkItems   port.WorkItemProvider
	Submissions port.SubmissionProvider
	Attachments port.AttachmentProvider
}

// ServiceBundle groups the application services.
type ServiceBundle struct {
	Engine   *completion.Engine
	Sessions service.SessionService
	Sheets   *export.ExpenseSheetWriter
}

// ProvideDatabase opens the audit database and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:     db,
		Events: repository.NewEventRepository(db, logger),
	}, nil
}

// ProvideStorage creates the staging storage.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.StagingStorage, error) {
	if cfg == nil || cfg.StagingDir == "" {
		return nil, fmt.Errorf("staging directory is required")
	}
	return storage.NewLocalStagingStorage(cfg.StagingDir, logger), nil
}

// ProvidePortalClient creates the portal API client. Outbound files are read
// from staging storage.
func ProvidePortalClient(cfg *PortalConfig, staging port.StagingStorage, logger *zap.Logger, opts ...portal.Option) (*PortalBundle, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("portal base URL is required")
	}
	if staging == nil {
		return nil, fmt.Errorf("staging storage is required")
	}

	client := portal.NewClient(portal.Config{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
	}, staging, logger, opts...)

	return &PortalBundle{
		Client:      client,
		WorkItems:   client,
		Submissions: client,
		Attachments: client,
	}, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Portal  *PortalBundle
	Staging port.StagingStorage
	Events  port.EventRepository
	Engine  *EngineConfig
	Logger  *zap.Logger
}

// ProvideServices creates the engine, the session service and the export writer.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Portal == nil || deps.Engine == nil || deps.Logger == nil {
		return nil, fmt.Errorf("service dependencies are incomplete")
	}

	engine := completion.NewEngine(
		deps.Portal.WorkItems,
		deps.Portal.Submissions,
		deps.Portal.Attachments,
		deps.Events,
		completion.EngineConfig{StrictAmounts: deps.Engine.StrictAmounts},
		deps.Logger,
	)

	sessions := service.NewSessionService(
		engine,
		deps.Staging,
		deps.Events,
		service.SessionServiceConfig{
			TTL:        deps.Engine.SessionTTL,
			EventLimit: deps.Engine.EventLimit,
		},
		service.NewZapLogger(deps.Logger),
	)

	return &ServiceBundle{
		Engine:   engine,
		Sessions: sessions,
		Sheets:   export.NewExpenseSheetWriter(deps.Logger),
	}, nil
}

// ProvideJanitor creates the idle session janitor.
func ProvideJanitor(cfg *WorkerConfig, sessions service.SessionService, logger *zap.Logger) (*worker.SessionJanitor, error) {
	if cfg == nil || sessions == nil {
		return nil, fmt.Errorf("janitor dependencies are incomplete")
	}

	return worker.NewSessionJanitor(
		worker.SessionJanitorConfig{Interval: cfg.JanitorInterval},
		sessions,
		logger,
	), nil
}
