package config

import (
	"github.com/garyjia/fieldops-portal/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Portal: container.PortalConfig{
			BaseURL: c.Portal.BaseURL,
			Token:   c.Portal.Token,
			Timeout: c.Portal.Timeout,
		},
		Storage: container.StorageConfig{
			StagingDir: c.Storage.StagingDir,
		},
		Engine: container.EngineConfig{
			StrictAmounts: c.Engine.StrictAmounts,
			SessionTTL:    c.Engine.SessionTTL,
			EventLimit:    c.Engine.EventLimit,
		},
		Worker: container.WorkerConfig{
			JanitorInterval: c.Engine.SweepInterval,
		},
	}
}
