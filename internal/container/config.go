// Package container wires the reconciliation service's dependencies and
// manages their lifecycle.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Portal   PortalConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds audit database settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PortalConfig holds field operations portal API settings.
type PortalConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// StorageConfig holds staging storage settings.
type StorageConfig struct {
	// StagingDir holds files picked for upload until their session ends
	StagingDir string
}

// EngineConfig holds reconciliation engine settings.
type EngineConfig struct {
	StrictAmounts bool

	// SessionTTL is how long an untouched session survives
	SessionTTL time.Duration

	// EventLimit caps the audit trail returned per work item
	EventLimit int
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	JanitorInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/fieldops.db",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Portal: PortalConfig{
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			StagingDir: "data/staging",
		},
		Engine: EngineConfig{
			SessionTTL: 2 * time.Hour,
			EventLimit: 100,
		},
		Worker: WorkerConfig{
			JanitorInterval: time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.StagingDir == "" {
		return fmt.Errorf("storage.staging_dir is required")
	}
	return nil
}
