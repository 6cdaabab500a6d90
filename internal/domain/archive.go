// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Archive persists finished screening reports for audit retrieval.
// Archival is best-effort: failures are logged and never fail a run.
type Archive interface {
	// SaveReport stores a finished report.
	SaveReport(ctx context.Context, report *ScreeningReport) error

	// GetReport retrieves a report by id.
	GetReport(ctx context.Context, reportID string) (*ScreeningReport, error)

	// ListReports returns reports generated at or after since, newest
	// first, capped at limit.
	ListReports(ctx context.Context, since time.Time, limit int) ([]*ScreeningReport, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ArchiveConfig holds configuration for archive initialization.
type ArchiveConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     int    `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int `yaml:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"` // seconds
}
