// Package domain defines the core interfaces and types for ClaimGuard.
package domain

import (
	"context"
	"time"
)

// ClaimStore persists claim records inside a session scope.
// Records expire after the configured session TTL; expired records
// behave as not found.
type ClaimStore interface {
	SaveClaim(ctx context.Context, sessionID string, claim *ClaimRecord) error
	GetClaim(ctx context.Context, sessionID string, claimID string) (*ClaimRecord, error)
	// ListClaims returns the session's claims, newest first.
	ListClaims(ctx context.Context, sessionID string) ([]*ClaimRecord, error)
	DeleteClaim(ctx context.Context, sessionID string, claimID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// StorageConfig holds configuration for claim storage initialization.
type StorageConfig struct {
	// Driver is one of "memory", "redis" (both via the cache layer),
	// "sqlite" or "postgres".
	Driver string `json:"driver" yaml:"driver"`

	// SessionTTL bounds how long a session's claims are kept.
	SessionTTL time.Duration `json:"sessionTtl" yaml:"session_ttl"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgres_host"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgres_port"`
	PostgresUser     string `json:"postgresUser" yaml:"postgres_user"`
	PostgresPassword string `json:"-" yaml:"postgres_password"`
	PostgresDB       string `json:"postgresDb" yaml:"postgres_db"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgres_ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"conn_max_lifetime"`

	// PurgeInterval is how often expired SQL rows are deleted. Zero disables purging.
	PurgeInterval time.Duration `json:"purgeInterval" yaml:"purge_interval"`
}

// SQL reports whether the driver is backed by the SQL repository.
func (c StorageConfig) SQL() bool {
	return c.Driver == "sqlite" || c.Driver == "postgres"
}
