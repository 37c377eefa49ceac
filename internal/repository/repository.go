// Package repository provides SQL-backed claim storage.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// SQLRepository implements domain.ClaimStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
	ttl    time.Duration
	now    func() time.Time
}

// New creates a new repository based on configuration.
func New(cfg domain.StorageConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
		ttl:    ttl,
		now:    time.Now,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveClaim inserts or replaces a claim and restarts its expiry.
func (r *SQLRepository) SaveClaim(ctx context.Context, sessionID string, claim *domain.ClaimRecord) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionID is required", domain.ErrInvalidInput)
	}
	if claim == nil || claim.ID == "" {
		return fmt.Errorf("%w: claim id is required", domain.ErrInvalidInput)
	}

	record, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to encode claim: %w", err)
	}

	query := `
		INSERT INTO claims (
			id, session_id, category, status, created_at, expires_at, record
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, id) DO UPDATE SET
			category = excluded.category,
			status = excluded.status,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			record = excluded.record
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, sessionID, string(claim.Category), string(claim.Status),
		claim.CreatedAt.UnixMilli(), r.now().Add(r.ttl).UnixMilli(),
		string(record),
	)
	return err
}

// GetClaim retrieves an unexpired claim within a session.
func (r *SQLRepository) GetClaim(ctx context.Context, sessionID string, claimID string) (*domain.ClaimRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT record
		FROM claims
		WHERE session_id = ? AND id = ? AND expires_at > ?
	`

	var record string
	err := r.db.QueryRowContext(ctx, r.rebind(query), sessionID, claimID, r.now().UnixMilli()).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeClaim(claimID, record)
}

// ListClaims returns a session's unexpired claims, newest first.
func (r *SQLRepository) ListClaims(ctx context.Context, sessionID string) ([]*domain.ClaimRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, record
		FROM claims
		WHERE session_id = ? AND expires_at > ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sessionID, r.now().UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := make([]*domain.ClaimRecord, 0)
	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			return nil, err
		}
		claim, err := decodeClaim(id, record)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// DeleteClaim removes a claim. Unknown or expired claims return domain.ErrClaimNotFound.
func (r *SQLRepository) DeleteClaim(ctx context.Context, sessionID string, claimID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionID is required", domain.ErrInvalidInput)
	}

	query := `DELETE FROM claims WHERE session_id = ? AND id = ? AND expires_at > ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query), sessionID, claimID, r.now().UnixMilli())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrClaimNotFound
	}
	return nil
}

// PurgeExpired deletes every expired claim and returns how many were removed.
func (r *SQLRepository) PurgeExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM claims WHERE expires_at <= ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query), r.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func decodeClaim(id, record string) (*domain.ClaimRecord, error) {
	var claim domain.ClaimRecord
	if err := json.Unmarshal([]byte(record), &claim); err != nil {
		return nil, fmt.Errorf("failed to decode claim %s: %w", id, err)
	}
	return &claim, nil
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
