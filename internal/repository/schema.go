package repository

// Schema definitions for ClaimGuard session storage.
// Compatible with both SQLite and PostgreSQL.
// Times are unix milliseconds so expiry comparisons behave the same on both.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    category TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    expires_at BIGINT NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (session_id, id)
);

CREATE INDEX IF NOT EXISTS idx_claims_session_created ON claims(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_claims_expires ON claims(expires_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
	}
}
