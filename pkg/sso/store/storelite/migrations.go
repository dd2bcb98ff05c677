package storelite

// Schema statements applied in order by Migrate. UUIDs are stored as text,
// JSON as text; foreign keys require PRAGMA foreign_keys at open time.
var migrations = []string{
	`PRAGMA foreign_keys = ON`,

	`CREATE TABLE IF NOT EXISTS sso_service (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		is_enabled BOOLEAN NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		provider_local_url TEXT,
		provider_github_oauth2_url TEXT,
		provider_microsoft_oauth2_url TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS sso_user (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		is_enabled BOOLEAN NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		locale TEXT NOT NULL,
		timezone TEXT NOT NULL,
		password_allow_reset BOOLEAN NOT NULL,
		password_require_update BOOLEAN NOT NULL,
		password_hash TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS sso_key (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		is_enabled BOOLEAN NOT NULL,
		is_revoked BOOLEAN NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL UNIQUE,
		service_id TEXT REFERENCES sso_service (id) ON DELETE CASCADE,
		user_id TEXT REFERENCES sso_user (id) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS ix_sso_key_service_user
		ON sso_key (service_id, user_id, type)`,

	`CREATE TABLE IF NOT EXISTS sso_csrf (
		created_at TIMESTAMP NOT NULL,
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		ttl TIMESTAMP NOT NULL,
		service_id TEXT NOT NULL REFERENCES sso_service (id) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS ix_sso_csrf_ttl ON sso_csrf (ttl)`,

	`CREATE TABLE IF NOT EXISTS sso_audit (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		user_agent TEXT NOT NULL,
		remote TEXT NOT NULL,
		forwarded TEXT,
		type TEXT NOT NULL,
		data TEXT NOT NULL,
		key_id TEXT,
		service_id TEXT REFERENCES sso_service (id) ON DELETE CASCADE,
		user_id TEXT,
		user_key_id TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS ix_sso_audit_created_at ON sso_audit (created_at, id)`,
}
