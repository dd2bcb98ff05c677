package storepg

// Schema statements applied in order by Migrate. Statements are idempotent
// so a restart can re-run them safely.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sso_service (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		is_enabled BOOLEAN NOT NULL,
		name VARCHAR NOT NULL,
		url VARCHAR NOT NULL,
		provider_local_url VARCHAR,
		provider_github_oauth2_url VARCHAR,
		provider_microsoft_oauth2_url VARCHAR
	)`,

	`CREATE TABLE IF NOT EXISTS sso_user (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		is_enabled BOOLEAN NOT NULL,
		name VARCHAR NOT NULL,
		email VARCHAR NOT NULL,
		locale VARCHAR NOT NULL,
		timezone VARCHAR NOT NULL,
		password_allow_reset BOOLEAN NOT NULL,
		password_require_update BOOLEAN NOT NULL,
		password_hash VARCHAR,
		CONSTRAINT uq_sso_user_email UNIQUE (email)
	)`,

	`CREATE TABLE IF NOT EXISTS sso_key (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		is_enabled BOOLEAN NOT NULL,
		is_revoked BOOLEAN NOT NULL,
		type VARCHAR NOT NULL,
		name VARCHAR NOT NULL,
		value VARCHAR NOT NULL,
		service_id UUID REFERENCES sso_service (id) ON DELETE CASCADE,
		user_id UUID REFERENCES sso_user (id) ON DELETE CASCADE,
		CONSTRAINT uq_sso_key_value UNIQUE (value)
	)`,

	`CREATE INDEX IF NOT EXISTS ix_sso_key_service_user
		ON sso_key (service_id, user_id, type)`,

	`CREATE TABLE IF NOT EXISTS sso_csrf (
		created_at TIMESTAMPTZ NOT NULL,
		key VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL,
		ttl TIMESTAMPTZ NOT NULL,
		service_id UUID NOT NULL REFERENCES sso_service (id) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS ix_sso_csrf_ttl ON sso_csrf (ttl)`,

	// Audits reference entities by id only; they survive entity deletion
	// except when the owning service is removed.
	`CREATE TABLE IF NOT EXISTS sso_audit (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		user_agent VARCHAR NOT NULL,
		remote VARCHAR NOT NULL,
		forwarded VARCHAR,
		type VARCHAR NOT NULL,
		data JSONB NOT NULL,
		key_id UUID,
		service_id UUID REFERENCES sso_service (id) ON DELETE CASCADE,
		user_id UUID,
		user_key_id UUID
	)`,

	`CREATE INDEX IF NOT EXISTS ix_sso_audit_created_at ON sso_audit (created_at, id)`,
}
