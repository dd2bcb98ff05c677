package config

import "time"

// AuthConfig configures credential issuance and retention.
type AuthConfig struct {
	// AccessTokenTTL is the validity window of multi-use access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the validity window of single-use refresh tokens
	// and the CSRF records backing them.
	RefreshTokenTTL time.Duration

	// RevokeTokenTTL is the validity window of update-email /
	// update-password revoke tokens.
	RevokeTokenTTL time.Duration

	// ResetTokenTTL is the validity window of reset-password tokens.
	ResetTokenTTL time.Duration

	// PasswordMinLen / PasswordMaxLen bound accepted password lengths.
	PasswordMinLen int
	PasswordMaxLen int

	// RootKeySeed, when set and no root key exists, seeds a root key with
	// this exact value at startup. When empty a random root key is created
	// and logged once.
	RootKeySeed string

	// AuditRetention is how long audit records are kept before the
	// retention sweep deletes them. Zero disables the sweep.
	AuditRetention time.Duration

	// SweepInterval is how often the background retention sweep runs.
	SweepInterval time.Duration
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenTTL:  getDuration("AUTH_ACCESS_TOKEN_TTL", 1*time.Hour),
		RefreshTokenTTL: getDuration("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		RevokeTokenTTL:  getDuration("AUTH_REVOKE_TOKEN_TTL", 24*time.Hour),
		ResetTokenTTL:   getDuration("AUTH_RESET_TOKEN_TTL", 1*time.Hour),
		PasswordMinLen:  getInt("AUTH_PASSWORD_MIN_LEN", 8),
		PasswordMaxLen:  getInt("AUTH_PASSWORD_MAX_LEN", 128),
		RootKeySeed:     getEnv("AUTH_ROOT_KEY", ""),
		AuditRetention:  getDuration("AUTH_AUDIT_RETENTION", 90*24*time.Hour),
		SweepInterval:   getDuration("AUTH_SWEEP_INTERVAL", 1*time.Hour),
	}
}
