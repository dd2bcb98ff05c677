package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the root application configuration, loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Notifx   NotifxConfig
	OAuth2   OAuth2Config
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string
	CORSOrigins  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load builds the full configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "7042"),
			CORSOrigins:  getEnv("CORS_ORIGINS", "*"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth:     loadAuthConfig(),
		Notifx:   loadNotifxConfig(),
		OAuth2:   loadOAuth2Config(),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
