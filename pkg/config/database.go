package config

import (
	"fmt"
	"time"
)

// DatabaseConfig configures the entity store.
//
// Driver selects the backend: "postgres" (default), "sqlite" or "memory".
// For sqlite the URL is a file path or ":memory:".
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          getEnv("DATABASE_DRIVER", "postgres"),
		Host:            getEnv("DATABASE_HOST", "localhost"),
		Port:            getInt("DATABASE_PORT", 5432),
		User:            getEnv("DATABASE_USER", "gatekit"),
		Password:        getEnv("DATABASE_PASSWORD", ""),
		Name:            getEnv("DATABASE_NAME", "gatekit"),
		SSLMode:         getEnv("DATABASE_SSLMODE", "disable"),
		URL:             getEnv("DATABASE_URL", ""),
		MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

// DSN returns the connection string for the configured driver.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == "sqlite" {
		return ":memory:"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}
