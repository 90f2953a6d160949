// Package config loads application configuration from environment
// variables.  A .env file in the working directory is read first when
// present; variables already set in the process environment win.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers accepted by DB_DRIVER.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the core runtime settings.  Concern-specific settings
// (rate limiting, caching, mail, background tasks, tracing) have their own
// loaders in this package.
type Config struct {
	Env             string        // application environment (dev, test, prod)
	Port            string        // HTTP port to listen on
	LogLevel        string        // zap level name
	CORSOrigins     []string      // allowed origins, empty allows any
	ShutdownTimeout time.Duration // grace period for in-flight requests and tasks
	DB              DBConfig
}

// DBConfig selects and addresses the storage engine.
type DBConfig struct {
	Driver      string // mysql, postgres or memory
	User        string
	Pass        string // may be empty
	Host        string
	Port        string
	Name        string
	SSLMode     string // postgres only
	AutoMigrate bool   // create tables and seed categories on start
}

// Load reads the environment (after an optional .env) and validates it.
// Database credentials are only required by the SQL drivers.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:             envStr("APP_ENV", "dev"),
		Port:            envStr("APP_PORT", "8080"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		CORSOrigins:     splitList(envStr("CORS_ORIGIN", "")),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 15*time.Second),
		DB: DBConfig{
			Driver:      strings.ToLower(envStr("DB_DRIVER", DriverMySQL)),
			User:        envStr("DB_USER", ""),
			Pass:        envStr("DB_PASS", ""),
			Host:        envStr("DB_HOST", "localhost"),
			Port:        envStr("DB_PORT", ""),
			Name:        envStr("DB_NAME", ""),
			SSLMode:     envStr("DB_SSLMODE", "disable"),
			AutoMigrate: envBool("DB_AUTO_MIGRATE", true),
		},
	}

	switch cfg.DB.Driver {
	case DriverMySQL, DriverPostgres:
		var missing []string
		if cfg.DB.User == "" {
			missing = append(missing, "DB_USER")
		}
		if cfg.DB.Name == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return Config{}, fmt.Errorf("missing required env var(s): %s", strings.Join(missing, ", "))
		}
		if cfg.DB.Port == "" {
			cfg.DB.Port = defaultDBPort(cfg.DB.Driver)
		}
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	if cfg.Port == "" {
		return Config{}, errors.New("APP_PORT must not be empty")
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func defaultDBPort(driver string) string {
	if driver == DriverPostgres {
		return "5432"
	}
	return "3306"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
