// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Log      LogConfig

	// TraceStdout exports OpenTelemetry spans to stdout.
	TraceStdout bool
}

// HTTPConfig configures the REST API.
type HTTPConfig struct {
	Port           int
	RequestLogging bool
}

// DatabaseConfig configures the database connection.
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	AutoMigrate  bool
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from the environment. Variables defined in the given files
// (".env" if none are given) are added to the environment first; variables that are already
// set win. A missing file is not an error.
//
// Usage example:
//
//	> PORT=8080 DBDRIVER=mysql DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", file, err)
		}
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:           8080,
			RequestLogging: !strings.EqualFold(os.Getenv("GIN_LOGGING"), "off"),
		},
		Database: DatabaseConfig{
			Driver:       getString("DBDRIVER", "mysql"),
			Host:         getString("DBHOST", "localhost"),
			User:         os.Getenv("DBUSER"),
			Password:     os.Getenv("DBPWD"),
			SSLMode:      getString("DBSSLMODE", "disable"),
			MaxOpenConns: 10,
		},
		Log: LogConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "json"),
		},
	}

	var err error
	if cfg.HTTP.Port, err = getInt("PORT", cfg.HTTP.Port); err != nil {
		return nil, err
	}
	if cfg.Database.Port, err = getInt("DBPORT", 0); err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns, err = getInt("DBMAXOPENCONNS", cfg.Database.MaxOpenConns); err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate, err = getBool("DBAUTOMIGRATE", false); err != nil {
		return nil, err
	}
	if cfg.TraceStdout, err = getBool("TRACE_STDOUT", false); err != nil {
		return nil, err
	}

	switch cfg.Database.Driver {
	case "mysql":
		cfg.Database.Name = getString("DBNAME", "test")
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 3306
		}
	case "postgres":
		cfg.Database.Name = getString("DBNAME", "test")
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	case "sqlite3":
		cfg.Database.Name = getString("DBNAME", "contacts.db")
		cfg.Database.MaxOpenConns = 1
	default:
		return nil, fmt.Errorf("config: unsupported DBDRIVER %q", cfg.Database.Driver)
	}
	return cfg, nil
}

func getString(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: could not parse %s env variable: %w", key, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("config: could not parse %s env variable: %w", key, err)
	}
	return parsed, nil
}
