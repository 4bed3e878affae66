// Package config provides centralized configuration management for dqcheck.
// Settings are layered from defaults, an optional YAML file, environment
// variables and command-line flags, then validated to fail fast on
// misconfiguration.
package config

import "time"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	// Driver selects the store: postgres or sqlite (default: sqlite)
	Driver string `koanf:"driver"`

	// URL is the PostgreSQL connection string, required for postgres.
	// Read from DATABASE_URL, or DB_URL when DATABASE_URL is unset.
	URL string `koanf:"url"`

	// SQLitePath is the SQLite database file (default: dqcheck.db)
	SQLitePath string `koanf:"sqlite_path"`

	// MaxConns is the maximum number of pool connections (default: 20)
	MaxConns int `koanf:"max_conns"`

	// MinConns is the minimum number of connections kept open (default: 4)
	MinConns int `koanf:"min_conns"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`

	// MaxConnIdleTime is the idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
}

// AnalysisConfig holds dataset and analysis settings.
type AnalysisConfig struct {
	// DataDir is where registered CSV files are stored (default: data/datasets)
	DataDir string `koanf:"data_dir"`

	// MaxFileSize is the maximum CSV size in bytes (default: 100MB)
	MaxFileSize int64 `koanf:"max_file_size"`

	// MaxConcurrent is the number of analyses allowed at once (default: 2)
	MaxConcurrent int `koanf:"max_concurrent"`

	// MaxWaitTime is how long to wait for an analysis slot (default: 30s)
	MaxWaitTime time.Duration `koanf:"max_wait_time"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `koanf:"level"`

	// Format is the log format: text or json (default: text)
	Format string `koanf:"format"`
}

// defaults are the lowest-priority configuration layer.
var defaults = map[string]any{
	"database.driver":             DriverSQLite,
	"database.sqlite_path":        "dqcheck.db",
	"database.max_conns":          20,
	"database.min_conns":          4,
	"database.max_conn_lifetime":  time.Hour,
	"database.max_conn_idle_time": 30 * time.Minute,
	"analysis.data_dir":           "data/datasets",
	"analysis.max_file_size":      int64(100 << 20),
	"analysis.max_concurrent":     2,
	"analysis.max_wait_time":      30 * time.Second,
	"logging.level":               "info",
	"logging.format":              "text",
}

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	"DATABASE_URL":            "database.url",
	"DB_URL":                  "database.url",
	"DB_DRIVER":               "database.driver",
	"DB_MAX_CONNS":            "database.max_conns",
	"DB_MIN_CONNS":            "database.min_conns",
	"DB_MAX_CONN_LIFETIME":    "database.max_conn_lifetime",
	"DB_MAX_CONN_IDLE_TIME":   "database.max_conn_idle_time",
	"SQLITE_PATH":             "database.sqlite_path",
	"ANALYSIS_DATA_DIR":       "analysis.data_dir",
	"ANALYSIS_MAX_FILE_SIZE":  "analysis.max_file_size",
	"ANALYSIS_MAX_CONCURRENT": "analysis.max_concurrent",
	"ANALYSIS_MAX_WAIT_TIME":  "analysis.max_wait_time",
	"LOG_LEVEL":               "logging.level",
	"LOG_FORMAT":              "logging.format",
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"db-driver":    "database.driver",
	"database-url": "database.url",
	"sqlite-path":  "database.sqlite_path",
	"data-dir":     "analysis.data_dir",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
}
