package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"storecast/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for storecast.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Columns  domain.Columns `yaml:"columns"`
	Features Features       `yaml:"features"`
	Calendar Calendar       `yaml:"calendar"`
	Server   Server         `yaml:"server"`
	Logging  Logging        `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Features controls the feature pipeline.
type Features struct {
	// Workers bounds the grouped engine's goroutines; 0 means GOMAXPROCS.
	Workers      int     `yaml:"workers"`
	SafetyFactor float64 `yaml:"safety_factor"`
	// Skip lists feature names that are not computed.
	Skip []string `yaml:"skip"`
}

// Calendar selects the holiday calendar. An empty File uses the embedded
// Egyptian calendar.
type Calendar struct {
	File     string `yaml:"file"`
	FromYear int    `yaml:"from_year"`
	ToYear   int    `yaml:"to_year"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // HTTP: tag endpoint and /metrics
	GRPCPort int    `yaml:"grpc_port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when a field is not set.
func Default() *Config {
	return &Config{
		Storage:  Storage{DataDir: "data", SQLitePath: "data/storecast.db"},
		Columns:  domain.DefaultColumns(),
		Features: Features{SafetyFactor: 0.15},
		Calendar: Calendar{FromYear: 2020, ToYear: 2035},
		Server:   Server{Host: "0.0.0.0", Port: 8080, GRPCPort: 9090},
		Logging:  Logging{Level: "info", Format: "json"},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over the
// defaults, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports settings no component can run with.
func (c *Config) Validate() error {
	if c.Calendar.FromYear > c.Calendar.ToYear {
		return fmt.Errorf("calendar: from_year %d after to_year %d", c.Calendar.FromYear, c.Calendar.ToYear)
	}
	if c.Features.Workers < 0 {
		return fmt.Errorf("features: negative workers %d", c.Features.Workers)
	}
	cols := c.Columns
	if cols.Store == "" || cols.Item == "" || cols.Date == "" || cols.Value == "" {
		return fmt.Errorf("columns: store, item, date and value must all be named")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("STORECAST_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("STORECAST_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("STORECAST_CALENDAR_FILE"); v != "" {
		cfg.Calendar.File = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("STORECAST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STORECAST_WORKERS: %w", err)
		}
		cfg.Features.Workers = n
	}

	if v := os.Getenv("STORECAST_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STORECAST_PORT: %w", err)
		}
		cfg.Server.Port = n
	}

	if v := os.Getenv("STORECAST_GRPC_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STORECAST_GRPC_PORT: %w", err)
		}
		cfg.Server.GRPCPort = n
	}
	return nil
}
