package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/farmlink-lab/farm-insights/internal/report"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FARMINSIGHTS_"

// Config represents the top-level application config plus the resolved report catalogue.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Reports  ReportsConfig  `koanf:"reports"`

	// Catalog is populated by Load after reading the report definitions.
	Catalog *report.Catalog `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Driver       string `koanf:"driver"` // postgres (lib/pq) | pgx
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type ReportsConfig struct {
	DefinitionsDir  string `koanf:"definitions_dir"` // empty: definitions compiled into the binary
	TopN            int    `koanf:"top_n"`
	FetchTimeout    string `koanf:"fetch_timeout"` // parsed and validated on startup
	MaxWindowMonths int    `koanf:"max_window_months"`
}

// FetchTimeoutDuration returns the parsed fetch timeout. Validate guarantees it parses.
func (c ReportsConfig) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database.driver %q (must be postgres or pgx)", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}

	if c.Reports.TopN <= 0 {
		return fmt.Errorf("reports.top_n must be > 0")
	}
	if c.Reports.MaxWindowMonths <= 0 {
		return fmt.Errorf("reports.max_window_months must be > 0")
	}
	timeout, err := time.ParseDuration(c.Reports.FetchTimeout)
	if err != nil {
		return fmt.Errorf("invalid reports.fetch_timeout %q: %w", c.Reports.FetchTimeout, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("reports.fetch_timeout must be > 0")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads the report catalogue.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":               8080,
		"server.host":               "0.0.0.0",
		"server.mode":               "release",
		"database.driver":           "postgres",
		"database.dsn":              "postgres://localhost:5432/farm?sslmode=disable",
		"database.max_open_conns":   25,
		"database.max_idle_conns":   25,
		"database.auto_migrate":     false,
		"reports.definitions_dir":   "",
		"reports.top_n":             5,
		"reports.fetch_timeout":     "30s",
		"reports.max_window_months": 120,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		catalog *report.Catalog
		err     error
	)
	if cfg.Reports.DefinitionsDir != "" {
		catalog, err = report.LoadCatalogDir(cfg.Reports.DefinitionsDir)
	} else {
		catalog, err = report.DefaultCatalog()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report definitions: %w", err)
	}
	cfg.Catalog = catalog

	return &cfg, nil
}
