// Package config loads and validates the YAML configuration file.
// Environment variables referenced as ${VAR} are expanded before parsing,
// so credentials can stay out of the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/johndauphine/colsync/internal/driver"
)

// Config is the root configuration.
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	State       StateConfig       `yaml:"state"`
	Sync        SyncConfig        `yaml:"sync"`
	Slack       SlackConfig       `yaml:"slack"`
	LogLevel    string            `yaml:"log_level"`
}

// SourceConfig describes the relational source.
type SourceConfig struct {
	Type     string `yaml:"type"` // "oracle" (default), "postgres", "mssql"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"` // service name (Oracle) or database name
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Schema   string `yaml:"schema"`

	// ClientMode selects the Oracle client stack: thin, thick, or auto.
	ClientMode string `yaml:"client_mode"`
	LibDir     string `yaml:"lib_dir"`

	MaxConnections int `yaml:"max_connections"`
	ConnectTimeout int `yaml:"connect_timeout"` // seconds
	FetchRows      int `yaml:"fetch_rows"`

	// Options pass through to the engine DSN builder verbatim.
	Options map[string]any `yaml:"options"`
}

// DestinationConfig describes the DuckDB destination file.
type DestinationConfig struct {
	Path string `yaml:"path"`
}

// StateConfig describes watermark and history persistence.
type StateConfig struct {
	Backend string `yaml:"backend"` // "sqlite" (default) or "file"
	Path    string `yaml:"path"`
}

// SyncConfig holds the per-run tuning defaults. Per-table strategies may
// override all of them.
type SyncConfig struct {
	Workers       int      `yaml:"workers"`
	BatchSize     int      `yaml:"batch_size"`
	Tolerance     float64  `yaml:"tolerance"`
	Tables        []string `yaml:"tables"`         // empty means every table in the schema
	ExcludeTables []string `yaml:"exclude_tables"` // glob patterns
	StagingDir    string   `yaml:"staging_dir"`
}

// SlackConfig configures run-summary notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
	Enabled    bool   `yaml:"enabled"`
}

// expandTilde expands ~ or ~/ at the start of a path.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from a YAML file, warning when the file is
// readable by other users.
func Load(path string) (*Config, error) {
	if warning := checkFilePermissions(path); warning != "" {
		fmt.Fprint(os.Stderr, warning)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses configuration from YAML bytes.
func LoadBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// DefaultStateDir returns (creating if needed) the per-user state
// directory.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".colsync")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func (c *Config) applyDefaults() {
	if c.Source.Type == "" {
		c.Source.Type = "oracle"
	}
	c.Source.Type = driver.Canonicalize(c.Source.Type)

	if src, err := driver.Get(c.Source.Type); err == nil {
		defaults := src.Defaults()
		if c.Source.Port == 0 {
			c.Source.Port = defaults.Port
		}
		if c.Source.Schema == "" {
			c.Source.Schema = defaults.Schema
		}
	}
	if c.Source.Schema == "" && c.Source.User != "" {
		// Oracle has no fixed default schema: objects live under the
		// connecting account, and unquoted identifiers fold to upper case.
		c.Source.Schema = strings.ToUpper(c.Source.User)
	}

	if c.Source.ClientMode == "" {
		c.Source.ClientMode = "thin"
	}
	if c.Source.MaxConnections == 0 {
		c.Source.MaxConnections = 8
	}
	if c.Source.ConnectTimeout == 0 {
		c.Source.ConnectTimeout = 30
	}
	if c.Source.FetchRows == 0 {
		c.Source.FetchRows = 5000
	}

	if c.Destination.Path == "" {
		c.Destination.Path = "colsync.duckdb"
	}
	c.Destination.Path = expandTilde(c.Destination.Path)

	if c.State.Backend == "" {
		c.State.Backend = "sqlite"
	}
	c.State.Path = expandTilde(c.State.Path)
	c.Sync.StagingDir = expandTilde(c.Sync.StagingDir)

	if c.Sync.Workers == 0 {
		c.Sync.Workers = 4
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 10000
	}

	if c.Slack.Username == "" {
		c.Slack.Username = "colsync"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if !driver.IsRegistered(c.Source.Type) {
		return fmt.Errorf("source.type %q is not a registered driver (available: %s)",
			c.Source.Type, strings.Join(driver.Available(), ", "))
	}
	if c.Source.Host == "" {
		return fmt.Errorf("source.host is required")
	}
	if c.Source.Database == "" {
		return fmt.Errorf("source.database is required")
	}
	switch c.Source.ClientMode {
	case "thin", "thick", "auto":
	default:
		return fmt.Errorf("source.client_mode must be 'thin', 'thick', or 'auto'")
	}
	switch c.State.Backend {
	case "sqlite", "file":
	default:
		return fmt.Errorf("state.backend must be 'sqlite' or 'file'")
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be positive")
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Sync.Tolerance < 0 || c.Sync.Tolerance >= 1 {
		return fmt.Errorf("sync.tolerance must be in [0, 1)")
	}
	if c.Slack.Enabled && c.Slack.WebhookURL == "" {
		return fmt.Errorf("slack.webhook_url is required when slack is enabled")
	}
	return nil
}

// SourceDSN builds the engine connection string through the driver's
// dialect.
func (c *Config) SourceDSN() (string, error) {
	src, err := driver.Get(c.Source.Type)
	if err != nil {
		return "", err
	}
	return src.Dialect().BuildDSN(c.Source.Host, c.Source.Port, c.Source.Database,
		c.Source.User, c.Source.Password, c.Source.Options), nil
}

// DriverConfig resolves the per-connection settings for driver.Open.
func (c *Config) DriverConfig() driver.Config {
	return driver.Config{
		ClientMode:     c.Source.ClientMode,
		LibDir:         c.Source.LibDir,
		MaxOpenConns:   c.Source.MaxConnections,
		ConnectTimeout: time.Duration(c.Source.ConnectTimeout) * time.Second,
		FetchRows:      c.Source.FetchRows,
	}
}

// StatePath returns the configured state location, falling back to the
// per-user default.
func (c *Config) StatePath() (string, error) {
	if c.State.Path != "" {
		return c.State.Path, nil
	}
	dir, err := DefaultStateDir()
	if err != nil {
		return "", err
	}
	if c.State.Backend == "file" {
		return filepath.Join(dir, "state.yaml"), nil
	}
	return filepath.Join(dir, "state.db"), nil
}

// Sanitized returns a copy with credentials redacted for logging.
func (c *Config) Sanitized() *Config {
	sanitized := *c
	if sanitized.Source.Password != "" {
		sanitized.Source.Password = "[REDACTED]"
	}
	if sanitized.Slack.WebhookURL != "" {
		sanitized.Slack.WebhookURL = "[REDACTED]"
	}
	return &sanitized
}

// IncludeTable reports whether a table participates in the sync under the
// include list and exclusion globs.
func (c *Config) IncludeTable(name string) bool {
	if len(c.Sync.Tables) > 0 {
		found := false
		for _, t := range c.Sync.Tables {
			if strings.EqualFold(t, name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, pattern := range c.Sync.ExcludeTables {
		if ok, _ := filepath.Match(strings.ToLower(pattern), strings.ToLower(name)); ok {
			return false
		}
	}
	return true
}
