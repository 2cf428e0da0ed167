package config

import (
	"os"
	"strings"
	"testing"

	_ "github.com/johndauphine/colsync/internal/driver/mssql"
	_ "github.com/johndauphine/colsync/internal/driver/oracle"
	_ "github.com/johndauphine/colsync/internal/driver/postgres"
)

const minimalYAML = `
source:
  type: oracle
  host: db1.example.com
  database: ORCLPDB1
  user: app_ro
  password: secret
destination:
  path: ./analytics.duckdb
`

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Source.Port != 1521 {
		t.Errorf("port = %d, want oracle default 1521", cfg.Source.Port)
	}
	if cfg.Source.Schema != "APP_RO" {
		t.Errorf("schema = %q, want connecting user folded to upper case", cfg.Source.Schema)
	}
	if cfg.Source.ClientMode != "thin" {
		t.Errorf("client_mode = %s, want thin", cfg.Source.ClientMode)
	}
	if cfg.State.Backend != "sqlite" {
		t.Errorf("state backend = %s, want sqlite", cfg.State.Backend)
	}
	if cfg.Sync.Workers != 4 || cfg.Sync.BatchSize != 10000 {
		t.Errorf("sync defaults = %d/%d", cfg.Sync.Workers, cfg.Sync.BatchSize)
	}
	if cfg.Sync.Tolerance != 0 {
		t.Errorf("tolerance default = %g, want 0", cfg.Sync.Tolerance)
	}
}

func TestLoadBytesEnvExpansion(t *testing.T) {
	os.Setenv("COLSYNC_TEST_PW", "s3cret")
	defer os.Unsetenv("COLSYNC_TEST_PW")

	yaml := strings.Replace(minimalYAML, "password: secret", "password: ${COLSYNC_TEST_PW}", 1)
	cfg, err := LoadBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Source.Password != "s3cret" {
		t.Errorf("password = %q, want expanded env value", cfg.Source.Password)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  string
		to      string
		wantMsg string
	}{
		{"unknown driver", "type: oracle", "type: mongodb", "not a registered driver"},
		{"missing host", "host: db1.example.com", "host: ''", "source.host"},
		{"missing database", "database: ORCLPDB1", "database: ''", "source.database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := strings.Replace(minimalYAML, tt.mutate, tt.to, 1)
			_, err := LoadBytes([]byte(yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidateClientMode(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "user: app_ro", "user: app_ro\n  client_mode: chunky", 1)
	if _, err := LoadBytes([]byte(yaml)); err == nil || !strings.Contains(err.Error(), "client_mode") {
		t.Errorf("expected client_mode rejection, got %v", err)
	}
}

func TestValidateTolerance(t *testing.T) {
	yaml := minimalYAML + "sync:\n  tolerance: 1.5\n"
	if _, err := LoadBytes([]byte(yaml)); err == nil || !strings.Contains(err.Error(), "tolerance") {
		t.Errorf("expected tolerance rejection, got %v", err)
	}
}

func TestSourceDSN(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimalYAML))
	if err != nil {
		t.Fatal(err)
	}
	dsn, err := cfg.SourceDSN()
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range []string{"app_ro", "db1.example.com", "1521", "ORCLPDB1"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("dsn %q missing %q", dsn, part)
		}
	}
}

func TestSanitized(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimalYAML + "slack:\n  webhook_url: https://hooks.slack.com/services/x\n"))
	if err != nil {
		t.Fatal(err)
	}
	clean := cfg.Sanitized()
	if clean.Source.Password != "[REDACTED]" {
		t.Errorf("password = %q", clean.Source.Password)
	}
	if clean.Slack.WebhookURL != "[REDACTED]" {
		t.Errorf("webhook = %q", clean.Slack.WebhookURL)
	}
	if cfg.Source.Password == "[REDACTED]" {
		t.Error("Sanitized mutated the original")
	}
}

func TestIncludeTable(t *testing.T) {
	cfg := &Config{}
	cfg.Sync.Tables = []string{"ORDERS", "EVENTS"}
	cfg.Sync.ExcludeTables = []string{"*_tmp"}

	tests := []struct {
		table string
		want  bool
	}{
		{"orders", true}, // include list is case-insensitive
		{"EVENTS", true},
		{"invoices", false},
	}
	for _, tt := range tests {
		if got := cfg.IncludeTable(tt.table); got != tt.want {
			t.Errorf("IncludeTable(%s) = %v, want %v", tt.table, got, tt.want)
		}
	}

	cfg.Sync.Tables = nil
	if !cfg.IncludeTable("anything") {
		t.Error("empty include list must admit all tables")
	}
	if cfg.IncludeTable("scratch_tmp") {
		t.Error("exclusion glob not applied")
	}
}
