package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formengine.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "schemas:\n  dir: ./forms\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	want := Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Schemas: SchemasConfig{Dir: "./forms", Debounce: 250 * time.Millisecond},
		Lookup:  LookupConfig{Timeout: 10 * time.Second},
		Runtime: RuntimeConfig{ValidatorTimeout: 5 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:8080" {
		t.Fatalf("Addr = %s", got)
	}
}

func TestLoadExpandsAndOverridesEnv(t *testing.T) {
	t.Setenv("LOOKUP_HOST", "https://lookups.example.com")
	t.Setenv("FORMENGINE_SERVER_PORT", "9090")
	t.Setenv("FORMENGINE_LOOKUP_RATE_LIMIT", "2.5")
	t.Setenv("FORMENGINE_METRICS_ENABLED", "off")

	cfg, err := Load(writeConfig(t, strings.Join([]string{
		"server:",
		"  port: 7000",
		"lookup:",
		"  base_url: ${LOOKUP_HOST}",
		"  timeout: 3s",
		"logging:",
		"  level: debug",
		"  format: console",
	}, "\n")))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want env override", cfg.Server.Port)
	}
	want := LookupConfig{BaseURL: "https://lookups.example.com", Timeout: 3 * time.Second, RateLimit: 2.5, Burst: 1}
	if diff := cmp.Diff(want, cfg.Lookup); diff != "" {
		t.Fatalf("lookup mismatch (-want +got):\n%s", diff)
	}
	if cfg.Metrics.Enabled {
		t.Fatalf("metrics should be disabled by env")
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("format = %s", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "level", body: "logging:\n  level: loud\n", want: "logging.level"},
		{name: "format", body: "logging:\n  format: xml\n", want: "logging.format"},
		{name: "metrics path", body: "metrics:\n  path: metrics\n", want: "metrics.path"},
		{name: "yaml", body: "server: [", want: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv("FORMENGINE_SCHEMAS_DIR", "/srv/forms")

	cfg, err := LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Schemas.Dir != "/srv/forms" || !cfg.Metrics.Enabled {
		t.Fatalf("unexpected fallback config: %+v", cfg)
	}
}
