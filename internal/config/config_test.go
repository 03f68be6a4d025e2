package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/legalquote/internal/classify"
)

func missingPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing-config.yaml")
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr default: %q", cfg.ListenAddr)
	}
	if cfg.CatalogPath != "configs/catalog.yaml" || cfg.RatesPath != "configs/rates.yaml" {
		t.Fatalf("path defaults: %q %q", cfg.CatalogPath, cfg.RatesPath)
	}
	if cfg.ClassifierTimeout() != 20*time.Second {
		t.Fatalf("timeout default: %s", cfg.ClassifierTimeout())
	}
	if cfg.ClassifierMaxAttempts != 1 {
		t.Fatalf("max attempts default: %d", cfg.ClassifierMaxAttempts)
	}
	if cfg.LLMModel != classify.DefaultModel {
		t.Fatalf("model default: %q", cfg.LLMModel)
	}
	if cfg.FallbackEffort().String() != "10" {
		t.Fatalf("fallback default: %s", cfg.FallbackEffort())
	}
	if cfg.UsesDatabase() {
		t.Fatal("database must be opt-in")
	}
	if cfg.Source != "" {
		t.Fatalf("source should be empty for a missing file, got %q", cfg.Source)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9090"
llm_model: yaml-model
classifier_timeout_seconds: 5
fallback_effort_hours: 7.5
default_domain: Droit civil
db_driver: SQLite
db_dsn: /tmp/rates.db
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("CLASSIFIER_MAX_ATTEMPTS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("listen addr: %q", cfg.ListenAddr)
	}
	if cfg.LLMModel != "env-model" {
		t.Fatalf("env override not applied: %q", cfg.LLMModel)
	}
	if cfg.ClassifierMaxAttempts != 3 || cfg.ClassifierTimeoutSeconds != 5 {
		t.Fatalf("classifier settings: %+v", cfg)
	}
	if cfg.FallbackEffort().String() != "7.5" {
		t.Fatalf("fallback: %s", cfg.FallbackEffort())
	}
	if cfg.DBDriver != "sqlite" || !cfg.UsesDatabase() {
		t.Fatalf("db driver: %q", cfg.DBDriver)
	}
	if cfg.Source != path {
		t.Fatalf("source: %q", cfg.Source)
	}

	cc, err := cfg.ClassifierConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cc.DefaultDomain != "Droit civil" || cc.Timeout != 5*time.Second || cc.MaxAttempts != 3 {
		t.Fatalf("classifier config: %+v", cc)
	}
}

func TestLoadUsesConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alt.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":7070\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("listen addr: %q", cfg.ListenAddr)
	}
}

func TestLoadReadsInstructionsFile(t *testing.T) {
	dir := t.TempDir()
	instr := filepath.Join(dir, "instructions.txt")
	if err := os.WriteFile(instr, []byte("  Custom instructions.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INSTRUCTIONS_PATH", instr)
	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatal(err)
	}
	cc, err := cfg.ClassifierConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cc.Instructions != "Custom instructions." {
		t.Fatalf("instructions: %q", cc.Instructions)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"bad int":           {"CLASSIFIER_TIMEOUT_SECONDS": "soon"},
		"timeout too large": {"CLASSIFIER_TIMEOUT_SECONDS": "600"},
		"too many attempts": {"CLASSIFIER_MAX_ATTEMPTS": "9"},
		"bad fallback":      {"FALLBACK_EFFORT_HOURS": "-2"},
		"unknown driver":    {"DB_DRIVER": "mysql", "DB_DSN": "x"},
		"driver no dsn":     {"DB_DRIVER": "postgres"},
		"bad log level":     {"LOG_LEVEL": "loud"},
		"missing prompt":    {"INSTRUCTIONS_PATH": "/nonexistent/instructions.txt"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(missingPath(t)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [unclosed\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("expected parse error naming the file, got %v", err)
	}
}
