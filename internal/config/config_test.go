package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Orchestrator.Interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s", cfg.Orchestrator.Interval)
	}
	if cfg.Orchestrator.VerificationDelay != 10*time.Second {
		t.Fatalf("verificationDelay = %v, want 10s", cfg.Orchestrator.VerificationDelay)
	}
	if cfg.Probes.Timeout != 5*time.Second {
		t.Fatalf("probe timeout = %v, want 5s", cfg.Probes.Timeout)
	}
	if len(cfg.Discovery.DemoServices) != 3 {
		t.Fatalf("demo services = %d, want 3", len(cfg.Discovery.DemoServices))
	}
	if cfg.Server.Address != ":8080" || cfg.Server.MetricsAddress != ":2112" {
		t.Fatalf("unexpected listen addresses: %+v", cfg.Server)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `orchestrator:
  interval: 5s
  verificationDelay: 2s
scorer:
  baseURL: http://scorer:9000
logging:
  level: debug
  json: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Orchestrator.Interval != 5*time.Second {
		t.Fatalf("interval = %v, want 5s", cfg.Orchestrator.Interval)
	}
	if cfg.Scorer.BaseURL != "http://scorer:9000" {
		t.Fatalf("scorer baseURL = %q", cfg.Scorer.BaseURL)
	}
	if !cfg.Logging.JSON || cfg.Logging.Level != "debug" {
		t.Fatalf("logging overrides lost: %+v", cfg.Logging)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Address != ":8080" {
		t.Fatalf("defaults lost for untouched sections: %q", cfg.Server.Address)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for explicitly named missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIRADOR_REMEDIATE_INTERVAL", "7s")
	t.Setenv("MIRADOR_REMEDIATE_SCORER_URL", "http://scorer:9100")
	t.Setenv("MIRADOR_REMEDIATE_DISCOVERY_DOCKER", "false")
	t.Setenv("MIRADOR_REMEDIATE_LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Orchestrator.Interval != 7*time.Second {
		t.Fatalf("interval = %v, want 7s", cfg.Orchestrator.Interval)
	}
	if cfg.Scorer.BaseURL != "http://scorer:9100" {
		t.Fatalf("scorer baseURL = %q", cfg.Scorer.BaseURL)
	}
	if cfg.Discovery.Docker {
		t.Fatal("docker discovery should be disabled by env override")
	}
	if !cfg.Logging.JSON {
		t.Fatal("log format env override lost")
	}
}
