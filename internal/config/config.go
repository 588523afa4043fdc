package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the remediation engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Probes        ProbesConfig        `yaml:"probes"`
	Scorer        ScorerConfig        `yaml:"scorer"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Patterns      PatternsConfig      `yaml:"patterns"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig controls the HTTP API and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// OrchestratorConfig controls the periodic control loop.
type OrchestratorConfig struct {
	Interval            time.Duration `yaml:"interval"`
	VerificationDelay   time.Duration `yaml:"verificationDelay"`
	MaxConcurrentProbes int64         `yaml:"maxConcurrentProbes"`
}

// ProbesConfig configures the health and metrics probe transports.
type ProbesConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MetricsPath string        `yaml:"metricsPath"`
}

// ScorerConfig configures access to the remote anomaly-scoring service.
type ScorerConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	ScorePath string        `yaml:"scorePath"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DiscoveryConfig controls how monitored services are found.
type DiscoveryConfig struct {
	Docker       bool          `yaml:"docker"`
	LabelPrefix  string        `yaml:"labelPrefix"`
	DemoServices []DemoService `yaml:"demoServices"`
}

// DemoService is a statically configured service used when Docker discovery
// is disabled or the daemon is unreachable.
type DemoService struct {
	ID             string  `yaml:"id"`
	Name           string  `yaml:"name"`
	Type           string  `yaml:"type"`
	Port           int     `yaml:"port"`
	HealthEndpoint string  `yaml:"healthEndpoint"`
	UptimeHours    float64 `yaml:"uptimeHours"`
}

// PatternsConfig controls pattern-pack loading for the decision engine.
type PatternsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// NotificationsConfig controls the event broker.
type NotificationsConfig struct {
	Buffer int `yaml:"buffer"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_REMEDIATE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			Interval:            30 * time.Second,
			VerificationDelay:   10 * time.Second,
			MaxConcurrentProbes: 8,
		},
		Probes: ProbesConfig{
			Timeout:     5 * time.Second,
			MetricsPath: "/metrics/summary",
		},
		Scorer: ScorerConfig{
			ScorePath: "/api/v1/score",
			Timeout:   3 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Docker:      true,
			LabelPrefix: "autosre",
			DemoServices: []DemoService{
				{ID: "user-svc", Name: "user-service", Type: "http", Port: 8081, HealthEndpoint: "/health", UptimeHours: 24},
				{ID: "payment-svc", Name: "payment-service", Type: "http", Port: 8082, HealthEndpoint: "/health", UptimeHours: 24},
				{ID: "inventory-svc", Name: "inventory-service", Type: "http", Port: 8083, HealthEndpoint: "/health", UptimeHours: 24},
			},
		},
		Patterns:      PatternsConfig{Path: "configs/patterns/default.yaml", Watch: true},
		Notifications: NotificationsConfig{Buffer: 64},
		Logging:       LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_REMEDIATE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.Interval = d
		}
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_VERIFICATION_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.VerificationDelay = d
		}
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_MAX_CONCURRENT_PROBES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Orchestrator.MaxConcurrentProbes = n
		}
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Probes.Timeout = d
		}
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_SCORER_URL"); v != "" {
		cfg.Scorer.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_SCORER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scorer.Timeout = d
		}
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_DISCOVERY_DOCKER"); v != "" {
		cfg.Discovery.Docker = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_LABEL_PREFIX"); v != "" {
		cfg.Discovery.LabelPrefix = v
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_PATTERNS_PATH"); v != "" {
		cfg.Patterns.Path = v
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_REMEDIATE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
