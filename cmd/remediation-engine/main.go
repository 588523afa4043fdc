package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-remediate/internal/api"
	"github.com/miradorstack/mirador-remediate/internal/config"
	"github.com/miradorstack/mirador-remediate/internal/discovery"
	"github.com/miradorstack/mirador-remediate/internal/engine"
	"github.com/miradorstack/mirador-remediate/internal/incidents"
	"github.com/miradorstack/mirador-remediate/internal/metrics"
	"github.com/miradorstack/mirador-remediate/internal/models"
	"github.com/miradorstack/mirador-remediate/internal/notify"
	"github.com/miradorstack/mirador-remediate/internal/orchestrator"
	"github.com/miradorstack/mirador-remediate/internal/probes"
	"github.com/miradorstack/mirador-remediate/internal/registry"
	"github.com/miradorstack/mirador-remediate/internal/remediation"
	"github.com/miradorstack/mirador-remediate/internal/scorer"
	"github.com/miradorstack/mirador-remediate/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("remediation engine exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	broker := notify.NewBroker(cfg.Notifications.Buffer, utils.ComponentLogger(logger, "notify"))
	defer broker.Close()
	broker.AddSink(notify.NewLogSink(utils.ComponentLogger(logger, "events")))

	hub := notify.NewHub(utils.ComponentLogger(logger, "websocket"))
	broker.AddSink(hub)

	reg := registry.New()
	executor := seedServices(ctx, cfg, reg, broker, logger)

	store := incidents.NewStore()

	table, err := engine.LoadTable(cfg.Patterns.Path, utils.ComponentLogger(logger, "patterns"))
	if err != nil {
		return fmt.Errorf("load pattern pack: %w", err)
	}
	if cfg.Patterns.Watch && cfg.Patterns.Path != "" {
		go func() {
			if err := table.Watch(ctx, cfg.Patterns.Path); err != nil {
				logger.Warn("pattern pack watcher stopped", slog.Any("error", err))
			}
		}()
	}
	decisionEngine := engine.New(table, utils.ComponentLogger(logger, "engine"))

	healthProbe := probes.NewHTTPHealthProbe(cfg.Probes.Timeout)
	metricsSource := probes.NewHTTPMetricsSource(cfg.Probes.MetricsPath, cfg.Probes.Timeout)

	var anomalyScorer scorer.Scorer
	if cfg.Scorer.BaseURL != "" {
		anomalyScorer = scorer.NewHTTPScorer(cfg.Scorer.BaseURL, cfg.Scorer.ScorePath, cfg.Scorer.Timeout)
	} else {
		logger.Info("no scorer configured, anomaly detection disabled")
	}

	coordinator := remediation.New(store, reg, executor, healthProbe, broker,
		cfg.Orchestrator.VerificationDelay, cfg.Probes.Timeout,
		utils.ComponentLogger(logger, "remediation"))

	orch := orchestrator.New(orchestrator.Options{
		Registry:      reg,
		Store:         store,
		Engine:        decisionEngine,
		Coordinator:   coordinator,
		Health:        healthProbe,
		Metrics:       metricsSource,
		Scorer:        anomalyScorer,
		Broker:        broker,
		Interval:      cfg.Orchestrator.Interval,
		ProbeTimeout:  cfg.Probes.Timeout,
		MaxConcurrent: cfg.Orchestrator.MaxConcurrentProbes,
		Logger:        utils.ComponentLogger(logger, "orchestrator"),
	})

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		orch.Run(ctx)
	}()

	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddress,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listener started", slog.String("address", cfg.Server.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener failed", slog.Any("error", err))
		}
	}()

	apiServer := api.New(api.Options{
		Registry:     reg,
		Store:        store,
		Coordinator:  coordinator,
		Orchestrator: orch,
		Engine:       decisionEngine,
		Hub:          hub,
		Logger:       utils.ComponentLogger(logger, "api"),
	})
	apiErr := make(chan error, 1)
	go func() {
		apiErr <- apiServer.Start(cfg.Server.Address)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown incomplete", slog.Any("error", err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown incomplete", slog.Any("error", err))
	}

	<-orchDone
	logger.Info("remediation engine stopped")
	return nil
}

// seedServices discovers monitored services and registers them, returning the
// executor matched to the discovery mode. Docker discovery falls back to the
// configured demo services when the daemon is unreachable or finds nothing.
func seedServices(ctx context.Context, cfg *config.Config, reg *registry.Registry, broker *notify.Broker, logger *slog.Logger) remediation.Executor {
	var services []models.Service
	executor := discovery.NewDockerExecutor(nil, utils.ComponentLogger(logger, "executor"))

	if cfg.Discovery.Docker {
		discoverer, err := discovery.NewDockerDiscoverer(cfg.Discovery.LabelPrefix, utils.ComponentLogger(logger, "discovery"))
		if err != nil {
			logger.Warn("docker unavailable, falling back to configured services", slog.Any("error", err))
		} else if found, err := discoverer.Discover(ctx); err != nil {
			logger.Warn("docker discovery failed, falling back to configured services", slog.Any("error", err))
		} else if len(found) > 0 {
			services = found
			executor = discovery.NewDockerExecutor(discoverer.Client(), utils.ComponentLogger(logger, "executor"))
		} else {
			logger.Info("no labeled containers found, falling back to configured services")
		}
	}

	if len(services) == 0 {
		services = discovery.StaticServices(cfg.Discovery.DemoServices)
	}

	for _, svc := range services {
		reg.Register(svc)
		broker.Publish(models.Event{Type: models.EventServiceDiscovered, ServiceID: svc.ID, Payload: svc})
		logger.Info("service registered",
			slog.String("service_id", svc.ID),
			slog.String("name", svc.Name),
			slog.Int("port", svc.Port))
	}
	return executor
}
