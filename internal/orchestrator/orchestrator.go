// Package orchestrator drives the periodic control loop: probe health and
// metrics, detect anomalies, create incidents, decide remediation and hand
// approved actions to the coordinator. A failure for one service never aborts
// the cycle for the others.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/miradorstack/mirador-remediate/internal/engine"
	"github.com/miradorstack/mirador-remediate/internal/incidents"
	"github.com/miradorstack/mirador-remediate/internal/metrics"
	"github.com/miradorstack/mirador-remediate/internal/models"
	"github.com/miradorstack/mirador-remediate/internal/notify"
	"github.com/miradorstack/mirador-remediate/internal/probes"
	"github.com/miradorstack/mirador-remediate/internal/registry"
	"github.com/miradorstack/mirador-remediate/internal/remediation"
	"github.com/miradorstack/mirador-remediate/internal/scorer"
	"github.com/miradorstack/mirador-remediate/internal/utils"
)

// healthIncidentSeverity is the fixed severity for failed health probes;
// anomaly incidents carry the scorer probability instead.
const healthIncidentSeverity = 0.9

// latencyReportEvery controls how often the cycle p95 is logged.
const latencyReportEvery = 20

// Options bundles the collaborators and tuning for the control loop.
type Options struct {
	Registry      *registry.Registry
	Store         *incidents.Store
	Engine        *engine.Engine
	Coordinator   *remediation.Coordinator
	Health        probes.HealthProbe
	Metrics       probes.MetricsSource
	Scorer        scorer.Scorer
	Broker        *notify.Broker
	Interval      time.Duration
	ProbeTimeout  time.Duration
	MaxConcurrent int64
	Logger        *slog.Logger
}

// Orchestrator runs the repeating probe/detect/decide/remediate cycle.
type Orchestrator struct {
	registry    *registry.Registry
	store       *incidents.Store
	engine      *engine.Engine
	coordinator *remediation.Coordinator
	health      probes.HealthProbe
	metricsSrc  probes.MetricsSource
	scorer      scorer.Scorer
	broker      *notify.Broker

	interval     time.Duration
	probeTimeout time.Duration
	sem          *semaphore.Weighted
	logger       *slog.Logger

	latency *utils.LatencyTracker
	cycles  uint64
}

// New constructs an Orchestrator from its options.
func New(opts Options) *Orchestrator {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		registry:     opts.Registry,
		store:        opts.Store,
		engine:       opts.Engine,
		coordinator:  opts.Coordinator,
		health:       opts.Health,
		metricsSrc:   opts.Metrics,
		scorer:       opts.Scorer,
		broker:       opts.Broker,
		interval:     opts.Interval,
		probeTimeout: opts.ProbeTimeout,
		sem:          semaphore.NewWeighted(opts.MaxConcurrent),
		logger:       opts.Logger,
		latency:      utils.NewLatencyTracker(256),
	}
}

// Run executes cycles until ctx is cancelled, then waits for in-flight
// remediation work to settle before returning.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("control loop started", slog.Duration("interval", o.interval))

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		o.RunCycle(ctx)

		select {
		case <-ctx.Done():
			o.logger.Info("shutdown requested, waiting for in-flight remediations")
			o.coordinator.Wait()
			o.logger.Info("control loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle executes one full cycle: health probes, anomaly detection, then
// decision and remediation hand-off. Exported so the API layer can trigger an
// immediate pass after a simulated incident.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	start := time.Now()

	services := o.registry.List()
	healthy, probed := o.probeHealth(ctx, services)
	o.settleHealthIncidents(services, healthy, probed)
	o.detectAnomalies(ctx, services, healthy)
	o.decideAndRemediate(ctx)

	elapsed := time.Since(start)
	metrics.ObserveCycle(elapsed)
	o.latency.Observe(elapsed)

	o.cycles++
	if o.cycles%latencyReportEvery == 0 {
		o.logger.Info("cycle latency",
			slog.Uint64("cycles", o.cycles),
			slog.Duration("p95", o.latency.Percentile(95)))
	}
}

// probeHealth runs health checks with bounded concurrency and records the
// outcome per service index. Services left unprobed by a mid-cycle shutdown
// keep their previous status; the probed mask tells later phases to skip them.
func (o *Orchestrator) probeHealth(ctx context.Context, services []models.Service) (results, probed []bool) {
	results = make([]bool, len(services))
	probed = make([]bool, len(services))

	var wg sync.WaitGroup
	for i, svc := range services {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			// Shutdown mid-cycle: leave the rest unprobed.
			break
		}
		probed[i] = true
		wg.Add(1)
		go func(i int, svc models.Service) {
			defer wg.Done()
			defer o.sem.Release(1)

			probeCtx, cancel := context.WithTimeout(ctx, o.probeTimeout)
			results[i] = o.health.Check(probeCtx, svc)
			cancel()
		}(i, svc)
	}
	wg.Wait()

	now := time.Now().UTC()
	for i, svc := range services {
		if !probed[i] {
			continue
		}
		status := models.StatusUnhealthy
		if results[i] {
			status = models.StatusHealthy
		}
		if err := o.registry.UpdateStatus(svc.ID, status, now); err != nil {
			o.logger.Warn("status update failed", slog.String("service_id", svc.ID), slog.Any("error", err))
		}
	}
	return results, probed
}

// settleHealthIncidents resolves detected health incidents for recovered
// services and opens health incidents for failed ones, deduplicating on
// service+type. Only health-type incidents resolve here: a passing health
// probe says nothing about anomaly or simulated conditions.
func (o *Orchestrator) settleHealthIncidents(services []models.Service, healthy, probed []bool) {
	for i, svc := range services {
		if !probed[i] {
			continue
		}
		if healthy[i] {
			for _, inc := range o.store.ListByService(svc.ID) {
				if inc.Status != models.IncidentDetected || inc.Type != models.IncidentHealth {
					continue
				}
				if _, err := o.store.Transition(inc.ID, models.IncidentResolved, incidents.TransitionFields{}); err != nil {
					o.logger.Warn("incident resolve failed", slog.String("incident_id", inc.ID), slog.Any("error", err))
				}
			}
			continue
		}

		if _, open := o.store.FindOpen(svc.ID, models.IncidentHealth); open {
			continue
		}
		o.createIncident(models.Incident{
			ID:          uuid.NewString(),
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			Type:        models.IncidentHealth,
			Severity:    healthIncidentSeverity,
			Description: fmt.Sprintf("Health check failed for %s", svc.Name),
		})
	}
}

// detectAnomalies collects metrics and consults the scorer. A degraded scorer
// or metrics source counts as a non-anomalous cycle for that service.
func (o *Orchestrator) detectAnomalies(ctx context.Context, services []models.Service, healthy []bool) {
	if o.metricsSrc == nil || o.scorer == nil {
		return
	}

	for i, svc := range services {
		if !healthy[i] {
			// An open health incident already covers the service.
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, o.probeTimeout)
		snapshot, err := o.metricsSrc.Collect(probeCtx, svc)
		cancel()
		if err != nil {
			metrics.IncProbeFailure("metrics")
			o.logger.Debug("metrics collection failed", slog.String("service", svc.Name), slog.Any("error", err))
			o.resolveDetectedAnomaly(svc.ID)
			continue
		}

		verdict, err := o.scorer.Score(ctx, snapshot)
		if err != nil {
			metrics.IncProbeFailure("scorer")
			o.logger.Warn("scorer degraded, treating cycle as non-anomalous",
				slog.String("service", svc.Name), slog.Any("error", err))
			o.resolveDetectedAnomaly(svc.ID)
			continue
		}
		if !verdict.IsAnomaly {
			o.resolveDetectedAnomaly(svc.ID)
			continue
		}

		if _, open := o.store.FindOpen(svc.ID, models.IncidentAnomaly); open {
			continue
		}
		o.createIncident(models.Incident{
			ID:          uuid.NewString(),
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			Type:        models.IncidentAnomaly,
			Severity:    verdict.Probability,
			Description: fmt.Sprintf("Anomalous metrics for %s (probability %.2f)", svc.Name, verdict.Probability),
			Metrics:     snapshot,
		})
	}
}

// decideAndRemediate groups detected incidents per service, analyzes each
// group and hands non-monitor decisions to the coordinator.
func (o *Orchestrator) decideAndRemediate(ctx context.Context) {
	groups := make(map[string][]models.Incident)
	order := make([]string, 0)
	for _, inc := range o.store.ListActive() {
		if inc.Status != models.IncidentDetected {
			continue
		}
		if _, ok := groups[inc.ServiceID]; !ok {
			order = append(order, inc.ServiceID)
		}
		groups[inc.ServiceID] = append(groups[inc.ServiceID], inc)
	}

	for _, serviceID := range order {
		group := groups[serviceID]
		analysis := o.engine.Analyze(group)

		svcCtx, err := o.registry.Context(serviceID)
		if err != nil {
			o.logger.Warn("service context unavailable", slog.String("service_id", serviceID), slog.Any("error", err))
			continue
		}

		decision := o.engine.Decide(analysis, svcCtx)
		if decision.Action == models.ActionMonitor || decision.Action == "" {
			// Incidents stay detected: they are re-evaluated next cycle and
			// still resolve directly if the service recovers.
			o.logger.Info("monitoring only",
				slog.String("service_id", serviceID),
				slog.String("reason", decision.Reason),
				slog.Float64("confidence", decision.Confidence))
			continue
		}

		svc, err := o.registry.Get(serviceID)
		if err != nil {
			o.logger.Warn("service missing at remediation time", slog.String("service_id", serviceID))
			continue
		}

		// The coordinator advances the group's lifecycle once it holds the
		// service lock; a Busy refusal leaves the incidents detected for the
		// next cycle.
		ids := make([]string, 0, len(group))
		for _, inc := range group {
			ids = append(ids, inc.ID)
		}

		if _, err := o.coordinator.Trigger(ctx, svc, decision, &analysis, ids); err != nil {
			if errors.Is(err, utils.ErrBusy) {
				o.logger.Info("remediation already in flight, skipping this cycle",
					slog.String("service_id", serviceID))
				continue
			}
			o.logger.Warn("remediation trigger failed",
				slog.String("service_id", serviceID), slog.Any("error", err))
		}
	}
}

// resolveDetectedAnomaly closes a still-detected anomaly incident for the
// service. Called when the verdict is non-anomalous and when the metrics or
// scorer pipeline is degraded, which this cycle treats the same way, so a
// scorer outage cannot leave an anomaly incident open indefinitely.
func (o *Orchestrator) resolveDetectedAnomaly(serviceID string) {
	open, ok := o.store.FindOpen(serviceID, models.IncidentAnomaly)
	if !ok || open.Status != models.IncidentDetected {
		return
	}
	if _, err := o.store.Transition(open.ID, models.IncidentResolved, incidents.TransitionFields{}); err != nil {
		o.logger.Warn("incident resolve failed", slog.String("incident_id", open.ID), slog.Any("error", err))
	}
}

// Simulate injects a synthetic incident for the service, bypassing probes.
// The next cycle picks it up like any detected incident.
func (o *Orchestrator) Simulate(serviceID string) (models.Incident, error) {
	svc, err := o.registry.Get(serviceID)
	if err != nil {
		return models.Incident{}, err
	}

	inc := models.Incident{
		ID:          uuid.NewString(),
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Type:        models.IncidentSimulated,
		Severity:    0.85,
		Description: fmt.Sprintf("Simulated incident for %s", svc.Name),
		Metrics: map[string]float64{
			"cpu_usage":    95,
			"memory_usage": 85,
			"latency_p95":  2000,
		},
	}
	o.createIncident(inc)
	return o.store.Get(inc.ID)
}

// createIncident persists the incident and announces it.
func (o *Orchestrator) createIncident(inc models.Incident) {
	inc.Status = models.IncidentDetected
	inc.DetectedAt = time.Now().UTC()

	if err := o.store.Create(inc); err != nil {
		o.logger.Warn("incident create failed", slog.String("service_id", inc.ServiceID), slog.Any("error", err))
		return
	}

	metrics.IncIncident(string(inc.Type))
	o.logger.Info("incident detected",
		slog.String("incident_id", inc.ID),
		slog.String("service", inc.ServiceName),
		slog.String("type", string(inc.Type)),
		slog.Float64("severity", inc.Severity))

	if o.broker != nil {
		o.broker.Publish(models.Event{Type: models.EventIncidentDetected, ServiceID: inc.ServiceID, Payload: inc})
	}
}
