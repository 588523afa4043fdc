// Package remediation executes decided actions under a per-service lock and
// verifies their outcome with a delayed re-probe.
package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-remediate/internal/incidents"
	"github.com/miradorstack/mirador-remediate/internal/metrics"
	"github.com/miradorstack/mirador-remediate/internal/models"
	"github.com/miradorstack/mirador-remediate/internal/notify"
	"github.com/miradorstack/mirador-remediate/internal/probes"
	"github.com/miradorstack/mirador-remediate/internal/registry"
	"github.com/miradorstack/mirador-remediate/internal/utils"
)

// Executor performs a single remediation action against the backing runtime.
type Executor interface {
	Execute(ctx context.Context, action models.ActionType, svc models.Service) (models.ActionResult, error)
}

// State tracks where an in-flight remediation is in its lifecycle. The
// per-service lock is held through both states.
type State string

const (
	StateExecuting State = "executing"
	StateVerifying State = "verifying"
)

// Coordinator serializes remediations per service: at most one action may be
// executing or verifying for a given service at any time. Concurrent triggers
// for the same service fail fast with ErrBusy instead of queueing.
type Coordinator struct {
	store    *incidents.Store
	registry *registry.Registry
	executor Executor
	health   probes.HealthProbe
	broker   *notify.Broker

	verifyDelay  time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	inflight map[string]State
	records  map[string]*models.ActionRecord
	order    []string

	wg sync.WaitGroup
}

// New constructs a Coordinator.
func New(store *incidents.Store, reg *registry.Registry, executor Executor, health probes.HealthProbe, broker *notify.Broker, verifyDelay, probeTimeout time.Duration, logger *slog.Logger) *Coordinator {
	if verifyDelay <= 0 {
		verifyDelay = 10 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:        store,
		registry:     reg,
		executor:     executor,
		health:       health,
		broker:       broker,
		verifyDelay:  verifyDelay,
		probeTimeout: probeTimeout,
		logger:       logger,
		inflight:     make(map[string]State),
		records:      make(map[string]*models.ActionRecord),
	}
}

// Trigger executes the decided action for svc and schedules outcome
// verification. incidentIDs are the detected incidents this action addresses;
// once the per-service lock is held they advance through analyzed to
// action_taken before the executor result is known, so a failed execution
// leaves them at action_taken for operator follow-up while a Busy refusal
// leaves them detected for the next cycle. Monitor decisions are not
// executable and are rejected.
func (c *Coordinator) Trigger(ctx context.Context, svc models.Service, decision models.Decision, analysis *models.Analysis, incidentIDs []string) (models.ActionRecord, error) {
	if decision.Action == "" || decision.Action == models.ActionMonitor {
		return models.ActionRecord{}, utils.NewAppError("remediation.Trigger",
			fmt.Sprintf("action %q is not executable", decision.Action), nil)
	}

	c.mu.Lock()
	if state, busy := c.inflight[svc.ID]; busy {
		c.mu.Unlock()
		metrics.ObserveAction(string(decision.Action), metrics.OutcomeBusy)
		return models.ActionRecord{}, fmt.Errorf("service %s is %s: %w", svc.ID, state, utils.ErrBusy)
	}
	c.inflight[svc.ID] = StateExecuting
	c.mu.Unlock()
	metrics.IncInflight()

	for _, id := range incidentIDs {
		if _, terr := c.store.Transition(id, models.IncidentAnalyzed, incidents.TransitionFields{Analysis: analysis}); terr != nil {
			c.logger.Warn("incident transition failed",
				slog.String("incident_id", id), slog.Any("error", terr))
			continue
		}
		if _, terr := c.store.Transition(id, models.IncidentActionTaken, incidents.TransitionFields{ActionTaken: decision.Action}); terr != nil {
			c.logger.Warn("incident transition failed",
				slog.String("incident_id", id), slog.Any("error", terr))
		}
	}

	result, err := c.executor.Execute(ctx, decision.Action, svc)
	if err != nil || !result.Success {
		record := c.appendRecord(svc, decision, result)
		c.release(svc.ID)
		metrics.DecInflight()
		metrics.ObserveAction(string(decision.Action), metrics.OutcomeFailed)
		c.publish(models.EventActionFailed, svc.ID, record)
		if err == nil {
			err = utils.NewAppError("remediation.Trigger", "action reported failure: "+result.Detail, nil)
		}
		return record, err
	}

	record := c.appendRecord(svc, decision, result)
	c.publish(models.EventActionTaken, svc.ID, record)
	c.logger.Info("action executed, verification scheduled",
		slog.String("service", svc.Name),
		slog.String("action", string(decision.Action)),
		slog.Duration("delay", c.verifyDelay))

	c.mu.Lock()
	c.inflight[svc.ID] = StateVerifying
	c.mu.Unlock()

	c.wg.Add(1)
	go c.verify(ctx, svc, decision, record.ID, incidentIDs)

	return record, nil
}

// verify waits out the settle delay, re-probes the service and settles the
// action outcome. A shutdown that lands mid-wait shortens the delay but never
// skips the re-probe: the in-flight step always completes.
func (c *Coordinator) verify(ctx context.Context, svc models.Service, decision models.Decision, recordID string, incidentIDs []string) {
	defer c.wg.Done()
	defer metrics.DecInflight()
	defer c.release(svc.ID)

	timer := time.NewTimer(c.verifyDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}

	// Detached from the caller's context so shutdown cannot abort the probe.
	probeCtx, cancel := context.WithTimeout(context.Background(), c.probeTimeout)
	healthy := c.health.Check(probeCtx, svc)
	cancel()

	now := time.Now().UTC()
	status := models.StatusUnhealthy
	if healthy {
		status = models.StatusHealthy
	}
	if err := c.registry.UpdateStatus(svc.ID, status, now); err != nil {
		c.logger.Warn("status update failed", slog.String("service_id", svc.ID), slog.Any("error", err))
	}

	detail := "verification failed, service still unhealthy"
	if healthy {
		detail = "verified healthy"
	}
	record := c.settleRecord(recordID, models.ActionResult{Success: healthy, Detail: detail})

	if !healthy {
		metrics.ObserveAction(string(decision.Action), metrics.OutcomeFailed)
		c.publish(models.EventActionFailed, svc.ID, record)
		c.logger.Warn("remediation did not recover service",
			slog.String("service", svc.Name),
			slog.String("action", string(decision.Action)))
		return
	}

	for _, id := range incidentIDs {
		if _, err := c.store.Transition(id, models.IncidentResolved, incidents.TransitionFields{}); err != nil {
			c.logger.Warn("incident resolve failed",
				slog.String("incident_id", id), slog.Any("error", err))
		}
	}
	if decision.Action == models.ActionRestartService {
		if err := c.registry.IncrementRestartCount(svc.ID); err != nil {
			c.logger.Warn("restart count update failed",
				slog.String("service_id", svc.ID), slog.Any("error", err))
		}
	}

	metrics.ObserveAction(string(decision.Action), metrics.OutcomeSuccess)
	c.publish(models.EventActionSuccess, svc.ID, record)
	c.logger.Info("remediation verified",
		slog.String("service", svc.Name),
		slog.String("action", string(decision.Action)))
}

// InFlight reports whether a remediation currently holds the service lock.
func (c *Coordinator) InFlight(serviceID string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.inflight[serviceID]
	return state, ok
}

// Records returns the audit trail in execution order.
func (c *Coordinator) Records() []models.ActionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.ActionRecord, 0, len(c.order))
	for _, id := range c.order {
		if rec, ok := c.records[id]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Wait blocks until every scheduled verification has settled. Used during
// shutdown so no action is left with an unverified outcome.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) appendRecord(svc models.Service, decision models.Decision, result models.ActionResult) models.ActionRecord {
	record := models.ActionRecord{
		ID:          uuid.NewString(),
		Type:        decision.Action,
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Reason:      decision.Reason,
		Confidence:  decision.Confidence,
		Result:      result,
		Timestamp:   time.Now().UTC(),
	}

	c.mu.Lock()
	copied := record
	c.records[record.ID] = &copied
	c.order = append(c.order, record.ID)
	c.mu.Unlock()
	return record
}

func (c *Coordinator) settleRecord(id string, result models.ActionResult) models.ActionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return models.ActionRecord{ID: id, Result: result}
	}
	rec.Result = result
	return *rec
}

func (c *Coordinator) release(serviceID string) {
	c.mu.Lock()
	delete(c.inflight, serviceID)
	c.mu.Unlock()
}

func (c *Coordinator) publish(eventType models.EventType, serviceID string, record models.ActionRecord) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(models.Event{Type: eventType, ServiceID: serviceID, Payload: record})
}
