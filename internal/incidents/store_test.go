package incidents

import (
	"errors"
	"testing"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
	"github.com/miradorstack/mirador-remediate/internal/utils"
)

func newIncident(id, serviceID string, incidentType models.IncidentType) models.Incident {
	return models.Incident{
		ID:         id,
		ServiceID:  serviceID,
		Type:       incidentType,
		Severity:   0.8,
		Status:     models.IncidentDetected,
		DetectedAt: time.Now().UTC(),
	}
}

func TestCreateRejectsInvalidIncidents(t *testing.T) {
	store := NewStore()

	if err := store.Create(models.Incident{Severity: 0.5}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if err := store.Create(models.Incident{ID: "inc-1", Severity: 1.5}); err == nil {
		t.Fatal("expected error for severity above 1")
	}
	if err := store.Create(models.Incident{ID: "inc-1", Severity: -0.1}); err == nil {
		t.Fatal("expected error for negative severity")
	}

	if err := store.Create(newIncident("inc-1", "svc-1", models.IncidentHealth)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Create(newIncident("inc-1", "svc-1", models.IncidentHealth)); !errors.Is(err, utils.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestMetricsSnapshotIsCopied(t *testing.T) {
	store := NewStore()

	snapshot := map[string]float64{"cpu_usage": 95}
	inc := newIncident("inc-1", "svc-1", models.IncidentAnomaly)
	inc.Metrics = snapshot
	if err := store.Create(inc); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	snapshot["cpu_usage"] = 10

	stored, err := store.Get("inc-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Metrics["cpu_usage"] != 95 {
		t.Fatalf("snapshot mutated after creation: %v", stored.Metrics)
	}
}

func TestTransitionFollowsForwardOnlyLifecycle(t *testing.T) {
	store := NewStore()
	if err := store.Create(newIncident("inc-1", "svc-1", models.IncidentAnomaly)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	analysis := &models.Analysis{RootCause: "cpu", Confidence: 0.8}
	inc, err := store.Transition("inc-1", models.IncidentAnalyzed, TransitionFields{Analysis: analysis})
	if err != nil {
		t.Fatalf("detected -> analyzed failed: %v", err)
	}
	if inc.Analysis == nil || inc.Analysis.RootCause != "cpu" {
		t.Fatalf("analysis not applied: %+v", inc.Analysis)
	}

	if _, err := store.Transition("inc-1", models.IncidentDetected, TransitionFields{}); !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition going backward, got %v", err)
	}
	if _, err := store.Transition("inc-1", models.IncidentResolved, TransitionFields{}); !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition skipping action_taken, got %v", err)
	}

	inc, err = store.Transition("inc-1", models.IncidentActionTaken, TransitionFields{ActionTaken: models.ActionRestartService})
	if err != nil {
		t.Fatalf("analyzed -> action_taken failed: %v", err)
	}
	if inc.ActionTaken != models.ActionRestartService {
		t.Fatalf("actionTaken not applied: %q", inc.ActionTaken)
	}

	inc, err = store.Transition("inc-1", models.IncidentResolved, TransitionFields{})
	if err != nil {
		t.Fatalf("action_taken -> resolved failed: %v", err)
	}
	if inc.ResolvedAt == nil {
		t.Fatal("resolvedAt not set on resolve")
	}
}

func TestDetectedResolvesDirectly(t *testing.T) {
	store := NewStore()
	if err := store.Create(newIncident("inc-1", "svc-1", models.IncidentHealth)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	inc, err := store.Transition("inc-1", models.IncidentResolved, TransitionFields{})
	if err != nil {
		t.Fatalf("detected -> resolved shortcut failed: %v", err)
	}
	if inc.Status != models.IncidentResolved || inc.ResolvedAt == nil {
		t.Fatalf("unexpected state after shortcut: %+v", inc)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	store := NewStore()
	if err := store.Create(newIncident("inc-1", "svc-1", models.IncidentHealth)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := store.Transition("inc-1", models.IncidentResolved, TransitionFields{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	second, err := store.Transition("inc-1", models.IncidentResolved, TransitionFields{})
	if err != nil {
		t.Fatalf("second resolve should be a no-op, got %v", err)
	}
	if !first.ResolvedAt.Equal(*second.ResolvedAt) {
		t.Fatalf("resolvedAt changed on repeated resolve: %v vs %v", first.ResolvedAt, second.ResolvedAt)
	}
}

func TestAnalysisIsSetOnce(t *testing.T) {
	store := NewStore()
	if err := store.Create(newIncident("inc-1", "svc-1", models.IncidentAnomaly)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first := &models.Analysis{RootCause: "cpu", Confidence: 0.8}
	if _, err := store.Transition("inc-1", models.IncidentAnalyzed, TransitionFields{Analysis: first}); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	second := &models.Analysis{RootCause: "memory", Confidence: 0.1}
	inc, err := store.Transition("inc-1", models.IncidentActionTaken, TransitionFields{Analysis: second, ActionTaken: models.ActionRestartService})
	if err != nil {
		t.Fatalf("action_taken failed: %v", err)
	}
	if inc.Analysis.RootCause != "cpu" {
		t.Fatalf("analysis overwritten: %+v", inc.Analysis)
	}
}

func TestFindOpenDeduplicatesByServiceAndType(t *testing.T) {
	store := NewStore()
	if err := store.Create(newIncident("inc-1", "svc-1", models.IncidentHealth)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, open := store.FindOpen("svc-1", models.IncidentHealth); !open {
		t.Fatal("expected open health incident for svc-1")
	}
	if _, open := store.FindOpen("svc-1", models.IncidentAnomaly); open {
		t.Fatal("anomaly type should not match the open health incident")
	}
	if _, open := store.FindOpen("svc-2", models.IncidentHealth); open {
		t.Fatal("other services should not match")
	}

	if _, err := store.Transition("inc-1", models.IncidentResolved, TransitionFields{}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, open := store.FindOpen("svc-1", models.IncidentHealth); open {
		t.Fatal("resolved incidents must not block new detections")
	}
}

func TestListFilters(t *testing.T) {
	store := NewStore()
	for _, inc := range []models.Incident{
		newIncident("inc-1", "svc-1", models.IncidentHealth),
		newIncident("inc-2", "svc-2", models.IncidentAnomaly),
		newIncident("inc-3", "svc-1", models.IncidentAnomaly),
	} {
		if err := store.Create(inc); err != nil {
			t.Fatalf("create %s failed: %v", inc.ID, err)
		}
	}
	if _, err := store.Transition("inc-1", models.IncidentResolved, TransitionFields{}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if got := len(store.List()); got != 3 {
		t.Fatalf("List returned %d incidents, want 3", got)
	}
	if got := len(store.ListActive()); got != 2 {
		t.Fatalf("ListActive returned %d incidents, want 2", got)
	}
	if got := len(store.ListByService("svc-1")); got != 2 {
		t.Fatalf("ListByService returned %d incidents, want 2", got)
	}
}
