package engine

import (
	"testing"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

func TestMineHotspotsOrdersByPrevalence(t *testing.T) {
	now := time.Now().UTC()
	history := []models.Incident{
		{ID: "1", ServiceID: "svc-a", ServiceName: "alpha", Type: models.IncidentHealth, DetectedAt: now.Add(-3 * time.Hour)},
		{ID: "2", ServiceID: "svc-a", ServiceName: "alpha", Type: models.IncidentAnomaly, DetectedAt: now.Add(-2 * time.Hour)},
		{ID: "3", ServiceID: "svc-a", ServiceName: "alpha", Type: models.IncidentHealth, DetectedAt: now.Add(-1 * time.Hour)},
		{ID: "4", ServiceID: "svc-b", ServiceName: "beta", Type: models.IncidentAnomaly, DetectedAt: now},
	}

	hotspots := MineHotspots(history)
	if len(hotspots) != 2 {
		t.Fatalf("expected 2 hotspots, got %d", len(hotspots))
	}

	top := hotspots[0]
	if top.ServiceID != "svc-a" || top.Incidents != 3 {
		t.Fatalf("unexpected top hotspot: %+v", top)
	}
	if top.Prevalence != 0.75 {
		t.Fatalf("prevalence = %f, want 0.75", top.Prevalence)
	}
	if top.Types[0] != "health" {
		t.Fatalf("dominant type = %q, want health", top.Types[0])
	}
	if !top.LastSeen.Equal(now.Add(-1 * time.Hour)) {
		t.Fatalf("lastSeen = %v", top.LastSeen)
	}
}

func TestMineHotspotsEmptyHistory(t *testing.T) {
	if got := MineHotspots(nil); got != nil {
		t.Fatalf("expected nil for empty history, got %v", got)
	}
}
