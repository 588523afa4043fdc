package engine

import (
	"math"
	"testing"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

func anomalyIncident(metrics map[string]float64) models.Incident {
	return models.Incident{
		ID:        "inc-1",
		ServiceID: "svc-1",
		Type:      models.IncidentAnomaly,
		Severity:  0.82,
		Metrics:   metrics,
		Status:    models.IncidentDetected,
	}
}

func TestAnalyzeEmptyGroup(t *testing.T) {
	e := New(NewTable(nil, nil), nil)

	analysis := e.Analyze(nil)
	if analysis.RootCause != "none" || analysis.Confidence != 0 {
		t.Fatalf("unexpected analysis for empty group: %+v", analysis)
	}
}

func TestAnalyzeMatchesCPUPattern(t *testing.T) {
	e := New(NewTable(nil, nil), nil)

	group := []models.Incident{anomalyIncident(map[string]float64{
		"cpu_usage":    95,
		"memory_usage": 40,
		"latency_p95":  120,
	})}

	analysis := e.Analyze(group)
	if analysis.PatternMatched != "high_cpu_low_memory" {
		t.Fatalf("pattern = %q, want high_cpu_low_memory", analysis.PatternMatched)
	}
	if analysis.Action != models.ActionRestartService {
		t.Fatalf("action = %q, want restart_service", analysis.Action)
	}
	// Single elevated symptom fully contained in the pattern: similarity 1.0,
	// confidence = baseConfidence.
	if math.Abs(analysis.Confidence-0.8) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.8", analysis.Confidence)
	}
}

func TestAnalyzeMatchesServiceDownPattern(t *testing.T) {
	e := New(NewTable(nil, nil), nil)

	group := []models.Incident{{
		ID:        "inc-1",
		ServiceID: "svc-1",
		Type:      models.IncidentHealth,
		Severity:  0.9,
		Status:    models.IncidentDetected,
	}}

	analysis := e.Analyze(group)
	if analysis.PatternMatched != "service_down" {
		t.Fatalf("pattern = %q, want service_down", analysis.PatternMatched)
	}
	if analysis.Action != models.ActionRestartService {
		t.Fatalf("action = %q, want restart_service", analysis.Action)
	}
	if math.Abs(analysis.Confidence-0.9) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.9", analysis.Confidence)
	}
}

func TestAnalyzeMatchesMemoryPattern(t *testing.T) {
	e := New(NewTable(nil, nil), nil)

	group := []models.Incident{anomalyIncident(map[string]float64{
		"cpu_usage":    30,
		"memory_usage": 92,
	})}

	analysis := e.Analyze(group)
	if analysis.PatternMatched != "high_memory" {
		t.Fatalf("pattern = %q, want high_memory", analysis.PatternMatched)
	}
}

func TestAnalyzeFallsBackToRules(t *testing.T) {
	e := New(NewTable(nil, nil), nil)

	// No elevated metrics, so no symptom phrases and no pattern match.
	group := []models.Incident{anomalyIncident(map[string]float64{
		"cpu_usage":    30,
		"memory_usage": 40,
	})}

	analysis := e.Analyze(group)
	if analysis.PatternMatched != "" {
		t.Fatalf("expected fallback, matched %q", analysis.PatternMatched)
	}
	if analysis.Action != models.ActionInvestigate {
		t.Fatalf("action = %q, want investigate", analysis.Action)
	}
	if analysis.Confidence != 0.3 {
		t.Fatalf("confidence = %f, want 0.3", analysis.Confidence)
	}
}

func TestRuleFallbackPriorityOrder(t *testing.T) {
	e := New(NewTable([]Pattern{{
		// A table whose vocabulary never overlaps the derived phrases forces
		// the rule-based path even with elevated metrics.
		Name:       "unreachable",
		Symptoms:   []string{"disk full"},
		RootCause:  "n/a",
		Action:     models.ActionInvestigate,
		Confidence: 0.9,
	}}, nil), nil)

	health := models.Incident{ID: "inc-h", Type: models.IncidentHealth, Status: models.IncidentDetected}
	cpu := anomalyIncident(map[string]float64{"cpu_usage": 95})

	analysis := e.Analyze([]models.Incident{cpu, health})
	if analysis.Confidence != 0.85 || analysis.Action != models.ActionRestartService {
		t.Fatalf("health rule should win: %+v", analysis)
	}

	analysis = e.Analyze([]models.Incident{cpu})
	if analysis.Confidence != 0.75 || analysis.Action != models.ActionRestartService {
		t.Fatalf("cpu rule with peak > 90 should restart: %+v", analysis)
	}

	mildCPU := anomalyIncident(map[string]float64{"cpu_usage": 85})
	analysis = e.Analyze([]models.Incident{mildCPU})
	if analysis.Action != models.ActionScaleUp {
		t.Fatalf("cpu rule with peak <= 90 should scale up: %+v", analysis)
	}
}
