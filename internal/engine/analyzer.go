// Package engine implements the pure decision policy: incident analysis via
// pattern matching with a rule-based fallback, and the safety-gated action
// decision. It holds no persisted state and is deterministic for a given
// pattern table.
package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// similarityThreshold is the minimum pattern similarity required before a
// pattern match beats the rule-based fallback.
const similarityThreshold = 0.3

// Engine evaluates grouped incidents into an analysis and a safety-gated decision.
type Engine struct {
	table  *Table
	logger *slog.Logger
}

// New constructs an Engine over the supplied pattern table.
func New(table *Table, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil {
		table = NewTable(nil, logger)
	}
	return &Engine{table: table, logger: logger}
}

// PatternCount reports the number of active patterns, for status surfaces.
func (e *Engine) PatternCount() int {
	return e.table.Len()
}

// Analyze derives a root cause and proposed action from a group of incidents
// belonging to one service. Pattern matching runs first; the rule-based
// fallback covers groups no pattern clears the threshold for.
func (e *Engine) Analyze(group []models.Incident) models.Analysis {
	if len(group) == 0 {
		return models.Analysis{RootCause: "none", Confidence: 0}
	}

	phrases := combinePhrases(group)
	if pattern, similarity, ok := e.table.Match(phrases); ok && similarity > similarityThreshold {
		return models.Analysis{
			RootCause:      pattern.RootCause,
			Confidence:     pattern.Confidence * similarity,
			Action:         pattern.Action,
			PatternMatched: pattern.Name,
			Similarity:     similarity,
		}
	}

	return e.ruleBasedAnalysis(group, phrases)
}

// ruleBasedAnalysis inspects incident types in fixed priority order:
// health > cpu > memory > latency > unknown. Concrete incident types only
// carry health/anomaly/simulated, so the symptom vocabulary derived from the
// metrics snapshot is inspected alongside.
func (e *Engine) ruleBasedAnalysis(group []models.Incident, phrases []string) models.Analysis {
	vocabulary := make([]string, 0, len(group)+len(phrases))
	for _, inc := range group {
		vocabulary = append(vocabulary, string(inc.Type))
	}
	vocabulary = append(vocabulary, phrases...)
	combined := strings.ToLower(strings.Join(vocabulary, " "))

	switch {
	case strings.Contains(combined, "health"):
		return models.Analysis{
			RootCause:  "Service health check failed",
			Confidence: 0.85,
			Action:     models.ActionRestartService,
		}
	case strings.Contains(combined, "cpu"):
		peak := peakMetric(group, "cpu_usage")
		action := models.ActionScaleUp
		if peak > 90 {
			action = models.ActionRestartService
		}
		return models.Analysis{
			RootCause:  fmt.Sprintf("High CPU usage (%.1f%%)", peak),
			Confidence: 0.75,
			Action:     action,
		}
	case strings.Contains(combined, "memory"):
		return models.Analysis{
			RootCause:  "Memory pressure or leak",
			Confidence: 0.7,
			Action:     models.ActionRestartService,
		}
	case strings.Contains(combined, "latency"):
		return models.Analysis{
			RootCause:  "Performance degradation",
			Confidence: 0.6,
			Action:     models.ActionScaleUp,
		}
	default:
		return models.Analysis{
			RootCause:  "Unknown issue - needs investigation",
			Confidence: 0.3,
			Action:     models.ActionInvestigate,
		}
	}
}

func peakMetric(group []models.Incident, name string) float64 {
	peak := 0.0
	for _, inc := range group {
		if v, ok := inc.Metrics[name]; ok && v > peak {
			peak = v
		}
	}
	return peak
}
