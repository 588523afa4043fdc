package engine

import (
	"sort"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// Metric thresholds above which a snapshot value becomes a symptom phrase.
// They mirror the vocabulary of the pattern table.
const (
	cpuHighPercent     = 80.0
	memoryHighPercent  = 80.0
	latencyHighMillis  = 500.0
	errorRateIncreased = 10.0
)

// DerivePhrases maps an incident onto the symptom vocabulary used for pattern
// matching: the detection type plus any elevated metrics in its snapshot.
func DerivePhrases(inc models.Incident) []string {
	var phrases []string

	if inc.Type == models.IncidentHealth {
		phrases = append(phrases, "health failed")
	}

	if cpu, ok := inc.Metrics["cpu_usage"]; ok && cpu >= cpuHighPercent {
		phrases = append(phrases, "cpu high")
	}
	if mem, ok := inc.Metrics["memory_usage"]; ok && mem >= memoryHighPercent {
		phrases = append(phrases, "memory high")
	}
	if lat, ok := inc.Metrics["latency_p95"]; ok && lat >= latencyHighMillis {
		phrases = append(phrases, "latency high")
	}
	if errs, ok := inc.Metrics["error_rate"]; ok && errs >= errorRateIncreased {
		phrases = append(phrases, "errors increased")
	}

	return phrases
}

// combinePhrases unions the symptom phrases of a group of incidents into a
// deterministic, de-duplicated slice.
func combinePhrases(group []models.Incident) []string {
	seen := make(map[string]struct{})
	for _, inc := range group {
		for _, phrase := range DerivePhrases(inc) {
			seen[normalisePhrase(phrase)] = struct{}{}
		}
	}

	phrases := make([]string, 0, len(seen))
	for phrase := range seen {
		phrases = append(phrases, phrase)
	}
	sort.Strings(phrases)
	return phrases
}
