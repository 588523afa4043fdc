package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels verified-successful remediations.
	OutcomeSuccess = "success"
	// OutcomeFailed labels remediations whose verification re-probe stayed unhealthy.
	OutcomeFailed = "failed"
	// OutcomeBusy labels remediation attempts refused by the per-service lock.
	OutcomeBusy = "busy"
)

var (
	cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_remediate",
			Name:      "cycles_total",
			Help:      "Total number of completed control-loop cycles.",
		},
	)

	cycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_remediate",
			Name:      "cycle_seconds",
			Help:      "Control-loop cycle latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_remediate",
			Name:      "incidents_total",
			Help:      "Incidents created, partitioned by detection type.",
		},
		[]string{"type"},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_remediate",
			Name:      "actions_total",
			Help:      "Remediation actions, partitioned by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	remediationsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_remediate",
			Name:      "remediations_inflight",
			Help:      "Remediations currently executing or verifying.",
		},
	)

	probeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_remediate",
			Name:      "probe_failures_total",
			Help:      "Probe failures recovered locally, partitioned by probe kind.",
		},
		[]string{"kind"},
	)
)

// Register attaches the remediation-engine collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		cycleSeconds,
		incidentsTotal,
		actionsTotal,
		remediationsInflight,
		probeFailuresTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records one completed control-loop cycle.
func ObserveCycle(duration time.Duration) {
	cyclesTotal.Inc()
	if duration < 0 {
		duration = 0
	}
	cycleSeconds.Observe(duration.Seconds())
}

// IncIncident counts a newly created incident.
func IncIncident(incidentType string) {
	incidentsTotal.WithLabelValues(incidentType).Inc()
}

// ObserveAction counts a remediation action outcome.
func ObserveAction(action, outcome string) {
	actionsTotal.WithLabelValues(action, outcome).Inc()
}

// IncInflight tracks the start of a remediation.
func IncInflight() { remediationsInflight.Inc() }

// DecInflight tracks the end of a remediation.
func DecInflight() { remediationsInflight.Dec() }

// IncProbeFailure counts a recovered probe failure.
func IncProbeFailure(kind string) {
	probeFailuresTotal.WithLabelValues(kind).Inc()
}
