package models

import "time"

// IncidentType classifies how an incident was detected.
type IncidentType string

const (
	IncidentHealth    IncidentType = "health"
	IncidentAnomaly   IncidentType = "anomaly"
	IncidentSimulated IncidentType = "simulated"
)

// IncidentStatus is a forward-only lifecycle state.
type IncidentStatus string

const (
	IncidentDetected    IncidentStatus = "detected"
	IncidentAnalyzed    IncidentStatus = "analyzed"
	IncidentActionTaken IncidentStatus = "action_taken"
	IncidentResolved    IncidentStatus = "resolved"
)

// Incident records a deviation from expected service behaviour tracked through
// detected -> analyzed -> action_taken -> resolved (or detected -> resolved
// directly when a later probe finds the service healthy before analysis runs).
type Incident struct {
	ID          string             `json:"id"`
	ServiceID   string             `json:"serviceId"`
	ServiceName string             `json:"serviceName"`
	Type        IncidentType       `json:"type"`
	Severity    float64            `json:"severity"`
	Description string             `json:"description"`
	Metrics     map[string]float64 `json:"metrics"`
	Status      IncidentStatus     `json:"status"`
	Analysis    *Analysis          `json:"aiAnalysis,omitempty"`
	ActionTaken ActionType         `json:"actionTaken,omitempty"`
	DetectedAt  time.Time          `json:"detectedAt"`
	ResolvedAt  *time.Time         `json:"resolvedAt,omitempty"`
}

// Analysis is the decision-engine output attached to incidents on analysis.
type Analysis struct {
	RootCause      string     `json:"rootCause"`
	Confidence     float64    `json:"confidence"`
	Action         ActionType `json:"action,omitempty"`
	PatternMatched string     `json:"patternMatched,omitempty"`
	Similarity     float64    `json:"similarity,omitempty"`
}
