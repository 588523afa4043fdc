package models

import "time"

// ActionType identifies a remediation action. ActionMonitor is never executed;
// it means "take no remediating action this cycle".
type ActionType string

const (
	ActionRestartService   ActionType = "restart_service"
	ActionScaleUp          ActionType = "scale_up"
	ActionMonitor          ActionType = "monitor"
	ActionInvestigate      ActionType = "investigate"
	ActionRetryAndThrottle ActionType = "retry_and_throttle"
)

// Decision is the transient outcome of a decision cycle; it is never persisted.
type Decision struct {
	Action         ActionType `json:"action"`
	Reason         string     `json:"reason"`
	Confidence     float64    `json:"confidence"`
	OriginalAction ActionType `json:"originalAction,omitempty"`
	Pattern        string     `json:"pattern,omitempty"`
}

// ActionResult reports the outcome of executing a remediation. Success is
// overwritten exactly once by post-action verification.
type ActionResult struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
}

// ActionRecord is the audit trail entry for one executed remediation.
type ActionRecord struct {
	ID          string       `json:"id"`
	Type        ActionType   `json:"type"`
	ServiceID   string       `json:"serviceId"`
	ServiceName string       `json:"serviceName"`
	Reason      string       `json:"reason"`
	Confidence  float64      `json:"confidence"`
	Result      ActionResult `json:"result"`
	Timestamp   time.Time    `json:"timestamp"`
}
