package models

import "time"

// EventType labels a lifecycle notification.
type EventType string

const (
	EventServiceDiscovered EventType = "service_discovered"
	EventIncidentDetected  EventType = "incident_detected"
	EventActionTaken       EventType = "action_taken"
	EventActionSuccess     EventType = "action_success"
	EventActionFailed      EventType = "action_failed"
)

// Event is a fire-and-forget lifecycle notification published to sinks.
type Event struct {
	Type      EventType `json:"type"`
	ServiceID string    `json:"serviceId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Time      time.Time `json:"time"`
}
