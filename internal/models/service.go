package models

import "time"

// ServiceStatus is the last observed health state of a monitored service.
type ServiceStatus string

const (
	StatusUnknown   ServiceStatus = "unknown"
	StatusHealthy   ServiceStatus = "healthy"
	StatusUnhealthy ServiceStatus = "unhealthy"
)

// ServiceMetadata carries operational context consumed by the decision safety gates.
type ServiceMetadata struct {
	RestartCount int     `json:"restartCount"`
	UptimeHours  float64 `json:"uptimeHours"`
	ContainerID  string  `json:"containerId,omitempty"`
	Image        string  `json:"image,omitempty"`
}

// Service describes a monitored service and its last-known status.
type Service struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Port           int             `json:"port"`
	HealthEndpoint string          `json:"healthEndpoint"`
	Status         ServiceStatus   `json:"status"`
	LastCheck      *time.Time      `json:"lastCheck,omitempty"`
	Metadata       ServiceMetadata `json:"metadata"`
}

// ServiceContext is the slice of service state the decision engine needs for safety gates.
type ServiceContext struct {
	RecentRestarts int
	UptimeHours    float64
}
