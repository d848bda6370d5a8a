package types

import (
	"time"
)

// HealthState represents the health state of a core component.
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// String returns the string representation of HealthState.
func (s HealthState) String() string {
	return string(s)
}

// HealthStatus reports the health of a component with a state, an optional
// human-readable message, and the time the check was performed.
type HealthStatus struct {
	State     HealthState `json:"state"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

// IsHealthy reports whether the status is in the healthy state.
func (h HealthStatus) IsHealthy() bool {
	return h.State == HealthStateHealthy
}

// Healthy creates a healthy status with the given message.
func Healthy(message string) HealthStatus {
	return HealthStatus{State: HealthStateHealthy, Message: message, CheckedAt: time.Now()}
}

// Degraded creates a degraded status with the given message.
func Degraded(message string) HealthStatus {
	return HealthStatus{State: HealthStateDegraded, Message: message, CheckedAt: time.Now()}
}

// Unhealthy creates an unhealthy status with the given message.
func Unhealthy(message string) HealthStatus {
	return HealthStatus{State: HealthStateUnhealthy, Message: message, CheckedAt: time.Now()}
}
