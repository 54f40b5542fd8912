// Package component defines the lifecycle and discovery contract shared by
// connector components.
package component

import (
	"context"
	"time"
)

// Metadata describes a component for discovery and logging.
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus is the point-in-time health of a running component.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	Uptime     time.Duration `json:"uptime"`
}

// Lifecycle is implemented by components managed by the binary.
type Lifecycle interface {
	// Initialize prepares resources before Start.
	Initialize() error
	// Start begins processing. It returns once the component is running.
	Start(ctx context.Context) error
	// Stop shuts the component down, waiting up to timeout for in-flight
	// work to complete.
	Stop(timeout time.Duration) error
}

// Discoverable exposes component identity and health.
type Discoverable interface {
	Meta() Metadata
	Health() HealthStatus
}
