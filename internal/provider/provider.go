// Package provider defines usage data source interfaces and types.
package provider

import (
	"context"
	"time"

	"github.com/riwatch/backend/internal/model"
)

// UsageSource pulls daily reserved instance utilization observations
// from a cloud billing backend.
type UsageSource interface {
	// Name returns the source name.
	Name() string

	// Health checks source connectivity.
	Health(ctx context.Context) HealthStatus

	// GetUsage retrieves daily RI usage observations for the given range.
	GetUsage(ctx context.Context, req UsageRequest) ([]model.UsageObservation, error)

	// Close cleans up source resources.
	Close() error
}

// HealthStatus represents source health.
type HealthStatus struct {
	Healthy     bool           `json:"healthy"`
	Message     string         `json:"message"`
	LastChecked time.Time      `json:"last_checked"`
	Details     map[string]any `json:"details,omitempty"`
}

// UsageRequest defines parameters for usage queries.
type UsageRequest struct {
	Range model.DateRange
}
