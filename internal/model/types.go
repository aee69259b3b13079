// Package model contains the core domain entities for RIWatch.
package model

import (
	"time"
)

// UtilizationStatus classifies an RI's usage health over the analysis window.
type UtilizationStatus string

const (
	StatusHealthy       UtilizationStatus = "healthy"
	StatusUnderutilized UtilizationStatus = "underutilized"
	StatusUnused        UtilizationStatus = "unused"
	StatusMissingData   UtilizationStatus = "missing_data"
)

// ExpiryStatus classifies an RI's remaining term, independent of usage health.
type ExpiryStatus string

const (
	ExpiryActive       ExpiryStatus = "active"
	ExpiryExpiringSoon ExpiryStatus = "expiring_soon"
	ExpiryExpired      ExpiryStatus = "expired"
	// ExpiryUnknown is reported when purchase date or term months are unavailable.
	ExpiryUnknown ExpiryStatus = "unknown"
)

// DateRange represents a time period.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Pagination holds pagination parameters.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}
