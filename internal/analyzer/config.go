// Package analyzer implements the RI utilization analysis engine. It
// converts a per-RI history of daily usage observations into a status
// classification, consecutive-day streak counts, and alert text. The
// engine is a pure function over its inputs: it performs no I/O, holds
// no state between calls, and is safe to invoke concurrently across
// independent RIs.
package analyzer

import (
	"fmt"
)

// Config carries all analysis thresholds. Callers pass it explicitly on
// every analysis call.
type Config struct {
	// WindowDays is the trailing calendar window evaluated per RI.
	WindowDays int

	// MinUtilizationThreshold is the percentage below which a day is
	// underutilized. A day exactly at the threshold is healthy.
	MinUtilizationThreshold float64

	// ExpiryWarningDays controls how far ahead of expiry an RI is
	// flagged expiring_soon.
	ExpiryWarningDays int

	// UnderutilizedDaysThreshold is the consecutive underutilized-day
	// streak length that flips status to underutilized and triggers an
	// alert.
	UnderutilizedDaysThreshold int

	// UnusedDaysThreshold is the consecutive unused-day streak length
	// that flips status to unused and triggers an alert.
	UnusedDaysThreshold int

	// DefaultRegion and DefaultSKU fill descriptive fields when the
	// history carries none.
	DefaultRegion string
	DefaultSKU    string

	// DefaultRecipient routes records whose history has no recipient.
	DefaultRecipient string
}

// DefaultConfig returns the thresholds used when deployment supplies none.
func DefaultConfig() Config {
	return Config{
		WindowDays:                 7,
		MinUtilizationThreshold:    60,
		ExpiryWarningDays:          30,
		UnderutilizedDaysThreshold: 3,
		UnusedDaysThreshold:        3,
		DefaultRegion:              "eastus",
		DefaultSKU:                 "Standard_DS1_v2",
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.WindowDays < 1 {
		return fmt.Errorf("analyzer: window days must be >= 1, got %d", c.WindowDays)
	}
	if c.MinUtilizationThreshold < 0 || c.MinUtilizationThreshold > 100 {
		return fmt.Errorf("analyzer: min utilization threshold must be within [0,100], got %v", c.MinUtilizationThreshold)
	}
	if c.ExpiryWarningDays < 0 {
		return fmt.Errorf("analyzer: expiry warning days must be >= 0, got %d", c.ExpiryWarningDays)
	}
	if c.UnderutilizedDaysThreshold < 1 {
		return fmt.Errorf("analyzer: underutilized days threshold must be >= 1, got %d", c.UnderutilizedDaysThreshold)
	}
	if c.UnusedDaysThreshold < 1 {
		return fmt.Errorf("analyzer: unused days threshold must be >= 1, got %d", c.UnusedDaysThreshold)
	}
	return nil
}
