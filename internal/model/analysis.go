package model

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRecord is the analyzer's output for one RI and one run. It is
// derived entirely from observation history plus configuration and is
// rebuilt fresh each run.
type AnalysisRecord struct {
	SubscriptionID     string            `json:"subscription_id"`
	ResourceID         string            `json:"resource_id"`
	SKUName            string            `json:"sku_name"`
	Region             string            `json:"region"`
	PurchaseDate       *time.Time        `json:"purchase_date,omitempty"`
	ExpiryDate         *time.Time        `json:"expiry_date,omitempty"`
	TermMonths         int               `json:"term_months"`
	ReportDate         time.Time         `json:"report_date"`
	UtilizationPercent float64           `json:"utilization_percent"`
	Status             UtilizationStatus `json:"status"`
	ExpiryStatus       ExpiryStatus      `json:"expiry_status"`
	UnderutilizedDays  int               `json:"underutilized_days"`
	UnusedDays         int               `json:"unused_days"`
	MissingDays        int               `json:"missing_days"`
	// DaysRemaining is nil when expiry cannot be determined.
	DaysRemaining  *int   `json:"days_remaining,omitempty"`
	EmailRecipient string `json:"email_recipient"`
	Alert          string `json:"alert"`
}

// Key returns the RI identity for this record.
func (r AnalysisRecord) Key() RIKey {
	return RIKey{SubscriptionID: r.SubscriptionID, ResourceID: r.ResourceID}
}

// AnalysisRun archives one complete analysis pass.
type AnalysisRun struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	ReferenceDate time.Time        `json:"reference_date" db:"reference_date"`
	Records       []AnalysisRecord `json:"records" db:"records"`
	ErrorCount    int              `json:"error_count" db:"error_count"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// NewAnalysisRun creates a run envelope with a generated ID.
func NewAnalysisRun(referenceDate time.Time, records []AnalysisRecord, errorCount int) *AnalysisRun {
	return &AnalysisRun{
		ID:            uuid.New(),
		ReferenceDate: referenceDate,
		Records:       records,
		ErrorCount:    errorCount,
		CreatedAt:     time.Now().UTC(),
	}
}
