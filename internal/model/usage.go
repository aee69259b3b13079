package model

import (
	"fmt"
	"time"
)

// RIKey uniquely identifies a reserved instance for its lifetime.
type RIKey struct {
	SubscriptionID string `json:"subscription_id"`
	ResourceID     string `json:"resource_id"`
}

func (k RIKey) String() string {
	return fmt.Sprintf("%s/%s", k.SubscriptionID, k.ResourceID)
}

// UsageObservation is one RI's utilization for one calendar day.
// Observations are created by ingestion and immutable thereafter.
type UsageObservation struct {
	SubscriptionID string    `json:"subscription_id" db:"subscription_id"`
	ResourceID     string    `json:"resource_id" db:"resource_id"`
	ReportDate     time.Time `json:"report_date" db:"report_date"`
	UsageQuantity  float64   `json:"usage_quantity" db:"usage_quantity"`
	SKUName        string    `json:"sku_name" db:"sku_name"`
	Region         string    `json:"region" db:"region"`
	PurchaseDate   time.Time `json:"purchase_date" db:"purchase_date"`
	TermMonths     int       `json:"term_months" db:"term_months"`
	EmailRecipient string    `json:"email_recipient" db:"email_recipient"`
}

// Key returns the RI identity for this observation.
func (o UsageObservation) Key() RIKey {
	return RIKey{SubscriptionID: o.SubscriptionID, ResourceID: o.ResourceID}
}

// HistoryFilter selects per-RI observation history.
type HistoryFilter struct {
	Key        RIKey     `json:"key"`
	WindowDays int       `json:"window_days"`
	EndDate    time.Time `json:"end_date"`
}
