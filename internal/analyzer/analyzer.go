package analyzer

import (
	"fmt"
	"time"

	"github.com/riwatch/backend/internal/model"
)

// Analyze computes the analysis record for one RI from its ordered daily
// observation history.
//
// The history must be sorted ascending by report date with at most one
// observation per calendar day; violations surface as *DataIntegrityError.
// A negative usage quantity surfaces as *ValidationError. An empty
// history surfaces as *InsufficientDataError.
//
// referenceDate anchors the trailing analysis window and the expiry
// computation. A zero referenceDate means "the latest date present in
// the history".
func Analyze(history []model.UsageObservation, referenceDate time.Time, cfg Config) (*model.AnalysisRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, &InsufficientDataError{}
	}

	key := history[0].Key()
	if err := checkHistory(key, history); err != nil {
		return nil, err
	}

	windowEnd := day(referenceDate)
	if windowEnd.IsZero() {
		windowEnd = day(history[len(history)-1].ReportDate)
	}
	windowStart := windowEnd.AddDate(0, 0, -(cfg.WindowDays - 1))

	// Index in-window observations by calendar day.
	byDay := make(map[time.Time]model.UsageObservation, cfg.WindowDays)
	var latestInWindow *model.UsageObservation
	for i := range history {
		d := day(history[i].ReportDate)
		if d.Before(windowStart) || d.After(windowEnd) {
			continue
		}
		byDay[d] = history[i]
		if latestInWindow == nil || d.After(day(latestInWindow.ReportDate)) {
			latestInWindow = &history[i]
		}
	}

	rec := newRecord(key, history, windowEnd, cfg)

	// Current health reflects the most recent observation in the
	// window, not a historical average.
	if latestInWindow != nil {
		rec.UtilizationPercent = latestInWindow.UsageQuantity
	}

	rec.MissingDays = trailingMissing(byDay, windowStart, windowEnd)
	rec.UnusedDays = trailingStreak(byDay, windowStart, windowEnd, func(q float64) bool {
		return q == 0
	})
	rec.UnderutilizedDays = trailingStreak(byDay, windowStart, windowEnd, func(q float64) bool {
		return q > 0 && q < cfg.MinUtilizationThreshold
	})

	rec.Status = classify(rec, latestInWindow, cfg)
	classifyExpiry(rec, windowEnd, cfg)

	// With nothing in the window and no expiry either, there is no
	// usable signal left to report.
	if latestInWindow == nil && rec.ExpiryStatus == model.ExpiryUnknown {
		return nil, &InsufficientDataError{Key: key}
	}

	rec.Alert = buildAlert(rec, cfg)

	return rec, nil
}

// checkHistory enforces ascending, duplicate-free report dates and
// non-negative usage.
func checkHistory(key model.RIKey, history []model.UsageObservation) error {
	var prev time.Time
	for i := range history {
		d := day(history[i].ReportDate)
		if i > 0 && !d.After(prev) {
			return &DataIntegrityError{Key: key, Date: d}
		}
		if history[i].UsageQuantity < 0 {
			return &ValidationError{Key: key, Date: d, Field: "usage_quantity", Value: history[i].UsageQuantity}
		}
		prev = d
	}
	return nil
}

// newRecord seeds identity and descriptive fields from the history,
// letting the most recent non-empty value win and falling back to the
// configured defaults.
func newRecord(key model.RIKey, history []model.UsageObservation, windowEnd time.Time, cfg Config) *model.AnalysisRecord {
	rec := &model.AnalysisRecord{
		SubscriptionID: key.SubscriptionID,
		ResourceID:     key.ResourceID,
		ReportDate:     windowEnd,
		SKUName:        cfg.DefaultSKU,
		Region:         cfg.DefaultRegion,
		EmailRecipient: cfg.DefaultRecipient,
	}

	for i := len(history) - 1; i >= 0; i-- {
		o := history[i]
		if rec.SKUName == cfg.DefaultSKU && o.SKUName != "" {
			rec.SKUName = o.SKUName
		}
		if rec.Region == cfg.DefaultRegion && o.Region != "" {
			rec.Region = o.Region
		}
		if rec.EmailRecipient == cfg.DefaultRecipient && o.EmailRecipient != "" {
			rec.EmailRecipient = o.EmailRecipient
		}
		if rec.PurchaseDate == nil && !o.PurchaseDate.IsZero() {
			pd := day(o.PurchaseDate)
			rec.PurchaseDate = &pd
		}
		if rec.TermMonths == 0 && o.TermMonths > 0 {
			rec.TermMonths = o.TermMonths
		}
	}
	return rec
}

// trailingMissing counts the run of empty calendar days ending at the
// window's most recent edge, stopping at the first day with data. Gaps
// earlier in the window do not count.
func trailingMissing(byDay map[time.Time]model.UsageObservation, windowStart, windowEnd time.Time) int {
	n := 0
	for d := windowEnd; !d.Before(windowStart); d = d.AddDate(0, 0, -1) {
		if _, ok := byDay[d]; ok {
			break
		}
		n++
	}
	return n
}

// trailingStreak counts consecutive qualifying days ending at the window
// edge. A day without an observation breaks the streak.
func trailingStreak(byDay map[time.Time]model.UsageObservation, windowStart, windowEnd time.Time, qualifies func(float64) bool) int {
	n := 0
	for d := windowEnd; !d.Before(windowStart); d = d.AddDate(0, 0, -1) {
		o, ok := byDay[d]
		if !ok || !qualifies(o.UsageQuantity) {
			break
		}
		n++
	}
	return n
}

// classify applies the status rules in priority order; first match wins.
func classify(rec *model.AnalysisRecord, latest *model.UsageObservation, cfg Config) model.UtilizationStatus {
	switch {
	case latest == nil || rec.MissingDays > 0:
		return model.StatusMissingData
	case rec.UnusedDays >= cfg.UnusedDaysThreshold:
		return model.StatusUnused
	case rec.UnderutilizedDays >= cfg.UnderutilizedDaysThreshold,
		latest.UsageQuantity < cfg.MinUtilizationThreshold:
		return model.StatusUnderutilized
	default:
		return model.StatusHealthy
	}
}

// classifyExpiry fills the expiry axis. It is computed independently of
// the usage status; a record can be underutilized and expiring_soon at
// the same time.
func classifyExpiry(rec *model.AnalysisRecord, referenceDate time.Time, cfg Config) {
	if rec.PurchaseDate == nil || rec.TermMonths <= 0 {
		rec.ExpiryStatus = model.ExpiryUnknown
		return
	}

	expiry := rec.PurchaseDate.AddDate(0, rec.TermMonths, 0)
	rec.ExpiryDate = &expiry

	remaining := int(expiry.Sub(referenceDate).Hours() / 24)
	rec.DaysRemaining = &remaining

	switch {
	case remaining < 0:
		rec.ExpiryStatus = model.ExpiryExpired
	case remaining <= cfg.ExpiryWarningDays:
		rec.ExpiryStatus = model.ExpiryExpiringSoon
	default:
		rec.ExpiryStatus = model.ExpiryActive
	}
}

// buildAlert synthesizes the single alert message by priority:
// expired > unused > underutilized > expiring_soon > none. The message
// carries the RI id and the triggering count so downstream reporting
// needs no recomputation.
func buildAlert(rec *model.AnalysisRecord, cfg Config) string {
	switch {
	case rec.ExpiryStatus == model.ExpiryExpired:
		return fmt.Sprintf("RI %s expired %d day(s) ago.", rec.ResourceID, -*rec.DaysRemaining)
	case rec.UnusedDays >= cfg.UnusedDaysThreshold:
		return fmt.Sprintf("RI %s has not been used for %d consecutive days.", rec.ResourceID, rec.UnusedDays)
	case rec.UnderutilizedDays >= cfg.UnderutilizedDaysThreshold:
		return fmt.Sprintf("RI %s has been underutilized for %d consecutive days.", rec.ResourceID, rec.UnderutilizedDays)
	case rec.ExpiryStatus == model.ExpiryExpiringSoon:
		return fmt.Sprintf("RI %s expires in %d day(s).", rec.ResourceID, *rec.DaysRemaining)
	default:
		return ""
	}
}

// day truncates a timestamp to its UTC calendar day.
func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
