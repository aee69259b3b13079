package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riwatch/backend/internal/model"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WindowDays = 7
	cfg.MinUtilizationThreshold = 60
	cfg.ExpiryWarningDays = 30
	cfg.UnderutilizedDaysThreshold = 3
	cfg.UnusedDaysThreshold = 3
	return cfg
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// obs builds an observation for the default test RI.
func obs(reportDate string, qty float64) model.UsageObservation {
	return model.UsageObservation{
		SubscriptionID: "sub-a",
		ResourceID:     "ri-001",
		ReportDate:     date(reportDate),
		UsageQuantity:  qty,
		SKUName:        "Standard_D2_v3",
		Region:         "westeurope",
		PurchaseDate:   date("2024-01-01"),
		TermMonths:     12,
		EmailRecipient: "finops@example.com",
	}
}

// series builds consecutive daily observations ending at end.
func series(end string, quantities ...float64) []model.UsageObservation {
	endDay := date(end)
	out := make([]model.UsageObservation, 0, len(quantities))
	for i, q := range quantities {
		d := endDay.AddDate(0, 0, i-len(quantities)+1)
		out = append(out, obs(d.Format("2006-01-02"), q))
	}
	return out
}

func TestAnalyzeDeterminism(t *testing.T) {
	history := series("2024-06-10", 80, 0, 40, 90, 55, 0, 70)
	ref := date("2024-06-10")

	first, err := Analyze(history, ref, testConfig())
	require.NoError(t, err)
	second, err := Analyze(history, ref, testConfig())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyzeLatestValueUtilization(t *testing.T) {
	// Current health is the most recent observation, not an average.
	history := series("2024-06-10", 10, 10, 95)

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 95.0, rec.UtilizationPercent)
	assert.Equal(t, model.StatusHealthy, rec.Status)
}

func TestAnalyzeThresholdBoundaryIsHealthy(t *testing.T) {
	history := series("2024-06-10", 90, 90, 60)

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, model.StatusHealthy, rec.Status)
	assert.Equal(t, 0, rec.UnderutilizedDays)
}

func TestAnalyzeUnusedStreakResets(t *testing.T) {
	// A single non-zero day breaks the trailing streak: only the final
	// zero counts, not the three before the break.
	history := series("2024-06-10", 0, 0, 0, 5, 0)

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.UnusedDays)
}

func TestAnalyzeMissingTail(t *testing.T) {
	// Healthy all week, but no observation for the reference day.
	history := series("2024-06-09", 95, 96, 97, 98)

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, model.StatusMissingData, rec.Status)
	assert.Equal(t, 1, rec.MissingDays)
	// Streaks require data on the window edge.
	assert.Equal(t, 0, rec.UnusedDays)
	assert.Equal(t, 0, rec.UnderutilizedDays)
	// Utilization still reflects the most recent observation in window.
	assert.Equal(t, 98.0, rec.UtilizationPercent)
}

func TestAnalyzeMissingRunStopsAtData(t *testing.T) {
	history := []model.UsageObservation{
		obs("2024-06-04", 90),
		obs("2024-06-05", 85),
		obs("2024-06-07", 80),
	}

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	// 2024-06-08..10 are empty; the run stops at 06-07 even though
	// 06-06 is also a gap.
	assert.Equal(t, 3, rec.MissingDays)
	assert.Equal(t, model.StatusMissingData, rec.Status)
}

func TestAnalyzeExpiryIndependentOfStatus(t *testing.T) {
	// Healthy usage on an RI twelve days from expiry: both axes report.
	history := series("2024-12-20", 90, 92, 95)

	rec, err := Analyze(history, date("2024-12-20"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, model.StatusHealthy, rec.Status)
	assert.Equal(t, model.ExpiryExpiringSoon, rec.ExpiryStatus)
	require.NotNil(t, rec.DaysRemaining)
	assert.Equal(t, 12, *rec.DaysRemaining)
}

func TestAnalyzeRewindowingKeepsStreaks(t *testing.T) {
	history := series("2024-06-10", 90, 0, 30, 20, 10)
	ref := date("2024-06-10")

	narrow, err := Analyze(history, ref, testConfig())
	require.NoError(t, err)

	wide := testConfig()
	wide.WindowDays = 30
	widened, err := Analyze(history, ref, wide)
	require.NoError(t, err)

	assert.Equal(t, narrow.UnderutilizedDays, widened.UnderutilizedDays)
	assert.Equal(t, narrow.UnusedDays, widened.UnusedDays)
	assert.Equal(t, narrow.Status, widened.Status)
}

func TestAnalyzeUnderutilizedScenario(t *testing.T) {
	history := series("2024-06-10", 80, 40, 30, 20)

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, rec.UnderutilizedDays)
	assert.Equal(t, model.StatusUnderutilized, rec.Status)
	assert.Contains(t, rec.Alert, "ri-001")
	assert.Contains(t, rec.Alert, "3 consecutive days")
}

func TestAnalyzeUnusedBelowThresholdStaysUnderutilizedRule(t *testing.T) {
	// A trailing zero below the unused threshold: the latest-value rule
	// still classifies below-threshold utilization.
	history := series("2024-06-10", 90, 90, 0)

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.UnusedDays)
	assert.Equal(t, model.StatusUnderutilized, rec.Status)
	assert.Empty(t, rec.Alert)
}

func TestAnalyzeUnusedStreakWins(t *testing.T) {
	history := series("2024-06-10", 90, 0, 0, 0)

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, rec.UnusedDays)
	assert.Equal(t, model.StatusUnused, rec.Status)
	assert.Contains(t, rec.Alert, "not been used for 3 consecutive days")
}

func TestAnalyzeExpiredAlertPriority(t *testing.T) {
	// Expired outranks an unused streak in the alert text; the usage
	// axis still reports unused.
	history := series("2025-02-10", 0, 0, 0, 0)

	rec, err := Analyze(history, date("2025-02-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnused, rec.Status)
	assert.Equal(t, model.ExpiryExpired, rec.ExpiryStatus)
	require.NotNil(t, rec.DaysRemaining)
	assert.Negative(t, *rec.DaysRemaining)
	assert.Contains(t, rec.Alert, "expired")
}

func TestAnalyzeExpiringTodayIsNotExpired(t *testing.T) {
	history := series("2025-01-01", 90)

	rec, err := Analyze(history, date("2025-01-01"), testConfig())
	require.NoError(t, err)

	require.NotNil(t, rec.DaysRemaining)
	assert.Equal(t, 0, *rec.DaysRemaining)
	assert.Equal(t, model.ExpiryExpiringSoon, rec.ExpiryStatus)
}

func TestAnalyzeUnknownExpiry(t *testing.T) {
	o := obs("2024-06-10", 90)
	o.PurchaseDate = time.Time{}
	o.TermMonths = 0

	rec, err := Analyze([]model.UsageObservation{o}, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, model.ExpiryUnknown, rec.ExpiryStatus)
	assert.Nil(t, rec.DaysRemaining)
	assert.Equal(t, model.StatusHealthy, rec.Status)
}

func TestAnalyzeSingleObservation(t *testing.T) {
	rec, err := Analyze([]model.UsageObservation{obs("2024-06-10", 45)}, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnderutilized, rec.Status)
	assert.Equal(t, 1, rec.UnderutilizedDays)
	assert.Equal(t, 45.0, rec.UtilizationPercent)
}

func TestAnalyzeAllObservationsBeforeWindow(t *testing.T) {
	history := series("2024-05-01", 90, 90, 90)

	rec, err := Analyze(history, date("2024-06-10"), testConfig())
	require.NoError(t, err)

	assert.Equal(t, model.StatusMissingData, rec.Status)
	assert.Equal(t, 7, rec.MissingDays)
	// Expiry is still computed from the known purchase date and term.
	require.NotNil(t, rec.DaysRemaining)
	assert.Equal(t, model.ExpiryActive, rec.ExpiryStatus)
}

func TestAnalyzeNoWindowDataAndUnknownExpiry(t *testing.T) {
	// Observations exist but all predate the window, and neither
	// purchase date nor term is known: nothing is reportable.
	history := series("2024-05-01", 90, 90)
	for i := range history {
		history[i].PurchaseDate = time.Time{}
		history[i].TermMonths = 0
	}

	_, err := Analyze(history, date("2024-06-10"), testConfig())

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "ri-001", insufficient.Key.ResourceID)
}

func TestAnalyzeDuplicateDates(t *testing.T) {
	history := []model.UsageObservation{
		obs("2024-06-09", 90),
		obs("2024-06-10", 80),
		obs("2024-06-10", 70),
	}

	_, err := Analyze(history, date("2024-06-10"), testConfig())

	var integrity *DataIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "sub-a", integrity.Key.SubscriptionID)
}

func TestAnalyzeNegativeUsage(t *testing.T) {
	_, err := Analyze([]model.UsageObservation{obs("2024-06-10", -1)}, date("2024-06-10"), testConfig())

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "usage_quantity", validation.Field)
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	_, err := Analyze(nil, date("2024-06-10"), testConfig())

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestAnalyzeDefaultsFillDescriptiveFields(t *testing.T) {
	o := obs("2024-06-10", 90)
	o.SKUName = ""
	o.Region = ""
	o.EmailRecipient = ""

	cfg := testConfig()
	cfg.DefaultRecipient = "fallback@example.com"

	rec, err := Analyze([]model.UsageObservation{o}, date("2024-06-10"), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "Standard_DS1_v2", rec.SKUName)
	assert.Equal(t, "eastus", rec.Region)

	rec, err = Analyze([]model.UsageObservation{o}, date("2024-06-10"), cfg)
	require.NoError(t, err)
	assert.Equal(t, "fallback@example.com", rec.EmailRecipient)
}

func TestAnalyzeZeroReferenceUsesLatestObservation(t *testing.T) {
	history := series("2024-06-10", 90, 40, 30, 20)

	rec, err := Analyze(history, time.Time{}, testConfig())
	require.NoError(t, err)

	assert.Equal(t, date("2024-06-10"), rec.ReportDate)
	assert.Equal(t, 3, rec.UnderutilizedDays)
}

func TestAnalyzeBatchIsolatesFailures(t *testing.T) {
	good := series("2024-06-10", 90, 90, 90)
	bad := []model.UsageObservation{
		{SubscriptionID: "sub-b", ResourceID: "ri-dup", ReportDate: date("2024-06-10"), UsageQuantity: 1},
		{SubscriptionID: "sub-b", ResourceID: "ri-dup", ReportDate: date("2024-06-10"), UsageQuantity: 2},
	}

	histories := map[model.RIKey][]model.UsageObservation{
		{SubscriptionID: "sub-a", ResourceID: "ri-001"}: good,
		{SubscriptionID: "sub-b", ResourceID: "ri-dup"}: bad,
		{SubscriptionID: "sub-c", ResourceID: "ri-nil"}: nil,
	}

	result := AnalyzeBatch(histories, date("2024-06-10"), testConfig(), 4)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "ri-001", result.Records[0].ResourceID)

	var integrity *DataIntegrityError
	require.ErrorAs(t, result.Errors[model.RIKey{SubscriptionID: "sub-b", ResourceID: "ri-dup"}], &integrity)
	var insufficient *InsufficientDataError
	require.ErrorAs(t, result.Errors[model.RIKey{SubscriptionID: "sub-c", ResourceID: "ri-nil"}], &insufficient)
	assert.Equal(t, "ri-nil", insufficient.Key.ResourceID)
}

func TestAnalyzeBatchDeterministicOrder(t *testing.T) {
	histories := map[model.RIKey][]model.UsageObservation{}
	for _, id := range []string{"ri-z", "ri-a", "ri-m", "ri-b"} {
		o := obs("2024-06-10", 90)
		o.ResourceID = id
		histories[o.Key()] = []model.UsageObservation{o}
	}

	first := AnalyzeBatch(histories, date("2024-06-10"), testConfig(), 3)
	second := AnalyzeBatch(histories, date("2024-06-10"), testConfig(), 3)

	require.Equal(t, first.Records, second.Records)
	assert.Equal(t, "ri-a", first.Records[0].ResourceID)
	assert.Equal(t, "ri-z", first.Records[3].ResourceID)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	cfg.WindowDays = 0
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.MinUtilizationThreshold = 101
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.UnusedDaysThreshold = 0
	assert.Error(t, cfg.Validate())
}
