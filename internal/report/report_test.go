package report

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riwatch/backend/internal/model"
	"github.com/riwatch/backend/internal/notification"
)

func intPtr(n int) *int { return &n }

func sampleRecords() []model.AnalysisRecord {
	return []model.AnalysisRecord{
		{
			SubscriptionID:     "sub-a",
			ResourceID:         "ri-001",
			SKUName:            "Standard_DS1_v2",
			Region:             "eastus",
			UtilizationPercent: 95.5,
			Status:             model.StatusHealthy,
			ExpiryStatus:       model.ExpiryActive,
			DaysRemaining:      intPtr(120),
			EmailRecipient:     "alice@example.com",
		},
		{
			SubscriptionID:     "sub-a",
			ResourceID:         "ri-002",
			SKUName:            "Standard_D4s_v3",
			Region:             "westus",
			UtilizationPercent: 0,
			Status:             model.StatusUnused,
			ExpiryStatus:       model.ExpiryUnknown,
			UnusedDays:         4,
			EmailRecipient:     "alice@example.com",
			Alert:              "RI ri-002 has not been used for 4 consecutive days.",
		},
	}
}

func TestRenderHTMLContainsRowsAndAlerts(t *testing.T) {
	html, err := RenderHTML(sampleRecords(), time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, html, "Azure Reserved Instance Report – 2024-12-20")
	assert.Contains(t, html, "ri-001")
	assert.Contains(t, html, "ri-002")
	assert.Contains(t, html, "RI ri-002 has not been used for 4 consecutive days.")

	// Row coloring by status.
	assert.Contains(t, html, "#d4edda")
	assert.Contains(t, html, "#f8d7da")
}

func TestRenderHTMLDashForUnknownExpiry(t *testing.T) {
	records := []model.AnalysisRecord{{
		ResourceID:         "ri-003",
		UtilizationPercent: 50,
		Status:             model.StatusUnderutilized,
		ExpiryStatus:       model.ExpiryUnknown,
	}}

	html, err := RenderHTML(records, time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, html, "<td>-</td>")
}

func TestRenderCSV(t *testing.T) {
	data, err := RenderCSV(sampleRecords())
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "subscription_id", rows[0][0])
	assert.Equal(t, "ri-001", rows[1][1])
	assert.Equal(t, "95.5", rows[1][4])
	assert.Equal(t, "120", rows[1][5])
	assert.Equal(t, "unused", rows[2][6])
	assert.Equal(t, "-", rows[2][5])
}

func TestSubjectCountsAlertsPerRegion(t *testing.T) {
	records := sampleRecords()
	records = append(records, model.AnalysisRecord{
		ResourceID:   "ri-004",
		Region:       "westus",
		Status:       model.StatusUnderutilized,
		ExpiryStatus: model.ExpiryActive,
		Alert:        "RI ri-004 has been underutilized for 3 consecutive days.",
	})

	subject := Subject(records, time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "RI Utilization Report – 2024-12-20 (2 alerts: westus: 2)", subject)
}

func TestSubjectNoAlerts(t *testing.T) {
	records := []model.AnalysisRecord{{
		ResourceID:   "ri-001",
		Region:       "eastus",
		Status:       model.StatusHealthy,
		ExpiryStatus: model.ExpiryActive,
	}}

	subject := Subject(records, time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "RI Utilization Report – 2024-12-20 (0 alerts: )", subject)
}

type fakeSender struct {
	sent    []notification.Message
	failFor string
}

func (f *fakeSender) Send(_ context.Context, msg notification.Message) error {
	if msg.Recipient == f.failFor {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeArchiver struct {
	names []string
}

func (f *fakeArchiver) Store(_ context.Context, _ time.Time, name, _ string, _ []byte) error {
	f.names = append(f.names, name)
	return nil
}

func testRun(records []model.AnalysisRecord) *model.AnalysisRun {
	return &model.AnalysisRun{
		ReferenceDate: time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		Records:       records,
	}
}

func TestEmitterGroupsByRecipient(t *testing.T) {
	records := sampleRecords()
	records = append(records, model.AnalysisRecord{
		ResourceID:     "ri-010",
		Region:         "eastus",
		Status:         model.StatusHealthy,
		ExpiryStatus:   model.ExpiryActive,
		EmailRecipient: "bob@example.com",
	})

	sender := &fakeSender{}
	archiver := &fakeArchiver{}
	emitter := NewEmitter(sender, archiver, "", slog.Default())

	err := emitter.Emit(context.Background(), testRun(records))
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	// Deterministic recipient order.
	assert.Equal(t, "alice@example.com", sender.sent[0].Recipient)
	assert.Equal(t, "bob@example.com", sender.sent[1].Recipient)

	require.Len(t, sender.sent[0].Attachments, 1)
	assert.Equal(t, "alice_at_example_com_2024-12-20.csv", sender.sent[0].Attachments[0].Name)

	// HTML and CSV archived per recipient.
	assert.Len(t, archiver.names, 4)
	assert.Contains(t, archiver.names, "bob_at_example_com_2024-12-20.html")
}

func TestEmitterDefaultRecipientFallback(t *testing.T) {
	records := []model.AnalysisRecord{{
		ResourceID:   "ri-020",
		Status:       model.StatusHealthy,
		ExpiryStatus: model.ExpiryActive,
	}}

	sender := &fakeSender{}
	emitter := NewEmitter(sender, nil, "ops@example.com", slog.Default())

	err := emitter.Emit(context.Background(), testRun(records))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ops@example.com", sender.sent[0].Recipient)
}

func TestEmitterSkipsRecordsWithoutRecipient(t *testing.T) {
	records := []model.AnalysisRecord{{
		ResourceID:   "ri-030",
		Status:       model.StatusHealthy,
		ExpiryStatus: model.ExpiryActive,
	}}

	sender := &fakeSender{}
	emitter := NewEmitter(sender, nil, "", slog.Default())

	err := emitter.Emit(context.Background(), testRun(records))
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestEmitterContinuesAfterDeliveryFailure(t *testing.T) {
	records := sampleRecords()
	records = append(records, model.AnalysisRecord{
		ResourceID:     "ri-010",
		Status:         model.StatusHealthy,
		ExpiryStatus:   model.ExpiryActive,
		EmailRecipient: "bob@example.com",
	})

	sender := &fakeSender{failFor: "alice@example.com"}
	emitter := NewEmitter(sender, nil, "", slog.Default())

	err := emitter.Emit(context.Background(), testRun(records))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alice@example.com")

	// bob's report still went out.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "bob@example.com", sender.sent[0].Recipient)
}
