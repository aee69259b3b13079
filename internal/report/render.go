// Package report renders analysis results into HTML and CSV reports
// and fans them out per recipient.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/riwatch/backend/internal/model"
)

var reportTmpl = template.Must(template.New("report").Parse(`<html>
<body>
<h3>Azure Reserved Instance Report – {{.ReportDate}}</h3>
{{range .Alerts}}<p style="color:{{.Color}};">{{.Text}}</p>
{{end}}<table border="1" cellpadding="6" cellspacing="0">
<tr>
<th>RI ID</th>
<th>SKU</th>
<th>Region</th>
<th>Utilization (%)</th>
<th>Days Remaining</th>
<th>Status</th>
<th>Expiry</th>
</tr>
{{range .Rows}}<tr style="background-color:{{.Color}}">
<td>{{.ResourceID}}</td>
<td>{{.SKUName}}</td>
<td>{{.Region}}</td>
<td>{{.Utilization}}</td>
<td>{{.DaysRemaining}}</td>
<td>{{.Status}}</td>
<td>{{.ExpiryStatus}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))

type reportRow struct {
	ResourceID    string
	SKUName       string
	Region        string
	Utilization   string
	DaysRemaining string
	Status        model.UtilizationStatus
	ExpiryStatus  model.ExpiryStatus
	Color         string
}

type reportAlert struct {
	Text  string
	Color string
}

type reportData struct {
	ReportDate string
	Alerts     []reportAlert
	Rows       []reportRow
}

// RenderHTML renders a status-colored HTML report for one recipient's
// records. Alert paragraphs come first, then the full table.
func RenderHTML(records []model.AnalysisRecord, reportDate time.Time) (string, error) {
	data := reportData{ReportDate: reportDate.Format("2006-01-02")}

	for _, r := range records {
		if r.Alert != "" {
			data.Alerts = append(data.Alerts, reportAlert{
				Text:  r.Alert,
				Color: alertColor(r),
			})
		}

		data.Rows = append(data.Rows, reportRow{
			ResourceID:    r.ResourceID,
			SKUName:       r.SKUName,
			Region:        r.Region,
			Utilization:   formatUtilization(r),
			DaysRemaining: formatDaysRemaining(r),
			Status:        r.Status,
			ExpiryStatus:  r.ExpiryStatus,
			Color:         rowColor(r.Status),
		})
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("report: render failed: %w", err)
	}
	return buf.String(), nil
}

// RenderCSV renders the records as a CSV attachment.
func RenderCSV(records []model.AnalysisRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"subscription_id", "resource_id", "sku_name", "region",
		"utilization_percent", "days_remaining", "status", "expiry_status", "alert"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range records {
		row := []string{
			r.SubscriptionID,
			r.ResourceID,
			r.SKUName,
			r.Region,
			formatUtilization(r),
			formatDaysRemaining(r),
			string(r.Status),
			string(r.ExpiryStatus),
			r.Alert,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Subject builds the report subject line with a per-region alert count,
// e.g. "RI Utilization Report – 2024-12-20 (2 alerts: eastus: 1, westus: 1)".
func Subject(records []model.AnalysisRecord, reportDate time.Time) string {
	regionAlerts := make(map[string]int)
	total := 0
	for _, r := range records {
		if r.Alert == "" {
			continue
		}
		regionAlerts[r.Region]++
		total++
	}

	regions := make([]string, 0, len(regionAlerts))
	for region := range regionAlerts {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	parts := make([]string, 0, len(regions))
	for _, region := range regions {
		parts = append(parts, fmt.Sprintf("%s: %d", region, regionAlerts[region]))
	}

	return fmt.Sprintf("RI Utilization Report – %s (%d alerts: %s)",
		reportDate.Format("2006-01-02"), total, strings.Join(parts, ", "))
}

func formatUtilization(r model.AnalysisRecord) string {
	if r.Status == model.StatusMissingData && r.MissingDays > 0 && r.UtilizationPercent == 0 {
		return "-"
	}
	return strconv.FormatFloat(r.UtilizationPercent, 'f', 1, 64)
}

func formatDaysRemaining(r model.AnalysisRecord) string {
	if r.DaysRemaining == nil {
		return "-"
	}
	return strconv.Itoa(*r.DaysRemaining)
}

func rowColor(status model.UtilizationStatus) string {
	switch status {
	case model.StatusUnderutilized:
		return "#fff3cd"
	case model.StatusUnused:
		return "#f8d7da"
	case model.StatusMissingData:
		return "#e2e3e5"
	default:
		return "#d4edda"
	}
}

func alertColor(r model.AnalysisRecord) string {
	switch {
	case r.ExpiryStatus == model.ExpiryExpired, r.Status == model.StatusUnused:
		return "#721c24"
	default:
		return "#856404"
	}
}
