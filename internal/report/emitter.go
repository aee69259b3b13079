package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/riwatch/backend/internal/model"
	"github.com/riwatch/backend/internal/notification"
)

// Sender delivers a rendered report to one recipient.
type Sender interface {
	Send(ctx context.Context, msg notification.Message) error
}

// Archiver stores a rendered report artifact.
type Archiver interface {
	Store(ctx context.Context, reportDate time.Time, name string, contentType string, content []byte) error
}

// Emitter groups analysis records by recipient and sends one report per
// recipient, optionally archiving the rendered artifacts.
type Emitter struct {
	sender           Sender
	archiver         Archiver
	defaultRecipient string
	logger           *slog.Logger
}

// NewEmitter creates a new report emitter. archiver may be nil.
func NewEmitter(sender Sender, archiver Archiver, defaultRecipient string, logger *slog.Logger) *Emitter {
	return &Emitter{
		sender:           sender,
		archiver:         archiver,
		defaultRecipient: defaultRecipient,
		logger:           logger,
	}
}

// Emit renders and delivers per-recipient reports for a completed run.
// Records without a recipient fall back to the default recipient and
// are skipped when none is configured. Delivery failures for one
// recipient do not block the others.
func (e *Emitter) Emit(ctx context.Context, run *model.AnalysisRun) error {
	grouped := e.groupByRecipient(run.Records)
	if len(grouped) == 0 {
		e.logger.Info("no report recipients, skipping emit", "run_id", run.ID)
		return nil
	}

	recipients := make([]string, 0, len(grouped))
	for recipient := range grouped {
		recipients = append(recipients, recipient)
	}
	sort.Strings(recipients)

	var errs []string
	for _, recipient := range recipients {
		if err := e.emitOne(ctx, recipient, grouped[recipient], run.ReferenceDate); err != nil {
			e.logger.Error("report emit failed", "recipient", recipient, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", recipient, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("report errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (e *Emitter) emitOne(ctx context.Context, recipient string, records []model.AnalysisRecord, reportDate time.Time) error {
	html, err := RenderHTML(records, reportDate)
	if err != nil {
		return err
	}
	csvData, err := RenderCSV(records)
	if err != nil {
		return err
	}

	csvName := fmt.Sprintf("%s_%s.csv", safeName(recipient), reportDate.Format("2006-01-02"))

	msg := notification.Message{
		Recipient: recipient,
		Subject:   Subject(records, reportDate),
		HTMLBody:  html,
		Attachments: []notification.Attachment{
			{Name: csvName, ContentType: "text/csv", Content: csvData},
		},
	}

	if err := e.sender.Send(ctx, msg); err != nil {
		return err
	}

	if e.archiver != nil {
		htmlName := fmt.Sprintf("%s_%s.html", safeName(recipient), reportDate.Format("2006-01-02"))
		if err := e.archiver.Store(ctx, reportDate, htmlName, "text/html", []byte(html)); err != nil {
			e.logger.Warn("report archive failed", "name", htmlName, "error", err)
		}
		if err := e.archiver.Store(ctx, reportDate, csvName, "text/csv", csvData); err != nil {
			e.logger.Warn("report archive failed", "name", csvName, "error", err)
		}
	}

	e.logger.Info("report emitted", "recipient", recipient, "records", len(records))
	return nil
}

func (e *Emitter) groupByRecipient(records []model.AnalysisRecord) map[string][]model.AnalysisRecord {
	grouped := make(map[string][]model.AnalysisRecord)
	for _, r := range records {
		recipient := r.EmailRecipient
		if recipient == "" {
			recipient = e.defaultRecipient
		}
		if recipient == "" {
			e.logger.Warn("record has no recipient, skipping",
				"subscription_id", r.SubscriptionID, "resource_id", r.ResourceID)
			continue
		}
		grouped[recipient] = append(grouped[recipient], r)
	}
	return grouped
}

func safeName(recipient string) string {
	s := strings.ReplaceAll(recipient, "@", "_at_")
	return strings.ReplaceAll(s, ".", "_")
}
