// Package repository provides PostgreSQL repository implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/riwatch/backend/internal/model"
)

// PostgresUsageRepository implements UsageRepository for PostgreSQL.
type PostgresUsageRepository struct {
	db *sql.DB
}

// NewPostgresUsageRepository creates a new PostgresUsageRepository.
func NewPostgresUsageRepository(db *sql.DB) *PostgresUsageRepository {
	return &PostgresUsageRepository{db: db}
}

// EnsureTable creates the ri_usage table if it doesn't exist.
func (r *PostgresUsageRepository) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ri_usage (
			subscription_id VARCHAR(128) NOT NULL,
			resource_id     VARCHAR(512) NOT NULL,
			report_date     DATE NOT NULL,
			usage_quantity  DOUBLE PRECISION NOT NULL,
			sku_name        VARCHAR(128) NOT NULL DEFAULT '',
			region          VARCHAR(64) NOT NULL DEFAULT '',
			purchase_date   DATE,
			term_months     INTEGER NOT NULL DEFAULT 0,
			email_recipient VARCHAR(255) NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (subscription_id, resource_id, report_date)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ri_usage table: %w", err)
	}

	r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_ri_usage_report_date ON ri_usage (report_date)`)
	return nil
}

// CreateBatch upserts a batch of daily observations. Re-imports of the
// same report date overwrite the previous row, so the latest ingested
// values win for static RI attributes.
func (r *PostgresUsageRepository) CreateBatch(ctx context.Context, observations []model.UsageObservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ri_usage (subscription_id, resource_id, report_date, usage_quantity, sku_name, region, purchase_date, term_months, email_recipient)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (subscription_id, resource_id, report_date)
		DO UPDATE SET usage_quantity = EXCLUDED.usage_quantity, sku_name = EXCLUDED.sku_name,
			region = EXCLUDED.region, purchase_date = EXCLUDED.purchase_date,
			term_months = EXCLUDED.term_months, email_recipient = EXCLUDED.email_recipient
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range observations {
		var purchase sql.NullTime
		if !o.PurchaseDate.IsZero() {
			purchase = sql.NullTime{Time: o.PurchaseDate, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, o.SubscriptionID, o.ResourceID, o.ReportDate, o.UsageQuantity,
			o.SKUName, o.Region, purchase, o.TermMonths, o.EmailRecipient)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetHistory returns one RI's observations over a trailing window,
// ascending by report date.
func (r *PostgresUsageRepository) GetHistory(ctx context.Context, filter model.HistoryFilter) ([]model.UsageObservation, error) {
	end := filter.EndDate
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := end.AddDate(0, 0, -(filter.WindowDays - 1))

	rows, err := r.db.QueryContext(ctx, `
		SELECT subscription_id, resource_id, report_date, usage_quantity, sku_name, region, purchase_date, term_months, email_recipient
		FROM ri_usage
		WHERE subscription_id = $1 AND resource_id = $2 AND report_date >= $3 AND report_date <= $4
		ORDER BY report_date ASC
	`, filter.Key.SubscriptionID, filter.Key.ResourceID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetHistories returns every RI's observations over a trailing window in
// a single query, grouped by RI identity and ascending by report date.
func (r *PostgresUsageRepository) GetHistories(ctx context.Context, windowDays int, endDate time.Time) (map[model.RIKey][]model.UsageObservation, error) {
	start := endDate.AddDate(0, 0, -(windowDays - 1))

	rows, err := r.db.QueryContext(ctx, `
		SELECT subscription_id, resource_id, report_date, usage_quantity, sku_name, region, purchase_date, term_months, email_recipient
		FROM ri_usage
		WHERE report_date >= $1 AND report_date <= $2
		ORDER BY subscription_id, resource_id, report_date ASC
	`, start, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	observations, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}

	histories := make(map[model.RIKey][]model.UsageObservation)
	for _, o := range observations {
		histories[o.Key()] = append(histories[o.Key()], o)
	}
	return histories, nil
}

// ListRIKeys returns the distinct RI identities present in the store.
func (r *PostgresUsageRepository) ListRIKeys(ctx context.Context) ([]model.RIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT subscription_id, resource_id FROM ri_usage ORDER BY subscription_id, resource_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.RIKey
	for rows.Next() {
		var k model.RIKey
		if err := rows.Scan(&k.SubscriptionID, &k.ResourceID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// LatestReportDate returns the most recent report date in the store.
func (r *PostgresUsageRepository) LatestReportDate(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT MAX(report_date) FROM ri_usage`).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, errors.New("repository: no usage data ingested yet")
	}
	return latest.Time, nil
}

func scanObservations(rows *sql.Rows) ([]model.UsageObservation, error) {
	var observations []model.UsageObservation
	for rows.Next() {
		var o model.UsageObservation
		var purchase sql.NullTime
		err := rows.Scan(&o.SubscriptionID, &o.ResourceID, &o.ReportDate, &o.UsageQuantity,
			&o.SKUName, &o.Region, &purchase, &o.TermMonths, &o.EmailRecipient)
		if err != nil {
			return nil, err
		}
		if purchase.Valid {
			o.PurchaseDate = purchase.Time
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}
