package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/riwatch/backend/internal/model"
)

// PostgresRunRepository implements RunRepository for PostgreSQL.
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgresRunRepository.
func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (r *PostgresRunRepository) Create(ctx context.Context, run *model.AnalysisRun) error {
	recordsJSON, err := json.Marshal(run.Records)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, reference_date, records, error_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.ReferenceDate, recordsJSON, run.ErrorCount, run.CreatedAt)
	return err
}

func (r *PostgresRunRepository) GetLatest(ctx context.Context) (*model.AnalysisRun, error) {
	var run model.AnalysisRun
	var recordsJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, reference_date, records, error_count, created_at
		FROM analysis_runs ORDER BY created_at DESC LIMIT 1
	`).Scan(&run.ID, &run.ReferenceDate, &recordsJSON, &run.ErrorCount, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(recordsJSON, &run.Records)
	return &run, nil
}

func (r *PostgresRunRepository) List(ctx context.Context, pagination model.Pagination) ([]*model.AnalysisRun, int, error) {
	var total int
	r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_runs").Scan(&total)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, reference_date, records, error_count, created_at
		FROM analysis_runs ORDER BY created_at DESC LIMIT %d OFFSET %d
	`, pagination.PageSize, (pagination.Page-1)*pagination.PageSize))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.AnalysisRun
	for rows.Next() {
		var run model.AnalysisRun
		var recordsJSON []byte
		err := rows.Scan(&run.ID, &run.ReferenceDate, &recordsJSON, &run.ErrorCount, &run.CreatedAt)
		if err != nil {
			return nil, 0, err
		}
		json.Unmarshal(recordsJSON, &run.Records)
		runs = append(runs, &run)
	}
	return runs, total, rows.Err()
}

// EnsureTable creates the analysis_runs table if it doesn't exist.
func (r *PostgresRunRepository) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id UUID PRIMARY KEY,
			reference_date DATE NOT NULL,
			records JSONB NOT NULL DEFAULT '[]',
			error_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analysis_runs table: %w", err)
	}

	r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_analysis_runs_created ON analysis_runs (created_at DESC)`)
	return nil
}
