// Package repository defines data access interfaces.
package repository

import (
	"context"
	"time"

	"github.com/riwatch/backend/internal/model"
)

// UsageRepository defines RI usage observation access methods.
type UsageRepository interface {
	CreateBatch(ctx context.Context, observations []model.UsageObservation) error
	GetHistory(ctx context.Context, filter model.HistoryFilter) ([]model.UsageObservation, error)
	GetHistories(ctx context.Context, windowDays int, endDate time.Time) (map[model.RIKey][]model.UsageObservation, error)
	ListRIKeys(ctx context.Context) ([]model.RIKey, error)
	LatestReportDate(ctx context.Context) (time.Time, error)
}

// RunRepository archives completed analysis runs.
type RunRepository interface {
	Create(ctx context.Context, run *model.AnalysisRun) error
	GetLatest(ctx context.Context) (*model.AnalysisRun, error)
	List(ctx context.Context, pagination model.Pagination) ([]*model.AnalysisRun, int, error)
}
