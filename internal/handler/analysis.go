package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/riwatch/backend/internal/apierrors"
	"github.com/riwatch/backend/internal/model"
	"github.com/riwatch/backend/internal/report"
	"github.com/riwatch/backend/internal/repository"
)

// AnalysisRunner computes analysis runs against a reference date.
// Analyze computes without persisting; RunAnalysis also archives the
// run.
type AnalysisRunner interface {
	Analyze(ctx context.Context, referenceDate time.Time) (*model.AnalysisRun, error)
	RunAnalysis(ctx context.Context, referenceDate time.Time) (*model.AnalysisRun, error)
}

// AnalysisHandler serves analysis run endpoints.
type AnalysisHandler struct {
	runRepo   repository.RunRepository
	usageRepo repository.UsageRepository
	runner    AnalysisRunner
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(runRepo repository.RunRepository, usageRepo repository.UsageRepository, runner AnalysisRunner) *AnalysisHandler {
	return &AnalysisHandler{runRepo: runRepo, usageRepo: usageRepo, runner: runner}
}

// GetLatest handles GET /api/v1/analysis. Without a date parameter it
// returns the latest archived run; with one it computes a run on demand
// for that reference date without archiving it.
func (h *AnalysisHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	referenceDate, err := parseDate(r, "date", time.Time{})
	if err != nil {
		apierrors.NewBadRequestError("date must be YYYY-MM-DD").Write(w, r)
		return
	}

	if !referenceDate.IsZero() {
		run, err := h.runner.Analyze(r.Context(), referenceDate)
		if err != nil {
			apierrors.NewInternalError("analysis failed").Write(w, r)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	run, err := h.runRepo.GetLatest(r.Context())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apierrors.NewNotFoundError("analysis run", "latest").Write(w, r)
			return
		}
		apierrors.NewInternalError("failed to load analysis run").Write(w, r)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/v1/analysis/runs
func (h *AnalysisHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	pagination := model.Pagination{
		Page:     parseInt(r, "page", 1),
		PageSize: parseInt(r, "page_size", 20),
	}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.PageSize < 1 || pagination.PageSize > 100 {
		pagination.PageSize = 20
	}

	runs, total, err := h.runRepo.List(r.Context(), pagination)
	if err != nil {
		apierrors.NewInternalError("failed to list analysis runs").Write(w, r)
		return
	}

	pagination.Total = total
	if runs == nil {
		runs = []*model.AnalysisRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":       runs,
		"pagination": pagination,
	})
}

// Run handles POST /api/v1/analysis/run. The optional date query
// parameter sets the reference date; it defaults to the latest
// ingested report date.
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	referenceDate, err := parseDate(r, "date", time.Time{})
	if err != nil {
		apierrors.NewBadRequestError("date must be YYYY-MM-DD").Write(w, r)
		return
	}

	if referenceDate.IsZero() {
		referenceDate, err = h.usageRepo.LatestReportDate(r.Context())
		if err != nil {
			apierrors.NewValidationError("no usage data available to analyze", nil).Write(w, r)
			return
		}
	}

	run, err := h.runner.RunAnalysis(r.Context(), referenceDate)
	if err != nil {
		apierrors.NewInternalError("analysis run failed").Write(w, r)
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

// ExportCSV handles GET /api/v1/analysis/export.csv, exporting the
// latest run as a CSV download.
func (h *AnalysisHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	run, err := h.runRepo.GetLatest(r.Context())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apierrors.NewNotFoundError("analysis run", "latest").Write(w, r)
			return
		}
		apierrors.NewInternalError("failed to load analysis run").Write(w, r)
		return
	}

	data, err := report.RenderCSV(run.Records)
	if err != nil {
		apierrors.NewInternalError("failed to render CSV").Write(w, r)
		return
	}

	filename := fmt.Sprintf("ri_analysis_%s.csv", run.ReferenceDate.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
