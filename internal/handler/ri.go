// Package handler provides HTTP handlers for the RI utilization API.
package handler

import (
	"net/http"
	"time"

	"github.com/riwatch/backend/internal/apierrors"
	"github.com/riwatch/backend/internal/model"
	"github.com/riwatch/backend/internal/repository"
)

// RIHandler serves reserved instance inventory and history endpoints.
type RIHandler struct {
	usageRepo  repository.UsageRepository
	windowDays int
}

// NewRIHandler creates a new RIHandler. windowDays is the default
// history window when the request does not specify one.
func NewRIHandler(usageRepo repository.UsageRepository, windowDays int) *RIHandler {
	return &RIHandler{usageRepo: usageRepo, windowDays: windowDays}
}

// List handles GET /api/v1/ris
func (h *RIHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.usageRepo.ListRIKeys(r.Context())
	if err != nil {
		apierrors.NewInternalError("failed to list reserved instances").Write(w, r)
		return
	}

	if keys == nil {
		keys = []model.RIKey{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ris":   keys,
		"count": len(keys),
	})
}

// History handles GET /api/v1/ris/history
func (h *RIHandler) History(w http.ResponseWriter, r *http.Request) {
	subscriptionID := r.URL.Query().Get("subscription_id")
	resourceID := r.URL.Query().Get("resource_id")
	if subscriptionID == "" || resourceID == "" {
		apierrors.NewBadRequestError("subscription_id and resource_id are required").Write(w, r)
		return
	}

	endDate, err := parseDate(r, "end_date", time.Time{})
	if err != nil {
		apierrors.NewBadRequestError("end_date must be YYYY-MM-DD").Write(w, r)
		return
	}

	filter := model.HistoryFilter{
		Key:        model.RIKey{SubscriptionID: subscriptionID, ResourceID: resourceID},
		WindowDays: parseInt(r, "window_days", h.windowDays),
		EndDate:    endDate,
	}
	if filter.WindowDays < 1 {
		apierrors.NewBadRequestError("window_days must be at least 1").Write(w, r)
		return
	}

	history, err := h.usageRepo.GetHistory(r.Context(), filter)
	if err != nil {
		apierrors.NewInternalError("failed to load usage history").Write(w, r)
		return
	}

	if history == nil {
		history = []model.UsageObservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscription_id": subscriptionID,
		"resource_id":     resourceID,
		"window_days":     filter.WindowDays,
		"observations":    history,
	})
}
