// Package handlers implements the alert query and lifecycle HTTP API.
// Ownership failures and missing records are deliberately
// indistinguishable: both answer 404, so callers cannot probe for the
// existence of other tenants' alerts.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coldtrace/internal/logger"
	"coldtrace/internal/metrics"
	"coldtrace/internal/middleware"
	"coldtrace/internal/models"
	"coldtrace/internal/storage"
)

// AlertsHandler serves the alert query/lifecycle endpoints
type AlertsHandler struct {
	store storage.Store
}

// NewAlertsHandler creates the handler over the given store
func NewAlertsHandler(store storage.Store) *AlertsHandler {
	return &AlertsHandler{store: store}
}

// Register wires the alert routes onto the mux, wrapped by the given
// middleware chain.
func (h *AlertsHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /api/alerts", wrap(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/alerts/{id}", wrap(http.HandlerFunc(h.Get)))
	mux.Handle("PATCH /api/alerts/{id}/status", wrap(http.HandlerFunc(h.UpdateStatus)))
	mux.Handle("PATCH /api/alerts/{id}/active", wrap(http.HandlerFunc(h.UpdateActive)))
	// "{id}/actions" would conflict with "shipment/{shipmentID}" under
	// ServeMux precedence rules, so subresources dispatch off a wildcard.
	// "shipment/{shipmentID}" is strictly more specific than "{id}/{sub}"
	// and still wins for those paths.
	mux.Handle("GET /api/alerts/{id}/{sub}", wrap(http.HandlerFunc(h.getSubresource)))
	mux.Handle("GET /api/alerts/shipment/{shipmentID}", wrap(http.HandlerFunc(h.ListForShipment)))
}

// getSubresource routes GET /api/alerts/{id}/{sub} to the matching
// subresource handler; unknown subresources answer 404.
func (h *AlertsHandler) getSubresource(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("sub") {
	case "actions":
		h.ListActions(w, r)
	default:
		writeError(w, http.StatusNotFound, models.ErrAlertNotFound.Error())
	}
}

// ListResponse is the alert listing payload
type ListResponse struct {
	Alerts     []models.Alert `json:"alerts"`
	TotalCount int            `json:"total_count"`
}

// List handles GET /api/alerts: all alerts across the caller's
// shipments, optionally filtered, paginated 25 per page newest-first.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	shipmentIDs, err := h.store.ShipmentIDsByUser(r.Context(), userID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if len(shipmentIDs) == 0 {
		writeJSON(w, http.StatusOK, ListResponse{Alerts: []models.Alert{}, TotalCount: 0})
		return
	}

	filter := storage.AlertFilter{
		Status: models.AlertStatus(r.URL.Query().Get("status")),
		Page:   pageParam(r),
	}

	// A shipment filter for a shipment the caller does not own is
	// ignored rather than rejected
	if want := r.URL.Query().Get("shipment_id"); want != "" {
		for _, id := range shipmentIDs {
			if id == want {
				filter.ShipmentID = want
				break
			}
		}
	}

	if raw := r.URL.Query().Get("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}

	alerts, total, err := h.store.AlertsByShipments(r.Context(), shipmentIDs, filter)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Alerts: alerts, TotalCount: total})
}

// Get handles GET /api/alerts/{id}
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.ownedAlert(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// UpdateStatus handles PATCH /api/alerts/{id}/status
func (h *AlertsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status *models.AlertStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == nil {
		writeError(w, http.StatusBadRequest, models.ErrMissingStatus.Error())
		return
	}
	if !body.Status.IsValid() {
		writeError(w, http.StatusBadRequest, models.ErrInvalidStatus.Error())
		return
	}

	alert, ok := h.ownedAlert(w, r)
	if !ok {
		return
	}

	updated, err := h.store.UpdateAlertStatus(r.Context(), alert.ID, *body.Status)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, models.ErrAlertNotFound.Error())
			return
		}
		metrics.PersistenceFailures.WithLabelValues("update_alert_status").Inc()
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// UpdateActive handles PATCH /api/alerts/{id}/active
func (h *AlertsHandler) UpdateActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Active == nil {
		writeError(w, http.StatusBadRequest, models.ErrMissingActive.Error())
		return
	}

	alert, ok := h.ownedAlert(w, r)
	if !ok {
		return
	}

	updated, err := h.store.SetAlertActive(r.Context(), alert.ID, *body.Active)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, models.ErrAlertNotFound.Error())
			return
		}
		metrics.PersistenceFailures.WithLabelValues("set_alert_active").Inc()
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// ActionsResponse is the action-log listing payload
type ActionsResponse struct {
	ActionLogs []models.ActionLog `json:"action_logs"`
	AlertID    int64              `json:"alert_id"`
	TotalCount int                `json:"total_count"`
}

// ListActions handles GET /api/alerts/{id}/actions
func (h *AlertsHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.ownedAlert(w, r)
	if !ok {
		return
	}

	logs, err := h.store.ActionLogsByAlert(r.Context(), alert.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ActionsResponse{
		ActionLogs: logs,
		AlertID:    alert.ID,
		TotalCount: len(logs),
	})
}

// ShipmentAlertsResponse is the per-shipment alert listing payload
type ShipmentAlertsResponse struct {
	Alerts     []models.Alert `json:"alerts"`
	ShipmentID string         `json:"shipment_id"`
	TotalCount int            `json:"total_count"`
}

// ListForShipment handles GET /api/alerts/shipment/{shipmentID}
func (h *AlertsHandler) ListForShipment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	shipmentID := r.PathValue("shipmentID")

	if _, err := h.store.ShipmentByIDAndUser(r.Context(), shipmentID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, models.ErrShipmentDenied.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	filter := storage.AlertFilter{
		Status: models.AlertStatus(r.URL.Query().Get("status")),
		Page:   pageParam(r),
	}

	alerts, total, err := h.store.AlertsByShipments(r.Context(), []string{shipmentID}, filter)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ShipmentAlertsResponse{
		Alerts:     alerts,
		ShipmentID: shipmentID,
		TotalCount: total,
	})
}

// ownedAlert resolves the {id} path value to an alert owned by the
// caller, writing a 404 and returning ok=false otherwise.
func (h *AlertsHandler) ownedAlert(w http.ResponseWriter, r *http.Request) (*models.Alert, bool) {
	alertID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, models.ErrAlertNotFound.Error())
		return nil, false
	}

	alert, err := h.store.AlertByID(r.Context(), alertID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, models.ErrAlertNotFound.Error())
			return nil, false
		}
		h.serverError(w, r, err)
		return nil, false
	}

	if _, err := h.store.ShipmentByIDAndUser(r.Context(), alert.ShipmentID, middleware.UserID(r)); err != nil {
		// Not owned reads the same as not found
		writeError(w, http.StatusNotFound, models.ErrAlertNotFound.Error())
		return nil, false
	}

	return alert, true
}

func (h *AlertsHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.WithComponent("handlers")
	log.Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
