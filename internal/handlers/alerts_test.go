package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"coldtrace/internal/handlers"
	"coldtrace/internal/logger"
	"coldtrace/internal/middleware"
	"coldtrace/internal/models"
	"coldtrace/internal/storage"
)

const testSecret = "test-secret"

func TestMain(m *testing.M) {
	logger.Init("error")
	m.Run()
}

func newTestMux(store storage.Store) *http.ServeMux {
	mux := http.NewServeMux()
	handlers.NewAlertsHandler(store).Register(mux, func(h http.Handler) http.Handler {
		return middleware.Chain(
			h,
			middleware.Recovery,
			middleware.Logging,
			middleware.Auth(testSecret),
		)
	})
	return mux
}

func token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func do(t *testing.T, mux *http.ServeMux, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// fixtureStore seeds two users with one shipment each
func fixtureStore(t *testing.T) *storage.Memory {
	t.Helper()
	store := storage.NewMemory()
	store.PutShipment(models.Shipment{
		ID: "ship-1", UserID: "user-1", Name: "Berlin vaccines",
		Status: models.ShipmentStatusActive,
	})
	store.PutShipment(models.Shipment{
		ID: "ship-2", UserID: "user-2", Name: "Oslo seafood",
		Status: models.ShipmentStatusActive,
	})
	return store
}

func seedAlert(t *testing.T, store *storage.Memory, shipmentID string) *models.Alert {
	t.Helper()
	alert, err := store.CreateAlert(context.Background(), shipmentID,
		models.BreachTemperature, models.SeverityMedium, "Temperature breach: 9°C (required: 2°C - 8°C)")
	if err != nil {
		t.Fatalf("failed to seed alert: %v", err)
	}
	return alert
}

func TestListRequiresAuth(t *testing.T) {
	mux := newTestMux(fixtureStore(t))

	if rec := do(t, mux, http.MethodGet, "/api/alerts", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestListRejectsBadToken(t *testing.T) {
	mux := newTestMux(fixtureStore(t))

	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestListEmptyWhenUserOwnsNoShipments(t *testing.T) {
	mux := newTestMux(fixtureStore(t))

	rec := do(t, mux, http.MethodGet, "/api/alerts", "user-3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp handlers.ListResponse
	decode(t, rec, &resp)
	if len(resp.Alerts) != 0 || resp.TotalCount != 0 {
		t.Errorf("expected empty listing, got %+v", resp)
	}
}

func TestListReturnsOnlyOwnAlertsNewestFirst(t *testing.T) {
	store := fixtureStore(t)
	first := seedAlert(t, store, "ship-1")
	second := seedAlert(t, store, "ship-1")
	seedAlert(t, store, "ship-2") // other tenant
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodGet, "/api/alerts", "user-1", "")
	var resp handlers.ListResponse
	decode(t, rec, &resp)

	if resp.TotalCount != 2 || len(resp.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %+v", resp)
	}
	if resp.Alerts[0].ID != second.ID || resp.Alerts[1].ID != first.ID {
		t.Errorf("alerts not newest-first: %v, %v", resp.Alerts[0].ID, resp.Alerts[1].ID)
	}
}

func TestListPagination(t *testing.T) {
	store := fixtureStore(t)
	for i := 0; i < 30; i++ {
		seedAlert(t, store, "ship-1")
	}
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodGet, "/api/alerts?page=2", "user-1", "")
	var resp handlers.ListResponse
	decode(t, rec, &resp)

	if resp.TotalCount != 30 {
		t.Errorf("total_count = %d, want 30", resp.TotalCount)
	}
	if len(resp.Alerts) != 5 {
		t.Fatalf("page 2 size = %d, want 5", len(resp.Alerts))
	}
	// newest-first: page 2 of 30 holds ids 5..1
	if resp.Alerts[0].ID != 5 || resp.Alerts[4].ID != 1 {
		t.Errorf("page 2 ids = %d..%d, want 5..1", resp.Alerts[0].ID, resp.Alerts[4].ID)
	}
}

func TestListStatusFilter(t *testing.T) {
	store := fixtureStore(t)
	resolved := seedAlert(t, store, "ship-1")
	seedAlert(t, store, "ship-1")
	if _, err := store.UpdateAlertStatus(context.Background(), resolved.ID, models.AlertStatusResolved); err != nil {
		t.Fatal(err)
	}
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodGet, "/api/alerts?status=resolved", "user-1", "")
	var resp handlers.ListResponse
	decode(t, rec, &resp)

	if resp.TotalCount != 1 || len(resp.Alerts) != 1 || resp.Alerts[0].ID != resolved.ID {
		t.Errorf("status filter failed: %+v", resp)
	}
}

func TestListIgnoresUnownedShipmentFilter(t *testing.T) {
	store := fixtureStore(t)
	seedAlert(t, store, "ship-1")
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodGet, "/api/alerts?shipment_id=ship-2", "user-1", "")
	var resp handlers.ListResponse
	decode(t, rec, &resp)

	// the foreign shipment filter is ignored, not honored
	if resp.TotalCount != 1 {
		t.Errorf("total_count = %d, want 1", resp.TotalCount)
	}
}

func TestGetAlert(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodGet, fmt.Sprintf("/api/alerts/%d", alert.ID), "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got models.Alert
	decode(t, rec, &got)
	if got.ID != alert.ID || got.ShipmentID != "ship-1" {
		t.Errorf("got %+v", got)
	}
	if got.ResolvedAt != nil {
		t.Errorf("fresh alert should have null resolved_at")
	}
}

func TestGetAlertOwnershipCollapsesTo404(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	mux := newTestMux(store)

	// another tenant's alert must read exactly like a missing one
	rec := do(t, mux, http.MethodGet, fmt.Sprintf("/api/alerts/%d", alert.ID), "user-2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	missing := do(t, mux, http.MethodGet, "/api/alerts/9999", "user-2", "")
	if missing.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", missing.Code)
	}
	if rec.Body.String() != missing.Body.String() {
		t.Errorf("ownership failure and not-found must be indistinguishable: %q vs %q",
			rec.Body.String(), missing.Body.String())
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	mux := newTestMux(store)
	path := fmt.Sprintf("/api/alerts/%d/status", alert.ID)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing body", "", http.StatusBadRequest},
		{"missing field", `{}`, http.StatusBadRequest},
		{"invalid status", `{"status":"closed"}`, http.StatusBadRequest},
		{"valid", `{"status":"inprogress"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPatch, path, "user-1", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %q)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestUpdateStatusWritesActionLogOnChangeOnly(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	mux := newTestMux(store)
	path := fmt.Sprintf("/api/alerts/%d/status", alert.ID)

	do(t, mux, http.MethodPatch, path, "user-1", `{"status":"inprogress"}`)
	do(t, mux, http.MethodPatch, path, "user-1", `{"status":"inprogress"}`) // no-op

	logs, err := store.ActionLogsByAlert(context.Background(), alert.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("action logs = %d, want 1 (no log for unchanged status)", len(logs))
	}
	if logs[0].ActionType != "status_change_inprogress" || logs[0].Status != "completed" {
		t.Errorf("unexpected action log %+v", logs[0])
	}
	if logs[0].Details != "Alert status changed from 'active' to 'inprogress'" {
		t.Errorf("details = %q", logs[0].Details)
	}
	if logs[0].CompletedAt == nil {
		t.Error("completed action log should carry completed_at")
	}
}

func TestResolveStampsResolvedAtExactlyOnce(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	mux := newTestMux(store)
	path := fmt.Sprintf("/api/alerts/%d/status", alert.ID)

	rec := do(t, mux, http.MethodPatch, path, "user-1", `{"status":"resolved"}`)
	var first models.Alert
	decode(t, rec, &first)
	if first.ResolvedAt == nil {
		t.Fatal("resolved_at not set on first resolve")
	}

	// flip away and back: the original timestamp must survive
	do(t, mux, http.MethodPatch, path, "user-1", `{"status":"active"}`)
	rec = do(t, mux, http.MethodPatch, path, "user-1", `{"status":"resolved"}`)
	var second models.Alert
	decode(t, rec, &second)

	if second.ResolvedAt == nil || !second.ResolvedAt.Equal(*first.ResolvedAt) {
		t.Errorf("resolved_at changed: %v -> %v", first.ResolvedAt, second.ResolvedAt)
	}
}

func TestUpdateStatusOwnership(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodPatch, fmt.Sprintf("/api/alerts/%d/status", alert.ID),
		"user-2", `{"status":"resolved"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateActive(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	mux := newTestMux(store)
	path := fmt.Sprintf("/api/alerts/%d/active", alert.ID)

	if rec := do(t, mux, http.MethodPatch, path, "user-1", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing active: status = %d, want 400", rec.Code)
	}

	rec := do(t, mux, http.MethodPatch, path, "user-1", `{"active":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.Alert
	decode(t, rec, &got)
	if got.Active {
		t.Error("active flag not cleared")
	}
	if got.Status != models.AlertStatusActive {
		t.Errorf("active flag must not touch status, got %q", got.Status)
	}
}

func TestListActions(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	if _, err := store.UpdateAlertStatus(context.Background(), alert.ID, models.AlertStatusResolved); err != nil {
		t.Fatal(err)
	}
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodGet, fmt.Sprintf("/api/alerts/%d/actions", alert.ID), "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp handlers.ActionsResponse
	decode(t, rec, &resp)
	if resp.AlertID != alert.ID || resp.TotalCount != 1 || len(resp.ActionLogs) != 1 {
		t.Errorf("got %+v", resp)
	}

	denied := do(t, mux, http.MethodGet, fmt.Sprintf("/api/alerts/%d/actions", alert.ID), "user-2", "")
	if denied.Code != http.StatusNotFound {
		t.Errorf("foreign user status = %d, want 404", denied.Code)
	}
}

func TestUnknownSubresourceIs404(t *testing.T) {
	store := fixtureStore(t)
	alert := seedAlert(t, store, "ship-1")
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodGet, fmt.Sprintf("/api/alerts/%d/history", alert.ID), "user-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListForShipment(t *testing.T) {
	store := fixtureStore(t)
	seedAlert(t, store, "ship-1")
	seedAlert(t, store, "ship-1")
	mux := newTestMux(store)

	rec := do(t, mux, http.MethodGet, "/api/alerts/shipment/ship-1", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp handlers.ShipmentAlertsResponse
	decode(t, rec, &resp)
	if resp.ShipmentID != "ship-1" || resp.TotalCount != 2 {
		t.Errorf("got %+v", resp)
	}

	denied := do(t, mux, http.MethodGet, "/api/alerts/shipment/ship-1", "user-2", "")
	if denied.Code != http.StatusNotFound {
		t.Errorf("foreign user status = %d, want 404", denied.Code)
	}
}
