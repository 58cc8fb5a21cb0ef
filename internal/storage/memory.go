package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coldtrace/internal/models"
)

// Memory is an in-memory Store used in tests and local development.
// Behavior mirrors the Postgres implementation, including the
// resolved_at and action-log semantics of status transitions.
type Memory struct {
	mu         sync.Mutex
	shipments  map[string]models.Shipment
	alerts     map[int64]models.Alert
	actionLogs map[int64][]models.ActionLog
	nextAlert  int64
	nextAction int64

	// FailCreateAlert makes CreateAlert return an error, for exercising
	// the monitor's persistence-failure path
	FailCreateAlert bool
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		shipments:  make(map[string]models.Shipment),
		alerts:     make(map[int64]models.Alert),
		actionLogs: make(map[int64][]models.ActionLog),
	}
}

// PutShipment inserts or replaces a shipment fixture
func (m *Memory) PutShipment(s models.Shipment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shipments[s.ID] = s
}

func (m *Memory) ActiveShipments(ctx context.Context) ([]models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Shipment
	for _, s := range m.shipments {
		if s.Status == models.ShipmentStatusActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ShipmentIDsByUser(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, s := range m.shipments {
		if s.UserID == userID {
			ids = append(ids, s.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) ShipmentByIDAndUser(ctx context.Context, shipmentID, userID string) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shipments[shipmentID]
	if !ok || s.UserID != userID {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) CreateAlert(ctx context.Context, shipmentID string, breachType models.BreachType, severity models.Severity, message string) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCreateAlert {
		return nil, fmt.Errorf("simulated persistence failure")
	}

	m.nextAlert++
	alert := models.Alert{
		ID:         m.nextAlert,
		ShipmentID: shipmentID,
		Type:       breachType,
		Severity:   severity,
		Message:    message,
		Status:     models.AlertStatusActive,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	m.alerts[alert.ID] = alert
	return &alert, nil
}

func (m *Memory) AlertByID(ctx context.Context, alertID int64) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) AlertsByShipments(ctx context.Context, shipmentIDs []string, filter AlertFilter) ([]models.Alert, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := make(map[string]bool, len(shipmentIDs))
	for _, id := range shipmentIDs {
		owned[id] = true
	}

	var matched []models.Alert
	for _, a := range m.alerts {
		if !owned[a.ShipmentID] {
			continue
		}
		if filter.ShipmentID != "" && a.ShipmentID != filter.ShipmentID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Active != nil && a.Active != *filter.Active {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * PageSize
	if start >= total {
		return []models.Alert{}, total, nil
	}
	end := start + PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *Memory) UpdateAlertStatus(ctx context.Context, alertID int64, status models.AlertStatus) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[alertID]
	if !ok {
		return nil, ErrNotFound
	}

	oldStatus := alert.Status
	alert.Status = status

	if status == models.AlertStatusResolved && alert.ResolvedAt == nil {
		now := time.Now().UTC()
		alert.ResolvedAt = &now
	}

	if oldStatus != status {
		m.nextAction++
		now := time.Now().UTC()
		m.actionLogs[alertID] = append(m.actionLogs[alertID], models.ActionLog{
			ID:          m.nextAction,
			AlertID:     alertID,
			ActionType:  fmt.Sprintf("status_change_%s", status),
			Status:      "completed",
			Details:     fmt.Sprintf("Alert status changed from '%s' to '%s'", oldStatus, status),
			CreatedAt:   now,
			CompletedAt: &now,
		})
	}

	m.alerts[alertID] = alert
	return &alert, nil
}

func (m *Memory) SetAlertActive(ctx context.Context, alertID int64, active bool) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[alertID]
	if !ok {
		return nil, ErrNotFound
	}
	alert.Active = active
	m.alerts[alertID] = alert
	return &alert, nil
}

func (m *Memory) ActionLogsByAlert(ctx context.Context, alertID int64) ([]models.ActionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs := append([]models.ActionLog{}, m.actionLogs[alertID]...)
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID > logs[j].ID })
	return logs, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
