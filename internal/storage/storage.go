// Package storage persists alerts and action logs and answers the
// shipment roster and ownership queries the monitor and API need.
package storage

import (
	"context"
	"errors"

	"coldtrace/internal/models"
)

// PageSize is the fixed page size for alert listings
const PageSize = 25

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// AlertFilter narrows an alert listing. Zero values mean "no filter".
type AlertFilter struct {
	ShipmentID string
	Status     models.AlertStatus
	Active     *bool
	// Page is 1-indexed; values below 1 are treated as 1
	Page int
}

// Store is the persistence boundary. Alert writes are transactional:
// any failure rolls back and surfaces an error, partial writes never
// become visible.
type Store interface {
	// ActiveShipments returns the monitoring roster
	ActiveShipments(ctx context.Context) ([]models.Shipment, error)

	// ShipmentIDsByUser returns the ids of every shipment the user owns
	ShipmentIDsByUser(ctx context.Context, userID string) ([]string, error)

	// ShipmentByIDAndUser resolves a shipment only if the user owns it;
	// ErrNotFound otherwise
	ShipmentByIDAndUser(ctx context.Context, shipmentID, userID string) (*models.Shipment, error)

	// CreateAlert inserts a new alert with status=active, active=true
	CreateAlert(ctx context.Context, shipmentID string, breachType models.BreachType, severity models.Severity, message string) (*models.Alert, error)

	// AlertByID fetches one alert; ErrNotFound when absent
	AlertByID(ctx context.Context, alertID int64) (*models.Alert, error)

	// AlertsByShipments lists alerts for the given shipments, filtered
	// and paginated, newest first. The returned total counts every
	// matching row across all pages.
	AlertsByShipments(ctx context.Context, shipmentIDs []string, filter AlertFilter) ([]models.Alert, int, error)

	// UpdateAlertStatus transitions the alert's status, writing an
	// action log only when the value actually changes and stamping
	// resolved_at exactly once on first entering resolved.
	UpdateAlertStatus(ctx context.Context, alertID int64, status models.AlertStatus) (*models.Alert, error)

	// SetAlertActive flips the alert's active flag
	SetAlertActive(ctx context.Context, alertID int64, active bool) (*models.Alert, error)

	// ActionLogsByAlert lists an alert's action logs, newest first
	ActionLogsByAlert(ctx context.Context, alertID int64) ([]models.ActionLog, error)

	// Ping reports storage health
	Ping(ctx context.Context) error

	Close() error
}
