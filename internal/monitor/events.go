package monitor

import (
	"time"

	"coldtrace/internal/models"
)

// Realtime event names, one channel per shipment owner
const (
	EventTelemetry = "temperature_alert"
	EventBreach    = "breach_alert"
)

// TelemetryEvent is broadcast for every active shipment on every tick,
// regardless of deduplication, so live dashboards always see raw values.
type TelemetryEvent struct {
	Timestamp           time.Time `json:"timestamp"`
	Latitude            *string   `json:"latitude"`
	Longitude           *string   `json:"longitude"`
	InternalTemperature float64   `json:"internal_temperature"`
	ExternalTemperature float64   `json:"external_temperature"`
	Humidity            float64   `json:"humidity"`
	ShipmentID          string    `json:"shipment_id"`
	Breach              bool      `json:"breach"`
	BreachType          string    `json:"breach_type"`
}

// BreachEvent is sent only when the deduplicator lets an alert through
type BreachEvent struct {
	Message      string          `json:"message"`
	Severity     models.Severity `json:"severity"`
	ShipmentID   string          `json:"shipment_id"`
	ShipmentName string          `json:"shipment_name"`
	ID           int64           `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewTelemetryEvent builds the per-tick broadcast payload for one
// shipment. Coordinates are parsed best-effort from the shipment's
// current location; malformed strings yield null coordinates.
func NewTelemetryEvent(reading models.Reading, shipment *models.Shipment, verdict models.Verdict) TelemetryEvent {
	ev := TelemetryEvent{
		Timestamp:           reading.Timestamp,
		InternalTemperature: reading.InternalTemp,
		ExternalTemperature: reading.ExternalTemp,
		Humidity:            reading.Humidity,
		ShipmentID:          shipment.ID,
		Breach:              verdict.Breach,
		BreachType:          string(verdict.Type),
	}
	if coords, ok := models.ParseCoordinates(shipment.CurrentLocation); ok {
		ev.Latitude = &coords.Latitude
		ev.Longitude = &coords.Longitude
	}
	return ev
}
