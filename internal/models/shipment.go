package models

import (
	"strings"
	"time"
)

// ShipmentStatus represents the transit state of a shipment
type ShipmentStatus string

const (
	ShipmentStatusActive    ShipmentStatus = "active"
	ShipmentStatusCompleted ShipmentStatus = "completed"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
)

// Shipment is the monitored entity. Owned by the shipment CRUD service;
// the monitor only ever reads it. Only shipments with status "active"
// participate in monitoring.
type Shipment struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	OrganizationID  string         `json:"organization_id"`
	Name            string         `json:"name"`
	Status          ShipmentStatus `json:"status"`
	CurrentLocation string         `json:"current_location,omitempty"`

	// Temperature bounds are required together; a shipment with either
	// missing cannot trigger a temperature breach.
	MinTemp *float64 `json:"min_temp"`
	MaxTemp *float64 `json:"max_temp"`

	// low, medium or high; anything else effectively disables humidity checks
	HumiditySensitivity string `json:"humidity_sensitivity"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTempBounds reports whether both temperature bounds are configured
func (s *Shipment) HasTempBounds() bool {
	return s.MinTemp != nil && s.MaxTemp != nil
}

// Coordinates is a parsed "lat, lon" location pair
type Coordinates struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// ParseCoordinates parses a "lat, lon" location string. Parsing is
// best-effort: malformed input yields ok=false, never an error.
func ParseCoordinates(location string) (Coordinates, bool) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return Coordinates{}, false
	}
	lat := strings.TrimSpace(parts[0])
	lon := strings.TrimSpace(parts[1])
	if lat == "" || lon == "" {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: lat, Longitude: lon}, true
}
