package models

import (
	"errors"
	"time"
)

// Severity represents how far outside its safe envelope a shipment has drifted
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityVeryHigh Severity = "very_high"
)

// severityRank orders severities for escalation comparisons
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityVeryHigh: 3,
}

// Rank returns the ordinal position of the severity (low < medium < high < very_high).
// Unknown severities rank below low.
func (s Severity) Rank() int {
	rank, ok := severityRank[s]
	if !ok {
		return -1
	}
	return rank
}

// IsValid checks if the severity level is valid
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusActive     AlertStatus = "active"
	AlertStatusInProgress AlertStatus = "inprogress"
	AlertStatusResolved   AlertStatus = "resolved"
)

// IsValid checks if the alert status is one of the allowed transitions
func (s AlertStatus) IsValid() bool {
	switch s {
	case AlertStatusActive, AlertStatusInProgress, AlertStatusResolved:
		return true
	default:
		return false
	}
}

// BreachType tags which envelope a reading violated
type BreachType string

const (
	BreachNone                   BreachType = ""
	BreachTemperature            BreachType = "temperature"
	BreachHumidity               BreachType = "humidity"
	BreachTemperatureAndHumidity BreachType = "temperature_and_humidity"
)

// Validation errors
var (
	ErrMissingStatus  = errors.New("status field is required")
	ErrInvalidStatus  = errors.New("invalid status: must be one of active, inprogress, resolved")
	ErrMissingActive  = errors.New("active field is required and must be a boolean")
	ErrAlertNotFound  = errors.New("alert not found or access denied")
	ErrShipmentDenied = errors.New("shipment not found or access denied")
)

// Alert is a persisted record of a detected breach for a shipment
type Alert struct {
	ID         int64       `json:"id"`
	ShipmentID string      `json:"shipment_id"`
	Type       BreachType  `json:"type"`
	Severity   Severity    `json:"severity"`
	Message    string      `json:"message"`
	Status     AlertStatus `json:"status"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt *time.Time  `json:"resolved_at"`
}

// ActionLog records a corrective or administrative action taken against an alert.
// Immutable after creation.
type ActionLog struct {
	ID          int64      `json:"id"`
	AlertID     int64      `json:"alert_id"`
	ActionType  string     `json:"action_type"`
	Status      string     `json:"status"`
	Details     string     `json:"details"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
