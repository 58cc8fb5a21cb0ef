package models

import "time"

// Reading is one synthetic environmental sample. Readings are never
// persisted: each is created for a single shipment on a single tick,
// evaluated, and discarded.
type Reading struct {
	InternalTemp float64   `json:"internal_temperature"`
	ExternalTemp float64   `json:"external_temperature"`
	Humidity     float64   `json:"humidity"`
	Timestamp    time.Time `json:"timestamp"`
}

// Verdict is the outcome of evaluating one Reading against one
// shipment's thresholds. Ephemeral, consumed by the deduplicator.
type Verdict struct {
	Breach   bool
	Type     BreachType
	Severity Severity
	Message  string
}
