// Package policy maps shipment sensitivity configuration to numeric
// breach thresholds and drives severity escalation. All functions are
// pure and total: every input produces an answer, there is no error path.
package policy

import (
	"strings"

	"coldtrace/internal/models"
)

// HumidityThreshold returns the humidity percentage above which a
// shipment with the given sensitivity is in breach. Unknown or unset
// sensitivities map to 100, which disables humidity checks.
func HumidityThreshold(sensitivity string) float64 {
	switch strings.ToLower(sensitivity) {
	case "low":
		return 80
	case "medium":
		return 60
	case "high":
		return 40
	default:
		return 100
	}
}

// EscalateTemperature raises the current severity based on how far the
// reading sits outside the violated temperature bound. Never downgrades.
func EscalateTemperature(current models.Severity, deviation float64) models.Severity {
	var escalated models.Severity
	switch {
	case deviation > 4:
		escalated = models.SeverityVeryHigh
	case deviation > 2:
		escalated = models.SeverityHigh
	case deviation > 0.5:
		escalated = models.SeverityMedium
	default:
		escalated = models.SeverityLow
	}
	if escalated.Rank() > current.Rank() {
		return escalated
	}
	return current
}

// EscalateHumidity raises the current severity based on how far the
// humidity exceeds the shipment's limit. Runs after the temperature
// pass and only ever upgrades what is already there.
func EscalateHumidity(current models.Severity, excess float64) models.Severity {
	var escalated models.Severity
	switch {
	case excess > 25:
		escalated = models.SeverityVeryHigh
	case excess > 15:
		escalated = models.SeverityHigh
	case excess > 5:
		escalated = models.SeverityMedium
	default:
		escalated = models.SeverityLow
	}
	if escalated.Rank() > current.Rank() {
		return escalated
	}
	return current
}
