package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"coldtrace/internal/models"
	"coldtrace/internal/policy"
)

// Evaluate combines one reading with one shipment's thresholds and
// produces a breach verdict. Total: every input yields a verdict, a
// shipment without temperature bounds simply cannot trigger a
// temperature breach.
func Evaluate(reading models.Reading, shipment *models.Shipment) models.Verdict {
	humidityLimit := policy.HumidityThreshold(shipment.HumiditySensitivity)

	var messages []string

	tempBreach := false
	if shipment.HasTempBounds() {
		if reading.InternalTemp < *shipment.MinTemp || reading.InternalTemp > *shipment.MaxTemp {
			tempBreach = true
			messages = append(messages, fmt.Sprintf(
				"Temperature breach: %s°C (required: %s°C - %s°C)",
				fmtNum(reading.InternalTemp), fmtNum(*shipment.MinTemp), fmtNum(*shipment.MaxTemp),
			))
		}
	}

	humidityBreach := reading.Humidity > humidityLimit
	if humidityBreach {
		messages = append(messages, fmt.Sprintf(
			"Humidity breach: %s%% (limit: %s%%)",
			fmtNum(reading.Humidity), fmtNum(humidityLimit),
		))
	}

	if !tempBreach && !humidityBreach {
		return models.Verdict{}
	}

	var breachType models.BreachType
	switch {
	case tempBreach && humidityBreach:
		breachType = models.BreachTemperatureAndHumidity
	case tempBreach:
		breachType = models.BreachTemperature
	default:
		breachType = models.BreachHumidity
	}

	// Temperature escalates first, humidity only ever upgrades the result.
	severity := models.SeverityLow
	if tempBreach {
		severity = policy.EscalateTemperature(severity, tempDeviation(reading.InternalTemp, shipment))
	}
	if humidityBreach {
		severity = policy.EscalateHumidity(severity, reading.Humidity-humidityLimit)
	}

	return models.Verdict{
		Breach:   true,
		Type:     breachType,
		Severity: severity,
		Message:  strings.Join(messages, " | "),
	}
}

// tempDeviation is the distance the reading sits outside whichever
// bound it violated. Callers guarantee the bounds are set.
func tempDeviation(internalTemp float64, shipment *models.Shipment) float64 {
	if internalTemp < *shipment.MinTemp {
		return *shipment.MinTemp - internalTemp
	}
	if internalTemp > *shipment.MaxTemp {
		return internalTemp - *shipment.MaxTemp
	}
	return 0
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
