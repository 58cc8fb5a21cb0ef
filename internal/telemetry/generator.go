// Package telemetry produces synthetic environmental readings. It is a
// stand-in for real sensor ingestion: one independent draw per shipment
// per monitoring tick.
package telemetry

import (
	"math"
	"math/rand"
	"time"

	"coldtrace/internal/models"
)

// Draw ranges for the synthetic sensors, in °C and %RH.
const (
	internalTempMin = 2
	internalTempMax = 10
	externalTempMin = 0
	externalTempMax = 35
	humidityMin     = 10
	humidityMax     = 85
)

// Generator draws synthetic readings from an injectable random source
// and clock so tests can drive it deterministically.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// Config holds generator configuration
type Config struct {
	// Seed for the random source; 0 means seed from the current time
	Seed int64
	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// NewGenerator creates a generator with the given configuration
func NewGenerator(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

// Reading draws one synthetic sample, rounded to 2 decimal places,
// stamped with the current UTC instant.
func (g *Generator) Reading() models.Reading {
	return models.Reading{
		InternalTemp: g.uniform(internalTempMin, internalTempMax),
		ExternalTemp: g.uniform(externalTempMin, externalTempMax),
		Humidity:     g.uniform(humidityMin, humidityMax),
		Timestamp:    g.now().UTC(),
	}
}

func (g *Generator) uniform(low, high float64) float64 {
	v := low + g.rng.Float64()*(high-low)
	return math.Round(v*100) / 100
}
