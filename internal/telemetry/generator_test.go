package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestReadingStaysInRange(t *testing.T) {
	g := NewGenerator(Config{Seed: 7})

	for i := 0; i < 1000; i++ {
		r := g.Reading()

		if r.InternalTemp < 2 || r.InternalTemp > 10 {
			t.Fatalf("internal temp %v outside [2, 10]", r.InternalTemp)
		}
		if r.ExternalTemp < 0 || r.ExternalTemp > 35 {
			t.Fatalf("external temp %v outside [0, 35]", r.ExternalTemp)
		}
		if r.Humidity < 10 || r.Humidity > 85 {
			t.Fatalf("humidity %v outside [10, 85]", r.Humidity)
		}
	}
}

func TestReadingRoundedToTwoDecimals(t *testing.T) {
	g := NewGenerator(Config{Seed: 7})

	for i := 0; i < 100; i++ {
		r := g.Reading()
		for _, v := range []float64{r.InternalTemp, r.ExternalTemp, r.Humidity} {
			if math.Round(v*100)/100 != v {
				t.Fatalf("value %v not rounded to 2 decimal places", v)
			}
		}
	}
}

func TestReadingTimestampIsUTC(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	g := NewGenerator(Config{Seed: 7, Now: func() time.Time { return fixed }})

	r := g.Reading()
	if r.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp location = %v, want UTC", r.Timestamp.Location())
	}
	if !r.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", r.Timestamp, fixed)
	}
}

func TestSeededGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(Config{Seed: 99})
	b := NewGenerator(Config{Seed: 99})

	for i := 0; i < 10; i++ {
		ra, rb := a.Reading(), b.Reading()
		if ra.InternalTemp != rb.InternalTemp || ra.Humidity != rb.Humidity {
			t.Fatalf("same seed produced different draws: %+v vs %+v", ra, rb)
		}
	}
}
