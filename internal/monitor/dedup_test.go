package monitor

import (
	"testing"

	"coldtrace/internal/models"
)

func breachVerdict(message string, severity models.Severity) models.Verdict {
	return models.Verdict{
		Breach:   true,
		Type:     models.BreachTemperature,
		Severity: severity,
		Message:  message,
	}
}

func TestDedupFirstBreachAlwaysEmits(t *testing.T) {
	d := NewDedupStore()

	if !d.ShouldEmit("ship-1", breachVerdict("too hot", models.SeverityLow)) {
		t.Error("first breach must emit")
	}
}

func TestDedupRepeatBreachSuppressed(t *testing.T) {
	d := NewDedupStore()
	d.ShouldEmit("ship-1", breachVerdict("too hot", models.SeverityMedium))

	if d.ShouldEmit("ship-1", breachVerdict("too hot", models.SeverityMedium)) {
		t.Error("identical repeat breach must be suppressed")
	}
}

func TestDedupEscalationEmits(t *testing.T) {
	d := NewDedupStore()
	d.ShouldEmit("ship-1", breachVerdict("too hot", models.SeverityMedium))

	if !d.ShouldEmit("ship-1", breachVerdict("way too hot", models.SeverityHigh)) {
		t.Error("escalating breach with new message must emit")
	}
}

func TestDedupSameMessageHigherSeveritySuppressed(t *testing.T) {
	// escalation alone is not enough: the message must change too
	d := NewDedupStore()
	d.ShouldEmit("ship-1", breachVerdict("too hot", models.SeverityMedium))

	if d.ShouldEmit("ship-1", breachVerdict("too hot", models.SeverityHigh)) {
		t.Error("same message must be suppressed even when severity escalates")
	}
}

func TestDedupNewMessageSameSeveritySuppressed(t *testing.T) {
	d := NewDedupStore()
	d.ShouldEmit("ship-1", breachVerdict("too hot", models.SeverityMedium))

	if d.ShouldEmit("ship-1", breachVerdict("slightly different", models.SeverityMedium)) {
		t.Error("non-escalating breach must be suppressed even when the message changes")
	}
}

func TestDedupRecoveryClearsMemory(t *testing.T) {
	d := NewDedupStore()
	v := breachVerdict("too hot", models.SeverityMedium)

	if !d.ShouldEmit("ship-1", v) {
		t.Fatal("first breach must emit")
	}

	// shipment returns to compliance
	if d.ShouldEmit("ship-1", models.Verdict{}) {
		t.Fatal("no-breach verdict must never emit")
	}

	// the exact same breach returning counts as a first sighting again
	if !d.ShouldEmit("ship-1", v) {
		t.Error("breach after recovery must emit")
	}
}

func TestDedupShipmentsAreIndependent(t *testing.T) {
	d := NewDedupStore()
	v := breachVerdict("too hot", models.SeverityMedium)

	d.ShouldEmit("ship-1", v)
	if !d.ShouldEmit("ship-2", v) {
		t.Error("dedup state must be tracked per shipment")
	}
}

func TestDedupReset(t *testing.T) {
	d := NewDedupStore()
	v := breachVerdict("too hot", models.SeverityMedium)

	d.ShouldEmit("ship-1", v)
	d.Reset()

	if !d.ShouldEmit("ship-1", v) {
		t.Error("reset must clear remembered verdicts")
	}
}
