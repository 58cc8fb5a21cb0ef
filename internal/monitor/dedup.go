package monitor

import (
	"sync"

	"coldtrace/internal/models"
)

// lastVerdict is the remembered outcome of a shipment's previous tick
type lastVerdict struct {
	message  string
	severity models.Severity
	breach   bool
}

// DedupStore owns the per-shipment "last alert" memory used to suppress
// repeat alerts. State lives for the process lifetime only; after a
// restart a steady-state breach may alert once more, which is accepted.
// Safe for concurrent use.
type DedupStore struct {
	mu   sync.Mutex
	last map[string]lastVerdict
}

// NewDedupStore creates an empty dedup store
func NewDedupStore() *DedupStore {
	return &DedupStore{last: make(map[string]lastVerdict)}
}

// ShouldEmit decides whether the verdict is novel enough to alert on,
// and records it as the shipment's latest state either way.
//
// A first sighting of a breach always emits. A repeat breach emits only
// when the message text changed and the severity strictly escalated.
// A no-breach verdict never emits but clears the stale breach memory,
// so the same breach returning later counts as a first sighting again.
func (d *DedupStore) ShouldEmit(shipmentID string, v models.Verdict) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, seen := d.last[shipmentID]
	d.last[shipmentID] = lastVerdict{
		message:  v.Message,
		severity: v.Severity,
		breach:   v.Breach,
	}

	if !v.Breach {
		return false
	}
	if !seen || !prev.breach {
		return true
	}
	return v.Message != prev.message && v.Severity.Rank() > prev.severity.Rank()
}

// Reset clears all remembered verdicts
func (d *DedupStore) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = make(map[string]lastVerdict)
}
