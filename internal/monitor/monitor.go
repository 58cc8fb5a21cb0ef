// Package monitor implements the environmental breach-detection engine:
// a single long-lived loop that evaluates synthetic telemetry against
// every active shipment's thresholds on a fixed interval, suppresses
// repeat alerts, persists novel ones and pushes realtime events to the
// owning user's channel.
package monitor

import (
	"context"
	"runtime/debug"
	"time"

	"coldtrace/internal/logger"
	"coldtrace/internal/metrics"
	"coldtrace/internal/models"
	"coldtrace/internal/telemetry"
)

// Store is the slice of persistence the monitor needs: the roster of
// shipments to evaluate and a transactional alert write.
type Store interface {
	ActiveShipments(ctx context.Context) ([]models.Shipment, error)
	CreateAlert(ctx context.Context, shipmentID string, breachType models.BreachType, severity models.Severity, message string) (*models.Alert, error)
}

// Publisher delivers a realtime event to a recipient channel. Publish
// failures are fire-and-forget from the monitor's point of view.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// AlertStream receives every persisted alert for downstream consumers
// (notification workers, analytics). Optional.
type AlertStream interface {
	PublishAlert(ctx context.Context, alert *models.Alert, shipmentName string) error
}

// Monitor drives the periodic evaluation cycle. Exactly one instance
// must run per deployment to avoid duplicate alerts.
type Monitor struct {
	store     Store
	dedup     *DedupStore
	generator *telemetry.Generator
	publisher Publisher
	stream    AlertStream
	interval  time.Duration
}

// Config holds monitor configuration
type Config struct {
	Store     Store
	Dedup     *DedupStore
	Generator *telemetry.Generator
	Publisher Publisher
	// Stream is optional; nil disables the alert integration stream
	Stream AlertStream
	// Interval between ticks; defaults to 10s
	Interval time.Duration
}

// New creates a monitor from the given configuration
func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Dedup == nil {
		cfg.Dedup = NewDedupStore()
	}
	return &Monitor{
		store:     cfg.Store,
		dedup:     cfg.Dedup,
		generator: cfg.Generator,
		publisher: cfg.Publisher,
		stream:    cfg.Stream,
		interval:  cfg.Interval,
	}
}

// Run executes ticks until the context is cancelled. The first tick
// fires immediately, subsequent ones on the configured interval.
func (m *Monitor) Run(ctx context.Context) error {
	log := logger.WithComponent("monitor")
	log.Info().Dur("interval", m.interval).Msg("monitor starting")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Tick(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick evaluates every active shipment once. Exported so tests can
// drive the monitor synchronously without waiting on wall-clock sleep.
func (m *Monitor) Tick(ctx context.Context) {
	log := logger.WithComponent("monitor")
	start := time.Now()
	metrics.MonitorTicksTotal.Inc()

	shipments, err := m.store.ActiveShipments(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to query active shipments")
		return
	}

	for i := range shipments {
		m.evaluateShipment(ctx, &shipments[i])
	}

	duration := time.Since(start)
	metrics.MonitorTickDuration.Observe(duration.Seconds())
	log.Debug().
		Int("shipments", len(shipments)).
		Dur("duration", duration).
		Msg("tick completed")
}

// evaluateShipment runs the full pipeline for one shipment. A failure
// here, including a panic, must never abort the tick for the rest of
// the roster.
func (m *Monitor) evaluateShipment(ctx context.Context, shipment *models.Shipment) {
	log := logger.WithComponent("monitor").With().Str("shipment_id", shipment.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("shipment evaluation panic recovered")
			metrics.PanicsRecovered.WithLabelValues("monitor").Inc()
		}
	}()

	reading := m.generator.Reading()
	verdict := Evaluate(reading, shipment)
	metrics.ShipmentsEvaluated.Inc()

	if verdict.Breach {
		metrics.BreachesDetected.WithLabelValues(string(verdict.Type), string(verdict.Severity)).Inc()
	}

	emit := m.dedup.ShouldEmit(shipment.ID, verdict)
	switch {
	case emit:
		m.recordAlert(ctx, shipment, verdict)
	case verdict.Breach:
		metrics.AlertsSuppressed.Inc()
		log.Debug().
			Str("severity", string(verdict.Severity)).
			Msg("repeat breach suppressed")
	}

	// Raw telemetry goes out every tick regardless of suppression
	m.publish(ctx, shipment.UserID, EventTelemetry, NewTelemetryEvent(reading, shipment, verdict))
}

// recordAlert persists the alert and, only on success, fans it out to
// the owner's channel and the integration stream. A persistence failure
// skips the fan-out but never aborts the tick.
func (m *Monitor) recordAlert(ctx context.Context, shipment *models.Shipment, verdict models.Verdict) {
	log := logger.WithComponent("monitor").With().Str("shipment_id", shipment.ID).Logger()

	alert, err := m.store.CreateAlert(ctx, shipment.ID, verdict.Type, verdict.Severity, verdict.Message)
	if err != nil {
		log.Error().Err(err).Msg("failed to persist alert")
		metrics.PersistenceFailures.WithLabelValues("create_alert").Inc()
		return
	}

	metrics.AlertsCreated.WithLabelValues(string(verdict.Severity)).Inc()
	log.Info().
		Int64("alert_id", alert.ID).
		Str("type", string(verdict.Type)).
		Str("severity", string(verdict.Severity)).
		Msg("alert created")

	m.publish(ctx, shipment.UserID, EventBreach, BreachEvent{
		Message:      alert.Message,
		Severity:     alert.Severity,
		ShipmentID:   shipment.ID,
		ShipmentName: shipment.Name,
		ID:           alert.ID,
		Timestamp:    alert.CreatedAt,
	})

	if m.stream != nil {
		if err := m.stream.PublishAlert(ctx, alert, shipment.Name); err != nil {
			log.Warn().Err(err).Int64("alert_id", alert.ID).Msg("alert stream publish failed")
		}
	}
}

// publish delivers one realtime event; failures are logged and counted,
// never raised past the tick boundary.
func (m *Monitor) publish(ctx context.Context, channel, event string, payload interface{}) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, channel, event, payload); err != nil {
		log := logger.WithComponent("monitor")
		log.Warn().
			Err(err).
			Str("event", event).
			Str("channel", channel).
			Msg("realtime publish failed")
		metrics.RealtimePublishTotal.WithLabelValues(event, "failed").Inc()
		return
	}
	metrics.RealtimePublishTotal.WithLabelValues(event, "success").Inc()
}
