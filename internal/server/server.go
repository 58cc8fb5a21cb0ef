// Package server wires storage, realtime transport, the alert stream,
// the monitor loop and the HTTP API into one process and owns their
// lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coldtrace/internal/config"
	"coldtrace/internal/handlers"
	"coldtrace/internal/kafka"
	"coldtrace/internal/logger"
	"coldtrace/internal/middleware"
	"coldtrace/internal/monitor"
	"coldtrace/internal/realtime"
	"coldtrace/internal/storage"
	"coldtrace/internal/telemetry"
)

// Server is the high-level coordinator for the monitoring backend.
type Server struct {
	cfg        *config.Config
	store      *storage.Postgres
	publisher  *realtime.MQTTPublisher
	producer   *kafka.Producer
	mon        *monitor.Monitor
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Server with given config.
func New(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts background goroutines and blocks until context cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("server")
	log.Info().Msg("server starting")

	if err := s.initStorage(ctx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer s.store.Close()

	if err := s.initRealtime(); err != nil {
		return fmt.Errorf("failed to initialize realtime publisher: %w", err)
	}

	if err := s.initAlertStream(); err != nil {
		return fmt.Errorf("failed to initialize alert stream: %w", err)
	}

	// The monitor only runs after the realtime transport is ready, and
	// only in the one process designated to run it.
	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	if s.cfg.MonitorEnabled {
		s.initMonitor()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.mon.Run(monitorCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("monitor exited")
			}
		}()
	} else {
		log.Info().Msg("monitor disabled on this instance")
	}

	s.initHTTPServer()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.HTTPAddr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown(cancelMonitor)
}

// initStorage connects to Postgres and ensures the schema exists
func (s *Server) initStorage(ctx context.Context) error {
	store, err := storage.NewPostgres(s.cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return err
	}
	s.store = store
	return nil
}

// initRealtime connects the MQTT publisher; an empty broker disables it
func (s *Server) initRealtime() error {
	if s.cfg.MQTTBroker == "" {
		log := logger.WithComponent("server")
		log.Warn().Msg("realtime publishing disabled: no MQTT broker configured")
		return nil
	}

	publisher, err := realtime.NewMQTTPublisher(realtime.Config{
		Broker:      s.cfg.MQTTBroker,
		ClientID:    s.cfg.MQTTClientID,
		Username:    s.cfg.MQTTUsername,
		Password:    s.cfg.MQTTPassword,
		TopicPrefix: s.cfg.MQTTTopicPrefix,
	})
	if err != nil {
		return err
	}
	s.publisher = publisher
	return nil
}

// initAlertStream connects the Kafka producer; no brokers disables it
func (s *Server) initAlertStream() error {
	if len(s.cfg.KafkaBrokers) == 0 {
		log := logger.WithComponent("server")
		log.Warn().Msg("alert stream disabled: no kafka brokers configured")
		return nil
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: s.cfg.KafkaBrokers,
		Topic:   s.cfg.KafkaTopic,
	})
	if err != nil {
		return err
	}
	s.producer = producer
	return nil
}

// initMonitor wires the monitor loop over the shared collaborators
func (s *Server) initMonitor() {
	var publisher monitor.Publisher
	if s.publisher != nil {
		publisher = s.publisher
	}
	var stream monitor.AlertStream
	if s.producer != nil {
		stream = s.producer
	}

	s.mon = monitor.New(monitor.Config{
		Store:     s.store,
		Dedup:     monitor.NewDedupStore(),
		Generator: telemetry.NewGenerator(telemetry.Config{}),
		Publisher: publisher,
		Stream:    stream,
		Interval:  s.cfg.MonitorInterval,
	})
	log := logger.WithComponent("server")
	log.Info().
		Dur("interval", s.cfg.MonitorInterval).
		Msg("monitor initialized")
}

// initHTTPServer builds the mux and the HTTP server around it
func (s *Server) initHTTPServer() {
	mux := http.NewServeMux()

	authed := func(h http.Handler) http.Handler {
		return middleware.Chain(
			h,
			middleware.Recovery,
			middleware.Logging,
			middleware.Auth(s.cfg.JWTSecret),
		)
	}
	handlers.NewAlertsHandler(s.store).Register(mux, authed)

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown
func (s *Server) shutdown(cancelMonitor context.CancelFunc) error {
	log := logger.WithComponent("server")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Interrupt the monitor's sleep and wait for the tick in flight
	cancelMonitor()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("background tasks stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("background task shutdown timeout - forcing exit")
	}

	// 3. Close outbound transports
	if s.producer != nil {
		log.Info().Msg("closing kafka producer")
		if err := s.producer.Close(); err != nil {
			log.Error().Err(err).Msg("producer close error")
		}
	}
	if s.publisher != nil {
		log.Info().Msg("closing mqtt publisher")
		s.publisher.Close()
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}
