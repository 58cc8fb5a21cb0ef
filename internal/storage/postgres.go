package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"coldtrace/internal/logger"
	"coldtrace/internal/models"
)

// Postgres implements Store on top of database/sql with lib/pq
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool against the given DSN and
// verifies connectivity.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres db: %w", err)
	}

	log := logger.WithComponent("storage")
	log.Info().Msg("postgres connection established")
	return &Postgres{db: db}, nil
}

// EnsureSchema creates the tables this service owns if they do not
// exist. Shipments are owned by the shipment CRUD service; the table is
// created here only so a standalone deployment can boot.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shipments (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			organization_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			current_location TEXT,
			min_temp DOUBLE PRECISION,
			max_temp DOUBLE PRECISION,
			humidity_sensitivity TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			shipment_id TEXT NOT NULL REFERENCES shipments(id),
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			status TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_shipment_id ON alerts (shipment_id)`,
		`CREATE TABLE IF NOT EXISTS action_logs (
			id BIGSERIAL PRIMARY KEY,
			alert_id BIGINT NOT NULL REFERENCES alerts(id),
			action_type TEXT NOT NULL,
			status TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_action_logs_alert_id ON action_logs (alert_id)`,
	}

	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// ActiveShipments returns every shipment currently being monitored
func (p *Postgres) ActiveShipments(ctx context.Context) ([]models.Shipment, error) {
	query := `
		SELECT id, user_id, organization_id, name, status, current_location,
		       min_temp, max_temp, humidity_sensitivity, created_at, updated_at
		FROM shipments
		WHERE status = $1`

	rows, err := p.db.QueryContext(ctx, query, models.ShipmentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active shipments: %w", err)
	}
	defer rows.Close()

	var shipments []models.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

// ShipmentIDsByUser returns the ids of the user's shipments
func (p *Postgres) ShipmentIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM shipments WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user shipments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ShipmentByIDAndUser resolves a shipment only when the user owns it
func (p *Postgres) ShipmentByIDAndUser(ctx context.Context, shipmentID, userID string) (*models.Shipment, error) {
	query := `
		SELECT id, user_id, organization_id, name, status, current_location,
		       min_temp, max_temp, humidity_sensitivity, created_at, updated_at
		FROM shipments
		WHERE id = $1 AND user_id = $2`

	row := p.db.QueryRowContext(ctx, query, shipmentID, userID)
	s, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateAlert inserts a new active alert inside a transaction and rolls
// back on any failure.
func (p *Postgres) CreateAlert(ctx context.Context, shipmentID string, breachType models.BreachType, severity models.Severity, message string) (*models.Alert, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	alert := &models.Alert{
		ShipmentID: shipmentID,
		Type:       breachType,
		Severity:   severity,
		Message:    message,
		Status:     models.AlertStatusActive,
		Active:     true,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO alerts (shipment_id, type, severity, message, status, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		alert.ShipmentID, alert.Type, alert.Severity, alert.Message, alert.Status, alert.Active,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit alert: %w", err)
	}
	return alert, nil
}

// AlertByID fetches one alert by identifier
func (p *Postgres) AlertByID(ctx context.Context, alertID int64) (*models.Alert, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, shipment_id, type, severity, message, status, active, created_at, resolved_at
		FROM alerts WHERE id = $1`, alertID)

	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AlertsByShipments lists alerts across the given shipments, filtered
// and paginated, newest first by id.
func (p *Postgres) AlertsByShipments(ctx context.Context, shipmentIDs []string, filter AlertFilter) ([]models.Alert, int, error) {
	if len(shipmentIDs) == 0 {
		return []models.Alert{}, 0, nil
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}

	var active sql.NullBool
	if filter.Active != nil {
		active = sql.NullBool{Bool: *filter.Active, Valid: true}
	}

	where := `
		WHERE shipment_id = ANY($1)
		  AND ($2 = '' OR shipment_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4::boolean IS NULL OR active = $4)`
	args := []interface{}{pq.Array(shipmentIDs), filter.ShipmentID, string(filter.Status), active}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := `
		SELECT id, shipment_id, type, severity, message, status, active, created_at, resolved_at
		FROM alerts` + where + `
		ORDER BY id DESC
		LIMIT $5 OFFSET $6`

	rows, err := p.db.QueryContext(ctx, query, append(args, PageSize, (page-1)*PageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}

// UpdateAlertStatus transitions the alert's status in one transaction:
// resolved_at is stamped only on first entering resolved, an action log
// is written only when the value actually changed.
func (p *Postgres) UpdateAlertStatus(ctx context.Context, alertID int64, status models.AlertStatus) (*models.Alert, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, shipment_id, type, severity, message, status, active, created_at, resolved_at
		FROM alerts WHERE id = $1 FOR UPDATE`, alertID)

	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		tx.Rollback()
		return nil, ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	oldStatus := alert.Status
	alert.Status = status

	if status == models.AlertStatusResolved && alert.ResolvedAt == nil {
		now := time.Now().UTC()
		alert.ResolvedAt = &now
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE alerts SET status = $1, resolved_at = $2 WHERE id = $3`,
		alert.Status, alert.ResolvedAt, alert.ID,
	); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update alert status: %w", err)
	}

	if oldStatus != status {
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO action_logs (alert_id, action_type, status, details, completed_at)
			VALUES ($1, $2, $3, $4, $5)`,
			alert.ID,
			fmt.Sprintf("status_change_%s", status),
			"completed",
			fmt.Sprintf("Alert status changed from '%s' to '%s'", oldStatus, status),
			now,
		); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to insert action log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}
	return &alert, nil
}

// SetAlertActive flips the alert's active flag
func (p *Postgres) SetAlertActive(ctx context.Context, alertID int64, active bool) (*models.Alert, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE alerts SET active = $1 WHERE id = $2
		RETURNING id, shipment_id, type, severity, message, status, active, created_at, resolved_at`,
		active, alertID)

	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update alert active flag: %w", err)
	}
	return &a, nil
}

// ActionLogsByAlert lists an alert's action logs, newest first
func (p *Postgres) ActionLogsByAlert(ctx context.Context, alertID int64) ([]models.ActionLog, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, alert_id, action_type, status, details, created_at, completed_at
		FROM action_logs
		WHERE alert_id = $1
		ORDER BY id DESC`, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ActionLog{}
	for rows.Next() {
		var l models.ActionLog
		var completedAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.AlertID, &l.ActionType, &l.Status, &l.Details, &l.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			l.CompletedAt = &completedAt.Time
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Ping reports database health
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanShipment(row scanner) (models.Shipment, error) {
	var s models.Shipment
	var location, sensitivity sql.NullString
	var minTemp, maxTemp sql.NullFloat64

	err := row.Scan(
		&s.ID, &s.UserID, &s.OrganizationID, &s.Name, &s.Status,
		&location, &minTemp, &maxTemp, &sensitivity,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return models.Shipment{}, err
	}

	s.CurrentLocation = location.String
	s.HumiditySensitivity = sensitivity.String
	if minTemp.Valid {
		s.MinTemp = &minTemp.Float64
	}
	if maxTemp.Valid {
		s.MaxTemp = &maxTemp.Float64
	}
	return s, nil
}

func scanAlert(row scanner) (models.Alert, error) {
	var a models.Alert
	var resolvedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.ShipmentID, &a.Type, &a.Severity, &a.Message,
		&a.Status, &a.Active, &a.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return models.Alert{}, err
	}

	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return a, nil
}
