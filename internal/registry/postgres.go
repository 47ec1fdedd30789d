package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/neomind-iot/neomind/pkg/models"
)

// PostgresRegistry implements Registry against a Postgres-compatible database.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgresRegistry opens a connection pool, creates the schema if needed,
// and returns a ready-to-use registry.
func NewPostgresRegistry(dsn string) (*PostgresRegistry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: ping database: %w", err)
	}
	r := &PostgresRegistry{db: db}
	if err := r.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRegistry) createSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS device_templates (
			kind         TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			metrics_json JSONB NOT NULL,
			commands_json JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS devices (
			id            TEXT PRIMARY KEY,
			kind          TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			location      TEXT,
			tags_json     JSONB,
			status        TEXT NOT NULL,
			last_seen_at  TIMESTAMPTZ,
			registered_at TIMESTAMPTZ NOT NULL,
			metadata_json JSONB
		);
	`)
	if err != nil {
		return fmt.Errorf("registry: create schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *PostgresRegistry) Close() error { return r.db.Close() }

func (r *PostgresRegistry) RegisterTemplate(ctx context.Context, t models.DeviceTypeTemplate) error {
	metrics, err := json.Marshal(t.Metrics)
	if err != nil {
		return fmt.Errorf("registry: marshal metrics: %w", err)
	}
	commands, err := json.Marshal(t.Commands)
	if err != nil {
		return fmt.Errorf("registry: marshal commands: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO device_templates (kind, display_name, metrics_json, commands_json)
		VALUES ($1, $2, $3, $4)
	`, t.Kind, t.DisplayName, metrics, commands)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("registry: insert template: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Template(ctx context.Context, kind string) (models.DeviceTypeTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT display_name, metrics_json, commands_json FROM device_templates WHERE kind = $1
	`, kind)
	var t models.DeviceTypeTemplate
	t.Kind = kind
	var metrics, commands []byte
	if err := row.Scan(&t.DisplayName, &metrics, &commands); err != nil {
		if err == sql.ErrNoRows {
			return models.DeviceTypeTemplate{}, ErrNotFound
		}
		return models.DeviceTypeTemplate{}, fmt.Errorf("registry: query template: %w", err)
	}
	if err := json.Unmarshal(metrics, &t.Metrics); err != nil {
		return models.DeviceTypeTemplate{}, fmt.Errorf("registry: decode metrics: %w", err)
	}
	if err := json.Unmarshal(commands, &t.Commands); err != nil {
		return models.DeviceTypeTemplate{}, fmt.Errorf("registry: decode commands: %w", err)
	}
	return t, nil
}

func (r *PostgresRegistry) ListTemplates(ctx context.Context) ([]models.DeviceTypeTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, display_name, metrics_json, commands_json FROM device_templates`)
	if err != nil {
		return nil, fmt.Errorf("registry: list templates: %w", err)
	}
	defer rows.Close()

	var out []models.DeviceTypeTemplate
	for rows.Next() {
		var t models.DeviceTypeTemplate
		var metrics, commands []byte
		if err := rows.Scan(&t.Kind, &t.DisplayName, &metrics, &commands); err != nil {
			return nil, fmt.Errorf("registry: scan template: %w", err)
		}
		if err := json.Unmarshal(metrics, &t.Metrics); err != nil {
			return nil, fmt.Errorf("registry: decode metrics: %w", err)
		}
		if err := json.Unmarshal(commands, &t.Commands); err != nil {
			return nil, fmt.Errorf("registry: decode commands: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRegistry) RegisterDevice(ctx context.Context, d models.Device) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.RegisteredAt.IsZero() {
		d.RegisteredAt = time.Now()
	}
	if d.Status == "" {
		d.Status = models.DeviceStatusUnknown
	}
	tags, err := json.Marshal(d.Tags)
	if err != nil {
		return fmt.Errorf("registry: marshal tags: %w", err)
	}
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("registry: marshal metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (id, kind, display_name, location, tags_json, status, last_seen_at, registered_at, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, d.ID, d.Kind, d.DisplayName, d.Location, tags, string(d.Status), nullableTime(d.LastSeenAt), d.RegisteredAt, meta)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("registry: insert device: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Device(ctx context.Context, id string) (models.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, display_name, location, tags_json, status, last_seen_at, registered_at, metadata_json
		FROM devices WHERE id = $1
	`, id)
	return scanDevice(row)
}

func (r *PostgresRegistry) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, display_name, location, tags_json, status, last_seen_at, registered_at, metadata_json
		FROM devices
	`)
	if err != nil {
		return nil, fmt.Errorf("registry: list devices: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRegistry) UpdateStatus(ctx context.Context, id string, status models.DeviceStatus, seenAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET status = $2, last_seen_at = COALESCE(NULLIF($3::timestamptz, '0001-01-01'::timestamptz), last_seen_at)
		WHERE id = $1
	`, id, string(status), nullableTime(seenAt))
	if err != nil {
		return fmt.Errorf("registry: update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRegistry) DeleteDevice(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("registry: delete device: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (models.Device, error) {
	var d models.Device
	var location sql.NullString
	var tags, meta []byte
	var status string
	var lastSeen sql.NullTime

	if err := row.Scan(&d.ID, &d.Kind, &d.DisplayName, &location, &tags, &status, &lastSeen, &d.RegisteredAt, &meta); err != nil {
		if err == sql.ErrNoRows {
			return models.Device{}, ErrNotFound
		}
		return models.Device{}, fmt.Errorf("registry: scan device: %w", err)
	}
	d.Location = location.String
	d.Status = models.DeviceStatus(status)
	if lastSeen.Valid {
		d.LastSeenAt = lastSeen.Time
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &d.Tags); err != nil {
			return models.Device{}, fmt.Errorf("registry: decode tags: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return models.Device{}, fmt.Errorf("registry: decode metadata: %w", err)
		}
	}
	return d, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// lib/pq wraps PG error codes; 23505 is unique_violation. Avoid importing
	// the pq error type here and match on the message instead, mirroring how
	// sessions/cockroach.go treats constraint errors.
	msg := err.Error()
	return strings.Contains(msg, "unique_violation") ||
		strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key")
}

var _ Registry = (*PostgresRegistry)(nil)
