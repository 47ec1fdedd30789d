package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/neomind-iot/neomind/pkg/models"
)

// PostgresStore implements Store against a Postgres-compatible database
// (Postgres or CockroachDB). It keeps the append path on a single prepared
// INSERT and leans on indexed range scans for History/Snapshot.
type PostgresStore struct {
	db *sql.DB

	stmtInsert *sql.Stmt
}

// PostgresConfig holds connection parameters for PostgresStore.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sensible local-development defaults.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "neomind",
		Database:        "neomind",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewPostgresStore opens a connection pool and prepares the store's statements.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		config.Host, config.Port, config.User, config.Password,
		config.Database, config.SSLMode, int(config.ConnectTimeout.Seconds()),
	)
	return NewPostgresStoreFromDSN(dsn, config)
}

// NewPostgresStoreFromDSN opens a store from a raw DSN/connection string.
func NewPostgresStoreFromDSN(dsn string, config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS telemetry_points (
			device_id  TEXT        NOT NULL,
			metric     TEXT        NOT NULL,
			value_kind TEXT        NOT NULL,
			value_json JSONB       NOT NULL,
			ts         TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (device_id, metric, ts)
		);
		CREATE INDEX IF NOT EXISTS idx_telemetry_points_device_metric_ts
			ON telemetry_points (device_id, metric, ts DESC);
	`)
	if err != nil {
		return fmt.Errorf("telemetry: create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) prepareStatements() error {
	var err error
	s.stmtInsert, err = s.db.Prepare(`
		INSERT INTO telemetry_points (device_id, metric, value_kind, value_json, ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, metric, ts) DO UPDATE SET value_json = EXCLUDED.value_json
	`)
	if err != nil {
		return fmt.Errorf("telemetry: prepare insert: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Append(ctx context.Context, p models.Point) error {
	raw, err := json.Marshal(p.Value)
	if err != nil {
		return fmt.Errorf("telemetry: marshal value: %w", err)
	}
	_, err = s.stmtInsert.ExecContext(ctx, p.DeviceID, p.Metric, string(p.Value.Kind), raw, p.Timestamp)
	if err != nil {
		return fmt.Errorf("telemetry: insert point: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, deviceID, metric string) (models.Point, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT value_json, ts FROM telemetry_points
		WHERE device_id = $1 AND metric = $2
		ORDER BY ts DESC LIMIT 1
	`, deviceID, metric)

	var raw []byte
	var ts time.Time
	if err := row.Scan(&raw, &ts); err != nil {
		if err == sql.ErrNoRows {
			return models.Point{}, false, nil
		}
		return models.Point{}, false, fmt.Errorf("telemetry: query latest: %w", err)
	}

	var value models.MetricValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return models.Point{}, false, fmt.Errorf("telemetry: decode value: %w", err)
	}
	return models.Point{DeviceID: deviceID, Metric: metric, Value: value, Timestamp: ts}, true, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context, deviceID string) (models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (metric) metric, value_json, ts
		FROM telemetry_points
		WHERE device_id = $1
		ORDER BY metric, ts DESC
	`, deviceID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("telemetry: query snapshot: %w", err)
	}
	defer rows.Close()

	snap := models.Snapshot{DeviceID: deviceID, Values: make(map[string]models.Point), AsOf: time.Now()}
	for rows.Next() {
		var metric string
		var raw []byte
		var ts time.Time
		if err := rows.Scan(&metric, &raw, &ts); err != nil {
			return models.Snapshot{}, fmt.Errorf("telemetry: scan snapshot row: %w", err)
		}
		var value models.MetricValue
		if err := json.Unmarshal(raw, &value); err != nil {
			return models.Snapshot{}, fmt.Errorf("telemetry: decode snapshot value: %w", err)
		}
		snap.Values[metric] = models.Point{DeviceID: deviceID, Metric: metric, Value: value, Timestamp: ts}
	}
	return snap, rows.Err()
}

func (s *PostgresStore) History(ctx context.Context, deviceID, metric string, from, to time.Time, limit int) ([]models.Point, error) {
	query := `
		SELECT value_json, ts FROM telemetry_points
		WHERE device_id = $1 AND metric = $2
	`
	args := []any{deviceID, metric}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	query += " ORDER BY ts ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query history: %w", err)
	}
	defer rows.Close()

	var out []models.Point
	for rows.Next() {
		var raw []byte
		var ts time.Time
		if err := rows.Scan(&raw, &ts); err != nil {
			return nil, fmt.Errorf("telemetry: scan history row: %w", err)
		}
		var value models.MetricValue
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("telemetry: decode history value: %w", err)
		}
		out = append(out, models.Point{DeviceID: deviceID, Metric: metric, Value: value, Timestamp: ts})
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
