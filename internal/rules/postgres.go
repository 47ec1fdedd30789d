package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/neomind-iot/neomind/pkg/models"
)

// PostgresStore is a Postgres-backed Store, following the same
// database/sql + lib/pq connection pattern as internal/registry and
// internal/telemetry's Postgres stores.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a PostgresStore against dsn and ensures its schema
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("rules: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("rules: ping postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rules (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			definition  JSONB NOT NULL,
			enabled     BOOLEAN NOT NULL DEFAULT true,
			source      TEXT,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS rule_states (
			rule_id           TEXT PRIMARY KEY REFERENCES rules(id) ON DELETE CASCADE,
			last_true_since   TIMESTAMPTZ,
			last_fired_at     TIMESTAMPTZ,
			currently_active  BOOLEAN NOT NULL DEFAULT false
		);
	`)
	if err != nil {
		return fmt.Errorf("rules: create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT definition FROM rules`)
	if err != nil {
		return nil, fmt.Errorf("rules: list rules: %w", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("rules: scan rule: %w", err)
		}
		var r models.Rule
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("rules: decode rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveRule(ctx context.Context, r models.Rule) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("rules: encode rule: %w", err)
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, name, definition, enabled, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			definition = EXCLUDED.definition,
			enabled = EXCLUDED.enabled,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
	`, r.ID, r.Name, raw, r.Enabled, r.Source, r.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("rules: save rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rules: delete rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) State(ctx context.Context, ruleID string) (models.RuleState, bool, error) {
	var st models.RuleState
	var lastTrueSince, lastFiredAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT rule_id, last_true_since, last_fired_at, currently_active
		FROM rule_states WHERE rule_id = $1
	`, ruleID).Scan(&st.RuleID, &lastTrueSince, &lastFiredAt, &st.CurrentlyActive)
	if err == sql.ErrNoRows {
		return models.RuleState{}, false, nil
	}
	if err != nil {
		return models.RuleState{}, false, fmt.Errorf("rules: load state: %w", err)
	}
	if lastTrueSince.Valid {
		st.LastTrueSince = lastTrueSince.Time
	}
	if lastFiredAt.Valid {
		st.LastFiredAt = lastFiredAt.Time
	}
	return st, true, nil
}

func (s *PostgresStore) SaveState(ctx context.Context, st models.RuleState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_states (rule_id, last_true_since, last_fired_at, currently_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rule_id) DO UPDATE SET
			last_true_since = EXCLUDED.last_true_since,
			last_fired_at = EXCLUDED.last_fired_at,
			currently_active = EXCLUDED.currently_active
	`, st.RuleID, nullableTime(st.LastTrueSince), nullableTime(st.LastFiredAt), st.CurrentlyActive)
	if err != nil {
		return fmt.Errorf("rules: save state: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ Store = (*PostgresStore)(nil)
