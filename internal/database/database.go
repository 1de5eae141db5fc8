// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// NewPool creates and validates a pgxpool connection pool.
// It retries up to 5 times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("db connect attempt failed, retrying in 2s")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return pool, nil
}

// Schema creates the presale tables. Constraint names are relied on by the
// repository package to map unique violations to domain errors.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id                 TEXT        NOT NULL,
	name               TEXT        NOT NULL,
	description        TEXT        NOT NULL DEFAULT '',
	capacity           INTEGER     NOT NULL CHECK (capacity > 0),
	registration_start TIMESTAMPTZ NOT NULL,
	registration_end   TIMESTAMPTZ NOT NULL,
	sale_start         TIMESTAMPTZ,
	sale_end           TIMESTAMPTZ,
	countdown_type     TEXT        NOT NULL DEFAULT '',
	countdown_start    TIMESTAMPTZ,
	round_duration_ms  BIGINT      NOT NULL DEFAULT 0,
	round_capacity     INTEGER     NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	CONSTRAINT events_pkey PRIMARY KEY (id),
	CHECK (registration_end > registration_start)
);

CREATE TABLE IF NOT EXISTS registrations (
	code              TEXT        NOT NULL,
	event_id          TEXT        NOT NULL REFERENCES events (id),
	email_norm        TEXT        NOT NULL,
	id_number_norm    TEXT,
	user_data         JSONB       NOT NULL,
	registration_time TIMESTAMPTZ NOT NULL,
	CONSTRAINT registrations_pkey PRIMARY KEY (code),
	CONSTRAINT registrations_event_email_key UNIQUE (event_id, email_norm),
	CONSTRAINT registrations_event_id_number_key UNIQUE (event_id, id_number_norm)
);

CREATE TABLE IF NOT EXISTS orders (
	order_number      TEXT        NOT NULL,
	event_id          TEXT        NOT NULL REFERENCES events (id),
	registration_code TEXT        NOT NULL,
	quantity          INTEGER     NOT NULL CHECK (quantity BETWEEN 1 AND 4),
	purchase_time     TIMESTAMPTZ NOT NULL,
	status            TEXT        NOT NULL,
	CONSTRAINT orders_pkey PRIMARY KEY (order_number)
);

CREATE INDEX IF NOT EXISTS orders_event_idx ON orders (event_id);
CREATE INDEX IF NOT EXISTS orders_code_idx ON orders (registration_code);

-- A missing id number is NULL so it never collides under the unique constraint.
ALTER TABLE registrations ALTER COLUMN id_number_norm DROP NOT NULL;
UPDATE registrations SET id_number_norm = NULL WHERE id_number_norm = '';

CREATE TABLE IF NOT EXISTS form_fields (
	id            TEXT        NOT NULL,
	field_label   TEXT        NOT NULL,
	field_name    TEXT        NOT NULL,
	field_element TEXT        NOT NULL,
	field_type    TEXT        NOT NULL DEFAULT '',
	placeholder   TEXT        NOT NULL DEFAULT '',
	required      BOOLEAN     NOT NULL DEFAULT FALSE,
	options       TEXT[],
	sort_order    INTEGER     NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	CONSTRAINT form_fields_pkey PRIMARY KEY (id),
	CONSTRAINT form_fields_name_key UNIQUE (field_name)
);
`

// Migrate applies Schema. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
