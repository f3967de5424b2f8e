// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volcanotrek/slotwatch/internal/crawl"
)

// PoolConfig controls the Postgres connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgPool is the pool surface the stores need; pgxpool.Pool and pgxmock both
// satisfy it.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// NewPool builds a pgx pool from config.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// SlotStore persists the availability snapshot keyed by (category, date).
//
// Schema:
//
//	CREATE TABLE slot_records (
//		category   TEXT NOT NULL,
//		visit_date DATE NOT NULL,
//		slots      TEXT NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL,
//		PRIMARY KEY (category, visit_date)
//	);
//
// Dates cross the store boundary in the DD/MM/YYYY wire format and live in a
// real DATE column so ordering, purge, and range filters stay in SQL.
type SlotStore struct {
	pool pgPool
}

// NewSlotStore wraps an existing pool.
func NewSlotStore(pool pgPool) (*SlotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SlotStore{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *SlotStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert writes the latest known availability for one date. Re-upserting the
// same value only moves updated_at.
func (s *SlotStore) Upsert(ctx context.Context, category string, date crawl.Date, slots string, now time.Time) error {
	day, err := date.Time()
	if err != nil {
		return err
	}
	query := `
INSERT INTO slot_records (category, visit_date, slots, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (category, visit_date)
DO UPDATE SET slots = EXCLUDED.slots, updated_at = EXCLUDED.updated_at`
	if _, err := s.pool.Exec(ctx, query, category, day, slots, now); err != nil {
		return fmt.Errorf("upsert slot record: %w", err)
	}
	return nil
}

// PurgePast removes records dated strictly before today, keeping the table
// proportional to the active booking window.
func (s *SlotStore) PurgePast(ctx context.Context, category string, today time.Time) error {
	cutoff := midnight(today)
	query := `DELETE FROM slot_records WHERE category = $1 AND visit_date < $2`
	if _, err := s.pool.Exec(ctx, query, category, cutoff); err != nil {
		return fmt.Errorf("purge past slot records: %w", err)
	}
	return nil
}

// List returns records ascending by date, excluding dates strictly before
// tomorrow, optionally bounded by an inclusive [from, to] range.
func (s *SlotStore) List(ctx context.Context, category string, from, to crawl.Date, now time.Time) ([]crawl.SlotRecord, error) {
	tomorrow := midnight(now).AddDate(0, 0, 1)

	var fromDay, toDay *time.Time
	if from != "" {
		day, err := from.Time()
		if err != nil {
			return nil, err
		}
		fromDay = &day
	}
	if to != "" {
		day, err := to.Time()
		if err != nil {
			return nil, err
		}
		toDay = &day
	}

	query := `
SELECT visit_date, slots, updated_at
FROM slot_records
WHERE category = $1
  AND visit_date >= $2
  AND ($3::date IS NULL OR visit_date >= $3)
  AND ($4::date IS NULL OR visit_date <= $4)
ORDER BY visit_date ASC`
	rows, err := s.pool.Query(ctx, query, category, tomorrow, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("list slot records: %w", err)
	}
	defer rows.Close()

	var records []crawl.SlotRecord
	for rows.Next() {
		var (
			day       time.Time
			slots     string
			updatedAt time.Time
		)
		if err := rows.Scan(&day, &slots, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan slot record: %w", err)
		}
		records = append(records, crawl.SlotRecord{
			Date:      crawl.NewDate(day),
			Slots:     slots,
			UpdatedAt: updatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot records: %w", err)
	}
	return records, nil
}

// Count returns the number of records held for a category.
func (s *SlotStore) Count(ctx context.Context, category string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM slot_records WHERE category = $1`
	if err := s.pool.QueryRow(ctx, query, category).Scan(&n); err != nil {
		return 0, fmt.Errorf("count slot records: %w", err)
	}
	return n, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
