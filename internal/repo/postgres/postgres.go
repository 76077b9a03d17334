package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/domain"
	"github.com/hamed0406/socdash/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Schema is applied by New; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS service_state (
  key        TEXT PRIMARY KEY,
  status     TEXT NOT NULL,
  last_check TIMESTAMPTZ NOT NULL,
  latency_ms BIGINT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
  seq        BIGSERIAL PRIMARY KEY,
  id         TEXT NOT NULL UNIQUE,
  at         TIMESTAMPTZ NOT NULL,
  source     TEXT NOT NULL,
  service    TEXT NOT NULL DEFAULT '',
  host       TEXT NOT NULL DEFAULT '',
  port       INTEGER NOT NULL DEFAULT 0,
  status     TEXT NOT NULL DEFAULT '',
  latency_ms BIGINT NULL,
  detail     JSONB NULL,
  summary    TEXT NOT NULL DEFAULT ''
);
`

// Store keeps state and the alert log in Postgres. The recent view is the
// newest rows of the log by sequence, so it is a suffix by construction.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- StateStore ----

func (s *Store) LoadState(ctx context.Context) (domain.State, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, status, last_check, latency_ms FROM service_state`)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	defer rows.Close()

	st := domain.State{}
	for rows.Next() {
		var (
			key     string
			status  string
			checked time.Time
			latency *int64
		)
		if err := rows.Scan(&key, &status, &checked, &latency); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		st[key] = domain.StateEntry{Status: domain.Status(status), LastCheck: checked.UTC(), LatencyMS: latency}
	}
	return st, rows.Err()
}

// SaveState upserts every entry in one transaction. Keys absent from st are
// kept, matching the file store which never prunes stale entries either.
func (s *Store) SaveState(ctx context.Context, st domain.State) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for key, e := range st {
			_, err := tx.Exec(ctx,
				`INSERT INTO service_state (key, status, last_check, latency_ms)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (key)
				 DO UPDATE SET status=EXCLUDED.status, last_check=EXCLUDED.last_check, latency_ms=EXCLUDED.latency_ms`,
				key, string(e.Status), e.LastCheck, e.LatencyMS,
			)
			if err != nil {
				return fmt.Errorf("upsert state %s: %w", key, err)
			}
		}
		return nil
	})
}

// ---- AlertLog ----

func (s *Store) AppendAlerts(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, a := range alerts {
			var detail []byte
			if a.Detail != nil {
				b, err := json.Marshal(a.Detail)
				if err != nil {
					return fmt.Errorf("encode detail: %w", err)
				}
				detail = b
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO alerts (id, at, source, service, host, port, status, latency_ms, detail, summary)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				a.ID, a.Time, a.Source, a.Service, a.Host, a.Port, string(a.Status), a.LatencyMS, detail, a.Summary,
			)
			if err != nil {
				return fmt.Errorf("insert alert: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 || limit > domain.RecentLimit {
		limit = domain.RecentLimit
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, at, source, service, host, port, status, latency_ms, detail, summary
  FROM (SELECT * FROM alerts ORDER BY seq DESC LIMIT $1) t
 ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a      domain.Alert
			status string
			detail []byte
		)
		if err := rows.Scan(&a.ID, &a.Time, &a.Source, &a.Service, &a.Host, &a.Port, &status, &a.LatencyMS, &detail, &a.Summary); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Status = domain.Status(status)
		a.Time = a.Time.UTC()
		if len(detail) > 0 {
			var d domain.Detail
			if err := json.Unmarshal(detail, &d); err != nil {
				s.log.Warn("alert_detail_decode", zap.String("id", a.ID), zap.Error(err))
			} else {
				a.Detail = &d
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
