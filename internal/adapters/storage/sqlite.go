package storage

// sqlite.go — cache de series de precios e histórico de optimizaciones.
//
// Estrategia:
//   - `series` + `series_points`: una serie por clave SYMBOL_period_interval.
//     Guardar una serie reemplaza la anterior completa (DELETE + INSERT en tx).
//   - `runs`: una fila por optimización, con los parámetros usados y el mejor umbral.
//   - Prune automático al arrancar: runs > 365d.

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/threshopt/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS series (
    cache_key  TEXT PRIMARY KEY,
    fetched_at INTEGER NOT NULL,
    points     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS series_points (
    cache_key TEXT    NOT NULL,
    ts        INTEGER NOT NULL,
    price     REAL    NOT NULL,
    PRIMARY KEY (cache_key, ts)
);

CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    symbol           TEXT    NOT NULL,
    period           TEXT    NOT NULL,
    interval         TEXT    NOT NULL,
    min_step         REAL    NOT NULL,
    step             REAL    NOT NULL,
    fees             REAL    NOT NULL,
    slippage         REAL    NOT NULL,
    trading_fraction REAL    NOT NULL,
    points           INTEGER NOT NULL,
    best_threshold   REAL    NOT NULL,
    best_trades      INTEGER NOT NULL,
    best_score       REAL,
    best_net_profit  REAL,
    most_active      REAL    NOT NULL DEFAULT 0,
    most_active_n    INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_symbol  ON runs(symbol, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

const retentionRuns = 365 * 24 * time.Hour

// SQLiteStorage implementa ports.PriceCache y ports.RunStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex // serializa SaveSeries: DELETE + INSERT de la misma clave
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// LoadSeries devuelve la serie cacheada bajo key.
// ok=false si no existe, está vacía o es más vieja que maxAge (maxAge <= 0: sin caducidad).
func (s *SQLiteStorage) LoadSeries(ctx context.Context, key string, maxAge time.Duration) (domain.PriceSeries, bool, error) {
	var fetchedAt int64
	var points int
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at, points FROM series WHERE cache_key = ?`, key,
	).Scan(&fetchedAt, &points)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage.LoadSeries: %s: %w", key, err)
	}
	if points <= 0 {
		return nil, false, nil
	}
	if maxAge > 0 && time.Since(time.Unix(0, fetchedAt)) > maxAge {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, price FROM series_points WHERE cache_key = ? ORDER BY ts ASC`, key,
	)
	if err != nil {
		return nil, false, fmt.Errorf("storage.LoadSeries: query points: %w", err)
	}
	defer rows.Close()

	series := make(domain.PriceSeries, 0, points)
	for rows.Next() {
		var ts int64
		var price float64
		if err := rows.Scan(&ts, &price); err != nil {
			return nil, false, fmt.Errorf("storage.LoadSeries: scan row: %w", err)
		}
		series = append(series, domain.PricePoint{Time: time.Unix(0, ts).UTC(), Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("storage.LoadSeries: %w", err)
	}
	return series, len(series) > 0, nil
}

// SaveSeries reemplaza la serie guardada bajo key.
func (s *SQLiteStorage) SaveSeries(ctx context.Context, key string, series domain.PriceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSeries: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM series_points WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("storage.SaveSeries: clear %s: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO series_points (cache_key, ts, price) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveSeries: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range series {
		if _, err := stmt.ExecContext(ctx, key, p.Time.UnixNano(), p.Price); err != nil {
			return fmt.Errorf("storage.SaveSeries: insert %s@%s: %w", key, p.Time.Format(time.RFC3339), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO series (cache_key, fetched_at, points) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			points     = excluded.points
	`, key, time.Now().UnixNano(), len(series)); err != nil {
		return fmt.Errorf("storage.SaveSeries: upsert %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSeries: commit: %w", err)
	}
	return nil
}

// SaveRun persiste el resumen de una optimización.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.RunRecord) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(id, symbol, period, interval, min_step, step, fees, slippage, trading_fraction,
			 points, best_threshold, best_trades, best_score, best_net_profit,
			 most_active, most_active_n, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		strings.ToUpper(run.Query.Symbol),
		run.Query.Period,
		run.Query.Interval,
		run.Params.MinStep,
		run.Params.Step,
		run.Params.Fees,
		run.Params.Slippage,
		run.Params.TradingFraction,
		run.Points,
		run.BestThreshold,
		run.BestTradeCount,
		nullFloat(run.BestScore),
		nullFloat(run.BestNetProfit),
		run.MostActive,
		run.MostActiveN,
		run.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns devuelve las últimas optimizaciones, más recientes primero.
func (s *SQLiteStorage) ListRuns(ctx context.Context, symbol string, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, symbol, period, interval, min_step, step, fees, slippage, trading_fraction,
		       points, best_threshold, best_trades, best_score, best_net_profit,
		       most_active, most_active_n, created_at
		FROM runs`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, strings.ToUpper(symbol))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var r domain.RunRecord
		var score, profit sql.NullFloat64
		var createdAt int64
		if err := rows.Scan(
			&r.ID,
			&r.Query.Symbol,
			&r.Query.Period,
			&r.Query.Interval,
			&r.Params.MinStep,
			&r.Params.Step,
			&r.Params.Fees,
			&r.Params.Slippage,
			&r.Params.TradingFraction,
			&r.Points,
			&r.BestThreshold,
			&r.BestTradeCount,
			&score,
			&profit,
			&r.MostActive,
			&r.MostActiveN,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan row: %w", err)
		}
		r.BestScore = fromNull(score)
		r.BestNetProfit = fromNull(profit)
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PruneSeries borra series cacheadas más viejas que maxAge.
func (s *SQLiteStorage) PruneSeries(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixNano()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM series_points WHERE cache_key IN (SELECT cache_key FROM series WHERE fetched_at < ?)`,
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("storage.PruneSeries: points: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage.PruneSeries: series: %w", err)
	}
	return res.RowsAffected()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina runs antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().Add(-retentionRuns).UnixNano()
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
}

// nullFloat guarda NaN como NULL (SQLite no tiene NaN). ±Inf se guarda tal cual.
func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
