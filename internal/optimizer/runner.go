package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/threshopt/internal/domain"
	"github.com/alejandrodnm/threshopt/internal/ports"
)

// Config contiene la configuración del runner.
type Config struct {
	Params  domain.Params
	Workers int // 0/1 = secuencial, < 0 = runtime.NumCPU()

	// ActivityStep es el paso de la rejilla gruesa de MostActiveThreshold.
	ActivityStep float64

	// RequireMinPoints aborta con ErrInvalidSeries si la serie tiene < 2 puntos.
	// Por defecto se optimiza igual y el resultado es el primer umbral con 0 trades.
	RequireMinPoints bool
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Params:       domain.DefaultParams(),
		ActivityStep: domain.DefaultActivityStep,
	}
}

// Runner orquesta una optimización: datos → barrido → persistencia → reporte.
type Runner struct {
	cfg      Config
	prices   ports.PriceProvider
	runs     ports.RunStorage
	reporter ports.Reporter
	now      func() time.Time
}

// New crea un Runner con todas las dependencias inyectadas.
// runs y reporter pueden ser nil.
func New(cfg Config, prices ports.PriceProvider, runs ports.RunStorage, reporter ports.Reporter) *Runner {
	if cfg.ActivityStep <= 0 {
		cfg.ActivityStep = domain.DefaultActivityStep
	}
	return &Runner{
		cfg:      cfg,
		prices:   prices,
		runs:     runs,
		reporter: reporter,
		now:      time.Now,
	}
}

// Run ejecuta una optimización completa para la query dada.
func (r *Runner) Run(ctx context.Context, q domain.Query) (domain.RunRecord, domain.OptimizationResult, error) {
	if err := q.Validate(); err != nil {
		return domain.RunRecord{}, domain.OptimizationResult{}, fmt.Errorf("optimizer.Run: %w", err)
	}
	if err := r.cfg.Params.Validate(); err != nil {
		return domain.RunRecord{}, domain.OptimizationResult{}, fmt.Errorf("optimizer.Run: %w", err)
	}

	start := r.now()

	series, err := r.prices.FetchPrices(ctx, q)
	if err != nil {
		return domain.RunRecord{}, domain.OptimizationResult{}, fmt.Errorf("optimizer.Run: fetch %s: %w", q.CacheKey(), err)
	}

	if err := domain.ValidateSeries(series); err != nil {
		if r.cfg.RequireMinPoints && len(series) < 2 {
			return domain.RunRecord{}, domain.OptimizationResult{}, fmt.Errorf("optimizer.Run: %w", err)
		}
		// Los precios malos degradan solo algunos umbrales; el barrido sigue.
		slog.Warn("price series failed validation", "query", q.CacheKey(), "err", err)
	}

	result, err := Sweep(ctx, series, r.cfg.Params, r.cfg.Workers)
	if err != nil {
		return domain.RunRecord{}, domain.OptimizationResult{}, fmt.Errorf("optimizer.Run: %w", err)
	}

	returns := domain.ComputeReturns(series)
	activeAt, activeN := domain.MostActiveThreshold(returns, r.cfg.Params.MinStep, r.cfg.ActivityStep)

	run := domain.RunRecord{
		ID:             uuid.New().String(),
		Query:          q,
		Params:         r.cfg.Params,
		Points:         len(series),
		BestThreshold:  result.BestThreshold,
		BestTradeCount: result.BestTradeCount,
		BestScore:      result.BestScore,
		MostActive:     activeAt,
		MostActiveN:    activeN,
		CreatedAt:      r.now().UTC(),
	}
	if best, ok := result.Best(); ok {
		run.BestNetProfit = best.NetProfit
	}

	slog.Info("optimization complete",
		"query", q.CacheKey(),
		"points", len(series),
		"thresholds", len(result.Trace),
		"best_threshold", result.BestThreshold,
		"best_trades", result.BestTradeCount,
		"best_score", result.BestScore,
		"elapsed", r.now().Sub(start).Round(time.Millisecond),
	)

	if r.runs != nil {
		if err := r.runs.SaveRun(ctx, run); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}

	if r.reporter != nil {
		if err := r.reporter.Report(ctx, run, result); err != nil {
			slog.Warn("reporter error", "err", err)
		}
	}

	return run, result, nil
}

// IsDataError indica si err viene de datos ausentes o inválidos (no de config).
func IsDataError(err error) bool {
	return errors.Is(err, domain.ErrNoData) ||
		errors.Is(err, domain.ErrInvalidSeries) ||
		errors.Is(err, domain.ErrBadPrice)
}
