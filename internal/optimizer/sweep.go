package optimizer

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// ctxCheckEvery controla cada cuántos umbrales se mira el contexto en modo secuencial.
const ctxCheckEvery = 512

// FindBestThreshold barre la rejilla de umbrales de forma secuencial.
//
// Para cada umbral simula los trades, calcula el score y se queda con el
// primero que supera estrictamente al mejor anterior. El centinela inicial es
// -Inf, así un score 0 (sin trades) ya cuenta como mejora en la primera fila.
func FindBestThreshold(series domain.PriceSeries, p domain.Params) (domain.OptimizationResult, error) {
	return Sweep(context.Background(), series, p, 1)
}

// Sweep es FindBestThreshold con cancelación y, si workers > 1, evaluación en
// paralelo (workers < 0 usa runtime.NumCPU()).
//
// El resultado es idéntico bit a bit al secuencial: las filas se recogen por
// índice de rejilla y el mejor se elige después, en orden.
func Sweep(ctx context.Context, series domain.PriceSeries, p domain.Params, workers int) (domain.OptimizationResult, error) {
	if err := p.Validate(); err != nil {
		return domain.OptimizationResult{}, fmt.Errorf("optimizer.Sweep: %w", err)
	}

	returns := domain.ComputeReturns(series)
	grid := domain.ThresholdGrid(p.MinStep, p.Step)
	trace := make([]domain.TracePoint, len(grid))

	if workers < 0 {
		workers = runtime.NumCPU()
	}
	if workers > 1 {
		if err := evaluateConcurrent(ctx, series, returns, grid, p, workers, trace); err != nil {
			return domain.OptimizationResult{}, fmt.Errorf("optimizer.Sweep: %w", err)
		}
	} else {
		for i, t := range grid {
			if i%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return domain.OptimizationResult{}, fmt.Errorf("optimizer.Sweep: %w", err)
				}
			}
			trace[i] = evaluate(series, returns, t, p)
		}
	}

	return selectBest(trace), nil
}

// evaluate simula un umbral. El TradeCount de la fila es el de SimulateTrades,
// que cuenta exactamente los |r| >= t (equivale a domain.CountTrades).
func evaluate(series domain.PriceSeries, returns domain.ReturnSeries, t float64, p domain.Params) domain.TracePoint {
	out := domain.SimulateTrades(series, returns, t, p.Fees, p.Slippage, p.TradingFraction)
	return domain.TracePoint{
		Threshold:  t,
		TradeCount: out.TradeCount,
		NetProfit:  out.NetProfit,
		Score:      domain.Score(out.NetProfit, out.TradeCount),
	}
}

// selectBest recorre el trace en orden de rejilla: gana el primer score máximo.
func selectBest(trace []domain.TracePoint) domain.OptimizationResult {
	res := domain.OptimizationResult{
		BestScore: math.Inf(-1),
		BestIndex: -1,
		Trace:     trace,
	}
	for i, tp := range trace {
		if tp.Score > res.BestScore {
			res.BestScore = tp.Score
			res.BestThreshold = tp.Threshold
			res.BestTradeCount = tp.TradeCount
			res.BestIndex = i
		}
	}
	return res
}
