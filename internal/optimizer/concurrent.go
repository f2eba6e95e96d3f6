package optimizer

// concurrent.go — worker pool para evaluar la rejilla de umbrales en paralelo.
//
// Cada umbral es independiente: los workers solo leen series/returns y escriben
// en su propio índice del trace, así que no hace falta lock ni canal de resultados.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// chunkSize es el número de umbrales que procesa un worker por tarea.
const chunkSize = 256

// evaluateConcurrent rellena trace[i] para cada grid[i] con un pool de workers.
func evaluateConcurrent(
	ctx context.Context,
	series domain.PriceSeries,
	returns domain.ReturnSeries,
	grid []float64,
	p domain.Params,
	workers int,
	trace []domain.TracePoint,
) error {
	type work struct{ from, to int }

	workCh := make(chan work, len(grid)/chunkSize+1)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				if ctx.Err() != nil {
					continue // drenar sin trabajar
				}
				for j := w.from; j < w.to; j++ {
					trace[j] = evaluate(series, returns, grid[j], p)
				}
			}
		}()
	}

	chunks := 0
	for from := 0; from < len(grid); from += chunkSize {
		workCh <- work{from: from, to: min(from+chunkSize, len(grid))}
		chunks++
	}
	close(workCh)
	wg.Wait()

	slog.Debug("concurrent sweep complete",
		"thresholds", len(grid),
		"chunks", chunks,
		"workers", workers,
	)

	return ctx.Err()
}
