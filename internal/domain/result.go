package domain

import "time"

// TracePoint es una fila del barrido.
type TracePoint struct {
	Threshold  float64
	TradeCount int
	NetProfit  float64
	Score      float64
}

// OptimizationResult es el resultado inmutable de un barrido.
// Trace está en orden creciente de umbral.
type OptimizationResult struct {
	BestThreshold  float64
	BestTradeCount int
	BestScore      float64
	BestIndex      int // índice de la mejor fila en Trace; -1 si no hay
	Trace          []TracePoint
}

// Best devuelve la fila del trace correspondiente al mejor umbral.
func (r OptimizationResult) Best() (TracePoint, bool) {
	if r.BestIndex < 0 || r.BestIndex >= len(r.Trace) {
		return TracePoint{}, false
	}
	return r.Trace[r.BestIndex], true
}

// ActiveRows devuelve las filas con al menos un trade (las que se reportan).
func (r OptimizationResult) ActiveRows() []TracePoint {
	var out []TracePoint
	for _, tp := range r.Trace {
		if tp.TradeCount != 0 {
			out = append(out, tp)
		}
	}
	return out
}

// RunRecord es lo que se persiste de cada optimización.
type RunRecord struct {
	ID             string
	Query          Query
	Params         Params
	Points         int
	BestThreshold  float64
	BestTradeCount int
	BestScore      float64
	BestNetProfit  float64
	MostActive     float64 // umbral con más trades (rejilla gruesa)
	MostActiveN    int
	CreatedAt      time.Time
}
