package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrInvalidSeries indica una serie con menos de 2 puntos o timestamps no crecientes.
	ErrInvalidSeries = errors.New("invalid price series")
	// ErrBadPrice indica un precio no finito o <= 0. Produce retornos no finitos.
	ErrBadPrice = errors.New("bad price")
	// ErrNoData indica que el proveedor no devolvió ningún punto.
	ErrNoData = errors.New("no price data")
)

// PricePoint es un cierre (ajustado) en un instante dado.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// PriceSeries es una serie ordenada por tiempo, estrictamente creciente.
// Pertenece al caller; el core solo la lee.
type PriceSeries []PricePoint

// Prices devuelve solo la columna de precios.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}

// ReturnSeries contiene los cambios fraccionales período a período.
// Longitud = len(PriceSeries) - 1.
type ReturnSeries []float64

// ComputeReturns convierte precios en retornos: r[i] = (p[i+1] - p[i]) / p[i].
//
// Con menos de 2 puntos devuelve una serie vacía. Un precio 0 produce un valor
// no finito que se propaga tal cual (no se recorta).
func ComputeReturns(series PriceSeries) ReturnSeries {
	if len(series) < 2 {
		return ReturnSeries{}
	}
	out := make(ReturnSeries, len(series)-1)
	for i := 0; i < len(series)-1; i++ {
		prev := series[i].Price
		out[i] = (series[i+1].Price - prev) / prev
	}
	return out
}

// ValidateSeries revisa las precondiciones de la serie.
// El core no la llama: es para que el runner decida si abortar o solo avisar.
func ValidateSeries(series PriceSeries) error {
	if len(series) < 2 {
		return fmt.Errorf("%w: %d points, need at least 2", ErrInvalidSeries, len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i].Time.After(series[i-1].Time) {
			return fmt.Errorf("%w: timestamp at index %d (%s) not after previous (%s)",
				ErrInvalidSeries, i,
				series[i].Time.Format(time.RFC3339), series[i-1].Time.Format(time.RFC3339))
		}
	}
	for i, p := range series {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			return fmt.Errorf("%w: %v at index %d (%s)",
				ErrBadPrice, p.Price, i, p.Time.Format(time.RFC3339))
		}
	}
	return nil
}

// NormalizeSeries ordena por tiempo y elimina timestamps repetidos,
// conservando el último punto de cada timestamp. No modifica la entrada.
func NormalizeSeries(series PriceSeries) PriceSeries {
	out := make(PriceSeries, len(series))
	copy(out, series)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 0
	for i := range out {
		if n > 0 && out[i].Time.Equal(out[n-1].Time) {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}
