package ports

import (
	"context"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// PriceProvider obtiene la serie de precios de un instrumento.
type PriceProvider interface {
	// FetchPrices devuelve la serie ordenada por tiempo, sin timestamps duplicados.
	// Devuelve domain.ErrNoData (envuelto) si el rango no tiene puntos.
	FetchPrices(ctx context.Context, q domain.Query) (domain.PriceSeries, error)
}
