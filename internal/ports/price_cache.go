package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// PriceCache guarda series ya descargadas bajo la clave de la query.
type PriceCache interface {
	// LoadSeries devuelve la serie cacheada si existe y no es más vieja que maxAge.
	// maxAge <= 0 significa sin caducidad.
	LoadSeries(ctx context.Context, key string, maxAge time.Duration) (domain.PriceSeries, bool, error)

	// SaveSeries reemplaza la serie guardada bajo key.
	SaveSeries(ctx context.Context, key string, series domain.PriceSeries) error
}
