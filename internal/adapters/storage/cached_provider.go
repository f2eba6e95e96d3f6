package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/threshopt/internal/domain"
	"github.com/alejandrodnm/threshopt/internal/ports"
)

// CachedProvider envuelve un PriceProvider con una PriceCache.
// Si la serie está en cache (y no caducó) no se toca la red.
type CachedProvider struct {
	source ports.PriceProvider
	cache  ports.PriceCache
	maxAge time.Duration
}

// NewCachedProvider crea el decorador. maxAge <= 0 = la cache nunca caduca.
func NewCachedProvider(source ports.PriceProvider, cache ports.PriceCache, maxAge time.Duration) *CachedProvider {
	return &CachedProvider{source: source, cache: cache, maxAge: maxAge}
}

// FetchPrices implementa ports.PriceProvider.
// Un error al leer o escribir la cache se loguea y no aborta la descarga.
func (p *CachedProvider) FetchPrices(ctx context.Context, q domain.Query) (domain.PriceSeries, error) {
	key := q.CacheKey()

	series, ok, err := p.cache.LoadSeries(ctx, key, p.maxAge)
	if err != nil {
		slog.Warn("price cache read failed", "key", key, "err", err)
	}
	if ok {
		slog.Debug("price cache hit", "key", key, "points", len(series))
		return series, nil
	}

	slog.Debug("price cache miss", "key", key)
	series, err = p.source.FetchPrices(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("storage.CachedProvider: %w", err)
	}

	if err := p.cache.SaveSeries(ctx, key, series); err != nil {
		slog.Warn("price cache write failed", "key", key, "err", err)
	}
	return series, nil
}
