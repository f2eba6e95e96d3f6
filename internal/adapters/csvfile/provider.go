package csvfile

// provider.go — lee series de precios desde CSV exportados (formato dataset:
// Datetime, Adj Close, Volume). Permite ejecutar el optimizador sin red.
//
// Si la ruta es un directorio, el archivo se resuelve por query como
// {dir}/{SYMBOL}_{period}_{interval}_data.csv.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

var (
	timeColumns  = []string{"Datetime", "Date", "Timestamp"}
	priceColumns = []string{"Adj Close", "Close"}

	timeLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
)

// Provider implementa ports.PriceProvider sobre archivos CSV.
type Provider struct {
	path string
}

// NewProvider crea un Provider sobre un archivo o un directorio de datasets.
func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

// FetchPrices lee y normaliza la serie. Las filas con precio vacío se descartan.
func (p *Provider) FetchPrices(_ context.Context, q domain.Query) (domain.PriceSeries, error) {
	path, err := p.resolve(q)
	if err != nil {
		return nil, fmt.Errorf("csvfile.FetchPrices: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("csvfile.FetchPrices: %s: %w", path, domain.ErrNoData)
		}
		return nil, fmt.Errorf("csvfile.FetchPrices: open %s: %w", path, err)
	}
	defer f.Close()

	series, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("csvfile.FetchPrices: %s: %w", path, err)
	}

	slog.Debug("loaded prices from csv", "path", path, "points", len(series))
	return series, nil
}

func (p *Provider) resolve(q domain.Query) (string, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", p.path, domain.ErrNoData)
		}
		return "", err
	}
	if !info.IsDir() {
		return p.path, nil
	}
	return filepath.Join(p.path, q.CacheKey()+"_data.csv"), nil
}

// Read parsea un CSV con cabecera. Requiere una columna de tiempo
// (Datetime|Date|Timestamp) y una de precio (Adj Close|Close).
func Read(r io.Reader) (domain.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrNoData
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	timeIdx := columnIndex(header, timeColumns)
	priceIdx := columnIndex(header, priceColumns)
	if timeIdx < 0 || priceIdx < 0 {
		return nil, fmt.Errorf("missing time or price column in header %v", header)
	}

	var series domain.PriceSeries
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if timeIdx >= len(rec) || priceIdx >= len(rec) {
			return nil, fmt.Errorf("line %d: %d fields", line, len(rec))
		}

		raw := strings.TrimSpace(rec[priceIdx])
		if raw == "" {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: price %q: %w", line, raw, err)
		}
		ts, err := parseTime(rec[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		series = append(series, domain.PricePoint{Time: ts, Price: price})
	}

	if len(series) == 0 {
		return nil, domain.ErrNoData
	}
	return domain.NormalizeSeries(series), nil
}

// parseTime acepta los formatos habituales; un sufijo +00:00 se ignora.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "+00:00")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func columnIndex(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}
