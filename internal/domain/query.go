package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Query identifica qué serie pedir al proveedor de datos.
type Query struct {
	Symbol   string // p.ej. BTC-USD, AAPL
	Period   string // p.ej. 30d, 90d
	Interval string // p.ej. 1h, 1d
}

// ParsePeriodDays extrae los días de un período tipo "30d".
// Solo se conservan los dígitos: "90d" y "d90" valen lo mismo.
func ParsePeriodDays(period string) (int, error) {
	var digits strings.Builder
	for _, r := range period {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("domain.ParsePeriodDays: no digits in %q", period)
	}
	days, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, fmt.Errorf("domain.ParsePeriodDays: %q: %w", period, err)
	}
	if days <= 0 {
		return 0, fmt.Errorf("domain.ParsePeriodDays: %q must be > 0 days", period)
	}
	return days, nil
}

// Validate exige símbolo, período parseable e intervalo.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Symbol) == "" {
		return fmt.Errorf("domain.Query: empty symbol")
	}
	if strings.TrimSpace(q.Interval) == "" {
		return fmt.Errorf("domain.Query: empty interval")
	}
	_, err := ParsePeriodDays(q.Period)
	return err
}

// Range devuelve [start, end): end es hoy a las 00:00 UTC, start = end - días.
func (q Query) Range(now time.Time) (start, end time.Time, err error) {
	days, err := ParsePeriodDays(q.Period)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end = now.UTC().Truncate(24 * time.Hour)
	start = end.AddDate(0, 0, -days)
	return start, end, nil
}

// CacheKey es la clave bajo la que se cachea la serie: SYMBOL_period_interval.
func (q Query) CacheKey() string {
	return fmt.Sprintf("%s_%s_%s",
		strings.ToUpper(strings.TrimSpace(q.Symbol)),
		strings.TrimSpace(q.Period),
		strings.TrimSpace(q.Interval))
}
