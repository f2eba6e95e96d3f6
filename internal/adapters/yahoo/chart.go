package yahoo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// FetchPrices descarga la serie de cierres ajustados para la query.
// Implementa ports.PriceProvider.
func (c *Client) FetchPrices(ctx context.Context, q domain.Query) (domain.PriceSeries, error) {
	start, end, err := q.Range(c.now())
	if err != nil {
		return nil, fmt.Errorf("yahoo.FetchPrices: %w", err)
	}

	symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
	params := url.Values{}
	params.Set("period1", fmt.Sprint(start.Unix()))
	params.Set("period2", fmt.Sprint(end.Unix()))
	params.Set("interval", yahooInterval(q.Interval))
	params.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.base, url.PathEscape(symbol), params.Encode())

	var resp chartResponse
	if err := c.get(ctx, u, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("yahoo.FetchPrices: %s: %w", symbol, domain.ErrNoData)
		}
		return nil, fmt.Errorf("yahoo.FetchPrices: %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo.FetchPrices: %s: %s: %s",
			symbol, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo.FetchPrices: %s: %w", symbol, domain.ErrNoData)
	}

	series := toSeries(resp.Chart.Result[0])
	if len(series) == 0 {
		return nil, fmt.Errorf("yahoo.FetchPrices: %s: %w", symbol, domain.ErrNoData)
	}

	slog.Debug("fetched prices",
		"symbol", symbol,
		"interval", q.Interval,
		"from", start.Format("2006-01-02"),
		"to", end.Format("2006-01-02"),
		"points", len(series),
	)
	return series, nil
}

// toSeries usa adjclose si viene completo; si no, close. Descarta nulls.
func toSeries(r chartResult) domain.PriceSeries {
	var prices []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		prices = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 {
		prices = r.Indicators.Quote[0].Close
	}

	series := make(domain.PriceSeries, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(prices) || prices[i] == nil {
			continue
		}
		series = append(series, domain.PricePoint{Time: time.Unix(ts, 0).UTC(), Price: *prices[i]})
	}
	return domain.NormalizeSeries(series)
}

// yahooInterval traduce los intervalos cortos habituales a los de Yahoo.
func yahooInterval(interval string) string {
	switch s := strings.TrimSpace(interval); s {
	case "1w":
		return "1wk"
	case "1M":
		return "1mo"
	case "3M":
		return "3mo"
	default:
		return s
	}
}

