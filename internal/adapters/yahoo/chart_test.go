package yahoo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/threshopt/internal/adapters/yahoo"
	"github.com/alejandrodnm/threshopt/internal/domain"
)

var aaplQuery = domain.Query{Symbol: "aapl", Period: "30d", Interval: "1d"}

func TestFetchPrices_Success(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/yahoo_chart_aapl.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		p1, _ := strconv.ParseInt(r.URL.Query().Get("period1"), 10, 64)
		p2, _ := strconv.ParseInt(r.URL.Query().Get("period2"), 10, 64)
		assert.Equal(t, int64(30*24*3600), p2-p1)

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	series, err := yahoo.NewClient(srv.URL, 100).FetchPrices(context.Background(), aaplQuery)
	require.NoError(t, err)

	// 6 timestamps: 1 null y 1 duplicado → 4 puntos
	require.Len(t, series, 4)
	assert.Equal(t, time.Unix(1704205800, 0).UTC(), series[0].Time)
	assert.InDelta(t, 184.73, series[0].Price, 1e-9)
	assert.InDelta(t, 184.69, series[3].Price, 1e-9, "el duplicado conserva el último valor")
	assert.NoError(t, domain.ValidateSeries(series))
}

func TestFetchPrices_WeeklyIntervalMapped(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/yahoo_chart_aapl.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1wk", r.URL.Query().Get("interval"))
		w.Write(data)
	}))
	defer srv.Close()

	q := aaplQuery
	q.Interval = "1w"
	_, err = yahoo.NewClient(srv.URL, 100).FetchPrices(context.Background(), q)
	require.NoError(t, err)
}

func TestFetchPrices_NotFound(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/yahoo_chart_not_found.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write(data)
	}))
	defer srv.Close()

	_, err = yahoo.NewClient(srv.URL, 100).FetchPrices(context.Background(), aaplQuery)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestFetchPrices_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"AAPL"},"indicators":{"quote":[{}]}}],"error":null}}`))
	}))
	defer srv.Close()

	_, err := yahoo.NewClient(srv.URL, 100).FetchPrices(context.Background(), aaplQuery)
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestFetchPrices_RetriesServerError(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/yahoo_chart_aapl.json")
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	series, err := yahoo.NewClient(srv.URL, 100).FetchPrices(context.Background(), aaplQuery)
	require.NoError(t, err)
	assert.Len(t, series, 4)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchPrices_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Unprocessable Entity","description":"Invalid interval"}}}`))
	}))
	defer srv.Close()

	_, err := yahoo.NewClient(srv.URL, 100).FetchPrices(context.Background(), aaplQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchPrices_InvalidPeriod(t *testing.T) {
	q := aaplQuery
	q.Period = "max"
	_, err := yahoo.NewClient("http://127.0.0.1:0", 100).FetchPrices(context.Background(), q)
	assert.Error(t, err)
}
