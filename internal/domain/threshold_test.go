package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSeries(prices ...float64) PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(PriceSeries, len(prices))
	for i, p := range prices {
		s[i] = PricePoint{Time: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return s
}

// --- ComputeReturns ---

func TestComputeReturns_Basic(t *testing.T) {
	s := makeSeries(100, 101, 99, 105, 104)
	r := ComputeReturns(s)

	require.Len(t, r, 4)
	assert.InDelta(t, 0.01, r[0], 1e-9)
	assert.InDelta(t, -0.019802, r[1], 1e-6)
	assert.InDelta(t, 0.060606, r[2], 1e-6)
	assert.InDelta(t, -0.009524, r[3], 1e-6)
}

func TestComputeReturns_RatioIdentity(t *testing.T) {
	s := makeSeries(3.5, 7.25, 1.1, 1.1, 250, 0.003)
	r := ComputeReturns(s)

	require.Len(t, r, len(s)-1)
	for i := range r {
		assert.InDelta(t, s[i+1].Price/s[i].Price, 1+r[i], 1e-12)
	}
}

func TestComputeReturns_ShortSeries(t *testing.T) {
	assert.Empty(t, ComputeReturns(makeSeries(100)))
	assert.Empty(t, ComputeReturns(nil))
}

func TestComputeReturns_ZeroPricePropagates(t *testing.T) {
	r := ComputeReturns(makeSeries(100, 0, 50))
	require.Len(t, r, 2)
	assert.InDelta(t, -1.0, r[0], 1e-12)
	assert.True(t, math.IsInf(r[1], 1), "división por precio 0 debe dar +Inf")

	r = ComputeReturns(makeSeries(0, 0))
	assert.True(t, math.IsNaN(r[0]))
}

// --- ValidateSeries ---

func TestValidateSeries(t *testing.T) {
	assert.NoError(t, ValidateSeries(makeSeries(1, 2, 3)))
	assert.ErrorIs(t, ValidateSeries(makeSeries(1)), ErrInvalidSeries)
	assert.ErrorIs(t, ValidateSeries(makeSeries(1, 0, 3)), ErrBadPrice)
	assert.ErrorIs(t, ValidateSeries(makeSeries(1, math.NaN())), ErrBadPrice)

	s := makeSeries(1, 2, 3)
	s[2].Time = s[1].Time
	assert.ErrorIs(t, ValidateSeries(s), ErrInvalidSeries)
}

// --- SimulateTrades ---

func TestSimulateTrades_SingleActivePoint(t *testing.T) {
	s := makeSeries(100, 101, 99, 105, 104)
	out := SimulateTrades(s, ComputeReturns(s), 0.05, 0, 0, 1.0)

	assert.Equal(t, 1, out.TradeCount)
	assert.Equal(t, 0.0, out.NetProfit, "un solo activo no tiene retorno definido")
}

func TestSimulateTrades_TwoActivePoints(t *testing.T) {
	s := makeSeries(100, 101, 99, 105, 104)
	r := ComputeReturns(s)

	// Activos: r[1]=-0.0198 (precio 99) y r[2]=+0.0606 (precio 105).
	out := SimulateTrades(s, r, 0.015, 0, 0, 1.0)
	assert.Equal(t, 2, out.TradeCount)
	assert.InDelta(t, 6.0/99, out.NetProfit, 1e-12)

	out = SimulateTrades(s, r, 0.015, 0.001, 0.0005, 1.0)
	assert.InDelta(t, 6.0/99-0.0015, out.NetProfit, 1e-12)

	// trading fraction amortigua retorno y coste
	out = SimulateTrades(s, r, 0.015, 0.001, 0.0005, 0.5)
	assert.InDelta(t, 0.5*(6.0/99-0.5*0.0015), out.NetProfit, 1e-12)
}

func TestSimulateTrades_AllActiveCompounds(t *testing.T) {
	s := makeSeries(100, 101, 99, 105, 104)
	r := ComputeReturns(s)

	out := SimulateTrades(s, r, 0.005, 0, 0, 1.0)
	assert.Equal(t, 4, out.TradeCount)
	assert.InDelta(t, 0.091909190919, out.NetProfit, 1e-9)

	out = SimulateTrades(s, r, 0.005, 0.001, 0.0005, 1.0)
	assert.InDelta(t, 0.087143395473, out.NetProfit, 1e-9)
}

func TestSimulateTrades_ThresholdAboveMaxReturn(t *testing.T) {
	s := makeSeries(100, 101, 99, 105, 104)
	r := ComputeReturns(s)

	maxAbs := 0.0
	for _, v := range r {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	out := SimulateTrades(s, r, maxAbs+1e-9, 0.001, 0.0005, 1.0)
	assert.Equal(t, 0, out.TradeCount)
	assert.Equal(t, 0.0, out.NetProfit)
}

func TestSimulateTrades_TinyThresholdCountsNonZeroReturns(t *testing.T) {
	s := makeSeries(100, 100, 101, 101, 99, 99.5)
	r := ComputeReturns(s)

	out := SimulateTrades(s, r, DefaultMinStep, 0, 0, 1.0)
	assert.Equal(t, 3, out.TradeCount)
}

func TestSimulateTrades_NonFinitePropagates(t *testing.T) {
	s := makeSeries(100, 0, 50, 55)
	out := SimulateTrades(s, ComputeReturns(s), 0.01, 0, 0, 1.0)

	assert.Equal(t, 3, out.TradeCount)
	assert.False(t, isFinite(out.NetProfit), "esperado no finito, got %v", out.NetProfit)
}

func TestSimulateTrades_DoesNotMutateInputs(t *testing.T) {
	s := makeSeries(100, 101, 99, 105, 104)
	r := ComputeReturns(s)
	sCopy := append(PriceSeries(nil), s...)
	rCopy := append(ReturnSeries(nil), r...)

	SimulateTrades(s, r, 0.005, 0.001, 0.0005, 1.0)
	assert.Equal(t, sCopy, s)
	assert.Equal(t, rCopy, r)
}

func TestCountTrades_AgreesWithSimulate(t *testing.T) {
	s := makeSeries(100, 101, 99, 105, 104, 104, 90, 92.5)
	r := ComputeReturns(s)
	for _, th := range ThresholdGrid(0.001, 0.001) {
		assert.Equal(t, CountTrades(r, th), SimulateTrades(s, r, th, 0, 0, 1).TradeCount, "threshold %v", th)
	}
}

// --- Score ---

func TestScore(t *testing.T) {
	assert.InDelta(t, math.Sqrt(0.1*4), Score(0.1, 4), 1e-12)
	assert.Equal(t, -4.0, Score(-0.1, 4))
	assert.Equal(t, 0.0, Score(0.5, 0))
	assert.Equal(t, -3.0, Score(math.NaN(), 3))
	assert.Equal(t, -2.0, Score(0, 2))
}

// --- ThresholdGrid ---

func TestThresholdGrid_Default(t *testing.T) {
	grid := ThresholdGrid(DefaultMinStep, DefaultStep)

	require.Len(t, grid, 9999)
	assert.Equal(t, 0.0001, grid[0])
	assert.Equal(t, 0.0002, grid[1])
	assert.Equal(t, 0.5, grid[4999])
	assert.Equal(t, 0.9999, grid[len(grid)-1])
	for i := 1; i < len(grid); i++ {
		require.Greater(t, grid[i], grid[i-1])
	}
}

func TestThresholdGrid_NonDivisibleStep(t *testing.T) {
	// 0.0001 + i·0.0025 < 1 → i = 0..399
	grid := ThresholdGrid(0.0001, 0.0025)
	require.Len(t, grid, 400)
	assert.Equal(t, 0.9976, grid[399])
}

func TestThresholdGrid_Invalid(t *testing.T) {
	assert.Nil(t, ThresholdGrid(0.1, 0))
	assert.Nil(t, ThresholdGrid(0.1, -0.1))
	assert.Nil(t, ThresholdGrid(1, 0.1))
	assert.Len(t, ThresholdGrid(0.5, 0.5), 1)
	assert.Nil(t, ThresholdGrid(0.0001, 1e-17), "rejilla por encima de MaxGridPoints")
}

// --- Params ---

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	bad := []func(*Params){
		func(p *Params) { p.Step = 0 },
		func(p *Params) { p.Step = -0.001 },
		func(p *Params) { p.MinStep = 1 },
		func(p *Params) { p.MinStep = 0 },
		func(p *Params) { p.Fees = -0.1 },
		func(p *Params) { p.Slippage = -0.1 },
		func(p *Params) { p.TradingFraction = 0 },
		func(p *Params) { p.TradingFraction = 1.5 },
		func(p *Params) { p.Fees = math.Inf(1) },
		func(p *Params) { p.Step = 1e-17 },
		func(p *Params) { p.Step = 1e-9 },
	}
	for i, mutate := range bad {
		p := DefaultParams()
		mutate(&p)
		err := p.Validate()
		assert.True(t, errors.Is(err, ErrParameterOutOfRange), "case %d: %v", i, err)
	}

	// 5e6 umbrales: por debajo del límite
	p := DefaultParams()
	p.MinStep = 0.5
	p.Step = 1e-7
	assert.NoError(t, p.Validate())
}

func TestParams_Validate_ReportsFirstNonFinite(t *testing.T) {
	p := DefaultParams()
	p.Step = math.NaN()
	p.Fees = math.Inf(1)
	p.TradingFraction = math.NaN()

	for i := 0; i < 20; i++ {
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step is not finite")
	}
}

// --- MostActiveThreshold ---

func TestMostActiveThreshold(t *testing.T) {
	r := ReturnSeries{0.01, -0.02, 0.06, -0.0095}

	th, n := MostActiveThreshold(r, 0.0001, DefaultActivityStep)
	assert.Equal(t, 0.0001, th, "el primer máximo gana")
	assert.Equal(t, 4, n)

	th, n = MostActiveThreshold(ReturnSeries{}, 0.0001, DefaultActivityStep)
	assert.Equal(t, 0.0001, th)
	assert.Equal(t, 0, n)

	th, n = MostActiveThreshold(r, 0.1, 0)
	assert.Equal(t, 0.0, th)
	assert.Equal(t, 0, n)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func TestNormalizeSeries(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := PriceSeries{
		{Time: base.Add(2 * time.Hour), Price: 3},
		{Time: base, Price: 1},
		{Time: base.Add(time.Hour), Price: 2},
		{Time: base.Add(2 * time.Hour), Price: 3.5},
	}
	out := NormalizeSeries(in)

	require.Len(t, out, 3)
	assert.Equal(t, []float64{1, 2, 3.5}, out.Prices())
	assert.NoError(t, ValidateSeries(out))
	assert.Equal(t, 3.0, in[0].Price, "la entrada no se modifica")
}
