package domain

// threshold.go — núcleo del optimizador de umbral.
//
// Un umbral t "activa" el período i cuando |r[i]| >= t. Sobre los puntos activos
// se simula una regla trivial: cada punto activo opera en la dirección de su
// retorno, y el retorno del trade se mide contra el punto activo anterior.
// El primer activo no tiene anterior y no aporta al producto.

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrParameterOutOfRange invalida el barrido completo antes de empezar.
var ErrParameterOutOfRange = errors.New("parameter out of range")

const (
	DefaultMinStep         = 0.0001
	DefaultStep            = 0.0001
	DefaultFees            = 0.001
	DefaultSlippage        = 0.0005
	DefaultTradingFraction = 1.0

	// DefaultActivityStep es el paso de la rejilla de MostActiveThreshold.
	DefaultActivityStep = 0.0025

	// MaxGridPoints acota la rejilla: (1-minStep)/step por encima de esto se rechaza.
	MaxGridPoints = 10_000_000
)

// Params son los parámetros de un barrido de umbrales.
type Params struct {
	MinStep         float64 // primer umbral de la rejilla
	Step            float64 // separación entre umbrales
	Fees            float64 // coste por trade (fracción)
	Slippage        float64 // slippage por trade (fracción)
	TradingFraction float64 // fracción del capital por trade, (0, 1]
}

// DefaultParams devuelve los parámetros por defecto.
func DefaultParams() Params {
	return Params{
		MinStep:         DefaultMinStep,
		Step:            DefaultStep,
		Fees:            DefaultFees,
		Slippage:        DefaultSlippage,
		TradingFraction: DefaultTradingFraction,
	}
}

// Validate rechaza parámetros que harían el barrido infinito o sin sentido.
func (p Params) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"min_step", p.MinStep},
		{"step", p.Step},
		{"fees", p.Fees},
		{"slippage", p.Slippage},
		{"trading_fraction", p.TradingFraction},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrParameterOutOfRange, f.name)
		}
	}
	switch {
	case p.Step <= 0:
		return fmt.Errorf("%w: step=%v must be > 0", ErrParameterOutOfRange, p.Step)
	case p.MinStep <= 0 || p.MinStep >= 1:
		return fmt.Errorf("%w: min_step=%v must be in (0, 1)", ErrParameterOutOfRange, p.MinStep)
	case p.Fees < 0:
		return fmt.Errorf("%w: fees=%v must be >= 0", ErrParameterOutOfRange, p.Fees)
	case p.Slippage < 0:
		return fmt.Errorf("%w: slippage=%v must be >= 0", ErrParameterOutOfRange, p.Slippage)
	case p.TradingFraction <= 0 || p.TradingFraction > 1:
		return fmt.Errorf("%w: trading_fraction=%v must be in (0, 1]", ErrParameterOutOfRange, p.TradingFraction)
	case (1-p.MinStep)/p.Step > MaxGridPoints:
		return fmt.Errorf("%w: step=%v gives more than %d thresholds", ErrParameterOutOfRange, p.Step, MaxGridPoints)
	}
	return nil
}

// ThresholdGrid genera minStep, minStep+step, minStep+2·step, … mientras < 1.
//
// Cada umbral se calcula como minStep + i·step en aritmética decimal exacta y
// luego se convierte a float64, así el número de puntos no depende de la
// acumulación de error de sumas repetidas. Devuelve nil si step <= 0,
// minStep >= 1 o la rejilla superaría MaxGridPoints.
func ThresholdGrid(minStep, step float64) []float64 {
	if !(step > 0) || !(minStep < 1) || (1-minStep)/step > MaxGridPoints {
		return nil
	}
	dMin := decimal.NewFromFloat(minStep)
	dStep := decimal.NewFromFloat(step)
	one := decimal.NewFromInt(1)
	at := func(i int64) decimal.Decimal {
		return dMin.Add(dStep.Mul(decimal.NewFromInt(i)))
	}

	// Estimación por división y ajuste exacto en ambos sentidos.
	n := one.Sub(dMin).Div(dStep).Ceil().IntPart()
	if n < 0 {
		n = 0
	}
	for n > 0 && at(n-1).GreaterThanOrEqual(one) {
		n--
	}
	for at(n).LessThan(one) {
		n++
	}

	grid := make([]float64, n)
	for i := int64(0); i < n; i++ {
		grid[i], _ = at(i).Float64()
	}
	return grid
}

// TradeOutcome es el resultado de simular un umbral.
type TradeOutcome struct {
	NetProfit  float64 // producto de (1 + retorno ajustado) - 1
	TradeCount int     // períodos con |r| >= umbral
}

// SimulateTrades calcula el beneficio neto compuesto para un umbral.
//
// El precio asociado al retorno r[i] es series[i+1] (el cierre que realizó el
// movimiento). El retorno del trade k es el cambio entre el precio del activo k
// y el del activo k-1, multiplicado por sign(r) del activo k. Cada trade aporta
// (1 + f·(ret - f·(fees+slippage))) al producto. Sin trades con retorno definido,
// NetProfit = 0. Los valores no finitos se propagan.
func SimulateTrades(series PriceSeries, returns ReturnSeries, threshold, fees, slippage, tradingFraction float64) TradeOutcome {
	cost := tradingFraction * (fees + slippage)
	product := 1.0
	count := 0
	prevPrice := 0.0

	for i, r := range returns {
		if !(math.Abs(r) >= threshold) {
			continue
		}
		price := series[i+1].Price
		if count > 0 {
			tradeReturn := (price - prevPrice) / prevPrice * sign(r)
			product *= 1 + tradingFraction*(tradeReturn-cost)
		}
		prevPrice = price
		count++
	}

	return TradeOutcome{NetProfit: product - 1, TradeCount: count}
}

// CountTrades cuenta los períodos con |r| >= threshold.
// Debe coincidir siempre con SimulateTrades(...).TradeCount.
func CountTrades(returns ReturnSeries, threshold float64) int {
	n := 0
	for _, r := range returns {
		if math.Abs(r) >= threshold {
			n++
		}
	}
	return n
}

// Score combina beneficio y número de trades.
//
//	netProfit·trades > 0 → sqrt(netProfit·trades)
//	en otro caso         → -trades
//
// Un netProfit NaN cae en la segunda rama.
func Score(netProfit float64, tradeCount int) float64 {
	if v := netProfit * float64(tradeCount); v > 0 {
		return math.Sqrt(v)
	}
	return -float64(tradeCount)
}

// MostActiveThreshold devuelve el umbral con más trades en la rejilla
// minMovement, minMovement+step, … < 1. Empata el primero.
func MostActiveThreshold(returns ReturnSeries, minMovement, step float64) (threshold float64, trades int) {
	trades = -1
	for _, t := range ThresholdGrid(minMovement, step) {
		if n := CountTrades(returns, t); n > trades {
			threshold, trades = t, n
		}
	}
	if trades < 0 {
		return 0, 0
	}
	return threshold, trades
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	case v == 0:
		return 0
	}
	return v // NaN
}
