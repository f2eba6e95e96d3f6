package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// Console implementa ports.Reporter.
type Console struct {
	out     io.Writer
	maxRows int // 0 = todas las filas con trades
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(maxRows int) *Console {
	return &Console{out: os.Stdout, maxRows: maxRows}
}

// NewConsoleWriter crea un reporter sobre un writer arbitrario (tests).
func NewConsoleWriter(w io.Writer, maxRows int) *Console {
	return &Console{out: w, maxRows: maxRows}
}

// Report imprime el mejor umbral y la tabla de umbrales con al menos un trade.
func (c *Console) Report(_ context.Context, run domain.RunRecord, result domain.OptimizationResult) error {
	fmt.Fprintf(c.out, "\n=== %s  %s @ %s  (%d points, fraction %.0f%%) ===\n",
		run.Query.Symbol, run.Query.Period, run.Query.Interval,
		run.Points, run.Params.TradingFraction*100)

	fmt.Fprintf(c.out, "Best Threshold: %s, Number of Trades: %d\n",
		pct(result.BestThreshold), result.BestTradeCount)
	if best, ok := result.Best(); ok && best.TradeCount > 0 {
		fmt.Fprintf(c.out, "  net profit %s  score %.4f\n", pct(best.NetProfit), result.BestScore)
	}
	if run.MostActiveN > 0 {
		fmt.Fprintf(c.out, "  most active: %s (%d trades)\n", pct(run.MostActive), run.MostActiveN)
	}

	rows := result.ActiveRows()
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "\n  No threshold produced any trade.")
		return nil
	}

	hidden := 0
	if c.maxRows > 0 && len(rows) > c.maxRows {
		hidden = len(rows) - c.maxRows
		rows = rows[:c.maxRows]
	}

	fmt.Fprintln(c.out, "\nThresholds, Percentage Profit, and Number of Trades:")
	table := tablewriter.NewWriter(c.out)
	table.Header("Threshold", "Profit", "Trades", "Score")
	for _, tp := range rows {
		mark := ""
		if tp.Threshold == result.BestThreshold {
			mark = " *"
		}
		table.Append(
			pct(tp.Threshold)+mark,
			pct(tp.NetProfit),
			fmt.Sprintf("%d", tp.TradeCount),
			fmt.Sprintf("%.4f", tp.Score),
		)
	}
	table.Render()

	if hidden > 0 {
		fmt.Fprintf(c.out, "  ... %d more rows (max_trace_rows=%d)\n", hidden, c.maxRows)
	}
	fmt.Fprintln(c.out)
	return nil
}

// PrintHistory imprime las optimizaciones guardadas.
func (c *Console) PrintHistory(runs []domain.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "\n  No runs stored yet.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("When", "Symbol", "Period", "Interval", "Points", "Best", "Trades", "Profit", "Fraction")
	for _, r := range runs {
		table.Append(
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Query.Symbol,
			r.Query.Period,
			r.Query.Interval,
			fmt.Sprintf("%d", r.Points),
			pct(r.BestThreshold),
			fmt.Sprintf("%d", r.BestTradeCount),
			pct(r.BestNetProfit),
			fmt.Sprintf("%.0f%%", r.Params.TradingFraction*100),
		)
	}
	table.Render()
}

// --- helpers ---

// pct formatea una fracción como porcentaje con 2 decimales; NaN/Inf sin signo de %.
func pct(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}
