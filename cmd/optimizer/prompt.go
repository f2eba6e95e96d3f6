package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// prompter pide por stdin los datos que no vinieron por flags.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

// ask muestra el prompt y devuelve la línea leída, sin espacios.
// En EOF devuelve "".
func (p *prompter) ask(prompt string) string {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		return ""
	}
	return strings.TrimSpace(p.in.Text())
}

// resolveInput completa la query con prompts interactivos para lo que falte.
// La fracción solo se pregunta si también hubo que preguntar algo más.
func resolveInput(p *prompter, symbol, period, interval, fraction string) (domain.Query, float64, error) {
	interactive := symbol == "" || period == "" || interval == ""

	if symbol == "" {
		symbol = p.ask("Please enter the asset symbol (e.g. BTC-USD, AAPL, or MSFT): ")
	}
	if period == "" {
		period = p.ask("Please enter the period (e.g. 30d, 90d, or 180d): ")
	}
	if interval == "" {
		interval = p.ask("Please enter the interval (e.g. 1m, 5m, 15m, 30m, 1h, 1d, 1w, 1M): ")
	}
	if interactive && fraction == "" {
		fraction = p.ask("Please enter the trading percentage (e.g. 0.1 for 10%) or press Enter for 100%: ")
	}

	q := domain.Query{
		Symbol:   strings.TrimSpace(symbol),
		Period:   strings.TrimSpace(period),
		Interval: strings.TrimSpace(interval),
	}
	if err := q.Validate(); err != nil {
		return domain.Query{}, 0, err
	}

	frac, err := parseFraction(strings.TrimSpace(fraction))
	if err != nil {
		return domain.Query{}, 0, fmt.Errorf("trading fraction %q: %w", fraction, err)
	}
	return q, frac, nil
}
