package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alejandrodnm/threshopt/config"
	"github.com/alejandrodnm/threshopt/internal/adapters/csvfile"
	"github.com/alejandrodnm/threshopt/internal/adapters/notify"
	"github.com/alejandrodnm/threshopt/internal/adapters/storage"
	"github.com/alejandrodnm/threshopt/internal/adapters/yahoo"
	"github.com/alejandrodnm/threshopt/internal/domain"
	"github.com/alejandrodnm/threshopt/internal/optimizer"
	"github.com/alejandrodnm/threshopt/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	symbol := flag.String("symbol", "", "asset symbol (e.g. BTC-USD, AAPL, MSFT)")
	period := flag.String("period", "", "lookback period (e.g. 30d, 90d, 180d)")
	interval := flag.String("interval", "", "bar interval (e.g. 1m, 5m, 1h, 1d, 1w, 1M)")
	fraction := flag.String("fraction", "", "trading fraction (e.g. 0.1 for 10%), default 1.0")
	csvPath := flag.String("csv", "", "read prices from a CSV file or dataset directory instead of Yahoo")
	workers := flag.Int("workers", 0, "sweep workers: 0/1 sequential, <0 = NumCPU (overrides config)")
	noCache := flag.Bool("no-cache", false, "skip the SQLite price cache")
	history := flag.Bool("history", false, "print stored runs (filtered by -symbol) and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if isFlagSet("workers") {
		cfg.Optimizer.Workers = *workers
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole(cfg.Optimizer.MaxTraceRows)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *history {
		runHistory(ctx, store, console, *symbol)
		return
	}

	in := newPrompter(os.Stdin, os.Stdout)
	q, frac, err := resolveInput(in, *symbol, *period, *interval, *fraction)
	if err != nil {
		slog.Error("invalid input", "err", err)
		os.Exit(1)
	}
	if frac > 0 {
		cfg.Optimizer.TradingFraction = frac
	}

	slog.Info("threshopt starting",
		"config", *configPath,
		"query", q.CacheKey(),
		"source", sourceName(*csvPath),
		"trading_fraction", cfg.Optimizer.TradingFraction,
		"workers", cfg.Optimizer.Workers,
		"cache", !*noCache,
	)

	if ttl := cfg.CacheTTL(); ttl > 0 {
		if n, err := store.PruneSeries(ctx, ttl); err != nil {
			slog.Warn("cache prune failed", "err", err)
		} else if n > 0 {
			slog.Debug("pruned cached series", "count", n)
		}
	}

	var prices ports.PriceProvider
	if *csvPath != "" {
		prices = csvfile.NewProvider(*csvPath)
	} else {
		prices = yahoo.NewClient(cfg.API.YahooBase, cfg.API.RequestsPerSec)
		if !*noCache {
			prices = storage.NewCachedProvider(prices, store, cfg.CacheTTL())
		}
	}

	runCfg := optimizer.DefaultConfig()
	runCfg.Params = cfg.Params()
	runCfg.Workers = cfg.Optimizer.Workers
	runCfg.ActivityStep = cfg.Optimizer.ActivityStep
	runCfg.RequireMinPoints = cfg.Optimizer.RequireMinPoints

	r := optimizer.New(runCfg, prices, store, console)
	if _, _, err := r.Run(ctx, q); err != nil {
		if optimizer.IsDataError(err) {
			slog.Error("no usable price data", "query", q.CacheKey(), "err", err)
		} else {
			slog.Error("optimization failed", "err", err)
		}
		os.Exit(1)
	}
}

func runHistory(ctx context.Context, store *storage.SQLiteStorage, console *notify.Console, symbol string) {
	runs, err := store.ListRuns(ctx, symbol, 50)
	if err != nil {
		slog.Error("failed to list runs", "err", err)
		os.Exit(1)
	}
	console.PrintHistory(runs)
}

func sourceName(csvPath string) string {
	if csvPath != "" {
		return "csv:" + csvPath
	}
	return "yahoo"
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// stderr: stdout queda para el reporte
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// parseFraction acepta "" (→ 0, usar config) o un valor en (0, 1].
func parseFraction(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	p := domain.DefaultParams()
	p.TradingFraction = v
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return v, nil
}
