package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// Config es la configuración completa del optimizador.
type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// OptimizerConfig controla la rejilla de umbrales y el modelo de costes.
type OptimizerConfig struct {
	MinStep          float64 `yaml:"min_step"`
	Step             float64 `yaml:"step"`
	Fees             float64 `yaml:"fees"`             // por trade, fracción (0.001 = 0.1%)
	Slippage         float64 `yaml:"slippage"`         // por trade, fracción
	TradingFraction  float64 `yaml:"trading_fraction"` // (0, 1]
	ActivityStep     float64 `yaml:"activity_step"`    // rejilla de "most active"
	Workers          int     `yaml:"workers"`          // 0/1 secuencial, < 0 = NumCPU
	MaxTraceRows     int     `yaml:"max_trace_rows"`   // 0 = todas
	RequireMinPoints bool    `yaml:"require_min_points"`

	// Los *Set distinguen "0 explícito" de "no configurado". Un 0 explícito
	// llega tal cual a domain.Params.Validate.
	MinStepSet         bool `yaml:"-"`
	StepSet            bool `yaml:"-"`
	FeesSet            bool `yaml:"-"`
	SlippageSet        bool `yaml:"-"`
	TradingFractionSet bool `yaml:"-"`
}

// APIConfig contiene el base URL del proveedor de precios.
type APIConfig struct {
	YahooBase      string  `yaml:"yahoo_base"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

// StorageConfig controla dónde se persisten cache y runs.
type StorageConfig struct {
	DSN           string `yaml:"dsn"`             // ruta al archivo SQLite, o ":memory:"
	CacheTTLHours int    `yaml:"cache_ttl_hours"` // 0 = la cache no caduca
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Si el YAML no existe se usan los defaults.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
		markExplicitZeros(data, &cfg)
	case errors.Is(err, os.ErrNotExist):
		// sin archivo: solo defaults + env
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Params devuelve los parámetros del barrido.
func (c *Config) Params() domain.Params {
	return domain.Params{
		MinStep:         c.Optimizer.MinStep,
		Step:            c.Optimizer.Step,
		Fees:            c.Optimizer.Fees,
		Slippage:        c.Optimizer.Slippage,
		TradingFraction: c.Optimizer.TradingFraction,
	}
}

// CacheTTL devuelve la caducidad de la cache de precios como time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Storage.CacheTTLHours) * time.Hour
}

// markExplicitZeros detecta los parámetros del barrido escritos en el YAML,
// aunque valgan 0.
func markExplicitZeros(data []byte, cfg *Config) {
	var raw struct {
		Optimizer map[string]any `yaml:"optimizer"`
	}
	if yaml.Unmarshal(data, &raw) != nil {
		return
	}
	o := &cfg.Optimizer
	_, o.MinStepSet = raw.Optimizer["min_step"]
	_, o.StepSet = raw.Optimizer["step"]
	_, o.FeesSet = raw.Optimizer["fees"]
	_, o.SlippageSet = raw.Optimizer["slippage"]
	_, o.TradingFractionSet = raw.Optimizer["trading_fraction"]
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("THRESHOPT_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.API.YahooBase = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Valores fuera de rango explícitos (p.ej. step negativo) se dejan para que
// domain.Params.Validate los rechace.
func setDefaults(cfg *Config) {
	o := &cfg.Optimizer
	if o.MinStep == 0 && !o.MinStepSet {
		o.MinStep = domain.DefaultMinStep
	}
	if o.Step == 0 && !o.StepSet {
		o.Step = domain.DefaultStep
	}
	if o.Fees == 0 && !o.FeesSet {
		o.Fees = domain.DefaultFees
	}
	if o.Slippage == 0 && !o.SlippageSet {
		o.Slippage = domain.DefaultSlippage
	}
	if o.TradingFraction == 0 && !o.TradingFractionSet {
		o.TradingFraction = domain.DefaultTradingFraction
	}
	if o.ActivityStep <= 0 {
		o.ActivityStep = domain.DefaultActivityStep
	}
	if cfg.API.YahooBase == "" {
		cfg.API.YahooBase = "https://query1.finance.yahoo.com"
	}
	if cfg.API.RequestsPerSec <= 0 {
		cfg.API.RequestsPerSec = 2
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "threshopt.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
