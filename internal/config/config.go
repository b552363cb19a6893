package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	// BusListen enables the Postgres LISTEN/NOTIFY change feed. It only
	// takes effect when DatabaseURL is set and the notify triggers have
	// been installed by the migrations.
	BusListen bool `env:"BUS_LISTEN" envDefault:"true"`

	DefaultInitialCents    int64 `env:"DEFAULT_INITIAL_CENTS" envDefault:"5000"`
	DefaultDurationMinutes int   `env:"DEFAULT_DURATION_MINUTES" envDefault:"120"`
	ReconcilePollSeconds   int   `env:"RECONCILE_POLL_SECONDS" envDefault:"30"`

	VenueSearchURL string `env:"VENUE_SEARCH_URL"`

	// RawPresets overrides the built-in ledger preset table. The value is
	// a JSON object mapping preset keys to {"kind": ..., "amount_cents": ...}.
	RawPresets string `env:"LEDGER_PRESETS"`

	DBMaxOpenConns           int `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns           int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeSeconds int `env:"DB_CONN_MAX_LIFETIME_SECONDS" envDefault:"300"`
	DBConnMaxIdleTimeSeconds int `env:"DB_CONN_MAX_IDLE_SECONDS" envDefault:"60"`

	Presets map[string]Preset `env:"-"`
}

// Preset names a fixed pooled-fund operation, e.g. spend_10 -> subtract 1000.
type Preset struct {
	Kind        string `json:"kind"`
	AmountCents int64  `json:"amount_cents"`
}

func Default() Config {
	return Config{
		Port:                     "8080",
		BusListen:                true,
		DefaultInitialCents:      5000,
		DefaultDurationMinutes:   120,
		ReconcilePollSeconds:     30,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		Presets:                  DefaultPresets(),
	}
}

// DefaultPresets is the built-in preset table. Amounts are minor currency
// units, so spend_10 subtracts 10 whole units from the pooled fund.
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		"spend_10": {Kind: "subtract", AmountCents: 1000},
		"spend_20": {Kind: "subtract", AmountCents: 2000},
		"spend_50": {Kind: "subtract", AmountCents: 5000},
		"add_5":    {Kind: "add", AmountCents: 500},
		"add_10":   {Kind: "add", AmountCents: 1000},
		"reset":    {Kind: "reset"},
	}
}

func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	presets, err := parsePresets(cfg.RawPresets)
	if err != nil {
		return cfg, err
	}
	cfg.Presets = presets
	return cfg, nil
}

func parsePresets(raw string) (map[string]Preset, error) {
	presets := DefaultPresets()
	if raw == "" {
		return presets, nil
	}
	overrides := make(map[string]Preset)
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return nil, fmt.Errorf("LEDGER_PRESETS is not valid JSON: %w", err)
	}
	for key, preset := range overrides {
		if err := validatePreset(key, preset); err != nil {
			return nil, err
		}
		presets[key] = preset
	}
	return presets, nil
}

func validatePreset(key string, preset Preset) error {
	if key == "" {
		return fmt.Errorf("preset key must not be empty")
	}
	switch preset.Kind {
	case "add", "subtract", "set", "reset":
	default:
		return fmt.Errorf("preset %q has unknown kind %q", key, preset.Kind)
	}
	if preset.AmountCents < 0 {
		return fmt.Errorf("preset %q has negative amount", key)
	}
	return nil
}
