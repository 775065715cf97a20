package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"vocab-quest-service/internal/domain"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Storage struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlitePath"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Ledger struct {
		// Backend is empty to keep XP next to the other stores, or "redis".
		Backend string `yaml:"backend"`
	} `yaml:"ledger"`
	XP     domain.XPRules `yaml:"xp"`
	Streak struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"streak"`
}

// Load reads YAML config from path. ${VAR} references are expanded from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaultDriver(cfg)
	}
	switch cfg.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return cfg, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Ledger.Backend != "" && cfg.Ledger.Backend != "redis" {
		return cfg, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
	return cfg, nil
}

func defaultDriver(cfg Config) string {
	if cfg.Postgres.URL != "" {
		return DriverPostgres
	}
	return DriverMemory
}

// XPRules returns the configured rewards, falling back to the defaults for unset values.
func (c Config) XPRules() domain.XPRules {
	rules := domain.DefaultXPRules()
	if c.XP.CorrectAnswer > 0 {
		rules.CorrectAnswer = c.XP.CorrectAnswer
	}
	if c.XP.IncorrectAnswer > 0 {
		rules.IncorrectAnswer = c.XP.IncorrectAnswer
	}
	if c.XP.SessionBonus > 0 {
		rules.SessionBonus = c.XP.SessionBonus
	}
	return rules
}

// Location is the zone used for streak dates. Empty means the server's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Streak.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Streak.Timezone)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
