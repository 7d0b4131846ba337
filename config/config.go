package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Reservation ReservationConfig `yaml:"reservation"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	// EnableExclusionDDL applies the postgres-specific overlap-guard DDL
	// (btree_gist and a GIST index over the reservation interval).
	EnableExclusionDDL bool `yaml:"enable_exclusion_ddl"`
}

// ReservationConfig holds the reservation policy.
type ReservationConfig struct {
	HorizonDays       int    `yaml:"horizon_days"`
	Timezone          string `yaml:"timezone"`
	SlotSearchMaxDays int    `yaml:"slot_search_max_days"`
	GraceMinutes      int    `yaml:"grace_minutes"`

	Location *time.Location `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Reservation.HorizonDays <= 0 {
		cfg.Reservation.HorizonDays = 28
	}
	if cfg.Reservation.SlotSearchMaxDays <= 0 {
		cfg.Reservation.SlotSearchMaxDays = 90
	}
	if cfg.Reservation.GraceMinutes <= 0 {
		cfg.Reservation.GraceMinutes = 5
	}
	if cfg.Reservation.Timezone == "" {
		cfg.Reservation.Timezone = "Europe/Oslo"
	}
	loc, err := time.LoadLocation(cfg.Reservation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Reservation.Timezone, err)
	}
	cfg.Reservation.Location = loc

	return &cfg, nil
}
