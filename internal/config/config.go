// Package config provides Viper-based configuration loading for the combat
// engine and its Arena harness.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/crownfall/internal/sim/combat"
)

// EngineConfig holds the combat engine tuning knobs.
type EngineConfig struct {
	// TickSeconds is the battle time represented by one simulation tick.
	TickSeconds float64 `mapstructure:"tick_seconds"`
	// RangedPhaseMaxTicks caps the ranged exchange before melee begins.
	RangedPhaseMaxTicks int `mapstructure:"ranged_phase_max_ticks"`
	// CleanupTicks is the fixed wind-down duration after a decision.
	CleanupTicks int `mapstructure:"cleanup_ticks"`
	// StalemateCeilingTicks forces a Draw when neither side breaks.
	StalemateCeilingTicks int `mapstructure:"stalemate_ceiling_ticks"`
	// DamagePerTickFraction scales each side's per-tick damage budget.
	DamagePerTickFraction float64 `mapstructure:"damage_per_tick_fraction"`
}

// Tuning bridges the engine section into the combat package's value type.
//
// Postcondition: Returns a Tuning that validates iff the config validated.
func (e EngineConfig) Tuning() combat.Tuning {
	return combat.Tuning{
		TickSeconds:           e.TickSeconds,
		RangedPhaseMaxTicks:   e.RangedPhaseMaxTicks,
		CleanupTicks:          e.CleanupTicks,
		StalemateCeilingTicks: e.StalemateCeilingTicks,
		DamagePerTickFraction: e.DamagePerTickFraction,
	}
}

// ArenaConfig holds batch simulation settings.
type ArenaConfig struct {
	// Workers is the simulation fan-out width; 0 selects one per CPU.
	Workers int `mapstructure:"workers"`
	// DefaultRuns is the batch size used when the caller gives none.
	DefaultRuns int `mapstructure:"default_runs"`
	// UnitsDir is the directory of unit profile YAML files.
	UnitsDir string `mapstructure:"units_dir"`
}

// DatabaseConfig holds PostgreSQL connection settings for the combat
// record archive.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Arena    ArenaConfig    `mapstructure:"arena"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateArena(c.Arena); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	// The combat package owns the tuning invariants.
	if err := e.Tuning().Validate(); err != nil {
		return fmt.Errorf("engine: %s", err)
	}
	return nil
}

func validateArena(a ArenaConfig) error {
	var errs []string
	if a.Workers < 0 {
		errs = append(errs, fmt.Sprintf("arena.workers must be >= 0, got %d", a.Workers))
	}
	if a.DefaultRuns < 1 {
		errs = append(errs, fmt.Sprintf("arena.default_runs must be >= 1, got %d", a.DefaultRuns))
	}
	if a.UnitsDir == "" {
		errs = append(errs, "arena.units_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with CROWNFALL_ prefix
	v.SetEnvPrefix("CROWNFALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.tick_seconds", 1.0)
	v.SetDefault("engine.ranged_phase_max_ticks", 10)
	v.SetDefault("engine.cleanup_ticks", 2)
	v.SetDefault("engine.stalemate_ceiling_ticks", 600)
	v.SetDefault("engine.damage_per_tick_fraction", 0.1)

	v.SetDefault("arena.workers", 0)
	v.SetDefault("arena.default_runs", 100)
	v.SetDefault("arena.units_dir", "content/units")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "crownfall")
	v.SetDefault("database.password", "crownfall")
	v.SetDefault("database.name", "crownfall")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
