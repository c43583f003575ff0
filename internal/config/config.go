// Package config loads pointex configuration.
//
// Sources, lowest to highest precedence:
//   - built-in defaults (Default)
//   - a CUE or JSON file validated against an embedded CUE schema
//   - POINTEX_* environment variables
//
// Command-line flags are applied on top by the CLI.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"

	"github.com/roach88/pointex/internal/exchange"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "POINTEX_"

// Config is the complete runtime configuration.
type Config struct {
	EraLength           uint64 `json:"era_length" env:"ERA_LENGTH"`
	MaxRewardCount      uint32 `json:"max_reward_count" env:"MAX_REWARD_COUNT"`
	HistoryDepth        uint32 `json:"history_depth" env:"HISTORY_DEPTH"`
	ProportionPrecision uint8  `json:"proportion_precision" env:"PROPORTION_PRECISION"`
	RewardMode          string `json:"reward_mode" env:"REWARD_MODE"`
	ResortOnRefresh     bool   `json:"resort_on_refresh" env:"RESORT_ON_REFRESH"`
	Database            string `json:"database" env:"DATABASE"`
	HTTPAddr            string `json:"http_addr" env:"HTTP_ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := exchange.DefaultParams()
	return Config{
		EraLength:           p.EraLength,
		MaxRewardCount:      p.MaxRewardCount,
		HistoryDepth:        p.HistoryDepth,
		ProportionPrecision: p.Precision,
		RewardMode:          exchange.RewardModeToken,
		Database:            "pointex.db",
		HTTPAddr:            "127.0.0.1:8645",
	}
}

// Params returns the engine parameters of c.
func (c Config) Params() exchange.Params {
	return exchange.Params{
		EraLength:       c.EraLength,
		MaxRewardCount:  c.MaxRewardCount,
		HistoryDepth:    c.HistoryDepth,
		Precision:       c.ProportionPrecision,
		ResortOnRefresh: c.ResortOnRefresh,
	}
}

// Validate checks c as a whole.
func (c Config) Validate() error {
	var errs []error
	if err := c.Params().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.RewardMode {
	case exchange.RewardModeToken, exchange.RewardModePoint:
	default:
		errs = append(errs, fmt.Errorf("reward mode %q is not %q or %q", c.RewardMode, exchange.RewardModeToken, exchange.RewardModePoint))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	return errors.Join(errs...)
}

// LoadOption adjusts a Load call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	environ map[string]string
}

// WithEnvironment replaces the process environment as the source of
// POINTEX_* variables.
func WithEnvironment(environ map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load builds a Config from the defaults, the file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string, opts ...LoadOption) (Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := overlayFile(&cfg, path, src); err != nil {
			return Config{}, err
		}
	}

	envOpts := env.Options{Prefix: EnvPrefix}
	if o.environ != nil {
		envOpts.Environment = o.environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fileConfig mirrors Config with optional fields so absent keys keep the
// values already in place.
type fileConfig struct {
	EraLength           *uint64 `json:"era_length"`
	MaxRewardCount      *uint32 `json:"max_reward_count"`
	HistoryDepth        *uint32 `json:"history_depth"`
	ProportionPrecision *uint8  `json:"proportion_precision"`
	RewardMode          *string `json:"reward_mode"`
	ResortOnRefresh     *bool   `json:"resort_on_refresh"`
	Database            *string `json:"database"`
	HTTPAddr            *string `json:"http_addr"`
}

// overlayFile validates src against the schema and copies the fields it
// sets into cfg.
func overlayFile(cfg *Config, path string, src []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.CompileBytes(src, cue.Filename(path))
	if err := value.Err(); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate config %s: %w", path, err)
	}

	var fc fileConfig
	if err := unified.Decode(&fc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	if fc.EraLength != nil {
		cfg.EraLength = *fc.EraLength
	}
	if fc.MaxRewardCount != nil {
		cfg.MaxRewardCount = *fc.MaxRewardCount
	}
	if fc.HistoryDepth != nil {
		cfg.HistoryDepth = *fc.HistoryDepth
	}
	if fc.ProportionPrecision != nil {
		cfg.ProportionPrecision = *fc.ProportionPrecision
	}
	if fc.RewardMode != nil {
		cfg.RewardMode = *fc.RewardMode
	}
	if fc.ResortOnRefresh != nil {
		cfg.ResortOnRefresh = *fc.ResortOnRefresh
	}
	if fc.Database != nil {
		cfg.Database = *fc.Database
	}
	if fc.HTTPAddr != nil {
		cfg.HTTPAddr = *fc.HTTPAddr
	}
	return nil
}
