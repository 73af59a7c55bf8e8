package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/flashscalper/broker/paradex"
	"github.com/rustyeddy/flashscalper/execution"
	"github.com/rustyeddy/flashscalper/pkg/logging"
	"github.com/rustyeddy/flashscalper/risk"
)

// EnvPrefix prefixes every environment override, e.g.
// SCALPER_EXCHANGE_PRIVATE_KEY for exchange.private_key.
const EnvPrefix = "SCALPER"

// Config is the complete scalper configuration.
type Config struct {
	Enabled    bool             `mapstructure:"enabled" yaml:"enabled"`
	Exchange   ExchangeConfig   `mapstructure:"exchange" yaml:"exchange"`
	Trading    TradingConfig    `mapstructure:"trading" yaml:"trading"`
	TakeProfit TakeProfitConfig `mapstructure:"take_profit" yaml:"take_profit"`
	Journal    JournalConfig    `mapstructure:"journal" yaml:"journal"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// ExchangeConfig holds venue selection and signing material.
type ExchangeConfig struct {
	Environment       string        `mapstructure:"environment" yaml:"environment" validate:"oneof=testnet prod mainnet"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	ChainID           string        `mapstructure:"chain_id" yaml:"chain_id"`
	StarknetAccount   string        `mapstructure:"starknet_account" yaml:"starknet_account"`
	PrivateKey        string        `mapstructure:"private_key" yaml:"private_key" validate:"omitempty,hexadecimal"`
	EthereumAccount   string        `mapstructure:"ethereum_account" yaml:"ethereum_account"`
	RateLimit         float64       `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst         int           `mapstructure:"rate_burst" yaml:"rate_burst" validate:"gte=0"`
	MinimumFundingUSD float64       `mapstructure:"minimum_funding_usd" yaml:"minimum_funding_usd" validate:"gte=0"`
	CatalogTTL        time.Duration `mapstructure:"catalog_ttl" yaml:"catalog_ttl" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// TradingConfig drives sizing, gating and order placement. Percent fields
// are in percent units (10 = 10%).
type TradingConfig struct {
	AgentID              string        `mapstructure:"agent_id" yaml:"agent_id" validate:"required"`
	Leverage             float64       `mapstructure:"leverage" yaml:"leverage" validate:"gt=0,lte=100"`
	PositionSizeUSD      float64       `mapstructure:"position_size_usd" yaml:"position_size_usd" validate:"gte=0"`
	BasePositionPercent  float64       `mapstructure:"base_position_percent" yaml:"base_position_percent" validate:"gt=0,lte=100"`
	MinPositionUSD       float64       `mapstructure:"min_position_usd" yaml:"min_position_usd" validate:"gte=0"`
	MaxPositionUSD       float64       `mapstructure:"max_position_usd" yaml:"max_position_usd" validate:"gte=0"`
	ConfidenceSizing     bool          `mapstructure:"confidence_sizing" yaml:"confidence_sizing"`
	ConfidenceBoostMax   float64       `mapstructure:"confidence_boost_max" yaml:"confidence_boost_max" validate:"gte=1"`
	ConfidenceReduction  float64       `mapstructure:"confidence_reduction" yaml:"confidence_reduction" validate:"gt=0,lte=1"`
	WinRateSizing        bool          `mapstructure:"win_rate_sizing" yaml:"win_rate_sizing"`
	WinRateHighThreshold float64       `mapstructure:"win_rate_high_threshold" yaml:"win_rate_high_threshold" validate:"gte=0,lte=1"`
	WinRateWindow        int           `mapstructure:"win_rate_window" yaml:"win_rate_window" validate:"gte=0"`
	MaxPositions         int           `mapstructure:"max_positions" yaml:"max_positions" validate:"gte=1"`
	MaxExposurePercent   float64       `mapstructure:"max_exposure_percent" yaml:"max_exposure_percent" validate:"gt=0,lte=100"`
	PaperOnError         bool          `mapstructure:"paper_on_error" yaml:"paper_on_error"`
	LimitGrace           time.Duration `mapstructure:"limit_grace" yaml:"limit_grace" validate:"gte=0"`
	MaxHold              time.Duration `mapstructure:"max_hold" yaml:"max_hold" validate:"gte=0"`
}

type TakeProfitConfig struct {
	BaseROE           float64 `mapstructure:"base_roe" yaml:"base_roe" validate:"gt=0"`
	DynamicATR        bool    `mapstructure:"dynamic_atr" yaml:"dynamic_atr"`
	ATRMultiplier     float64 `mapstructure:"atr_multiplier" yaml:"atr_multiplier" validate:"gte=0"`
	HighConfidenceROE float64 `mapstructure:"high_confidence_roe" yaml:"high_confidence_roe" validate:"gte=0"`
}

// JournalConfig selects where positions and trades are recorded.
type JournalConfig struct {
	Type     string        `mapstructure:"type" yaml:"type" validate:"oneof=sqlite csv postgres memory"`
	Path     string        `mapstructure:"path" yaml:"path"`
	Dir      string        `mapstructure:"dir" yaml:"dir"`
	DSN      string        `mapstructure:"dsn" yaml:"dsn"`
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" validate:"gte=0"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Enabled: true,
		Exchange: ExchangeConfig{
			Environment:       "testnet",
			MinimumFundingUSD: paradex.DefaultMinimumFundingUSD,
			CatalogTTL:        5 * time.Minute,
			Timeout:           15 * time.Second,
		},
		Trading: TradingConfig{
			AgentID:              "scalper",
			Leverage:             5,
			BasePositionPercent:  10,
			MinPositionUSD:       10,
			MaxPositionUSD:       500,
			ConfidenceBoostMax:   1.5,
			ConfidenceReduction:  0.7,
			WinRateHighThreshold: 0.65,
			WinRateWindow:        20,
			MaxPositions:         3,
			MaxExposurePercent:   50,
			PaperOnError:         true,
			LimitGrace:           execution.DefaultLimitGrace,
			MaxHold:              30 * time.Minute,
		},
		TakeProfit: TakeProfitConfig{
			BaseROE:       10,
			ATRMultiplier: 2,
		},
		Journal: JournalConfig{
			Type:     "sqlite",
			Path:     "./scalper.db",
			CacheTTL: time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// Load resolves configuration in order: defaults, the file at path (if
// non-empty), SCALPER_* environment variables, then overrides keyed by
// dotted path ("trading.leverage").
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range overrides {
		v.Set(k, val)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints, then rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	t := c.Trading
	if t.MaxPositionUSD > 0 && t.MinPositionUSD > t.MaxPositionUSD {
		return fmt.Errorf("trading.min_position_usd (%.2f) must not exceed trading.max_position_usd (%.2f)",
			t.MinPositionUSD, t.MaxPositionUSD)
	}
	if c.TakeProfit.DynamicATR && c.TakeProfit.ATRMultiplier <= 0 {
		return fmt.Errorf("take_profit.atr_multiplier must be positive when dynamic_atr is enabled")
	}
	if c.Exchange.PrivateKey != "" && c.Exchange.StarknetAccount == "" {
		return fmt.Errorf("exchange.starknet_account is required with exchange.private_key")
	}

	switch j := c.Journal; j.Type {
	case "sqlite":
		if j.Path == "" {
			return fmt.Errorf("journal.path required for sqlite journal")
		}
	case "csv":
		if j.Dir == "" {
			return fmt.Errorf("journal.dir required for csv journal")
		}
	case "postgres":
		if j.DSN == "" {
			return fmt.Errorf("journal.dsn required for postgres journal")
		}
	}
	if c.Journal.RedisURL != "" && (c.Journal.Type == "csv" || c.Journal.Type == "memory") {
		return fmt.Errorf("journal.redis_url only applies to sqlite and postgres journals")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	// drop the leading "Config."
	name := fe.Namespace()
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fmt.Sprint(fe.Value()))
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s, got %v", name, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}

// ResolveBaseURL prefers an explicit base URL, then the environment's.
func (c *Config) ResolveBaseURL() (string, error) {
	if c.Exchange.BaseURL != "" {
		return strings.TrimRight(c.Exchange.BaseURL, "/"), nil
	}
	return paradex.BaseURL(c.Exchange.Environment)
}

func (c *Config) ResolveChainID() string {
	if c.Exchange.ChainID != "" {
		return c.Exchange.ChainID
	}
	return paradex.ChainID(c.Exchange.Environment)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Exchange.PrivateKey != "" {
		cp.Exchange.PrivateKey = "******"
	}
	if cp.Journal.DSN != "" {
		cp.Journal.DSN = "******"
	}
	if cp.Journal.RedisURL != "" {
		cp.Journal.RedisURL = "******"
	}
	return &cp
}

func (c *Config) Execution() execution.Config {
	t := c.Trading
	return execution.Config{
		AgentID:  t.AgentID,
		Leverage: t.Leverage,
		Sizing: risk.SizingConfig{
			FixedNotionalUSD:     t.PositionSizeUSD,
			BasePercent:          t.BasePositionPercent,
			MinPositionUSD:       t.MinPositionUSD,
			MaxPositionUSD:       t.MaxPositionUSD,
			ConfidenceSizing:     t.ConfidenceSizing,
			ConfidenceBoostMax:   t.ConfidenceBoostMax,
			ConfidenceReduction:  t.ConfidenceReduction,
			WinRateSizing:        t.WinRateSizing,
			WinRateHighThreshold: t.WinRateHighThreshold,
		},
		Gate: risk.GateConfig{
			MaxPositions:       t.MaxPositions,
			MaxExposurePercent: t.MaxExposurePercent,
		},
		TakeProfit: execution.TakeProfitConfig{
			BaseROE:           c.TakeProfit.BaseROE,
			DynamicATR:        c.TakeProfit.DynamicATR,
			ATRMultiplier:     c.TakeProfit.ATRMultiplier,
			HighConfidenceROE: c.TakeProfit.HighConfidenceROE,
		},
		PaperOnError:  t.PaperOnError,
		LimitGrace:    t.LimitGrace,
		MaxHold:       t.MaxHold,
		WinRateWindow: t.WinRateWindow,
	}
}

func (c *Config) Logging() logging.Config {
	l := c.Log
	return logging.Config{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// Client builds Paradex client options around signer. Logger and observer
// are left for the caller.
func (c *Config) Client(signer paradex.Signer) (paradex.Options, error) {
	base, err := c.ResolveBaseURL()
	if err != nil {
		return paradex.Options{}, err
	}
	e := c.Exchange
	return paradex.Options{
		BaseURL:           base,
		ChainID:           c.ResolveChainID(),
		Signer:            signer,
		EthereumAccount:   e.EthereumAccount,
		HTTPClient:        &http.Client{Timeout: e.Timeout},
		RateLimit:         e.RateLimit,
		RateBurst:         e.RateBurst,
		MinimumFundingUSD: e.MinimumFundingUSD,
		CatalogTTL:        e.CatalogTTL,
	}, nil
}

// Signer builds a key signer from the configured account and seed.
func (c *Config) Signer() (*paradex.KeySigner, error) {
	if c.Exchange.StarknetAccount == "" || c.Exchange.PrivateKey == "" {
		return nil, fmt.Errorf("exchange.starknet_account and exchange.private_key are required for live trading")
	}
	return paradex.NewKeySigner(c.Exchange.StarknetAccount, c.Exchange.PrivateKey)
}
