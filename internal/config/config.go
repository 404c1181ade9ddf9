// Package config defines all configuration for the backtester, the
// live/paper trading engine, and the tick collector. Config is loaded from
// a YAML file with sensitive fields overridable via PREDICTENGINE_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"predictengine/internal/model"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure; only the sections relevant to the binary being run need be
// populated.
type Config struct {
	DryRun     bool             `mapstructure:"dry_run"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	API        APIConfig        `mapstructure:"api"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Trading    TradingConfig    `mapstructure:"trading"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

// WalletConfig holds the Ethereum wallet used for signing live orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys. Only needed
// by the live trading binary; the backtester and collector leave it empty.
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds Polymarket API endpoints and optional pre-derived L2
// credentials. The live binary passes ApiKey/Secret/Passphrase to
// tradingapi.NewAuth as given; when they are empty no L1 derivation is
// performed and L2-signed requests carry the empty values.
type APIConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	WSMarketURL  string `mapstructure:"ws_market_url"`
	ApiKey       string `mapstructure:"api_key"`
	Secret       string `mapstructure:"secret"`
	Passphrase   string `mapstructure:"passphrase"`
}

// ExecutionConfig is the YAML-facing mirror of model.ExecutionConfig: fees,
// slippage, and position sizing, expressed as plain floats since viper
// does not unmarshal directly into decimal.Decimal. Callers convert via
// ToModel before handing it to the engines.
type ExecutionConfig struct {
	MakerFeePct      float64 `mapstructure:"maker_fee_pct"`
	TakerFeePct      float64 `mapstructure:"taker_fee_pct"`
	SlippagePct      float64 `mapstructure:"slippage_pct"`
	PositionSizePct  float64 `mapstructure:"position_size_pct"`
	VolatilitySizing bool    `mapstructure:"volatility_sizing"`
	ATRPeriod        int     `mapstructure:"atr_period"`
	TargetRiskPct    float64 `mapstructure:"target_risk_pct"`
}

// RiskConfig sets optional stop-loss/take-profit/circuit-breaker
// thresholds shared by the backtest and live engines. A zero value means
// "not configured" at this layer; callers convert only the non-zero
// fields to *decimal.Decimal.
type RiskConfig struct {
	StopLossPct       float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct     float64 `mapstructure:"take_profit_pct"`
	CircuitBreakerPct float64 `mapstructure:"circuit_breaker_pct"`
	RecoveryPct       float64 `mapstructure:"recovery_pct"`
}

// ToModel converts the YAML-facing float fields to model.ExecutionConfig's
// decimal.Decimal fields.
func (c ExecutionConfig) ToModel() model.ExecutionConfig {
	return model.ExecutionConfig{
		MakerFeePct:      decimal.NewFromFloat(c.MakerFeePct),
		TakerFeePct:      decimal.NewFromFloat(c.TakerFeePct),
		SlippagePct:      decimal.NewFromFloat(c.SlippagePct),
		PositionSizePct:  decimal.NewFromFloat(c.PositionSizePct),
		VolatilitySizing: c.VolatilitySizing,
		ATRPeriod:        c.ATRPeriod,
		TargetRiskPct:    decimal.NewFromFloat(c.TargetRiskPct),
	}
}

// ToModel converts to model.RiskConfig, leaving a field nil ("not
// configured") when its YAML value is zero.
func (c RiskConfig) ToModel() model.RiskConfig {
	return model.RiskConfig{
		StopLossPct:       optionalDecimal(c.StopLossPct),
		TakeProfitPct:      optionalDecimal(c.TakeProfitPct),
		CircuitBreakerPct: optionalDecimal(c.CircuitBreakerPct),
		RecoveryPct:       optionalDecimal(c.RecoveryPct),
	}
}

func optionalDecimal(f float64) *decimal.Decimal {
	if f == 0 {
		return nil
	}
	d := decimal.NewFromFloat(f)
	return &d
}

// BacktestConfig parameterizes a historical backtest run. CandleBaseURL
// points at a Binance-compatible klines REST endpoint.
type BacktestConfig struct {
	Symbols        []string `mapstructure:"symbols"`
	Interval       string   `mapstructure:"interval"`
	InitialCapital float64  `mapstructure:"initial_capital"`
	StartISO       string   `mapstructure:"start"`
	EndISO         string   `mapstructure:"end"`
	Strategy       string   `mapstructure:"strategy"`
	CandleBaseURL  string   `mapstructure:"candle_base_url"`
}

// TradingConfig parameterizes the live/paper trading engine.
type TradingConfig struct {
	PollIntervalS     int      `mapstructure:"poll_interval_s"`
	InitialCapital    float64  `mapstructure:"initial_capital"`
	MaxPositionPct    float64  `mapstructure:"max_position_pct"`
	KellyFraction     float64  `mapstructure:"kelly_fraction"`
	MaxHistory        int      `mapstructure:"max_history"`
	Markets           []string `mapstructure:"markets"`
	SeriesSlugs       []string `mapstructure:"series_slugs"`
	OrderBookRefreshS int      `mapstructure:"order_book_refresh_s"`
	Strategy          string   `mapstructure:"strategy"`
	Paper             bool     `mapstructure:"paper"`
	MaxLossPct        float64  `mapstructure:"max_loss_pct"`
	MaxTicks          int      `mapstructure:"max_ticks"`
	// ExplicitResolutionSell issues a SELL-at-last-mark order for every
	// open position before a rotation replaces the active market set,
	// instead of assuming the venue auto-redeems the winning side
	// on-chain. Defaults to true (see Load).
	ExplicitResolutionSell bool `mapstructure:"explicit_resolution_sell"`
}

// CollectorConfig parameterizes the tick collector. Backend selects
// between the file-based JSON repository and the Postgres-backed one;
// DBUrl is only read when Backend is "postgres".
type CollectorConfig struct {
	StaticConditionIDs []string      `mapstructure:"static_condition_ids"`
	SeriesSlugs        []string      `mapstructure:"series_slugs"`
	FlushBatchSize     int           `mapstructure:"flush_batch_size"`
	FlushIntervalS     int           `mapstructure:"flush_interval_s"`
	DiscoveryLeadS     int           `mapstructure:"discovery_lead_s"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	DeadLetterCapacity int           `mapstructure:"dead_letter_capacity"`
	Backend            string        `mapstructure:"backend"` // "file" or "postgres"
	DataDir            string        `mapstructure:"data_dir"`
	DBUrl              string        `mapstructure:"db_url"`
}

// StoreConfig sets where position/trade data is persisted. Backend selects
// between the file-based JSON store and the Redis-backed one.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "file" or "redis"
	DataDir string `mapstructure:"data_dir"`
	RedisURL string `mapstructure:"redis_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the status/metrics HTTP server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides. Sensitive
// fields use env vars: PREDICTENGINE_WALLET_PRIVATE_KEY,
// PREDICTENGINE_API_API_KEY, PREDICTENGINE_API_SECRET,
// PREDICTENGINE_API_PASSPHRASE, PREDICTENGINE_STORE_REDIS_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PREDICTENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("trading.explicit_resolution_sell", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("PREDICTENGINE_WALLET_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("PREDICTENGINE_API_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("PREDICTENGINE_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("PREDICTENGINE_API_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if url := os.Getenv("PREDICTENGINE_STORE_REDIS_URL"); url != "" {
		cfg.Store.RedisURL = url
	}
	if url := os.Getenv("PREDICTENGINE_COLLECTOR_DB_URL"); url != "" {
		cfg.Collector.DBUrl = url
	}
	if os.Getenv("PREDICTENGINE_DRY_RUN") == "true" || os.Getenv("PREDICTENGINE_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks the fields required to run a live (non-paper) trading
// session. Backtest and collector runs do not need wallet credentials and
// validate their own sections directly in their cmd wiring.
func (c *Config) Validate() error {
	if c.Trading.Paper {
		return nil
	}
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required for live trading (set PREDICTENGINE_WALLET_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	return nil
}
