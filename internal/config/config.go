// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fd1az/flashloan-arb/internal/apperror"
)

// Venue kinds.
const (
	KindUniswapV2 = "uniswap_v2"
	KindUniswapV3 = "uniswap_v3"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Tokens     []TokenConfig    `mapstructure:"tokens"`
	Venues     []VenueConfig    `mapstructure:"venues"`
	Pairs      []PairConfig     `mapstructure:"pairs"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Validator  ValidatorConfig  `mapstructure:"validator"`
	Profit     ProfitConfig     `mapstructure:"profit"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	TUIMode    bool             `mapstructure:"-"` // Set at runtime, not from config file
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL      string        `mapstructure:"websocket_url"`
	HTTPURL           string        `mapstructure:"http_url"`
	ChainID           uint64        `mapstructure:"chain_id"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

// TokenConfig describes a known ERC20 token.
type TokenConfig struct {
	Address        string  `mapstructure:"address"`
	Symbol         string  `mapstructure:"symbol"`
	Decimals       uint8   `mapstructure:"decimals"`
	ReferencePrice float64 `mapstructure:"reference_price"` // value of one token in the reference currency
}

// VenueConfig describes one exchange deployment.
type VenueConfig struct {
	Name    string `mapstructure:"name"`
	Kind    string `mapstructure:"kind"`
	Factory string `mapstructure:"factory"`
	Router  string `mapstructure:"router"`
	Quoter  string `mapstructure:"quoter"` // uniswap_v3 only
	FeeBps  int    `mapstructure:"fee_bps"`
}

// FactoryAddress returns the factory as common.Address.
func (v VenueConfig) FactoryAddress() common.Address {
	return common.HexToAddress(v.Factory)
}

// RouterAddress returns the router as common.Address.
func (v VenueConfig) RouterAddress() common.Address {
	return common.HexToAddress(v.Router)
}

// QuoterAddress returns the quoter as common.Address.
func (v VenueConfig) QuoterAddress() common.Address {
	return common.HexToAddress(v.Quoter)
}

// PairConfig is a monitored token pair.
type PairConfig struct {
	TokenA string `mapstructure:"token_a"`
	TokenB string `mapstructure:"token_b"`
}

// AggregatorConfig controls the scan loop.
type AggregatorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MinSpreadPct float64       `mapstructure:"min_spread_pct"`
	EventDriven  bool          `mapstructure:"event_driven"`
}

// ValidatorConfig holds the screening thresholds.
type ValidatorConfig struct {
	MinLiquidityUSD    float64       `mapstructure:"min_liquidity_usd"`
	LiquidityWarnRatio float64       `mapstructure:"liquidity_warn_ratio"`
	MinProfitUSD       float64       `mapstructure:"min_profit_usd"`
	ProfitWarnRatio    float64       `mapstructure:"profit_warn_ratio"`
	MaxStaleness       time.Duration `mapstructure:"max_staleness"`
	HighSpreadWarnPct  float64       `mapstructure:"high_spread_warn_pct"`
	LowSpreadWarnPct   float64       `mapstructure:"low_spread_warn_pct"`
	EnforceWhitelist   bool          `mapstructure:"enforce_whitelist"`
	TokenWhitelist     []string      `mapstructure:"token_whitelist"`
	TokenBlacklist     []string      `mapstructure:"token_blacklist"`
	VenueBlacklist     []string      `mapstructure:"venue_blacklist"`
}

// ProfitConfig holds sizing and profitability thresholds.
type ProfitConfig struct {
	MaxTradeSize        float64 `mapstructure:"max_trade_size"`
	MinTradeAmount      float64 `mapstructure:"min_trade_amount"`
	MinProfitUSD        float64 `mapstructure:"min_profit_usd"`
	MinProfitPct        float64 `mapstructure:"min_profit_pct"`
	MaxSlippagePct      float64 `mapstructure:"max_slippage_pct"`
	GasUnits            uint64  `mapstructure:"gas_units"`
	GasPriceCeilingGwei float64 `mapstructure:"gas_price_ceiling_gwei"`
	FlashLoanFeeBps     int     `mapstructure:"flash_loan_fee_bps"`
	NativePriceUSD      float64 `mapstructure:"native_price_usd"`
}

// ExecutionConfig controls the dispatcher.
type ExecutionConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DryRun          bool          `mapstructure:"dry_run"`
	ContractAddress string        `mapstructure:"contract_address"`
	PrivateKey      string        `mapstructure:"private_key"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	DedupTTL        time.Duration `mapstructure:"dedup_ttl"`
	RedisURL        string        `mapstructure:"redis_url"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	ServiceName    string            `mapstructure:"service_name"`
	OTLPEndpoint   string            `mapstructure:"otlp_endpoint"`
	OTLPHeaders    map[string]string `mapstructure:"otlp_headers"`
	TraceExporter  string            `mapstructure:"trace_exporter"` // zipkin, otlp-grpc, otlp-http, stdout, none
	PrometheusPort int               `mapstructure:"prometheus_port"`
	HealthPort     int               `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithCause(err),
				apperror.WithContext("failed to read config"))
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("failed to unmarshal config"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "ARB_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	// Thresholds
	v.BindEnv("profit.min_profit_usd", "ARB_MIN_PROFIT_USD")
	v.BindEnv("profit.min_profit_pct", "ARB_MIN_PROFIT_PCT")
	v.BindEnv("profit.max_trade_size", "ARB_MAX_TRADE_SIZE")
	v.BindEnv("profit.gas_price_ceiling_gwei", "ARB_GAS_PRICE_CEILING_GWEI")
	v.BindEnv("validator.min_liquidity_usd", "ARB_MIN_LIQUIDITY_USD")

	// Execution
	v.BindEnv("execution.enabled", "ARB_EXECUTION_ENABLED")
	v.BindEnv("execution.dry_run", "ARB_DRY_RUN")
	v.BindEnv("execution.contract_address", "ARB_EXECUTOR_CONTRACT")
	v.BindEnv("execution.private_key", "ARB_EXECUTOR_PRIVATE_KEY")
	v.BindEnv("execution.redis_url", "ARB_REDIS_URL", "REDIS_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.trace_exporter", "ARB_OTEL_TRACE_EXPORTER")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flashloan-arb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.requests_per_second", 25)
	v.SetDefault("ethereum.poll_interval", "12s")
	v.SetDefault("ethereum.reconnect_delay", "5s")

	// Ethereum mainnet tokens
	v.SetDefault("tokens", []map[string]any{
		{"address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "symbol": "WETH", "decimals": 18, "reference_price": 2000},
		{"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "symbol": "USDC", "decimals": 6, "reference_price": 1},
		{"address": "0xdAC17F958D2ee523a2206206994597C13D831ec7", "symbol": "USDT", "decimals": 6, "reference_price": 1},
		{"address": "0x6B175474E89094C44Da98b954EedeAC495271d0F", "symbol": "DAI", "decimals": 18, "reference_price": 1},
		{"address": "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", "symbol": "WBTC", "decimals": 8, "reference_price": 60000},
	})

	// Ethereum mainnet venues
	v.SetDefault("venues", []map[string]any{
		{
			"name": "uniswap_v2", "kind": KindUniswapV2, "fee_bps": 30,
			"factory": "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
			"router":  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		},
		{
			"name": "sushiswap", "kind": KindUniswapV2, "fee_bps": 30,
			"factory": "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
			"router":  "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
		},
		{
			"name": "uniswap_v3", "kind": KindUniswapV3, "fee_bps": 30,
			"factory": "0x1F98431c8aD98523631AE4a59f267346ea31F984",
			"router":  "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45",
			"quoter":  "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		},
	})

	v.SetDefault("pairs", []map[string]any{
		{"token_a": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "token_b": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
		{"token_a": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "token_b": "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		{"token_a": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "token_b": "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
	})

	v.SetDefault("aggregator.poll_interval", "12s")
	v.SetDefault("aggregator.min_spread_pct", 0.5)
	v.SetDefault("aggregator.event_driven", true)

	v.SetDefault("validator.min_liquidity_usd", 10000)
	v.SetDefault("validator.liquidity_warn_ratio", 1.5)
	v.SetDefault("validator.min_profit_usd", 50)
	v.SetDefault("validator.profit_warn_ratio", 1.2)
	v.SetDefault("validator.max_staleness", "60s")
	v.SetDefault("validator.high_spread_warn_pct", 10)
	v.SetDefault("validator.low_spread_warn_pct", 0.3)
	v.SetDefault("validator.enforce_whitelist", false)

	v.SetDefault("profit.max_trade_size", 10)
	v.SetDefault("profit.min_trade_amount", 0.1)
	v.SetDefault("profit.min_profit_usd", 50)
	v.SetDefault("profit.min_profit_pct", 0.5)
	v.SetDefault("profit.max_slippage_pct", 1)
	v.SetDefault("profit.gas_units", 350000)
	v.SetDefault("profit.gas_price_ceiling_gwei", 50)
	v.SetDefault("profit.flash_loan_fee_bps", 9)
	v.SetDefault("profit.native_price_usd", 2000)

	v.SetDefault("execution.enabled", false)
	v.SetDefault("execution.dry_run", true)
	v.SetDefault("execution.gas_limit", 600000)
	v.SetDefault("execution.dedup_ttl", "30s")
	v.SetDefault("execution.lock_ttl", "60s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "flashloan-arb")
	v.SetDefault("telemetry.trace_exporter", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration. Any failure is a startup-fatal
// configuration error.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return configErr("ethereum.http_url is required")
	}

	for i, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return configErr(fmt.Sprintf("tokens[%d].address invalid: %s", i, t.Address))
		}
		if t.Decimals > 36 {
			return configErr(fmt.Sprintf("tokens[%d].decimals out of range: %d", i, t.Decimals))
		}
	}

	if len(c.Venues) < 2 {
		return configErr("at least two venues are required")
	}
	names := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			return configErr(fmt.Sprintf("venues[%d].name is required", i))
		}
		if names[v.Name] {
			return configErr(fmt.Sprintf("duplicate venue name: %s", v.Name))
		}
		names[v.Name] = true

		if !common.IsHexAddress(v.Factory) {
			return configErr(fmt.Sprintf("venues[%d].factory invalid: %s", i, v.Factory))
		}
		switch v.Kind {
		case KindUniswapV2:
		case KindUniswapV3:
			if !common.IsHexAddress(v.Quoter) {
				return configErr(fmt.Sprintf("venues[%d].quoter invalid: %s", i, v.Quoter))
			}
		default:
			return configErr(fmt.Sprintf("venues[%d].kind unknown: %s", i, v.Kind))
		}
		if v.FeeBps < 0 || v.FeeBps >= 10000 {
			return configErr(fmt.Sprintf("venues[%d].fee_bps out of range: %d", i, v.FeeBps))
		}
	}

	if len(c.Pairs) == 0 {
		return configErr("pairs cannot be empty")
	}
	for i, p := range c.Pairs {
		if !common.IsHexAddress(p.TokenA) || !common.IsHexAddress(p.TokenB) {
			return configErr(fmt.Sprintf("pairs[%d] has an invalid address", i))
		}
		if strings.EqualFold(p.TokenA, p.TokenB) {
			return configErr(fmt.Sprintf("pairs[%d] tokens must differ", i))
		}
	}

	if c.Aggregator.PollInterval <= 0 {
		return configErr("aggregator.poll_interval must be positive")
	}
	if c.Aggregator.MinSpreadPct < 0 {
		return configErr("aggregator.min_spread_pct cannot be negative")
	}
	if c.Validator.MaxStaleness <= 0 {
		return configErr("validator.max_staleness must be positive")
	}
	if c.Profit.MaxTradeSize <= 0 || c.Profit.MinTradeAmount <= 0 {
		return configErr("profit trade sizes must be positive")
	}
	if c.Profit.MaxSlippagePct <= 0 {
		return configErr("profit.max_slippage_pct must be positive")
	}
	if c.Profit.GasUnits == 0 {
		return configErr("profit.gas_units must be positive")
	}

	if c.Execution.Enabled {
		if !common.IsHexAddress(c.Execution.ContractAddress) {
			return configErr("execution.contract_address invalid")
		}
		if !c.Execution.DryRun && c.Execution.PrivateKey == "" {
			return configErr("execution.private_key is required unless dry_run is set")
		}
	}

	return nil
}

func configErr(context string) error {
	return apperror.New(apperror.CodeConfigurationError, apperror.WithContext(context))
}

// Decimal helpers

// MaxTradeSizeDecimal returns the maximum trade size.
func (c *ProfitConfig) MaxTradeSizeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxTradeSize)
}

// MinTradeAmountDecimal returns the minimum viable trade amount.
func (c *ProfitConfig) MinTradeAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinTradeAmount)
}

// MinProfitUSDDecimal returns the minimum net profit in reference currency.
func (c *ProfitConfig) MinProfitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitUSD)
}

// MinProfitPctDecimal returns the minimum net profit percentage.
func (c *ProfitConfig) MinProfitPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitPct)
}

// MaxSlippagePctDecimal returns the maximum tolerated price impact per leg.
func (c *ProfitConfig) MaxSlippagePctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxSlippagePct)
}

// GasPriceCeilingWei returns the gas price ceiling in wei.
func (c *ProfitConfig) GasPriceCeilingWei() decimal.Decimal {
	return decimal.NewFromFloat(c.GasPriceCeilingGwei).Shift(9)
}
