package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fd1az/flashloan-arb/internal/apperror"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("ARB_ETH_HTTP_URL", "http://localhost:8545")
	t.Setenv("ARB_MIN_PROFIT_USD", "75")

	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Ethereum.HTTPURL != "http://localhost:8545" {
		t.Errorf("HTTPURL = %s", cfg.Ethereum.HTTPURL)
	}
	if cfg.Profit.MinProfitUSD != 75 {
		t.Errorf("MinProfitUSD = %v, want 75", cfg.Profit.MinProfitUSD)
	}
	if cfg.Aggregator.PollInterval != 12*time.Second {
		t.Errorf("PollInterval = %s, want 12s", cfg.Aggregator.PollInterval)
	}
	if cfg.Validator.MaxStaleness != 60*time.Second {
		t.Errorf("MaxStaleness = %s, want 60s", cfg.Validator.MaxStaleness)
	}
	if len(cfg.Venues) != 3 {
		t.Fatalf("len(Venues) = %d, want 3", len(cfg.Venues))
	}
	if cfg.Venues[2].Kind != KindUniswapV3 {
		t.Errorf("Venues[2].Kind = %s, want %s", cfg.Venues[2].Kind, KindUniswapV3)
	}
	if len(cfg.Tokens) == 0 || cfg.Tokens[1].Decimals != 6 {
		t.Errorf("expected USDC with 6 decimals, got %+v", cfg.Tokens)
	}
	if cfg.Validator.EnforceWhitelist {
		t.Error("whitelist enforcement should default to off")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
ethereum:
  http_url: http://node:8545
aggregator:
  poll_interval: 3s
  min_spread_pct: 0.8
profit:
  max_trade_size: 2
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Aggregator.PollInterval != 3*time.Second {
		t.Errorf("PollInterval = %s, want 3s", cfg.Aggregator.PollInterval)
	}
	if cfg.Aggregator.MinSpreadPct != 0.8 {
		t.Errorf("MinSpreadPct = %v, want 0.8", cfg.Aggregator.MinSpreadPct)
	}
	if got := cfg.Profit.MaxTradeSizeDecimal().String(); got != "2" {
		t.Errorf("MaxTradeSize = %s, want 2", got)
	}
}

func validConfig() Config {
	return Config{
		Ethereum: EthereumConfig{HTTPURL: "http://localhost:8545"},
		Tokens: []TokenConfig{
			{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18},
		},
		Venues: []VenueConfig{
			{Name: "a", Kind: KindUniswapV2, Factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f", FeeBps: 30},
			{Name: "b", Kind: KindUniswapV2, Factory: "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac", FeeBps: 30},
		},
		Pairs: []PairConfig{{
			TokenA: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			TokenB: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		}},
		Aggregator: AggregatorConfig{PollInterval: time.Second, MinSpreadPct: 0.5},
		Validator:  ValidatorConfig{MaxStaleness: time.Minute},
		Profit:     ProfitConfig{MaxTradeSize: 10, MinTradeAmount: 0.1, MaxSlippagePct: 1, GasUnits: 350000},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing http url", mutate: func(c *Config) { c.Ethereum.HTTPURL = "" }, wantErr: true},
		{name: "single venue", mutate: func(c *Config) { c.Venues = c.Venues[:1] }, wantErr: true},
		{name: "duplicate venue", mutate: func(c *Config) { c.Venues[1].Name = "a" }, wantErr: true},
		{name: "unknown kind", mutate: func(c *Config) { c.Venues[0].Kind = "curve" }, wantErr: true},
		{name: "v3 without quoter", mutate: func(c *Config) { c.Venues[0].Kind = KindUniswapV3 }, wantErr: true},
		{name: "identical pair tokens", mutate: func(c *Config) { c.Pairs[0].TokenB = c.Pairs[0].TokenA }, wantErr: true},
		{name: "bad token address", mutate: func(c *Config) { c.Tokens[0].Address = "0x123" }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.Aggregator.PollInterval = 0 }, wantErr: true},
		{
			name: "execution needs key",
			mutate: func(c *Config) {
				c.Execution.Enabled = true
				c.Execution.ContractAddress = "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
			},
			wantErr: true,
		},
		{
			name: "execution dry run without key",
			mutate: func(c *Config) {
				c.Execution.Enabled = true
				c.Execution.DryRun = true
				c.Execution.ContractAddress = "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && apperror.GetCode(err) != apperror.CodeConfigurationError {
				t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeConfigurationError)
			}
		})
	}
}
