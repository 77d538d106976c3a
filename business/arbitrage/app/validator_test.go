package app

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
)

func TestValidator_Stages(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		cfg       func(*ValidatorConfig)
		mutate    func(*domain.Opportunity)
		wantValid bool
		wantStage domain.Stage
		wantWarn  string
	}{
		{
			name:      "clean opportunity",
			wantValid: true,
		},
		{
			name:      "zero token",
			mutate:    func(o *domain.Opportunity) { o.TokenIn = common.Address{} },
			wantStage: domain.StageTokens,
		},
		{
			name:      "identical tokens",
			mutate:    func(o *domain.Opportunity) { o.TokenOut = o.TokenIn },
			wantStage: domain.StageTokens,
		},
		{
			name:      "blacklisted token",
			cfg:       func(c *ValidatorConfig) { c.TokenBlacklist = []common.Address{usdc} },
			wantStage: domain.StageTokens,
		},
		{
			name: "token outside enforced whitelist",
			cfg: func(c *ValidatorConfig) {
				c.EnforceWhitelist = true
				c.TokenWhitelist = []common.Address{weth, dai}
			},
			wantStage: domain.StageTokens,
		},
		{
			name: "whitelist not enforced",
			cfg: func(c *ValidatorConfig) {
				c.TokenWhitelist = []common.Address{dai}
			},
			wantValid: true,
		},
		{
			name:      "same venue",
			mutate:    func(o *domain.Opportunity) { o.SellVenue = o.BuyVenue },
			wantStage: domain.StageVenues,
		},
		{
			name:      "blacklisted venue",
			cfg:       func(c *ValidatorConfig) { c.VenueBlacklist = []string{"SushiSwap"} },
			wantStage: domain.StageVenues,
		},
		{
			name:      "empty pool",
			mutate:    func(o *domain.Opportunity) { o.SellPool = common.Address{} },
			wantStage: domain.StageVenues,
		},
		{
			name:      "zero price",
			mutate:    func(o *domain.Opportunity) { o.BuyPrice = dec("0") },
			wantStage: domain.StagePrices,
		},
		{
			name:      "sell equals buy",
			mutate:    func(o *domain.Opportunity) { o.SellPrice = o.BuyPrice },
			wantStage: domain.StagePrices,
		},
		{
			name:      "high spread warns",
			mutate:    func(o *domain.Opportunity) { o.SellPrice = dec("1200") },
			wantValid: true,
			wantWarn:  "unusually high",
		},
		{
			name:      "low spread warns",
			mutate:    func(o *domain.Opportunity) { o.SellPrice = dec("1002") },
			wantValid: true,
			wantWarn:  "consumed by fees",
		},
		{
			name:      "liquidity below floor",
			mutate:    func(o *domain.Opportunity) { o.AvailableLiquidity = dec("9000") },
			wantStage: domain.StageLiquidity,
		},
		{
			name:      "liquidity at floor",
			mutate:    func(o *domain.Opportunity) { o.AvailableLiquidity = dec("10000") },
			wantValid: true,
			wantWarn:  "close to the floor",
		},
		{
			name:      "no reference price",
			mutate:    func(o *domain.Opportunity) { o.TokenOut = dai },
			wantStage: domain.StageLiquidity,
		},
		{
			name:      "missing estimate warns",
			mutate:    func(o *domain.Opportunity) { o.EstimatedProfit = nil },
			wantValid: true,
			wantWarn:  "no profit estimate",
		},
		{
			name: "negative estimate",
			mutate: func(o *domain.Opportunity) {
				v := dec("-1")
				o.EstimatedProfit = &v
			},
			wantStage: domain.StageProfit,
		},
		{
			name: "estimate below minimum",
			mutate: func(o *domain.Opportunity) {
				v := dec("49.99")
				o.EstimatedProfit = &v
			},
			wantStage: domain.StageProfit,
		},
		{
			name: "estimate close to minimum",
			mutate: func(o *domain.Opportunity) {
				v := dec("55")
				o.EstimatedProfit = &v
			},
			wantValid: true,
			wantWarn:  "close to the minimum",
		},
		{
			name:      "stale at 61s",
			mutate:    func(o *domain.Opportunity) { o.Timestamp = now.Add(-61 * time.Second) },
			wantStage: domain.StageFreshness,
		},
		{
			name:      "aging at 59s",
			mutate:    func(o *domain.Opportunity) { o.Timestamp = now.Add(-59 * time.Second) },
			wantValid: true,
			wantWarn:  "aging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultValidatorConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			opp := baseOpportunity(now)
			if tt.mutate != nil {
				tt.mutate(opp)
			}

			got := NewValidator(cfg, testRefs()).ValidateAt(opp, now)

			if got.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (stage %s: %s)", got.Valid, tt.wantValid, got.Stage, got.Reason)
			}
			if !tt.wantValid {
				if got.Stage != tt.wantStage {
					t.Errorf("Stage = %s, want %s", got.Stage, tt.wantStage)
				}
				if got.Reason == "" {
					t.Error("rejection without reason")
				}
			}
			if tt.wantWarn != "" && !hasWarning(got.Warnings, tt.wantWarn) {
				t.Errorf("warnings %v missing %q", got.Warnings, tt.wantWarn)
			}
			if tt.wantValid && tt.wantWarn == "" && len(got.Warnings) > 0 {
				t.Errorf("unexpected warnings %v", got.Warnings)
			}
		})
	}
}

func TestValidator_FirstFailingStageWins(t *testing.T) {
	now := time.Now()
	opp := baseOpportunity(now.Add(-10 * time.Minute))
	opp.TokenOut = opp.TokenIn

	got := NewValidator(DefaultValidatorConfig(), testRefs()).ValidateAt(opp, now)
	if got.Stage != domain.StageTokens {
		t.Errorf("Stage = %s, want tokens", got.Stage)
	}
}

func TestValidator_Deterministic(t *testing.T) {
	now := time.Now()
	v := NewValidator(DefaultValidatorConfig(), testRefs())

	for _, opp := range []*domain.Opportunity{
		baseOpportunity(now),
		baseOpportunity(now.Add(-40 * time.Second)),
		baseOpportunity(now.Add(-2 * time.Minute)),
	} {
		first := v.ValidateAt(opp, now)
		second := v.ValidateAt(opp, now)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("verdicts differ: %+v vs %+v", first, second)
		}
	}
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
