package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/internal/config"
)

// ValidatorConfig holds the screening thresholds. Reference-currency
// amounts use the token reference prices.
type ValidatorConfig struct {
	MinLiquidityRef    decimal.Decimal
	LiquidityWarnRatio decimal.Decimal
	MinProfitRef       decimal.Decimal
	ProfitWarnRatio    decimal.Decimal
	MaxStaleness       time.Duration
	HighSpreadWarnPct  decimal.Decimal
	LowSpreadWarnPct   decimal.Decimal

	EnforceWhitelist bool
	TokenWhitelist   []common.Address
	TokenBlacklist   []common.Address
	VenueBlacklist   []string
}

// DefaultValidatorConfig returns the stock thresholds.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinLiquidityRef:    decimal.NewFromInt(10_000),
		LiquidityWarnRatio: decimal.RequireFromString("1.5"),
		MinProfitRef:       decimal.NewFromInt(50),
		ProfitWarnRatio:    decimal.RequireFromString("1.2"),
		MaxStaleness:       60 * time.Second,
		HighSpreadWarnPct:  decimal.NewFromInt(10),
		LowSpreadWarnPct:   decimal.RequireFromString("0.3"),
	}
}

// ValidatorConfigFrom maps the loaded configuration.
func ValidatorConfigFrom(c config.ValidatorConfig) ValidatorConfig {
	v := ValidatorConfig{
		MinLiquidityRef:    decimal.NewFromFloat(c.MinLiquidityUSD),
		LiquidityWarnRatio: decimal.NewFromFloat(c.LiquidityWarnRatio),
		MinProfitRef:       decimal.NewFromFloat(c.MinProfitUSD),
		ProfitWarnRatio:    decimal.NewFromFloat(c.ProfitWarnRatio),
		MaxStaleness:       c.MaxStaleness,
		HighSpreadWarnPct:  decimal.NewFromFloat(c.HighSpreadWarnPct),
		LowSpreadWarnPct:   decimal.NewFromFloat(c.LowSpreadWarnPct),
		EnforceWhitelist:   c.EnforceWhitelist,
		VenueBlacklist:     c.VenueBlacklist,
	}
	for _, a := range c.TokenWhitelist {
		v.TokenWhitelist = append(v.TokenWhitelist, common.HexToAddress(a))
	}
	for _, a := range c.TokenBlacklist {
		v.TokenBlacklist = append(v.TokenBlacklist, common.HexToAddress(a))
	}
	return v
}

// Validator screens opportunities through six ordered stages, stopping at the
// first rejection. It reads only its configuration and the opportunity, so the
// same input always yields the same verdict.
type Validator struct {
	cfg   ValidatorConfig
	refs  domain.ReferencePrices
	now   func() time.Time
	allow map[common.Address]bool
	deny  map[common.Address]bool
	venue map[string]bool
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig, refs domain.ReferencePrices) *Validator {
	v := &Validator{
		cfg:   cfg,
		refs:  refs,
		now:   time.Now,
		allow: make(map[common.Address]bool, len(cfg.TokenWhitelist)),
		deny:  make(map[common.Address]bool, len(cfg.TokenBlacklist)),
		venue: make(map[string]bool, len(cfg.VenueBlacklist)),
	}
	for _, a := range cfg.TokenWhitelist {
		v.allow[a] = true
	}
	for _, a := range cfg.TokenBlacklist {
		v.deny[a] = true
	}
	for _, n := range cfg.VenueBlacklist {
		v.venue[strings.ToLower(n)] = true
	}
	return v
}

type stageFunc func(opp *domain.Opportunity, now time.Time, warn func(string)) string

// Validate evaluates opp against the current time.
func (v *Validator) Validate(opp *domain.Opportunity) domain.Verdict {
	return v.ValidateAt(opp, v.now())
}

// ValidateAt evaluates opp as of now.
func (v *Validator) ValidateAt(opp *domain.Opportunity, now time.Time) domain.Verdict {
	stages := []struct {
		stage domain.Stage
		check stageFunc
	}{
		{domain.StageTokens, v.checkTokens},
		{domain.StageVenues, v.checkVenues},
		{domain.StagePrices, v.checkPrices},
		{domain.StageLiquidity, v.checkLiquidity},
		{domain.StageProfit, v.checkProfit},
		{domain.StageFreshness, v.checkFreshness},
	}

	var warnings []string
	warn := func(w string) { warnings = append(warnings, w) }

	for _, s := range stages {
		if reason := s.check(opp, now, warn); reason != "" {
			return domain.Reject(s.stage, reason, warnings)
		}
	}
	return domain.Accept(warnings)
}

func (v *Validator) checkTokens(opp *domain.Opportunity, _ time.Time, _ func(string)) string {
	zero := common.Address{}
	if opp.TokenIn == zero || opp.TokenOut == zero {
		return "token address is empty"
	}
	if opp.TokenIn == opp.TokenOut {
		return "token in and token out are identical"
	}
	for _, t := range []common.Address{opp.TokenIn, opp.TokenOut} {
		if v.deny[t] {
			return fmt.Sprintf("token %s is blacklisted", t.Hex())
		}
		if v.cfg.EnforceWhitelist && !v.allow[t] {
			return fmt.Sprintf("token %s is not whitelisted", t.Hex())
		}
	}
	return ""
}

func (v *Validator) checkVenues(opp *domain.Opportunity, _ time.Time, _ func(string)) string {
	if opp.BuyVenue == "" || opp.SellVenue == "" {
		return "venue name is empty"
	}
	if strings.EqualFold(opp.BuyVenue, opp.SellVenue) {
		return "buy and sell venues are the same"
	}
	for _, n := range []string{opp.BuyVenue, opp.SellVenue} {
		if v.venue[strings.ToLower(n)] {
			return fmt.Sprintf("venue %s is blacklisted", n)
		}
	}
	if opp.BuyPool == (common.Address{}) || opp.SellPool == (common.Address{}) {
		return "pool address is empty"
	}
	return ""
}

func (v *Validator) checkPrices(opp *domain.Opportunity, _ time.Time, warn func(string)) string {
	if !opp.BuyPrice.IsPositive() || !opp.SellPrice.IsPositive() {
		return "prices must be positive"
	}
	if !opp.SellPrice.GreaterThan(opp.BuyPrice) {
		return fmt.Sprintf("sell price %s is not above buy price %s", opp.SellPrice, opp.BuyPrice)
	}

	pct := opp.Spread().Percent
	if pct.GreaterThan(v.cfg.HighSpreadWarnPct) {
		warn(fmt.Sprintf("spread %s%% is unusually high, data may be stale", pct.StringFixed(2)))
	}
	if pct.LessThan(v.cfg.LowSpreadWarnPct) {
		warn(fmt.Sprintf("spread %s%% is likely consumed by fees", pct.StringFixed(2)))
	}
	return ""
}

func (v *Validator) checkLiquidity(opp *domain.Opportunity, _ time.Time, warn func(string)) string {
	value, ok := v.refs.Value(opp.TokenOut, opp.AvailableLiquidity)
	if !ok {
		return fmt.Sprintf("no reference price for %s", opp.TokenOut.Hex())
	}
	if value.LessThan(v.cfg.MinLiquidityRef) {
		return fmt.Sprintf("liquidity %s below floor %s", value.StringFixed(2), v.cfg.MinLiquidityRef.StringFixed(2))
	}
	if value.LessThan(v.cfg.MinLiquidityRef.Mul(v.cfg.LiquidityWarnRatio)) {
		warn(fmt.Sprintf("liquidity %s is close to the floor", value.StringFixed(2)))
	}
	return ""
}

func (v *Validator) checkProfit(opp *domain.Opportunity, _ time.Time, warn func(string)) string {
	if opp.EstimatedProfit == nil {
		warn("no profit estimate")
		return ""
	}
	est := *opp.EstimatedProfit
	if !est.IsPositive() {
		return "estimated profit is not positive"
	}
	value, ok := v.refs.Value(opp.TokenOut, est)
	if !ok {
		return fmt.Sprintf("no reference price for %s", opp.TokenOut.Hex())
	}
	if value.LessThan(v.cfg.MinProfitRef) {
		return fmt.Sprintf("estimated profit %s below minimum %s", value.StringFixed(2), v.cfg.MinProfitRef.StringFixed(2))
	}
	if value.LessThan(v.cfg.MinProfitRef.Mul(v.cfg.ProfitWarnRatio)) {
		warn(fmt.Sprintf("estimated profit %s is close to the minimum", value.StringFixed(2)))
	}
	return ""
}

func (v *Validator) checkFreshness(opp *domain.Opportunity, now time.Time, warn func(string)) string {
	age := opp.Age(now)
	if age > v.cfg.MaxStaleness {
		return fmt.Sprintf("opportunity is stale: age %s exceeds %s", age.Round(time.Second), v.cfg.MaxStaleness)
	}
	if age > v.cfg.MaxStaleness/2 {
		warn(fmt.Sprintf("opportunity is aging: %s old", age.Round(time.Second)))
	}
	return ""
}
