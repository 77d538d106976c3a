package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/internal/config"
)

var (
	hundred  = decimal.NewFromInt(100)
	bpsScale = decimal.NewFromInt(10_000)
	weiScale = decimal.New(1, 18)
	ten      = decimal.NewFromInt(10)
)

// ProfitConfig holds sizing and cost parameters. Reference-currency
// amounts use the token reference prices.
type ProfitConfig struct {
	MaxTradeSize       decimal.Decimal
	MinTradeAmount     decimal.Decimal
	MinProfitRef       decimal.Decimal
	MinProfitPct       decimal.Decimal
	MaxSlippagePct     decimal.Decimal
	GasUnits           uint64
	GasPriceCeilingWei decimal.Decimal
	FlashLoanFeeBps    int
	NativePriceRef     decimal.Decimal
}

// DefaultProfitConfig returns the stock sizing parameters.
func DefaultProfitConfig() ProfitConfig {
	return ProfitConfig{
		MaxTradeSize:       decimal.NewFromInt(10),
		MinTradeAmount:     decimal.RequireFromString("0.1"),
		MinProfitRef:       decimal.NewFromInt(50),
		MinProfitPct:       decimal.RequireFromString("0.5"),
		MaxSlippagePct:     decimal.NewFromInt(1),
		GasUnits:           350_000,
		GasPriceCeilingWei: decimal.NewFromInt(50).Shift(9),
		FlashLoanFeeBps:    9,
		NativePriceRef:     decimal.NewFromInt(2000),
	}
}

// ProfitConfigFrom maps the loaded configuration.
func ProfitConfigFrom(c config.ProfitConfig) ProfitConfig {
	return ProfitConfig{
		MaxTradeSize:       c.MaxTradeSizeDecimal(),
		MinTradeAmount:     c.MinTradeAmountDecimal(),
		MinProfitRef:       c.MinProfitUSDDecimal(),
		MinProfitPct:       c.MinProfitPctDecimal(),
		MaxSlippagePct:     c.MaxSlippagePctDecimal(),
		GasUnits:           c.GasUnits,
		GasPriceCeilingWei: c.GasPriceCeilingWei(),
		FlashLoanFeeBps:    c.FlashLoanFeeBps,
		NativePriceRef:     decimal.NewFromFloat(c.NativePriceUSD),
	}
}

// ProfitModel sizes a validated opportunity and nets out flash-loan fee,
// swap fees and gas. It never fails: an opportunity that cannot be scored
// comes back non-executable with a reason.
type ProfitModel struct {
	cfg  ProfitConfig
	refs domain.ReferencePrices
}

// NewProfitModel creates a ProfitModel.
func NewProfitModel(cfg ProfitConfig, refs domain.ReferencePrices) *ProfitModel {
	return &ProfitModel{cfg: cfg, refs: refs}
}

// TradeSize returns the amount to trade given the available liquidity:
// a tenth of the depth, capped at the maximum and floored at the minimum.
func (m *ProfitModel) TradeSize(available decimal.Decimal) decimal.Decimal {
	amount := decimal.Min(m.cfg.MaxTradeSize, available.Div(ten))
	if amount.LessThan(m.cfg.MinTradeAmount) {
		amount = m.cfg.MinTradeAmount
	}
	return amount
}

// GasCostRef returns the worst-case gas cost in the reference currency.
func (m *ProfitModel) GasCostRef() decimal.Decimal {
	native := decimal.NewFromInt(int64(m.cfg.GasUnits)).Mul(m.cfg.GasPriceCeilingWei).Div(weiScale)
	return native.Mul(m.cfg.NativePriceRef)
}

// Analyze scores opp.
func (m *ProfitModel) Analyze(opp *domain.Opportunity) domain.ProfitAnalysis {
	a := domain.ProfitAnalysis{Opportunity: opp}
	a.Amount = m.TradeSize(opp.AvailableLiquidity)

	a.GrossProfit = opp.SellPrice.Sub(opp.BuyPrice).Mul(a.Amount)
	a.FlashLoanFee = a.Amount.Mul(decimal.NewFromInt(int64(m.cfg.FlashLoanFeeBps))).Div(bpsScale)
	a.DexFee = a.Amount.Mul(decimal.NewFromInt(int64(opp.BuyFeeBps + opp.SellFeeBps))).Div(bpsScale)

	outRef, hasRef := m.refs.Of(opp.TokenOut)
	if hasRef && outRef.IsPositive() {
		a.GasCost = m.GasCostRef().Div(outRef)
	} else {
		hasRef = false
		a.Reasons = append(a.Reasons, fmt.Sprintf("no reference price for %s", opp.TokenOut.Hex()))
	}

	a.NetProfit = a.GrossProfit.Sub(a.TotalCosts())
	if notional := a.Amount.Mul(opp.BuyPrice); notional.IsPositive() {
		a.NetProfitPct = a.NetProfit.Div(notional).Mul(hundred)
	}
	if hasRef {
		a.NetProfitRef = a.NetProfit.Mul(outRef)
	}

	a.BuyImpactPct = impactPct(a.Amount, opp.BuyLiquidity)
	a.SellImpactPct = impactPct(a.Amount, opp.SellLiquidity)

	if !a.NetProfit.IsPositive() {
		a.Reasons = append(a.Reasons, fmt.Sprintf("net profit %s is not positive", a.NetProfit.StringFixed(6)))
	}
	if hasRef && a.NetProfitRef.LessThan(m.cfg.MinProfitRef) {
		a.Reasons = append(a.Reasons, fmt.Sprintf("net profit %s below minimum %s",
			a.NetProfitRef.StringFixed(2), m.cfg.MinProfitRef.StringFixed(2)))
	}
	if a.NetProfitPct.LessThan(m.cfg.MinProfitPct) {
		a.Reasons = append(a.Reasons, fmt.Sprintf("net profit %s%% below minimum %s%%",
			a.NetProfitPct.StringFixed(3), m.cfg.MinProfitPct))
	}
	if a.BuyImpactPct.GreaterThan(m.cfg.MaxSlippagePct) {
		a.Reasons = append(a.Reasons, fmt.Sprintf("buy impact %s%% exceeds %s%%",
			a.BuyImpactPct.StringFixed(3), m.cfg.MaxSlippagePct))
	}
	if a.SellImpactPct.GreaterThan(m.cfg.MaxSlippagePct) {
		a.Reasons = append(a.Reasons, fmt.Sprintf("sell impact %s%% exceeds %s%%",
			a.SellImpactPct.StringFixed(3), m.cfg.MaxSlippagePct))
	}

	a.IsExecutable = len(a.Reasons) == 0
	return a
}

// impactPct approximates the price impact of amount against a pool of
// depth liquidity as amount / (liquidity + amount).
func impactPct(amount, liquidity decimal.Decimal) decimal.Decimal {
	denom := liquidity.Add(amount)
	if !denom.IsPositive() {
		return hundred
	}
	return amount.Div(denom).Mul(hundred)
}
