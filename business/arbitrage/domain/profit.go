package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/internal/asset"
)

// ProfitAnalysis scores one opportunity. It is derived only from its inputs
// and can be recomputed at will.
//
// Units are mixed. GrossProfit and GasCost are TokenOut. FlashLoanFee and
// DexFee are charged on Amount and so are TokenIn, yet they are subtracted
// from the TokenOut gross as plain numbers. NetProfit and NetProfitPct carry
// that mix. NetProfitRef is in the reference currency.
type ProfitAnalysis struct {
	Opportunity *Opportunity

	// Amount is the recommended trade size in TokenIn units.
	Amount decimal.Decimal

	GrossProfit  decimal.Decimal
	FlashLoanFee decimal.Decimal
	DexFee       decimal.Decimal
	GasCost      decimal.Decimal
	NetProfit    decimal.Decimal
	NetProfitPct decimal.Decimal
	NetProfitRef decimal.Decimal

	BuyImpactPct  decimal.Decimal
	SellImpactPct decimal.Decimal

	IsExecutable bool

	// Reasons lists every failed executability condition.
	Reasons []string
}

// TotalCosts returns fees plus gas.
func (a *ProfitAnalysis) TotalCosts() decimal.Decimal {
	return a.FlashLoanFee.Add(a.DexFee).Add(a.GasCost)
}

// Summary joins Reasons for logging.
func (a *ProfitAnalysis) Summary() string {
	if a.IsExecutable {
		return "executable"
	}
	return strings.Join(a.Reasons, "; ")
}

// ReferencePrices values tokens in the reference currency, keyed by
// lower-case address.
type ReferencePrices map[string]decimal.Decimal

// Of returns the reference price of token.
func (r ReferencePrices) Of(token common.Address) (decimal.Decimal, bool) {
	p, ok := r[strings.ToLower(token.Hex())]
	return p, ok
}

// Value converts amount of token into the reference currency.
func (r ReferencePrices) Value(token common.Address, amount decimal.Decimal) (decimal.Decimal, bool) {
	p, ok := r.Of(token)
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(p), true
}

// ReferencePricesFromAssets collects the reference prices carried by assets.
func ReferencePricesFromAssets(assets []*asset.Asset) ReferencePrices {
	out := make(ReferencePrices, len(assets))
	for _, a := range assets {
		if p, ok := a.ReferencePrice(); ok {
			out[strings.ToLower(a.Address().Hex())] = p
		}
	}
	return out
}
