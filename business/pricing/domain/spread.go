package domain

import "github.com/shopspring/decimal"

// Spread is the price difference between buying on one venue and selling on
// another.
type Spread struct {
	BuyPrice    decimal.Decimal
	SellPrice   decimal.Decimal
	Absolute    decimal.Decimal // sell - buy
	Percent     decimal.Decimal // (sell - buy) / buy * 100
	BasisPoints decimal.Decimal
}

// CalculateSpread computes the spread for a buy/sell price pair. A zero buy
// price yields a zero percentage.
func CalculateSpread(buyPrice, sellPrice decimal.Decimal) Spread {
	absolute := sellPrice.Sub(buyPrice)
	pct := decimal.Zero
	if !buyPrice.IsZero() {
		pct = absolute.Div(buyPrice).Mul(hundred)
	}

	return Spread{
		BuyPrice:    buyPrice,
		SellPrice:   sellPrice,
		Absolute:    absolute,
		Percent:     pct,
		BasisPoints: pct.Mul(hundred),
	}
}

// Profitable reports whether selling strictly beats buying and the
// percentage difference reaches minPct.
func (s Spread) Profitable(minPct decimal.Decimal) bool {
	if !s.BuyPrice.IsPositive() || !s.SellPrice.GreaterThan(s.BuyPrice) {
		return false
	}
	return s.Percent.GreaterThanOrEqual(minPct)
}
