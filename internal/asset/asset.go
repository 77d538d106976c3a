// Package asset models ERC20 token metadata and fixed-point conversions.
// On-chain quantities stay in big.Int; decimal.Decimal is used once values
// leave the chain representation (valuation, thresholds, display).
package asset

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Asset is the metadata of an ERC20 token. Identity is the address; the
// symbol is display-only.
type Asset struct {
	address  common.Address
	symbol   string
	decimals uint8
	refPrice decimal.Decimal // value of one whole token in the reference currency, zero if unknown
}

// NewAsset creates an Asset.
func NewAsset(address common.Address, symbol string, decimals uint8) *Asset {
	if decimals > 36 {
		panic("asset: suspicious decimals (>36)")
	}
	if symbol == "" {
		symbol = ShortAddress(address)
	}
	return &Asset{
		address:  address,
		symbol:   symbol,
		decimals: decimals,
	}
}

// WithReferencePrice returns a copy of a carrying a reference price.
func (a *Asset) WithReferencePrice(price decimal.Decimal) *Asset {
	cp := *a
	cp.refPrice = price
	return &cp
}

// Address returns the token contract address.
func (a *Asset) Address() common.Address {
	return a.address
}

// Key returns the lower-cased hex address used as a map key across the app.
func (a *Asset) Key() string {
	return Key(a.address)
}

// Symbol returns the ticker symbol (e.g., "WETH", "USDC").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// ReferencePrice returns the configured reference price and whether one is set.
func (a *Asset) ReferencePrice() (decimal.Decimal, bool) {
	return a.refPrice, a.refPrice.IsPositive()
}

// String returns the symbol.
func (a *Asset) String() string {
	return a.symbol
}

// Equals compares two Assets by address.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.address == other.address
}

// Key lower-cases an address for use as a map key.
func Key(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// ShortAddress renders 0x1234..abcd style labels for unknown tokens.
func ShortAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + ".." + h[len(h)-4:]
}
