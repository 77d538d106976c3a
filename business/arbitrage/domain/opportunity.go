// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
)

// Opportunity is a candidate cross-venue trade: buy TokenIn on BuyVenue and
// sell it on SellVenue. Prices are TokenOut per TokenIn. Opportunities live
// for one decision cycle and are never mutated after synthesis.
type Opportunity struct {
	ID      string
	PairKey string

	// TokenIn is the traded asset, also the flash-loan token.
	TokenIn     common.Address
	TokenOut    common.Address
	DecimalsIn  uint8
	DecimalsOut uint8

	BuyVenue   string
	BuyPool    common.Address
	BuyFeeBps  int
	SellVenue  string
	SellPool   common.Address
	SellFeeBps int

	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal

	// Liquidity figures are TokenOut balances in whole tokens.
	BuyLiquidity       decimal.Decimal
	SellLiquidity      decimal.Decimal
	AvailableLiquidity decimal.Decimal

	// EstimatedProfit is a rough gross figure in TokenOut units, nil when
	// the detector did not compute one.
	EstimatedProfit *decimal.Decimal

	BlockNumber uint64
	Timestamp   time.Time
}

// NewOpportunityID builds the identity of an opportunity from its pair,
// venues and synthesis time.
func NewOpportunityID(pairKey, buyVenue, sellVenue string, at time.Time) string {
	return strings.Join([]string{pairKey, buyVenue, sellVenue, strconv.FormatInt(at.UnixNano(), 10)}, "|")
}

// RouteKey identifies the trade route regardless of when it was seen.
func (o *Opportunity) RouteKey() string {
	return o.PairKey + "|" + o.BuyVenue + "|" + o.SellVenue
}

// Spread returns the price differential between the two legs.
func (o *Opportunity) Spread() pricingDomain.Spread {
	return pricingDomain.CalculateSpread(o.BuyPrice, o.SellPrice)
}

// Age returns how old the opportunity is at now.
func (o *Opportunity) Age(now time.Time) time.Duration {
	return now.Sub(o.Timestamp)
}
