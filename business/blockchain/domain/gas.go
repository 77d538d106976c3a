package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var weiPerGwei = decimal.New(1, 9)
var weiPerEther = decimal.New(1, 18)

// GasPrice represents gas price information.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int, at time.Time) *GasPrice {
	return &GasPrice{
		Wei:       new(big.Int).Set(wei),
		Timestamp: at,
	}
}

// Gwei returns the price in gwei.
func (p *GasPrice) Gwei() decimal.Decimal {
	return decimal.NewFromBigInt(p.Wei, 0).Div(weiPerGwei)
}

// GasEstimate represents estimated gas costs for an operation.
type GasEstimate struct {
	GasLimit uint64
	Price    *GasPrice
	TotalWei *big.Int
}

// NewGasEstimate computes the total cost of gasLimit units at price.
func NewGasEstimate(gasLimit uint64, price *GasPrice) *GasEstimate {
	total := new(big.Int).Mul(price.Wei, new(big.Int).SetUint64(gasLimit))
	return &GasEstimate{
		GasLimit: gasLimit,
		Price:    price,
		TotalWei: total,
	}
}

// TotalGwei returns the total cost in gwei.
func (e *GasEstimate) TotalGwei() decimal.Decimal {
	return decimal.NewFromBigInt(e.TotalWei, 0).Div(weiPerGwei)
}

// NativeCost returns the total cost in whole native tokens.
func (e *GasEstimate) NativeCost() decimal.Decimal {
	return decimal.NewFromBigInt(e.TotalWei, 0).Div(weiPerEther)
}
