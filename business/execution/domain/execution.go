// Package domain contains the core domain types for the execution context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the outcome of one dispatch attempt.
type Status string

const (
	// StatusSubmitted means the transaction was signed and broadcast.
	StatusSubmitted Status = "submitted"
	// StatusSimulated means simulation passed and dry-run stopped there.
	StatusSimulated Status = "simulated"
	// StatusSimulationFailed means the contract call reverted or errored.
	StatusSimulationFailed Status = "simulation_failed"
	// StatusDuplicate means the route was dispatched within the dedup window.
	StatusDuplicate Status = "duplicate"
	// StatusLocked means another instance holds the route lock.
	StatusLocked Status = "locked"
)

// Skipped reports whether the dispatcher declined to act.
func (s Status) Skipped() bool {
	return s == StatusDuplicate || s == StatusLocked
}

// Request is the flash-loan arbitrage call handed to the executor contract:
// borrow Amount of Token, buy on BuyRouter, sell on SellRouter, and revert
// unless the position closes at least MinProfit ahead.
type Request struct {
	OpportunityID string
	RouteKey      string

	Token      common.Address
	Amount     *big.Int
	BuyRouter  common.Address
	SellRouter common.Address
	MinProfit  *big.Int
}

// Result reports what happened to a Request.
type Result struct {
	Status  Status
	Request *Request

	TxHash   common.Hash
	GasPrice *big.Int
	GasLimit uint64

	// Reason explains skipped and failed outcomes.
	Reason string
	At     time.Time
}
