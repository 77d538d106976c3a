// Package app contains application services and port definitions for the execution context.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	blockchainDomain "github.com/fd1az/flashloan-arb/business/blockchain/domain"
	"github.com/fd1az/flashloan-arb/business/execution/domain"
)

// Executor is the on-chain flash-loan arbitrage contract.
type Executor interface {
	// Simulate runs the request as a read-only call and fails if it would
	// revert.
	Simulate(ctx context.Context, req *domain.Request) error

	// Submit signs and broadcasts the request.
	Submit(ctx context.Context, req *domain.Request, gasPrice *big.Int, gasLimit uint64) (common.Hash, error)
}

// Locker guards a route across processes. Acquire fails with CodeLockHeld
// when another holder owns key; the returned release func is idempotent.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// GasPricer supplies the gas price for submissions.
type GasPricer interface {
	GetGasPrice(ctx context.Context) (*blockchainDomain.GasPrice, error)
}
