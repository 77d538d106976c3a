// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-arb/business/pricing/domain"
)

// PriceSource is the capability set every exchange adapter provides.
type PriceSource interface {
	// Name is the venue name used in opportunities and logs.
	Name() string

	// Kind reports the pool math family.
	Kind() domain.VenueKind

	// Initialize checks endpoint reachability and that the venue's factory
	// answers. It fails with CodeAdapterInitFailed.
	Initialize(ctx context.Context) error

	IsInitialized() bool

	// GetPrice returns the price of tokenA in tokenB. It fails with
	// CodePoolNotFound when the venue has no pool for the pair.
	GetPrice(ctx context.Context, tokenA, tokenB common.Address) (*domain.PriceQuote, error)

	// GetReserves returns the pool balances. Transport failures surface as
	// CodeQueryFailed.
	GetReserves(ctx context.Context, pool common.Address) (*domain.ReserveSnapshot, error)

	// GetQuote returns the expected output and price impact of a swap.
	GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*domain.SwapQuote, error)

	// GetLiquidity reports the pool's balance of token for the tokenA/tokenB pool.
	GetLiquidity(ctx context.Context, tokenA, tokenB, token common.Address) (*domain.Liquidity, error)

	// SubscribeToPriceUpdates invokes onChange with a fresh quote whenever the
	// pair's pool changes. Deliveries for one subscription never overlap.
	SubscribeToPriceUpdates(ctx context.Context, tokenA, tokenB common.Address, onChange func(domain.PriceQuote)) error

	// Unsubscribe releases every listener held by the adapter.
	Unsubscribe()
}

// ChainReader is the read-only RPC surface adapters need.
// *ethclient.Client satisfies it.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// LogSubscriber streams contract logs; requires a websocket connection.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// HeadTracker exposes the latest seen block number without an RPC call.
type HeadTracker interface {
	BlockNumber() uint64
}
