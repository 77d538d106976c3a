// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-arb/business/blockchain/domain"
)

// BlockSubscriber defines the interface for following the chain head.
type BlockSubscriber interface {
	// Subscribe starts listening for new blocks and returns a channel of blocks.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock retrieves the most recent block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// BlockNumber returns the last seen block number, 0 before the first block.
	BlockNumber() uint64

	// State returns the current connection state.
	State() domain.ConnectionState

	Status() domain.ConnectionStatus
	Close() error
}

// GasOracle defines the interface for gas price information.
type GasOracle interface {
	// GetGasPrice retrieves the current gas price, capped at the configured ceiling.
	GetGasPrice(ctx context.Context) (*domain.GasPrice, error)

	// EstimateGas estimates the gas needed for a call from from to to.
	EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error)

	// GetGasEstimate combines price and limit; falls back to the default limit
	// when estimation fails.
	GetGasEstimate(ctx context.Context, from, to common.Address, data []byte) (*domain.GasEstimate, error)
}

// HeadClient is the node surface the subscriber reads heads from.
// *ethclient.Client satisfies it.
type HeadClient interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// GasClient is the node surface the gas oracle needs.
// *ethclient.Client satisfies it.
type GasClient interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}
