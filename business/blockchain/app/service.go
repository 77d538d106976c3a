package app

import (
	"context"
	"time"

	"github.com/fd1az/flashloan-arb/business/blockchain/domain"
)

// DefaultMaxHeadAge is how long the chain may go quiet before the service
// stops reporting healthy. Mainnet produces a block every 12s.
const DefaultMaxHeadAge = 60 * time.Second

// BlockchainService is the read side of the chain that the other contexts
// depend on: heads for stamping quotes, gas for costing and execution.
type BlockchainService struct {
	subscriber BlockSubscriber
	gasOracle  GasOracle
	maxHeadAge time.Duration
	now        func() time.Time
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(subscriber BlockSubscriber, gasOracle GasOracle) *BlockchainService {
	return &BlockchainService{
		subscriber: subscriber,
		gasOracle:  gasOracle,
		maxHeadAge: DefaultMaxHeadAge,
		now:        time.Now,
	}
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// GetGasPrice returns the ceiling-capped gas price.
func (s *BlockchainService) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gasOracle.GetGasPrice(ctx)
}

func (s *BlockchainService) BlockNumber() uint64 {
	return s.subscriber.BlockNumber()
}

// Status returns the subscriber's connection details.
func (s *BlockchainService) Status() domain.ConnectionStatus {
	return s.subscriber.Status()
}

// Healthy reports whether the subscriber is connected and the last head is
// recent enough for quotes stamped with it to be trusted.
func (s *BlockchainService) Healthy() bool {
	st := s.subscriber.Status()
	if st.State != domain.StateConnected {
		return false
	}
	return st.HeadAge(s.now()) <= s.maxHeadAge
}
