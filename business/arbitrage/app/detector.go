package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	blockchainDomain "github.com/fd1az/flashloan-arb/business/blockchain/domain"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

// BlockFeed is the slice of the blockchain service the detector follows.
type BlockFeed interface {
	SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error)
	GetGasPrice(ctx context.Context) (*blockchainDomain.GasPrice, error)
}

// Detector orchestrates arbitrage detection: it runs the aggregator, feeds
// its opportunities through the pipeline and keeps the reporter current.
type Detector struct {
	aggregator *Aggregator
	pipeline   *Pipeline
	reporter   Reporter
	blocks     BlockFeed
	logger     logger.LoggerInterface
	statsEvery time.Duration

	mu        sync.Mutex
	launched  bool
	startedAt time.Time
	lastBlock uint64
	gasGwei   decimal.Decimal

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDetector creates a new arbitrage Detector. blocks may be nil.
func NewDetector(aggregator *Aggregator, pipeline *Pipeline, reporter Reporter, blocks BlockFeed, log logger.LoggerInterface) *Detector {
	d := &Detector{
		aggregator: aggregator,
		pipeline:   pipeline,
		reporter:   reporter,
		blocks:     blocks,
		logger:     log,
		statsEvery: time.Second,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	aggregator.OnQuote(reporter.ReportQuote)
	aggregator.OnOpportunity(pipeline.Handle)
	return d
}

// Start begins the arbitrage detection loop.
func (d *Detector) Start(ctx context.Context) error {
	d.logger.Info(ctx, "starting arbitrage detector")

	if err := d.reporter.Start(ctx); err != nil {
		return err
	}

	var blocks <-chan *blockchainDomain.Block
	if d.blocks != nil {
		var err error
		if blocks, err = d.blocks.SubscribeBlocks(ctx); err != nil {
			d.logger.Warn(ctx, "block feed unavailable", "error", err)
		}
	}

	d.mu.Lock()
	d.launched = true
	d.startedAt = time.Now()
	d.mu.Unlock()
	go d.run(ctx, blocks)

	return d.aggregator.Start(ctx)
}

func (d *Detector) run(ctx context.Context, blocks <-chan *blockchainDomain.Block) {
	defer close(d.done)

	ticker := time.NewTicker(d.statsEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case block, ok := <-blocks:
			if !ok {
				blocks = nil
				continue
			}
			if block != nil {
				d.onNewBlock(ctx, block)
			}
		case <-ticker.C:
			d.reporter.ReportStats(d.Stats())
		}
	}
}

func (d *Detector) onNewBlock(ctx context.Context, block *blockchainDomain.Block) {
	d.logger.Debug(ctx, "new block", "number", block.Number, "hash", block.Hash.Hex())

	d.mu.Lock()
	d.lastBlock = block.Number
	d.mu.Unlock()

	if gp, err := d.blocks.GetGasPrice(ctx); err == nil {
		d.mu.Lock()
		d.gasGwei = gp.Gwei()
		d.mu.Unlock()
	}

	d.reporter.ReportBlock(block.Number, block.Timestamp)
}

// Stats combines aggregator and pipeline counters.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	startedAt, lastBlock, gas := d.startedAt, d.lastBlock, d.gasGwei
	d.mu.Unlock()

	s := MergeStats(d.aggregator.Stats(), d.pipeline.Stats(), startedAt)
	s.LastBlock = lastBlock
	s.GasPriceGwei = gas
	return s
}

// Stop gracefully shuts down the detector.
func (d *Detector) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.logger.Info(context.Background(), "stopping arbitrage detector")

		if aerr := d.aggregator.Stop(); aerr != nil {
			err = aerr
		}
		close(d.stop)

		d.mu.Lock()
		launched := d.launched
		d.mu.Unlock()
		if launched {
			<-d.done
		}

		d.reporter.ReportStats(d.Stats())
		if rerr := d.reporter.Stop(); rerr != nil && err == nil {
			err = rerr
		}
	})
	return err
}
