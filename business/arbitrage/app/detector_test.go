package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	blockchainDomain "github.com/fd1az/flashloan-arb/business/blockchain/domain"
)

type fakeBlockFeed struct {
	ch chan *blockchainDomain.Block
}

func (f *fakeBlockFeed) SubscribeBlocks(context.Context) (<-chan *blockchainDomain.Block, error) {
	return f.ch, nil
}

func (f *fakeBlockFeed) GetGasPrice(context.Context) (*blockchainDomain.GasPrice, error) {
	return blockchainDomain.NewGasPrice(big.NewInt(30_000_000_000), time.Now()), nil
}

func TestDetector_ForwardsBlocksAndStops(t *testing.T) {
	agg := newTestAggregator(t, false)
	qa := quote("uniswap_v2", poolA, "1000", "50000", 30)
	qb := quote("sushiswap", poolB, "1010", "50000", 30)
	_ = agg.AddSource(newFakeSource("uniswap_v2", &qa))
	_ = agg.AddSource(newFakeSource("sushiswap", &qb))
	_, _ = agg.AddPair(weth, usdc)

	reporter := &recordingReporter{}
	feed := &fakeBlockFeed{ch: make(chan *blockchainDomain.Block, 1)}
	det := NewDetector(agg, newTestPipeline(nil, reporter), reporter, feed, testLogger())

	if err := det.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed.ch <- &blockchainDomain.Block{Number: 19_000_000, Timestamp: time.Now()}

	deadline := time.Now().Add(2 * time.Second)
	for {
		reporter.mu.Lock()
		got := len(reporter.blocks) > 0 && len(reporter.decisions) > 0
		reporter.mu.Unlock()
		if got {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("block or decision never reported")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := det.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	if !reporter.stopped {
		t.Error("reporter not stopped")
	}
	last := reporter.stats[len(reporter.stats)-1]
	if last.LastBlock != 19_000_000 || last.Cycles == 0 || last.Executable != 1 {
		t.Errorf("final stats = %+v", last)
	}
	if !last.GasPriceGwei.Equal(dec("30")) {
		t.Errorf("GasPriceGwei = %s, want 30", last.GasPriceGwei)
	}
}
