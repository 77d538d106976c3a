package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

type stubSource struct {
	name     string
	failures atomic.Int32
	ready    atomic.Bool
}

func (s *stubSource) Name() string           { return s.name }
func (s *stubSource) Kind() domain.VenueKind { return domain.KindConstantProduct }
func (s *stubSource) IsInitialized() bool    { return s.ready.Load() }

func (s *stubSource) Initialize(context.Context) error {
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		return errors.New("factory unreachable")
	}
	s.ready.Store(true)
	return nil
}

func (s *stubSource) GetPrice(context.Context, common.Address, common.Address) (*domain.PriceQuote, error) {
	return nil, nil
}
func (s *stubSource) GetReserves(context.Context, common.Address) (*domain.ReserveSnapshot, error) {
	return nil, nil
}
func (s *stubSource) GetQuote(context.Context, common.Address, common.Address, *big.Int) (*domain.SwapQuote, error) {
	return nil, nil
}
func (s *stubSource) GetLiquidity(context.Context, common.Address, common.Address, common.Address) (*domain.Liquidity, error) {
	return nil, nil
}
func (s *stubSource) SubscribeToPriceUpdates(context.Context, common.Address, common.Address, func(domain.PriceQuote)) error {
	return nil
}
func (s *stubSource) Unsubscribe() {}

func TestPricingService_InitializeAllRetries(t *testing.T) {
	good := &stubSource{name: "sushiswap"}
	flaky := &stubSource{name: "uniswap_v2"}
	flaky.failures.Store(1)

	svc := NewPricingService(logger.New(io.Discard, logger.LevelError, "test", nil), flaky, good)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if got := svc.InitializeAll(ctx, time.Second, 5*time.Millisecond); got != 1 {
		t.Fatalf("ready = %d, want 1", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for svc.ReadyCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatal("flaky source never initialized")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPricingService_SourcesSortedByName(t *testing.T) {
	svc := NewPricingService(logger.New(io.Discard, logger.LevelError, "test", nil),
		&stubSource{name: "uniswap_v3"}, &stubSource{name: "sushiswap"}, &stubSource{name: "uniswap_v2"})

	got := svc.Sources()
	want := []string{"sushiswap", "uniswap_v2", "uniswap_v3"}
	for i, w := range want {
		if got[i].Name() != w {
			t.Errorf("sources[%d] = %s, want %s", i, got[i].Name(), w)
		}
	}
}
