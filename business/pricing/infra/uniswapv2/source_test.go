package uniswapv2

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/evm"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/evm/evmtest"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

var (
	factory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	pairAt  = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
)

func usdc(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), asset.Pow10(6)) }
func weth(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), asset.Pow10(18)) }

type fixture struct {
	chain        *evmtest.Chain
	source       *Source
	getPairCalls *atomic.Int32
}

// newFixture wires a WETH/USDC pool holding 1000 WETH and 2,000,000 USDC.
func newFixture(t *testing.T, withLogs bool) fixture {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	chain := evmtest.NewChain()
	chain.SetBlock(100)

	var getPairCalls atomic.Int32
	chain.Returns(factory, FactoryABI, "allPairsLength", big.NewInt(1))
	chain.Handle(factory, FactoryABI, "getPair", func(args []any) ([]any, error) {
		getPairCalls.Add(1)
		a, b := args[0].(common.Address), args[1].(common.Address)
		if domain.PairKey(a, b) == domain.PairKey(asset.AddrWETH, asset.AddrUSDC) {
			return []any{pairAt}, nil
		}
		return []any{common.Address{}}, nil
	})
	// USDC sorts before WETH, so it is token0.
	chain.Returns(pairAt, PairABI, "token0", asset.AddrUSDC)
	chain.Returns(pairAt, PairABI, "token1", asset.AddrWETH)
	chain.Returns(pairAt, PairABI, "getReserves", usdc(2_000_000), weth(1000), uint32(0))

	caller, err := evm.NewCaller("uniswap_v2", chain, nil, log)
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	tokens := evm.NewTokens(caller, asset.DefaultRegistry(), log)

	cfg := Config{Name: "uniswap_v2", Factory: factory}
	var src *Source
	if withLogs {
		src = New(cfg, caller, tokens, nil, chain, log)
	} else {
		src = New(cfg, caller, tokens, nil, nil, log)
	}
	return fixture{chain: chain, source: src, getPairCalls: &getPairCalls}
}

func TestSource_RequiresInitialize(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.source.GetPrice(ctx, asset.AddrWETH, asset.AddrUSDC)
	if !apperror.HasCode(err, apperror.CodeAdapterNotInitialized) {
		t.Fatalf("expected CodeAdapterNotInitialized, got %v", err)
	}

	if err := f.source.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !f.source.IsInitialized() {
		t.Fatal("expected initialized")
	}
}

func TestSource_InitializeFailure(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	chain := evmtest.NewChain()
	caller, _ := evm.NewCaller("dead", chain, nil, log)
	src := New(Config{Name: "dead", Factory: factory}, caller, evm.NewTokens(caller, nil, log), nil, nil, log)

	err := src.Initialize(context.Background())
	if !apperror.HasCode(err, apperror.CodeAdapterInitFailed) {
		t.Fatalf("expected CodeAdapterInitFailed, got %v", err)
	}
	if src.IsInitialized() {
		t.Fatal("source should not be initialized")
	}
}

func TestSource_GetPrice(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	if err := f.source.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	q, err := f.source.GetPrice(ctx, asset.AddrWETH, asset.AddrUSDC)
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}

	if got := q.PriceDecimal().String(); got != "2000" {
		t.Errorf("price = %s, want 2000", got)
	}
	if got := q.InverseDecimal().String(); got != "0.0005" {
		t.Errorf("inverse = %s, want 0.0005", got)
	}
	if got := q.LiquidityB.String(); got != "2000000" {
		t.Errorf("liquidityB = %s, want 2000000", got)
	}
	if q.DecimalsA != 18 || q.DecimalsB != 6 {
		t.Errorf("decimals = %d/%d, want 18/6", q.DecimalsA, q.DecimalsB)
	}
	if q.FeeBps != DefaultFeeBps {
		t.Errorf("fee = %d, want %d", q.FeeBps, DefaultFeeBps)
	}
	if q.BlockNumber != 100 {
		t.Errorf("block = %d, want 100", q.BlockNumber)
	}
	if q.Pool != pairAt || q.Venue != "uniswap_v2" {
		t.Errorf("unexpected pool/venue %s/%s", q.Pool.Hex(), q.Venue)
	}

	// Reversed orientation reports the inverse.
	rq, err := f.source.GetPrice(ctx, asset.AddrUSDC, asset.AddrWETH)
	if err != nil {
		t.Fatalf("GetPrice reversed: %v", err)
	}
	if got := rq.PriceDecimal().String(); got != "0.0005" {
		t.Errorf("reversed price = %s, want 0.0005", got)
	}
}

func TestSource_PoolAddressIsCached(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_ = f.source.Initialize(ctx)

	for i := 0; i < 3; i++ {
		if _, err := f.source.GetPrice(ctx, asset.AddrWETH, asset.AddrUSDC); err != nil {
			t.Fatalf("GetPrice: %v", err)
		}
	}
	if got := f.getPairCalls.Load(); got != 1 {
		t.Errorf("getPair called %d times, want 1", got)
	}
}

func TestSource_PoolNotFound(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_ = f.source.Initialize(ctx)

	_, err := f.source.GetPrice(ctx, asset.AddrWETH, asset.AddrDAI)
	if !apperror.HasCode(err, apperror.CodePoolNotFound) {
		t.Fatalf("expected CodePoolNotFound, got %v", err)
	}
}

func TestSource_TransportFailure(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_ = f.source.Initialize(ctx)

	f.chain.FailAll(errors.New("dial tcp: connection refused"))
	_, err := f.source.GetPrice(ctx, asset.AddrWETH, asset.AddrUSDC)
	if !apperror.HasCode(err, apperror.CodeQueryFailed) {
		t.Fatalf("expected CodeQueryFailed, got %v", err)
	}
}

func TestSource_GetQuote(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_ = f.source.Initialize(ctx)

	in := weth(1)
	q, err := f.source.GetQuote(ctx, asset.AddrWETH, asset.AddrUSDC, in)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}

	want, _ := domain.AmountOut(in, weth(1000), usdc(2_000_000), DefaultFeeBps)
	if q.AmountOut.Cmp(want) != 0 {
		t.Errorf("amountOut = %s, want %s", q.AmountOut, want)
	}
	// Less than the 2000 USDC spot because of fee and impact.
	if q.AmountOut.Cmp(usdc(2000)) >= 0 {
		t.Errorf("amountOut %s should be below spot", q.AmountOut)
	}
	if !q.PriceImpactPct.IsPositive() {
		t.Errorf("expected positive price impact, got %s", q.PriceImpactPct)
	}
}

func TestSource_GetLiquidity(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_ = f.source.Initialize(ctx)

	l, err := f.source.GetLiquidity(ctx, asset.AddrWETH, asset.AddrUSDC, asset.AddrWETH)
	if err != nil {
		t.Fatalf("GetLiquidity: %v", err)
	}
	if got := l.Amount().String(); got != "1000" {
		t.Errorf("liquidity = %s, want 1000", got)
	}
}

func TestSource_SubscribeWithoutEndpoint(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_ = f.source.Initialize(ctx)

	err := f.source.SubscribeToPriceUpdates(ctx, asset.AddrWETH, asset.AddrUSDC, func(domain.PriceQuote) {})
	if !apperror.HasCode(err, apperror.CodeSubscribeFailed) {
		t.Fatalf("expected CodeSubscribeFailed, got %v", err)
	}
}

func TestSource_SubscribeToPriceUpdates(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_ = f.source.Initialize(ctx)

	updates := make(chan domain.PriceQuote, 1)
	err := f.source.SubscribeToPriceUpdates(ctx, asset.AddrWETH, asset.AddrUSDC, func(q domain.PriceQuote) {
		updates <- q
	})
	if err != nil {
		t.Fatalf("SubscribeToPriceUpdates: %v", err)
	}

	data, err := PairABI.Events["Sync"].Inputs.Pack(usdc(2_100_000), weth(1000))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	f.chain.Emit(types.Log{
		Address:     pairAt,
		Topics:      []common.Hash{SyncTopic},
		Data:        data,
		BlockNumber: 200,
	})

	select {
	case q := <-updates:
		if got := q.PriceDecimal().String(); got != "2100" {
			t.Errorf("price = %s, want 2100", got)
		}
		if q.BlockNumber != 200 {
			t.Errorf("block = %d, want 200", q.BlockNumber)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	f.source.Unsubscribe()
	f.source.Unsubscribe()
}
