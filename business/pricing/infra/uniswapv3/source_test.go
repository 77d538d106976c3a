package uniswapv3

import (
	"context"
	"io"
	"math/big"
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
	factory  = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	quoter   = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	shallow  = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	deep     = common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8")
	q96      = new(big.Int).Lsh(big.NewInt(1), 96)
	sqrtSpot = new(big.Int).Mul(big.NewInt(20000), q96) // 2500 USDC per WETH
)

func usdc(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), asset.Pow10(6)) }

func slot0(sqrt *big.Int) []any {
	return []any{sqrt, big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true}
}

func newSource(t *testing.T) (*Source, *evmtest.Chain) {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	chain := evmtest.NewChain()
	chain.SetBlock(42)

	chain.Returns(factory, FactoryABI, "owner", common.HexToAddress("0x1a9C8182C09F50C8318d769245beA52c32BE35BC"))
	chain.Handle(factory, FactoryABI, "getPool", func(args []any) ([]any, error) {
		switch args[2].(*big.Int).Int64() {
		case FeeTier005:
			return []any{shallow}, nil
		case FeeTier030:
			return []any{deep}, nil
		}
		return []any{common.Address{}}, nil
	})
	chain.Returns(shallow, PoolABI, "liquidity", big.NewInt(100))
	chain.Returns(deep, PoolABI, "liquidity", big.NewInt(500))
	chain.Returns(deep, PoolABI, "token0", asset.AddrUSDC)
	chain.Returns(deep, PoolABI, "token1", asset.AddrWETH)
	chain.Returns(deep, PoolABI, "slot0", slot0(sqrtSpot)...)
	chain.Handle(asset.AddrUSDC, evm.ERC20ABI, "balanceOf", func(args []any) ([]any, error) {
		if args[0].(common.Address) == deep {
			return []any{usdc(1_000_000)}, nil
		}
		return []any{big.NewInt(0)}, nil
	})
	chain.Returns(asset.AddrWETH, evm.ERC20ABI, "balanceOf", new(big.Int).Mul(big.NewInt(400), asset.Pow10(18)))

	caller, err := evm.NewCaller("uniswap_v3", chain, nil, log)
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	src := New(Config{Name: "uniswap_v3", Factory: factory, Quoter: quoter},
		caller, evm.NewTokens(caller, asset.DefaultRegistry(), log), nil, chain, log)
	if err := src.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return src, chain
}

func TestSource_GetPricePicksDeepestTier(t *testing.T) {
	src, _ := newSource(t)

	q, err := src.GetPrice(context.Background(), asset.AddrWETH, asset.AddrUSDC)
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if q.Pool != deep {
		t.Errorf("pool = %s, want %s", q.Pool.Hex(), deep.Hex())
	}
	if q.FeeBps != 30 {
		t.Errorf("fee = %d bps, want 30", q.FeeBps)
	}
	if got := q.PriceDecimal().String(); got != "2500" {
		t.Errorf("price = %s, want 2500", got)
	}
	if got := q.InverseDecimal().String(); got != "0.0004" {
		t.Errorf("inverse = %s, want 0.0004", got)
	}
	if got := q.LiquidityB.String(); got != "1000000" {
		t.Errorf("liquidityB = %s, want 1000000", got)
	}
	if q.BlockNumber != 42 {
		t.Errorf("block = %d, want 42", q.BlockNumber)
	}
}

func TestSource_PoolNotFound(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	chain := evmtest.NewChain()
	chain.Returns(factory, FactoryABI, "owner", common.Address{1})
	chain.Returns(factory, FactoryABI, "getPool", common.Address{})
	caller, _ := evm.NewCaller("empty", chain, nil, log)
	empty := New(Config{Name: "empty", Factory: factory, Quoter: quoter},
		caller, evm.NewTokens(caller, asset.DefaultRegistry(), log), nil, nil, log)
	if err := empty.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	_, err := empty.GetPrice(context.Background(), asset.AddrWETH, asset.AddrUSDC)
	if !apperror.HasCode(err, apperror.CodePoolNotFound) {
		t.Fatalf("expected CodePoolNotFound, got %v", err)
	}
}

func TestSource_GetQuote(t *testing.T) {
	src, chain := newSource(t)

	after := new(big.Int).Mul(big.NewInt(19990), q96)
	chain.Handle(quoter, QuoterV2ABI, "quoteExactInputSingle", func([]any) ([]any, error) {
		return []any{usdc(2490), after, uint32(1), big.NewInt(90_000)}, nil
	})

	in := new(big.Int).Set(asset.One)
	q, err := src.GetQuote(context.Background(), asset.AddrWETH, asset.AddrUSDC, in)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if q.AmountOut.Cmp(usdc(2490)) != 0 {
		t.Errorf("amountOut = %s", q.AmountOut)
	}
	if q.FeeBps != 30 {
		t.Errorf("fee = %d", q.FeeBps)
	}
	if !q.PriceImpactPct.IsPositive() {
		t.Errorf("expected positive impact, got %s", q.PriceImpactPct)
	}
}

func TestSource_GetReservesUsesBalances(t *testing.T) {
	src, _ := newSource(t)

	snap, err := src.GetReserves(context.Background(), deep)
	if err != nil {
		t.Fatalf("GetReserves: %v", err)
	}
	if snap.Token0 != asset.AddrUSDC || snap.Reserve0.Cmp(usdc(1_000_000)) != 0 {
		t.Errorf("unexpected reserve0 %s of %s", snap.Reserve0, snap.Token0.Hex())
	}
}

func TestSource_SubscribeToPriceUpdates(t *testing.T) {
	src, chain := newSource(t)
	ctx := context.Background()

	updates := make(chan domain.PriceQuote, 1)
	if err := src.SubscribeToPriceUpdates(ctx, asset.AddrWETH, asset.AddrUSDC, func(q domain.PriceQuote) {
		updates <- q
	}); err != nil {
		t.Fatalf("SubscribeToPriceUpdates: %v", err)
	}

	newSqrt := new(big.Int).Mul(big.NewInt(10000), q96) // 10000 USDC per WETH
	data, err := PoolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-5), big.NewInt(5), newSqrt, big.NewInt(500), big.NewInt(0))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	chain.Emit(types.Log{
		Address:     deep,
		Topics:      []common.Hash{SwapTopic, {}, {}},
		Data:        data,
		BlockNumber: 43,
	})

	select {
	case q := <-updates:
		if got := q.PriceDecimal().String(); got != "10000" {
			t.Errorf("price = %s, want 10000", got)
		}
		if q.BlockNumber != 43 {
			t.Errorf("block = %d, want 43", q.BlockNumber)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}
	src.Unsubscribe()
}
