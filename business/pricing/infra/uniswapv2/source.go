// Package uniswapv2 implements a PriceSource for constant-product pools
// (Uniswap V2 and its forks such as SushiSwap).
package uniswapv2

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/evm"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const tracerName = "pricing.uniswapv2"

var _ app.PriceSource = (*Source)(nil)

// Config describes one constant-product deployment.
type Config struct {
	Name    string
	Factory common.Address
	FeeBps  int
}

type poolTokens struct {
	token0 common.Address
	token1 common.Address
}

// Source reads prices from constant-product pools.
type Source struct {
	cfg    Config
	caller *evm.Caller
	tokens *evm.Tokens
	head   app.HeadTracker
	subs   *evm.Subscriptions
	logger logger.LoggerInterface
	tracer trace.Tracer

	pools      *evm.Lookup[common.Address]
	poolTokens *evm.Lookup[poolTokens]

	initialized atomic.Bool
	now         func() time.Time
}

// New creates a Source. head and logs may be nil.
func New(cfg Config, caller *evm.Caller, tokens *evm.Tokens, head app.HeadTracker, logs app.LogSubscriber, log logger.LoggerInterface) *Source {
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBps
	}
	return &Source{
		cfg:        cfg,
		caller:     caller,
		tokens:     tokens,
		head:       head,
		subs:       evm.NewSubscriptions(cfg.Name, logs, log),
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		pools:      evm.NewLookup[common.Address](),
		poolTokens: evm.NewLookup[poolTokens](),
		now:        time.Now,
	}
}

// Name returns the venue name.
func (s *Source) Name() string { return s.cfg.Name }

// Kind returns KindConstantProduct.
func (s *Source) Kind() domain.VenueKind { return domain.KindConstantProduct }

// IsInitialized reports whether Initialize succeeded.
func (s *Source) IsInitialized() bool { return s.initialized.Load() }

// Initialize checks that the factory answers allPairsLength.
func (s *Source) Initialize(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "uniswapv2.initialize",
		trace.WithAttributes(attribute.String("venue", s.cfg.Name)))
	defer span.End()

	out, err := s.caller.Call(ctx, s.cfg.Factory, FactoryABI, "allPairsLength")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "factory unreachable")
		return apperror.New(apperror.CodeAdapterInitFailed,
			apperror.WithCause(err),
			apperror.WithContextf("%s factory %s", s.cfg.Name, s.cfg.Factory.Hex()))
	}

	s.initialized.Store(true)
	span.SetStatus(codes.Ok, "initialized")
	s.logger.Debug(ctx, "constant-product source ready",
		"venue", s.cfg.Name, "pairs", fmt.Sprint(out[0]))
	return nil
}

func (s *Source) ensureInitialized() error {
	if !s.initialized.Load() {
		return apperror.New(apperror.CodeAdapterNotInitialized, apperror.WithContext(s.cfg.Name))
	}
	return nil
}

// PoolFor returns the pair contract for tokenA/tokenB.
func (s *Source) PoolFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	return s.pools.Get(ctx, domain.PairKey(tokenA, tokenB), func(ctx context.Context) (common.Address, error) {
		out, err := s.caller.Call(ctx, s.cfg.Factory, FactoryABI, "getPair", tokenA, tokenB)
		if err != nil {
			return common.Address{}, err
		}
		pool, _ := out[0].(common.Address)
		if pool == (common.Address{}) {
			return common.Address{}, apperror.New(apperror.CodePoolNotFound,
				apperror.WithContextf("%s has no pool for %s", s.cfg.Name, domain.PairKey(tokenA, tokenB)))
		}
		return pool, nil
	})
}

func (s *Source) tokensOf(ctx context.Context, pool common.Address) (poolTokens, error) {
	return s.poolTokens.Get(ctx, pool.Hex(), func(ctx context.Context) (poolTokens, error) {
		out0, err := s.caller.Call(ctx, pool, PairABI, "token0")
		if err != nil {
			return poolTokens{}, err
		}
		out1, err := s.caller.Call(ctx, pool, PairABI, "token1")
		if err != nil {
			return poolTokens{}, err
		}
		return poolTokens{token0: out0[0].(common.Address), token1: out1[0].(common.Address)}, nil
	})
}

// GetReserves returns the pair's current reserves.
func (s *Source) GetReserves(ctx context.Context, pool common.Address) (*domain.ReserveSnapshot, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	pt, err := s.tokensOf(ctx, pool)
	if err != nil {
		return nil, err
	}
	out, err := s.caller.Call(ctx, pool, PairABI, "getReserves")
	if err != nil {
		return nil, err
	}
	return &domain.ReserveSnapshot{
		Pool:      pool,
		Token0:    pt.token0,
		Token1:    pt.token1,
		Reserve0:  out[0].(*big.Int),
		Reserve1:  out[1].(*big.Int),
		UpdatedAt: s.now(),
	}, nil
}

// GetPrice returns tokenB per tokenA from the pair's reserves.
func (s *Source) GetPrice(ctx context.Context, tokenA, tokenB common.Address) (*domain.PriceQuote, error) {
	ctx, span := s.tracer.Start(ctx, "uniswapv2.get_price",
		trace.WithAttributes(
			attribute.String("venue", s.cfg.Name),
			attribute.String("pair", domain.PairKey(tokenA, tokenB)),
		))
	defer span.End()

	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	pool, err := s.PoolFor(ctx, tokenA, tokenB)
	if err != nil {
		span.SetStatus(codes.Error, "pool lookup failed")
		return nil, err
	}
	snap, err := s.GetReserves(ctx, pool)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reserves failed")
		return nil, err
	}

	q, err := s.quoteFromSnapshot(ctx, tokenA, tokenB, snap, 0)
	if err != nil {
		span.SetStatus(codes.Error, "price derivation failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("price", q.PriceDecimal().String()))
	span.SetStatus(codes.Ok, "price read")
	return q, nil
}

func (s *Source) quoteFromSnapshot(ctx context.Context, tokenA, tokenB common.Address, snap *domain.ReserveSnapshot, block uint64) (*domain.PriceQuote, error) {
	resA, resB, ok := snap.Oriented(tokenA)
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContextf("token %s not in pool %s", tokenA.Hex(), snap.Pool.Hex()))
	}
	decA := s.tokens.Decimals(ctx, tokenA)
	decB := s.tokens.Decimals(ctx, tokenB)

	price, inverse, err := domain.DerivePrice(resA, decA, resB, decB)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithCause(err),
			apperror.WithContextf("%s pool %s", s.cfg.Name, snap.Pool.Hex()))
	}

	if block == 0 {
		block = s.blockNumber(ctx)
	}
	return &domain.PriceQuote{
		Venue:       s.cfg.Name,
		Pool:        snap.Pool,
		TokenA:      tokenA,
		TokenB:      tokenB,
		DecimalsA:   decA,
		DecimalsB:   decB,
		Price:       price,
		Inverse:     inverse,
		FeeBps:      s.cfg.FeeBps,
		LiquidityB:  asset.ToDecimal(resB, decB),
		BlockNumber: block,
		Timestamp:   s.now(),
	}, nil
}

func (s *Source) blockNumber(ctx context.Context) uint64 {
	if s.head != nil {
		if n := s.head.BlockNumber(); n > 0 {
			return n
		}
	}
	n, err := s.caller.BlockNumber(ctx)
	if err != nil {
		return 0
	}
	return n
}

// GetQuote simulates a swap with the constant-product formula.
func (s *Source) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*domain.SwapQuote, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	pool, err := s.PoolFor(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	snap, err := s.GetReserves(ctx, pool)
	if err != nil {
		return nil, err
	}
	resIn, resOut, ok := snap.Oriented(tokenIn)
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContextf("token %s not in pool %s", tokenIn.Hex(), pool.Hex()))
	}

	out, err := domain.AmountOut(amountIn, resIn, resOut, s.cfg.FeeBps)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidQuote, apperror.WithCause(err))
	}

	s.logger.Debug(ctx, "constant-product quote",
		"venue", s.cfg.Name,
		"token_in", tokenIn.Hex(),
		"amount_in", amountIn.String(),
		"amount_out", out.String(),
	)
	return &domain.SwapQuote{
		Venue:          s.cfg.Name,
		Pool:           pool,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       new(big.Int).Set(amountIn),
		AmountOut:      out,
		PriceImpactPct: domain.PriceImpactPct(amountIn, resIn),
		FeeBps:         s.cfg.FeeBps,
	}, nil
}

// GetLiquidity returns the pool's reserve of token.
func (s *Source) GetLiquidity(ctx context.Context, tokenA, tokenB, token common.Address) (*domain.Liquidity, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	pool, err := s.PoolFor(ctx, tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	snap, err := s.GetReserves(ctx, pool)
	if err != nil {
		return nil, err
	}
	raw, _, ok := snap.Oriented(token)
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("token %s not in pool %s", token.Hex(), pool.Hex()))
	}
	return &domain.Liquidity{
		Pool:     pool,
		Token:    token,
		Raw:      raw,
		Decimals: s.tokens.Decimals(ctx, token),
	}, nil
}

// SubscribeToPriceUpdates watches the pair's Sync events and rebuilds the
// quote from the event's reserves without another RPC round trip.
func (s *Source) SubscribeToPriceUpdates(ctx context.Context, tokenA, tokenB common.Address, onChange func(domain.PriceQuote)) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	pool, err := s.PoolFor(ctx, tokenA, tokenB)
	if err != nil {
		return err
	}
	pt, err := s.tokensOf(ctx, pool)
	if err != nil {
		return err
	}

	q := ethereum.FilterQuery{
		Addresses: []common.Address{pool},
		Topics:    [][]common.Hash{{SyncTopic}},
	}
	return s.subs.Watch(ctx, q, func(ctx context.Context, l types.Log) {
		vals, err := PairABI.Unpack("Sync", l.Data)
		if err != nil || len(vals) != 2 {
			s.logger.Warn(ctx, "undecodable sync event", "venue", s.cfg.Name, "pool", pool.Hex(), "error", err)
			return
		}
		snap := &domain.ReserveSnapshot{
			Pool:      pool,
			Token0:    pt.token0,
			Token1:    pt.token1,
			Reserve0:  vals[0].(*big.Int),
			Reserve1:  vals[1].(*big.Int),
			UpdatedAt: s.now(),
		}
		quote, err := s.quoteFromSnapshot(ctx, tokenA, tokenB, snap, l.BlockNumber)
		if err != nil {
			s.logger.Debug(ctx, "sync event skipped", "venue", s.cfg.Name, "error", err)
			return
		}
		onChange(*quote)
	})
}

// Unsubscribe releases all Sync listeners.
func (s *Source) Unsubscribe() {
	s.subs.Close()
}
