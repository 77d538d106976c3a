// Package uniswapv3 implements a PriceSource for concentrated-liquidity pools.
package uniswapv3

import (
	"context"
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

const tracerName = "pricing.uniswapv3"

var _ app.PriceSource = (*Source)(nil)

// Config describes one concentrated-liquidity deployment.
type Config struct {
	Name    string
	Factory common.Address
	Quoter  common.Address
}

type pool struct {
	address common.Address
	token0  common.Address
	token1  common.Address
	fee     int
}

// feeBps converts the pool fee (hundredths of a bip) to basis points.
func (p pool) feeBps() int { return p.fee / 100 }

// Source reads prices from concentrated-liquidity pools. For each pair it
// picks the fee tier with the most in-range liquidity.
type Source struct {
	cfg    Config
	caller *evm.Caller
	tokens *evm.Tokens
	head   app.HeadTracker
	subs   *evm.Subscriptions
	logger logger.LoggerInterface
	tracer trace.Tracer

	pools  *evm.Lookup[pool]
	byAddr *evm.Lookup[pool]

	initialized atomic.Bool
	now         func() time.Time
}

// New creates a Source. head and logs may be nil.
func New(cfg Config, caller *evm.Caller, tokens *evm.Tokens, head app.HeadTracker, logs app.LogSubscriber, log logger.LoggerInterface) *Source {
	return &Source{
		cfg:    cfg,
		caller: caller,
		tokens: tokens,
		head:   head,
		subs:   evm.NewSubscriptions(cfg.Name, logs, log),
		logger: log,
		tracer: otel.Tracer(tracerName),
		pools:  evm.NewLookup[pool](),
		byAddr: evm.NewLookup[pool](),
		now:    time.Now,
	}
}

// Name returns the venue name.
func (s *Source) Name() string { return s.cfg.Name }

// Kind returns KindConcentratedLiquidity.
func (s *Source) Kind() domain.VenueKind { return domain.KindConcentratedLiquidity }

// IsInitialized reports whether Initialize succeeded.
func (s *Source) IsInitialized() bool { return s.initialized.Load() }

// Initialize checks that the factory answers owner().
func (s *Source) Initialize(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "uniswapv3.initialize",
		trace.WithAttributes(attribute.String("venue", s.cfg.Name)))
	defer span.End()

	if _, err := s.caller.Call(ctx, s.cfg.Factory, FactoryABI, "owner"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "factory unreachable")
		return apperror.New(apperror.CodeAdapterInitFailed,
			apperror.WithCause(err),
			apperror.WithContextf("%s factory %s", s.cfg.Name, s.cfg.Factory.Hex()))
	}

	s.initialized.Store(true)
	span.SetStatus(codes.Ok, "initialized")
	s.logger.Debug(ctx, "concentrated-liquidity source ready", "venue", s.cfg.Name)
	return nil
}

func (s *Source) ensureInitialized() error {
	if !s.initialized.Load() {
		return apperror.New(apperror.CodeAdapterNotInitialized, apperror.WithContext(s.cfg.Name))
	}
	return nil
}

// poolFor finds the deepest pool for the pair across FeeTiers.
func (s *Source) poolFor(ctx context.Context, tokenA, tokenB common.Address) (pool, error) {
	key := domain.PairKey(tokenA, tokenB)
	return s.pools.Get(ctx, key, func(ctx context.Context) (pool, error) {
		var (
			best    pool
			bestLiq *big.Int
		)
		for _, fee := range FeeTiers {
			out, err := s.caller.Call(ctx, s.cfg.Factory, FactoryABI, "getPool", tokenA, tokenB, big.NewInt(int64(fee)))
			if err != nil {
				return pool{}, err
			}
			addr, _ := out[0].(common.Address)
			if addr == (common.Address{}) {
				continue
			}
			liq, err := s.caller.Call(ctx, addr, PoolABI, "liquidity")
			if err != nil {
				s.logger.Debug(ctx, "pool liquidity unavailable", "venue", s.cfg.Name, "pool", addr.Hex(), "error", err)
				continue
			}
			l := liq[0].(*big.Int)
			if bestLiq == nil || l.Cmp(bestLiq) > 0 {
				best = pool{address: addr, fee: fee}
				bestLiq = l
			}
		}
		if bestLiq == nil {
			return pool{}, apperror.New(apperror.CodePoolNotFound,
				apperror.WithContextf("%s has no pool for %s", s.cfg.Name, key))
		}

		p, err := s.poolAt(ctx, best.address)
		if err != nil {
			return pool{}, err
		}
		p.fee = best.fee
		return p, nil
	})
}

// poolAt resolves a pool's token ordering.
func (s *Source) poolAt(ctx context.Context, addr common.Address) (pool, error) {
	return s.byAddr.Get(ctx, addr.Hex(), func(ctx context.Context) (pool, error) {
		out0, err := s.caller.Call(ctx, addr, PoolABI, "token0")
		if err != nil {
			return pool{}, err
		}
		out1, err := s.caller.Call(ctx, addr, PoolABI, "token1")
		if err != nil {
			return pool{}, err
		}
		return pool{address: addr, token0: out0[0].(common.Address), token1: out1[0].(common.Address)}, nil
	})
}

func (s *Source) sqrtPrice(ctx context.Context, addr common.Address) (*big.Int, error) {
	out, err := s.caller.Call(ctx, addr, PoolABI, "slot0")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetPrice returns tokenB per tokenA from the pool's sqrtPriceX96.
func (s *Source) GetPrice(ctx context.Context, tokenA, tokenB common.Address) (*domain.PriceQuote, error) {
	ctx, span := s.tracer.Start(ctx, "uniswapv3.get_price",
		trace.WithAttributes(
			attribute.String("venue", s.cfg.Name),
			attribute.String("pair", domain.PairKey(tokenA, tokenB)),
		))
	defer span.End()

	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	p, err := s.poolFor(ctx, tokenA, tokenB)
	if err != nil {
		span.SetStatus(codes.Error, "pool lookup failed")
		return nil, err
	}
	sqrt, err := s.sqrtPrice(ctx, p.address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "slot0 failed")
		return nil, err
	}

	q, err := s.quoteFromSqrt(ctx, tokenA, tokenB, p, sqrt, 0)
	if err != nil {
		span.SetStatus(codes.Error, "price derivation failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("price", q.PriceDecimal().String()),
		attribute.Int("fee_tier", p.fee),
	)
	span.SetStatus(codes.Ok, "price read")
	return q, nil
}

func (s *Source) quoteFromSqrt(ctx context.Context, tokenA, tokenB common.Address, p pool, sqrt *big.Int, block uint64) (*domain.PriceQuote, error) {
	dec0 := s.tokens.Decimals(ctx, p.token0)
	dec1 := s.tokens.Decimals(ctx, p.token1)

	price01, price10, err := domain.PriceFromSqrtX96(sqrt, dec0, dec1)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithCause(err),
			apperror.WithContextf("%s pool %s", s.cfg.Name, p.address.Hex()))
	}

	price, inverse := price01, price10
	decA, decB := dec0, dec1
	switch tokenA {
	case p.token0:
	case p.token1:
		price, inverse = price10, price01
		decA, decB = dec1, dec0
	default:
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContextf("token %s not in pool %s", tokenA.Hex(), p.address.Hex()))
	}

	balB, err := s.tokens.BalanceOf(ctx, tokenB, p.address)
	if err != nil {
		return nil, err
	}

	if block == 0 {
		block = s.blockNumber(ctx)
	}
	return &domain.PriceQuote{
		Venue:       s.cfg.Name,
		Pool:        p.address,
		TokenA:      tokenA,
		TokenB:      tokenB,
		DecimalsA:   decA,
		DecimalsB:   decB,
		Price:       price,
		Inverse:     inverse,
		FeeBps:      p.feeBps(),
		LiquidityB:  asset.ToDecimal(balB, decB),
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

// GetReserves reports the pool's token balances. Concentrated pools have no
// reserve pair; the balances are the closest equivalent.
func (s *Source) GetReserves(ctx context.Context, addr common.Address) (*domain.ReserveSnapshot, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	p, err := s.poolAt(ctx, addr)
	if err != nil {
		return nil, err
	}
	bal0, err := s.tokens.BalanceOf(ctx, p.token0, addr)
	if err != nil {
		return nil, err
	}
	bal1, err := s.tokens.BalanceOf(ctx, p.token1, addr)
	if err != nil {
		return nil, err
	}
	return &domain.ReserveSnapshot{
		Pool:      addr,
		Token0:    p.token0,
		Token1:    p.token1,
		Reserve0:  bal0,
		Reserve1:  bal1,
		UpdatedAt: s.now(),
	}, nil
}

// GetQuote asks QuoterV2 for the exact output of a single-pool swap.
func (s *Source) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*domain.SwapQuote, error) {
	ctx, span := s.tracer.Start(ctx, "uniswapv3.get_quote",
		trace.WithAttributes(
			attribute.String("token_in", tokenIn.Hex()),
			attribute.String("token_out", tokenOut.Hex()),
			attribute.String("amount_in", amountIn.String()),
		),
	)
	defer span.End()

	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	p, err := s.poolFor(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	before, err := s.sqrtPrice(ctx, p.address)
	if err != nil {
		return nil, err
	}

	out, err := s.caller.Call(ctx, s.cfg.Quoter, QuoterV2ABI, "quoteExactInputSingle", QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(p.fee)),
		SqrtPriceLimitX96: big.NewInt(0), // No price limit
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quoter failed")
		return nil, err
	}
	if len(out) < 4 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContextf("unexpected quoter output length: %d", len(out)))
	}
	res := QuoteResult{
		AmountOut:               out[0].(*big.Int),
		SqrtPriceX96After:       out[1].(*big.Int),
		InitializedTicksCrossed: out[2].(uint32),
		GasEstimate:             out[3].(*big.Int),
	}

	span.SetAttributes(
		attribute.String("amount_out", res.AmountOut.String()),
		attribute.Int("fee_tier", p.fee),
		attribute.Int64("gas_estimate", res.GasEstimate.Int64()),
	)
	span.SetStatus(codes.Ok, "quote received")

	return &domain.SwapQuote{
		Venue:          s.cfg.Name,
		Pool:           p.address,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       new(big.Int).Set(amountIn),
		AmountOut:      res.AmountOut,
		PriceImpactPct: domain.SqrtPriceImpactPct(before, res.SqrtPriceX96After),
		FeeBps:         p.feeBps(),
	}, nil
}

// GetLiquidity returns the pool's balance of token.
func (s *Source) GetLiquidity(ctx context.Context, tokenA, tokenB, token common.Address) (*domain.Liquidity, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	p, err := s.poolFor(ctx, tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	if token != p.token0 && token != p.token1 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("token %s not in pool %s", token.Hex(), p.address.Hex()))
	}
	bal, err := s.tokens.BalanceOf(ctx, token, p.address)
	if err != nil {
		return nil, err
	}
	return &domain.Liquidity{
		Pool:     p.address,
		Token:    token,
		Raw:      bal,
		Decimals: s.tokens.Decimals(ctx, token),
	}, nil
}

// SubscribeToPriceUpdates watches Swap events on the pair's pool. The event
// carries the new sqrtPriceX96; the TokenB balance is re-read.
func (s *Source) SubscribeToPriceUpdates(ctx context.Context, tokenA, tokenB common.Address, onChange func(domain.PriceQuote)) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	p, err := s.poolFor(ctx, tokenA, tokenB)
	if err != nil {
		return err
	}

	q := ethereum.FilterQuery{
		Addresses: []common.Address{p.address},
		Topics:    [][]common.Hash{{SwapTopic}},
	}
	return s.subs.Watch(ctx, q, func(ctx context.Context, l types.Log) {
		vals, err := PoolABI.Unpack("Swap", l.Data)
		if err != nil || len(vals) < 3 {
			s.logger.Warn(ctx, "undecodable swap event", "venue", s.cfg.Name, "pool", p.address.Hex(), "error", err)
			return
		}
		quote, err := s.quoteFromSqrt(ctx, tokenA, tokenB, p, vals[2].(*big.Int), l.BlockNumber)
		if err != nil {
			s.logger.Debug(ctx, "swap event skipped", "venue", s.cfg.Name, "error", err)
			return
		}
		onChange(*quote)
	})
}

// Unsubscribe releases all Swap listeners.
func (s *Source) Unsubscribe() {
	s.subs.Close()
}
