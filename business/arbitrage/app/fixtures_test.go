package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	execDomain "github.com/fd1az/flashloan-arb/business/execution/domain"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

var (
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	dai  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")

	poolA = common.HexToAddress("0x1000000000000000000000000000000000000001")
	poolB = common.HexToAddress("0x2000000000000000000000000000000000000002")
	poolC = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func testRefs() domain.ReferencePrices {
	return domain.ReferencePrices{
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": dec("2000"),
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": dec("1"),
	}
}

// quote builds a WETH/USDC quote priced in USDC.
func quote(venue string, pool common.Address, price, liquidity string, feeBps int) pricingDomain.PriceQuote {
	p := dec(price)
	return pricingDomain.PriceQuote{
		Venue:       venue,
		Pool:        pool,
		TokenA:      weth,
		TokenB:      usdc,
		DecimalsA:   18,
		DecimalsB:   6,
		Price:       asset.DecimalToFixed(p),
		Inverse:     asset.DecimalToFixed(decimal.NewFromInt(1).Div(p)),
		FeeBps:      feeBps,
		LiquidityB:  dec(liquidity),
		BlockNumber: 100,
		Timestamp:   time.Now(),
	}
}

// baseOpportunity passes every validation stage without warnings.
func baseOpportunity(at time.Time) *domain.Opportunity {
	est := dec("100")
	return &domain.Opportunity{
		ID:                 "test",
		PairKey:            pricingDomain.PairKey(weth, usdc),
		TokenIn:            weth,
		TokenOut:           usdc,
		DecimalsIn:         18,
		DecimalsOut:        6,
		BuyVenue:           "uniswap_v2",
		BuyPool:            poolA,
		BuyFeeBps:          30,
		SellVenue:          "sushiswap",
		SellPool:           poolB,
		SellFeeBps:         30,
		BuyPrice:           dec("1000"),
		SellPrice:          dec("1010"),
		BuyLiquidity:       dec("50000"),
		SellLiquidity:      dec("50000"),
		AvailableLiquidity: dec("50000"),
		EstimatedProfit:    &est,
		BlockNumber:        100,
		Timestamp:          at,
	}
}

type fakeSource struct {
	name  string
	ready bool
	err   error

	mu       sync.Mutex
	quote    *pricingDomain.PriceQuote
	onChange []func(pricingDomain.PriceQuote)
	subErr   error

	calls        atomic.Int32
	unsubscribed atomic.Int32
}

func newFakeSource(name string, q *pricingDomain.PriceQuote) *fakeSource {
	return &fakeSource{name: name, ready: true, quote: q}
}

func (s *fakeSource) Name() string                 { return s.name }
func (s *fakeSource) Kind() pricingDomain.VenueKind { return pricingDomain.KindConstantProduct }
func (s *fakeSource) IsInitialized() bool          { return s.ready }
func (s *fakeSource) Initialize(context.Context) error {
	return nil
}

func (s *fakeSource) GetPrice(context.Context, common.Address, common.Address) (*pricingDomain.PriceQuote, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil {
		return nil, apperror.New(apperror.CodePoolNotFound)
	}
	q := *s.quote
	return &q, nil
}

func (s *fakeSource) setPrice(price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := *s.quote
	q.Price = asset.DecimalToFixed(dec(price))
	s.quote = &q
}

func (s *fakeSource) GetReserves(context.Context, common.Address) (*pricingDomain.ReserveSnapshot, error) {
	return nil, errors.New("not implemented")
}
func (s *fakeSource) GetQuote(context.Context, common.Address, common.Address, *big.Int) (*pricingDomain.SwapQuote, error) {
	return nil, errors.New("not implemented")
}
func (s *fakeSource) GetLiquidity(context.Context, common.Address, common.Address, common.Address) (*pricingDomain.Liquidity, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeSource) SubscribeToPriceUpdates(_ context.Context, _, _ common.Address, fn func(pricingDomain.PriceQuote)) error {
	if s.subErr != nil {
		return s.subErr
	}
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
	return nil
}

// push fires every registered listener with the current quote.
func (s *fakeSource) push() {
	s.mu.Lock()
	q := *s.quote
	listeners := append([]func(pricingDomain.PriceQuote){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(q)
	}
}

func (s *fakeSource) Unsubscribe() {
	s.unsubscribed.Add(1)
	s.mu.Lock()
	s.onChange = nil
	s.mu.Unlock()
}

type fakeDispatcher struct {
	mu       sync.Mutex
	status   execDomain.Status
	err      error
	received []*domain.ProfitAnalysis
}

func (d *fakeDispatcher) Dispatch(_ context.Context, a *domain.ProfitAnalysis) (*execDomain.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, a)
	if d.err != nil {
		return nil, d.err
	}
	return &execDomain.Result{Status: d.status, At: time.Now()}, nil
}

type recordingReporter struct {
	mu        sync.Mutex
	decisions []Decision
	quotes    int
	blocks    []uint64
	stats     []Stats
	stopped   bool
}

func (r *recordingReporter) Start(context.Context) error { return nil }

func (r *recordingReporter) Stop() error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	return nil
}

func (r *recordingReporter) ReportBlock(n uint64, _ time.Time) {
	r.mu.Lock()
	r.blocks = append(r.blocks, n)
	r.mu.Unlock()
}

func (r *recordingReporter) ReportStats(s Stats) {
	r.mu.Lock()
	r.stats = append(r.stats, s)
	r.mu.Unlock()
}

func (r *recordingReporter) ReportQuote(pricingDomain.PriceQuote) {
	r.mu.Lock()
	r.quotes++
	r.mu.Unlock()
}

func (r *recordingReporter) ReportDecision(d Decision) {
	r.mu.Lock()
	r.decisions = append(r.decisions, d)
	r.mu.Unlock()
}

func (r *recordingReporter) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.decisions))
	for i, d := range r.decisions {
		out[i] = d.Outcome()
	}
	return out
}
