package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	pricingApp "github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const (
	tracerName = "arbitrage.aggregator"
	meterName  = "arbitrage.aggregator"
)

// AggregatorConfig controls scanning.
type AggregatorConfig struct {
	PollInterval time.Duration
	MinSpreadPct decimal.Decimal
	// ReferenceTradeSize sizes the rough EstimatedProfit attached to each
	// opportunity. Zero leaves the estimate unset.
	ReferenceTradeSize decimal.Decimal
	EventDriven        bool
}

// AggregatorConfigFrom maps the loaded configuration.
func AggregatorConfigFrom(c *config.Config) AggregatorConfig {
	return AggregatorConfig{
		PollInterval:       c.Aggregator.PollInterval,
		MinSpreadPct:       decimal.NewFromFloat(c.Aggregator.MinSpreadPct),
		ReferenceTradeSize: c.Profit.MaxTradeSizeDecimal(),
		EventDriven:        c.Aggregator.EventDriven,
	}
}

type aggregatorMetrics struct {
	cycles        metric.Int64Counter
	quotes        metric.Int64Counter
	sourceErrors  metric.Int64Counter
	opportunities metric.Int64Counter
	cycleLatency  metric.Float64Histogram
}

type emission struct {
	ctx  context.Context
	opps []*domain.Opportunity
	done chan struct{}
}

type rescan struct {
	dirty bool
}

// Aggregator polls every price source for every monitored pair, pairs up
// venues and hands opportunities to its callbacks. Callbacks run one at a
// time on a single emitter goroutine, and each cycle waits for its
// opportunities to be handled before moving on.
type Aggregator struct {
	cfg     AggregatorConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *aggregatorMetrics
	now     func() time.Time

	mu        sync.RWMutex
	sources   []pricingApp.PriceSource
	pairs     map[string]pricingDomain.Pair
	callbacks []Callback
	observers []QuoteObserver

	running  atomic.Bool
	stopping atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	loopDone chan struct{}

	emitCh   chan emission
	emitQuit chan struct{}
	emitDone chan struct{}

	scanMu  sync.Mutex
	rescans map[string]*rescan
	scanWG  sync.WaitGroup

	cycles        atomic.Uint64
	quotes        atomic.Uint64
	sourceErrors  atomic.Uint64
	opportunities atomic.Uint64
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg AggregatorConfig, log logger.LoggerInterface) (*Aggregator, error) {
	if cfg.PollInterval <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("poll interval must be positive"))
	}

	a := &Aggregator{
		cfg:      cfg,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		pairs:    make(map[string]pricingDomain.Pair),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		emitCh:   make(chan emission),
		emitQuit: make(chan struct{}),
		emitDone: make(chan struct{}),
		rescans:  make(map[string]*rescan),
	}

	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return a, nil
}

func (a *Aggregator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &aggregatorMetrics{}

	a.metrics.cycles, err = meter.Int64Counter(
		"aggregator_cycles_total",
		metric.WithDescription("Total completed scan cycles"),
	)
	if err != nil {
		return err
	}

	a.metrics.quotes, err = meter.Int64Counter(
		"aggregator_quotes_total",
		metric.WithDescription("Total quotes fetched from price sources"),
	)
	if err != nil {
		return err
	}

	a.metrics.sourceErrors, err = meter.Int64Counter(
		"aggregator_source_errors_total",
		metric.WithDescription("Total failed quote fetches"),
	)
	if err != nil {
		return err
	}

	a.metrics.opportunities, err = meter.Int64Counter(
		"aggregator_opportunities_total",
		metric.WithDescription("Total opportunities synthesized"),
	)
	if err != nil {
		return err
	}

	a.metrics.cycleLatency, err = meter.Float64Histogram(
		"aggregator_cycle_latency_ms",
		metric.WithDescription("Scan cycle latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// AddSource registers a price source. Names must be unique.
func (a *Aggregator) AddSource(src pricingApp.PriceSource) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.sources {
		if s.Name() == src.Name() {
			return apperror.New(apperror.CodeInvalidInput,
				apperror.WithContextf("price source %s already registered", src.Name()))
		}
	}
	a.sources = append(a.sources, src)
	return nil
}

// RemoveSource drops the named source and releases its subscriptions.
func (a *Aggregator) RemoveSource(name string) bool {
	a.mu.Lock()
	var removed pricingApp.PriceSource
	for i, s := range a.sources {
		if s.Name() == name {
			removed = s
			a.sources = append(a.sources[:i:i], a.sources[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	if removed == nil {
		return false
	}
	removed.Unsubscribe()
	return true
}

// Sources returns the registered sources in registration order.
func (a *Aggregator) Sources() []pricingApp.PriceSource {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]pricingApp.PriceSource(nil), a.sources...)
}

// AddPair starts monitoring tokenA/tokenB. Prices are quoted as tokenB per
// tokenA; adding the reverse orientation of a monitored pair is a no-op.
func (a *Aggregator) AddPair(tokenA, tokenB common.Address) (pricingDomain.Pair, error) {
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) || tokenA == tokenB {
		return pricingDomain.Pair{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("invalid pair %s/%s", tokenA.Hex(), tokenB.Hex()))
	}

	pair := pricingDomain.NewPair(tokenA, tokenB)

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.pairs[pair.Key]; ok {
		return existing, nil
	}
	a.pairs[pair.Key] = pair
	return pair, nil
}

// RemovePair stops monitoring the pair in either orientation.
func (a *Aggregator) RemovePair(tokenA, tokenB common.Address) bool {
	key := pricingDomain.PairKey(tokenA, tokenB)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.pairs[key]; !ok {
		return false
	}
	delete(a.pairs, key)
	return true
}

// MonitoredPairs returns the monitored pairs ordered by key.
func (a *Aggregator) MonitoredPairs() []pricingDomain.Pair {
	a.mu.RLock()
	out := make([]pricingDomain.Pair, 0, len(a.pairs))
	for _, p := range a.pairs {
		out = append(out, p)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// OnOpportunity registers a callback. Callbacks run in registration order.
func (a *Aggregator) OnOpportunity(cb Callback) {
	a.mu.Lock()
	a.callbacks = append(a.callbacks, cb)
	a.mu.Unlock()
}

// OnQuote registers an observer for every fetched or pushed quote.
func (a *Aggregator) OnQuote(fn QuoteObserver) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

// Start launches the polling loop and, when enabled, the event subscriptions.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.stopping.Load() {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("aggregator stopped"))
	}
	if !a.running.CompareAndSwap(false, true) {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("aggregator already started"))
	}

	go a.emitter()

	if a.cfg.EventDriven {
		a.subscribe(ctx)
	}

	go a.loop(ctx)

	a.logger.Info(ctx, "aggregator started",
		"sources", len(a.Sources()),
		"pairs", len(a.MonitoredPairs()),
		"poll_interval", a.cfg.PollInterval,
		"event_driven", a.cfg.EventDriven)
	return nil
}

// Stop halts the loop at its next iteration boundary, waits for in-flight
// scans and releases every source subscription. It is safe to call more
// than once.
func (a *Aggregator) Stop() error {
	a.stopOnce.Do(func() {
		a.scanMu.Lock()
		a.stopping.Store(true)
		a.scanMu.Unlock()

		close(a.stop)
		if a.running.Load() {
			<-a.loopDone
		}
		a.scanWG.Wait()

		for _, s := range a.Sources() {
			s.Unsubscribe()
		}

		close(a.emitQuit)
		if a.running.Load() {
			<-a.emitDone
		}
	})
	return nil
}

func (a *Aggregator) loop(ctx context.Context) {
	defer close(a.loopDone)

	// In-flight calls finish even if ctx is cancelled mid-cycle.
	scanCtx := context.WithoutCancel(ctx)

	for {
		if a.stopping.Load() {
			return
		}

		if _, err := a.ScanOnce(scanCtx); err != nil {
			a.logger.Warn(ctx, "scan cycle failed", "error", err)
		}

		select {
		case <-a.stop:
			return
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.PollInterval):
		}
	}
}

// ScanOnce scans every monitored pair and returns how many opportunities
// were emitted.
func (a *Aggregator) ScanOnce(ctx context.Context) (int, error) {
	ctx, span := a.tracer.Start(ctx, "aggregator.ScanOnce")
	defer span.End()

	start := time.Now()
	total := 0
	for _, pair := range a.MonitoredPairs() {
		opps, err := a.ScanPair(ctx, pair.Key)
		if err != nil {
			a.logger.Warn(ctx, "pair scan failed", "pair", pair.Key, "error", err)
			continue
		}
		total += len(opps)
	}

	a.cycles.Add(1)
	a.metrics.cycles.Add(ctx, 1)
	a.metrics.cycleLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	span.SetAttributes(attribute.Int("opportunities", total))
	span.SetStatus(codes.Ok, "")
	return total, nil
}

// ScanPair fetches one quote per source for the pair, synthesizes
// opportunities and delivers them to the callbacks.
func (a *Aggregator) ScanPair(ctx context.Context, key string) ([]*domain.Opportunity, error) {
	a.mu.RLock()
	pair, ok := a.pairs[key]
	a.mu.RUnlock()
	if !ok {
		return nil, apperror.New(apperror.CodeNotFound, apperror.WithContextf("pair %s not monitored", key))
	}

	ctx, span := a.tracer.Start(ctx, "aggregator.ScanPair",
		trace.WithAttributes(attribute.String("pair", key)))
	defer span.End()

	quotes := a.fetchQuotes(ctx, pair)
	span.SetAttributes(attribute.Int("quotes", len(quotes)))
	if len(quotes) < 2 {
		span.SetStatus(codes.Ok, "not enough quotes")
		return nil, nil
	}

	opps := Synthesize(quotes, a.cfg.MinSpreadPct, a.cfg.ReferenceTradeSize, a.now())
	if len(opps) > 0 {
		a.opportunities.Add(uint64(len(opps)))
		a.metrics.opportunities.Add(ctx, int64(len(opps)), metric.WithAttributes(attribute.String("pair", key)))
		a.emit(ctx, opps)
	}

	span.SetStatus(codes.Ok, "")
	return opps, nil
}

func (a *Aggregator) fetchQuotes(ctx context.Context, pair pricingDomain.Pair) []pricingDomain.PriceQuote {
	sources := a.Sources()
	results := make([]*pricingDomain.PriceQuote, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		if !src.IsInitialized() {
			a.logger.Warn(ctx, "skipping uninitialized price source", "source", src.Name())
			continue
		}
		g.Go(func() error {
			q, err := src.GetPrice(gctx, pair.TokenA, pair.TokenB)
			if err != nil {
				a.recordSourceError(ctx, src.Name(), pair.Key, err)
				return nil
			}
			results[i] = q
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]pricingDomain.PriceQuote, 0, len(results))
	for _, q := range results {
		if q == nil {
			continue
		}
		quotes = append(quotes, *q)
		a.notifyQuote(*q)
	}

	a.quotes.Add(uint64(len(quotes)))
	a.metrics.quotes.Add(ctx, int64(len(quotes)), metric.WithAttributes(attribute.String("pair", pair.Key)))
	return quotes
}

func (a *Aggregator) recordSourceError(ctx context.Context, source, pair string, err error) {
	if apperror.HasCode(err, apperror.CodePoolNotFound) {
		a.logger.Debug(ctx, "no pool on venue", "source", source, "pair", pair)
		return
	}
	a.sourceErrors.Add(1)
	a.metrics.sourceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	a.logger.Warn(ctx, "price fetch failed", "source", source, "pair", pair, "error", err)
}

func (a *Aggregator) notifyQuote(q pricingDomain.PriceQuote) {
	a.mu.RLock()
	observers := append([]QuoteObserver(nil), a.observers...)
	a.mu.RUnlock()

	for _, fn := range observers {
		fn(q)
	}
}

// Synthesize pairs every two quotes in both directions and returns the
// opportunities whose spread reaches minSpreadPct. Quotes must share the
// same orientation. refSize scales EstimatedProfit; zero leaves it nil.
func Synthesize(quotes []pricingDomain.PriceQuote, minSpreadPct, refSize decimal.Decimal, at time.Time) []*domain.Opportunity {
	var out []*domain.Opportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			if quotes[i].Venue == quotes[j].Venue {
				continue
			}
			if opp := synthesizeOne(quotes[i], quotes[j], minSpreadPct, refSize, at); opp != nil {
				out = append(out, opp)
			}
			if opp := synthesizeOne(quotes[j], quotes[i], minSpreadPct, refSize, at); opp != nil {
				out = append(out, opp)
			}
		}
	}
	return out
}

func synthesizeOne(buy, sell pricingDomain.PriceQuote, minSpreadPct, refSize decimal.Decimal, at time.Time) *domain.Opportunity {
	buyPrice, sellPrice := buy.PriceDecimal(), sell.PriceDecimal()
	if !pricingDomain.CalculateSpread(buyPrice, sellPrice).Profitable(minSpreadPct) {
		return nil
	}

	key := buy.PairKey()
	opp := &domain.Opportunity{
		ID:                 domain.NewOpportunityID(key, buy.Venue, sell.Venue, at),
		PairKey:            key,
		TokenIn:            buy.TokenA,
		TokenOut:           buy.TokenB,
		DecimalsIn:         buy.DecimalsA,
		DecimalsOut:        buy.DecimalsB,
		BuyVenue:           buy.Venue,
		BuyPool:            buy.Pool,
		BuyFeeBps:          buy.FeeBps,
		SellVenue:          sell.Venue,
		SellPool:           sell.Pool,
		SellFeeBps:         sell.FeeBps,
		BuyPrice:           buyPrice,
		SellPrice:          sellPrice,
		BuyLiquidity:       buy.LiquidityB,
		SellLiquidity:      sell.LiquidityB,
		AvailableLiquidity: decimal.Min(buy.LiquidityB, sell.LiquidityB),
		BlockNumber:        max(buy.BlockNumber, sell.BlockNumber),
		Timestamp:          at,
	}

	if refSize.IsPositive() {
		est := sellPrice.Sub(buyPrice).Mul(refSize)
		opp.EstimatedProfit = &est
	}
	return opp
}

func (a *Aggregator) emit(ctx context.Context, opps []*domain.Opportunity) {
	if !a.running.Load() {
		a.deliver(ctx, opps)
		return
	}

	em := emission{ctx: ctx, opps: opps, done: make(chan struct{})}
	select {
	case a.emitCh <- em:
		<-em.done
	case <-a.emitQuit:
		a.deliver(ctx, opps)
	}
}

func (a *Aggregator) emitter() {
	defer close(a.emitDone)
	for {
		select {
		case em := <-a.emitCh:
			a.deliver(em.ctx, em.opps)
			close(em.done)
		case <-a.emitQuit:
			return
		}
	}
}

func (a *Aggregator) deliver(ctx context.Context, opps []*domain.Opportunity) {
	a.mu.RLock()
	callbacks := append([]Callback(nil), a.callbacks...)
	a.mu.RUnlock()

	for _, opp := range opps {
		for _, cb := range callbacks {
			a.invoke(ctx, cb, opp)
		}
	}
}

func (a *Aggregator) invoke(ctx context.Context, cb Callback, opp *domain.Opportunity) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error(ctx, "opportunity callback panicked", "opportunity", opp.ID, "panic", r)
		}
	}()

	if err := cb(ctx, opp); err != nil {
		a.logger.Error(ctx, "opportunity callback failed", "opportunity", opp.ID, "error", err)
	}
}

func (a *Aggregator) subscribe(ctx context.Context) {
	for _, src := range a.Sources() {
		for _, pair := range a.MonitoredPairs() {
			key := pair.Key
			err := src.SubscribeToPriceUpdates(ctx, pair.TokenA, pair.TokenB, func(q pricingDomain.PriceQuote) {
				a.notifyQuote(q)
				a.trigger(ctx, key)
			})
			if err != nil {
				a.logger.Warn(ctx, "price subscription unavailable, polling only",
					"source", src.Name(), "pair", key, "error", err)
			}
		}
	}
}

// trigger schedules an out-of-cycle scan of key. Triggers that arrive while
// a scan of the same pair is running collapse into one follow-up scan.
func (a *Aggregator) trigger(ctx context.Context, key string) {
	a.scanMu.Lock()
	if a.stopping.Load() {
		a.scanMu.Unlock()
		return
	}
	if r, ok := a.rescans[key]; ok {
		r.dirty = true
		a.scanMu.Unlock()
		return
	}
	r := &rescan{}
	a.rescans[key] = r
	a.scanWG.Add(1)
	a.scanMu.Unlock()

	scanCtx := context.WithoutCancel(ctx)
	go func() {
		defer a.scanWG.Done()
		for {
			if _, err := a.ScanPair(scanCtx, key); err != nil {
				a.logger.Debug(scanCtx, "event scan skipped", "pair", key, "error", err)
			}

			a.scanMu.Lock()
			if !r.dirty || a.stopping.Load() {
				delete(a.rescans, key)
				a.scanMu.Unlock()
				return
			}
			r.dirty = false
			a.scanMu.Unlock()
		}
	}()
}

// Stats returns the aggregator's share of the running counters.
func (a *Aggregator) Stats() Stats {
	return Stats{
		Cycles:        a.cycles.Load(),
		Quotes:        a.quotes.Load(),
		SourceErrors:  a.sourceErrors.Load(),
		Opportunities: a.opportunities.Load(),
	}
}
