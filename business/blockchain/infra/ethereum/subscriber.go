// Package ethereum provides Ethereum blockchain infrastructure adapters.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-arb/business/blockchain/app"
	"github.com/fd1az/flashloan-arb/business/blockchain/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/circuitbreaker"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashloan-arb/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/flashloan-arb/business/blockchain/infra/ethereum"
)

var _ app.BlockSubscriber = (*Subscriber)(nil)

// SubscriberConfig holds configuration for the head subscriber.
type SubscriberConfig struct {
	PollInterval    time.Duration // Polling interval for HTTP fallback
	ReconnectDelay  time.Duration // Delay before re-subscribing over WS
	MaxWSReconnects int           // WS attempts before falling back to polling
	BufferSize      int           // Block channel buffer size
}

// DefaultSubscriberConfig returns sensible defaults.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		PollInterval:    12 * time.Second, // ~1 block time
		ReconnectDelay:  5 * time.Second,
		MaxWSReconnects: 3,
		BufferSize:      16,
	}
}

// subscriberMetrics holds OTEL metric instruments.
type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	blockLatency     metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
}

// Subscriber follows the chain head over a websocket subscription and falls
// back to polling the HTTP client when the subscription cannot be kept up.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface

	ws   app.HeadClient // may be nil
	http app.HeadClient

	state      atomic.Value // domain.ConnectionState
	polling    atomic.Bool
	lastBlock  atomic.Uint64
	lastUpdate atomic.Int64
	reconnects atomic.Int32

	blocks    chan *domain.Block
	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool
	wg        sync.WaitGroup

	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewSubscriber creates a new head subscriber. ws may be nil, in which case
// heads are polled from http.
func NewSubscriber(cfg SubscriberConfig, ws, http app.HeadClient, log logger.LoggerInterface) (*Subscriber, error) {
	if http == nil && ws == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("subscriber needs at least one client"))
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		ws:     ws,
		http:   http,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}
	s.state.Store(domain.StateDisconnected)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	httpCfg := circuitbreaker.DefaultConfig("eth-http")
	httpCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.httpCB = circuitbreaker.New[*types.Header](httpCfg)

	return s, nil
}

// initMetrics initializes OTEL metric instruments.
func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total Ethereum blocks received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total Ethereum subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("Ethereum connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"eth_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times HTTP fallback was used"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Subscribe starts following the head. It may be called once.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.subscribe")
	defer span.End()

	select {
	case <-s.done:
		err := errors.New("subscriber is closed")
		span.RecordError(err)
		return nil, err
	default:
	}
	if !s.started.CompareAndSwap(false, true) {
		return s.blocks, nil
	}

	s.setState(domain.StateConnecting)

	s.wg.Add(1)
	if s.ws != nil {
		go s.runWS(ctx)
	} else {
		span.AddEvent("no_ws_client_polling")
		s.polling.Store(true)
		go s.runPoller(ctx)
	}

	span.SetStatus(codes.Ok, "subscribed")
	return s.blocks, nil
}

// runWS keeps a newHeads subscription alive, re-subscribing after errors and
// switching to polling after MaxWSReconnects consecutive failures.
func (s *Subscriber) runWS(ctx context.Context) {
	defer s.wg.Done()

	failures := 0
	for {
		headers := make(chan *types.Header, s.config.BufferSize)
		sub, err := s.ws.SubscribeNewHead(ctx, headers)
		if err == nil {
			failures = 0
			s.setState(domain.StateConnected)
			s.logger.Info(ctx, "subscribed to new heads via ws")

			err = s.consume(ctx, headers, sub.Err())
			sub.Unsubscribe()
			if err == nil {
				return
			}
		}

		failures++
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "ws head subscription failed", "error", err, "attempt", failures)

		if failures >= s.config.MaxWSReconnects && s.http != nil {
			s.logger.Warn(ctx, "switching to http polling")
			s.metrics.httpFallbackUsed.Add(ctx, 1)
			s.polling.Store(true)
			s.wg.Add(1)
			go s.runPoller(ctx)
			return
		}

		s.setState(domain.StateReconnecting)
		s.reconnects.Add(1)
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(s.config.ReconnectDelay):
		}
	}
}

// consume forwards headers until the subscription fails (non-nil error) or
// the subscriber stops (nil error).
func (s *Subscriber) consume(ctx context.Context, headers <-chan *types.Header, errc <-chan error) error {
	for {
		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err == nil {
				err = errors.New("subscription closed")
			}
			return err
		case header := <-headers:
			if header == nil {
				continue
			}
			s.processHeader(ctx, header, false)
		}
	}
}

// runPoller polls the latest header over HTTP.
func (s *Subscriber) runPoller(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info(ctx, "starting http head polling", "interval", s.config.PollInterval)
	s.setState(domain.StateConnected)
	s.pollLatestBlock(ctx)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollLatestBlock(ctx)
		}
	}
}

// pollLatestBlock fetches the latest block via HTTP.
func (s *Subscriber) pollLatestBlock(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return s.http.HeaderByNumber(ctx, nil) // nil = latest
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "http poll failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return
	}

	if header.Number.Uint64() <= s.lastBlock.Load() {
		span.AddEvent("duplicate_block")
		return
	}

	s.processHeader(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

// processHeader converts and emits a block header.
func (s *Subscriber) processHeader(ctx context.Context, header *types.Header, fromHTTP bool) {
	ctx, span := s.tracer.Start(ctx, "eth.process.header",
		trace.WithAttributes(
			attribute.Int64("block_number", int64(header.Number.Uint64())),
			attribute.Bool("from_http", fromHTTP),
		),
	)
	defer span.End()

	block := headerToBlock(header)

	latency := time.Since(block.Timestamp)
	s.metrics.blockLatency.Record(ctx, float64(latency.Milliseconds()))

	s.lastBlock.Store(block.Number)
	s.lastUpdate.Store(time.Now().UnixNano())

	// Emit block (non-blocking)
	select {
	case s.blocks <- block:
		s.metrics.blocksReceived.Add(ctx, 1)
		s.logger.Debug(ctx, "block received",
			"number", block.Number,
			"hash", block.Hash.Hex()[:10],
			"latency_ms", latency.Milliseconds())
	default:
		span.AddEvent("block_dropped_buffer_full")
		s.logger.Warn(ctx, "block dropped, buffer full", "number", block.Number)
	}
}

func headerToBlock(header *types.Header) *domain.Block {
	return &domain.Block{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(int64(header.Time), 0),
		GasLimit:   header.GasLimit,
		GasUsed:    header.GasUsed,
		BaseFee:    header.BaseFee,
	}
}

// LatestBlock retrieves the most recent block.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	client := s.http
	if client == nil {
		client = s.ws
	}

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest block"))
	}

	span.SetStatus(codes.Ok, "fetched")
	return headerToBlock(header), nil
}

// BlockNumber returns the number of the last received block.
func (s *Subscriber) BlockNumber() uint64 {
	return s.lastBlock.Load()
}

// State returns the current connection state.
func (s *Subscriber) State() domain.ConnectionState {
	return s.state.Load().(domain.ConnectionState)
}

// Status returns detailed connection status.
func (s *Subscriber) Status() domain.ConnectionStatus {
	var updated time.Time
	if ns := s.lastUpdate.Load(); ns > 0 {
		updated = time.Unix(0, ns)
	}
	return domain.ConnectionStatus{
		State:      s.State(),
		LastBlock:  s.lastBlock.Load(),
		LastUpdate: updated,
		Reconnects: int(s.reconnects.Load()),
		Polling:    s.polling.Load(),
	}
}

// Close stops the subscriber and closes the block channel.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info(context.Background(), "closing ethereum subscriber")
		close(s.done)
		s.wg.Wait()
		close(s.blocks)
		s.setState(domain.StateDisconnected)
	})
	return nil
}

// setState updates the connection state and records metrics.
func (s *Subscriber) setState(state domain.ConnectionState) {
	s.state.Store(state)

	stateValue := int64(0)
	switch state {
	case domain.StateConnecting:
		stateValue = 1
	case domain.StateConnected:
		stateValue = 2
	case domain.StateReconnecting:
		stateValue = 3
	}

	s.metrics.connectionState.Record(context.Background(), stateValue)
}
