// Package evm holds the contract-call plumbing shared by the on-chain price
// sources: breaker-guarded calls, token metadata and subscription bookkeeping.
package evm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/circuitbreaker"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/ratelimit"
)

const meterName = "pricing.evm"

type callerMetrics struct {
	calls   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// Caller performs eth_call requests for one venue through a circuit breaker
// and an optional rate limiter.
type Caller struct {
	venue   string
	reader  app.ChainReader
	cb      *circuitbreaker.CircuitBreaker[[]byte]
	limiter *ratelimit.Limiter
	metrics *callerMetrics
}

// NewCaller creates a Caller. limiter may be nil.
func NewCaller(venue string, reader app.ChainReader, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*Caller, error) {
	cbCfg := circuitbreaker.DefaultConfig(venue + "-rpc")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	c := &Caller{
		venue:   venue,
		reader:  reader,
		cb:      circuitbreaker.New[[]byte](cbCfg),
		limiter: limiter,
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return c, nil
}

func (c *Caller) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &callerMetrics{}

	c.metrics.calls, err = meter.Int64Counter(
		"source_rpc_calls_total",
		metric.WithDescription("Total contract calls issued by price sources"),
	)
	if err != nil {
		return err
	}

	c.metrics.errors, err = meter.Int64Counter(
		"source_rpc_errors_total",
		metric.WithDescription("Total failed contract calls"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"source_rpc_latency_ms",
		metric.WithDescription("Contract call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Call packs method with args, executes it against to and unpacks the result.
func (c *Caller) Call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContextf("pack %s", method))
	}

	out, err := c.Raw(ctx, to, data, method)
	if err != nil {
		return nil, err
	}

	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContextf("decode %s from %s", method, to.Hex()))
	}
	return values, nil
}

// Raw executes a pre-encoded call. label is used for metrics only.
func (c *Caller) Raw(ctx context.Context, to common.Address, data []byte, label string) ([]byte, error) {
	attrs := metric.WithAttributes(
		attribute.String("venue", c.venue),
		attribute.String("method", label),
	)
	c.metrics.calls.Add(ctx, 1, attrs)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.metrics.errors.Add(ctx, 1, attrs)
			return nil, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
		}
	}

	start := time.Now()
	out, err := c.cb.Execute(func() ([]byte, error) {
		return c.reader.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	c.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		c.metrics.errors.Add(ctx, 1, attrs)
		if apperror.HasCode(err, apperror.CodeCircuitOpen) {
			return nil, err
		}
		if isRevert(err) {
			return nil, apperror.New(apperror.CodeContractCallFailed,
				apperror.WithCause(err),
				apperror.WithContextf("%s reverted on %s", label, to.Hex()))
		}
		return nil, apperror.New(apperror.CodeQueryFailed,
			apperror.WithCause(err),
			apperror.WithContextf("%s on %s", label, to.Hex()))
	}
	if len(out) == 0 {
		c.metrics.errors.Add(ctx, 1, attrs)
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContextf("empty result for %s on %s", label, to.Hex()))
	}
	return out, nil
}

// BlockNumber asks the node for the current head.
func (c *Caller) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.reader.BlockNumber(ctx)
	if err != nil {
		return 0, apperror.New(apperror.CodeQueryFailed, apperror.WithCause(err))
	}
	return n, nil
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
