package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbDomain "github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/business/execution/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/cache"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const (
	tracerName = "execution.dispatcher"
	meterName  = "execution.dispatcher"
)

// DispatcherConfig controls execution.
type DispatcherConfig struct {
	DryRun   bool
	GasLimit uint64
	DedupTTL time.Duration
	LockTTL  time.Duration
	// Routers maps venue names to the router the contract swaps through.
	Routers map[string]common.Address
}

type dispatcherMetrics struct {
	dispatches  metric.Int64Counter
	simFailures metric.Int64Counter
}

// Dispatcher turns executable analyses into flash-loan transactions: it
// simulates first and only submits what simulates cleanly.
type Dispatcher struct {
	cfg      DispatcherConfig
	executor Executor
	gas      GasPricer
	locker   Locker
	dedup    *cache.Cache[string, string]
	logger   logger.LoggerInterface
	tracer   trace.Tracer
	metrics  *dispatcherMetrics
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. locker may be nil for single-process
// deployments.
func NewDispatcher(cfg DispatcherConfig, executor Executor, gas GasPricer, locker Locker,
	dedup *cache.Cache[string, string], log logger.LoggerInterface) (*Dispatcher, error) {
	d := &Dispatcher{
		cfg:      cfg,
		executor: executor,
		gas:      gas,
		locker:   locker,
		dedup:    dedup,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}

	if err := d.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return d, nil
}

func (d *Dispatcher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	d.metrics = &dispatcherMetrics{}

	d.metrics.dispatches, err = meter.Int64Counter(
		"execution_dispatches_total",
		metric.WithDescription("Dispatch attempts by outcome"),
	)
	if err != nil {
		return err
	}

	d.metrics.simFailures, err = meter.Int64Counter(
		"execution_simulation_failures_total",
		metric.WithDescription("Requests rejected by simulation"),
	)
	return err
}

// Dispatch executes an executable analysis. Routes already dispatched within
// the dedup window, or locked by another instance, are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, analysis *arbDomain.ProfitAnalysis) (*domain.Result, error) {
	if analysis == nil || analysis.Opportunity == nil || !analysis.IsExecutable {
		return nil, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("only executable analyses can be dispatched"))
	}
	opp := analysis.Opportunity

	ctx, span := d.tracer.Start(ctx, "dispatcher.Dispatch",
		trace.WithAttributes(
			attribute.String("opportunity", opp.ID),
			attribute.String("route", opp.RouteKey()),
		))
	defer span.End()

	req, err := d.BuildRequest(analysis)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// The route is claimed only once a request can be built, and released
	// again when the failure is on our side rather than the contract's.
	route := opp.RouteKey()
	if !d.dedup.SetIfAbsent(ctx, route, opp.ID, d.cfg.DedupTTL) {
		return d.finish(ctx, span, &domain.Result{
			Status: domain.StatusDuplicate,
			Reason: "route dispatched recently",
			At:     d.now(),
		}), nil
	}

	if d.locker != nil {
		release, err := d.locker.Acquire(ctx, route, d.cfg.LockTTL)
		if err != nil {
			reason := "route locked by another instance"
			if !apperror.HasCode(err, apperror.CodeLockHeld) {
				reason = "lock unavailable: " + err.Error()
				d.logger.Warn(ctx, "route lock failed", "route", route, "error", err)
			}
			return d.finish(ctx, span, &domain.Result{
				Status: domain.StatusLocked,
				Reason: reason,
				At:     d.now(),
			}), nil
		}
		defer release()
	}

	if err := d.executor.Simulate(ctx, req); err != nil {
		d.metrics.simFailures.Add(ctx, 1)
		d.logger.Warn(ctx, "simulation failed",
			"opportunity", opp.ID,
			"route", route,
			"amount", req.Amount.String(),
			"error", err)
		return d.finish(ctx, span, &domain.Result{
			Status:  domain.StatusSimulationFailed,
			Request: req,
			Reason:  err.Error(),
			At:      d.now(),
		}), nil
	}

	if d.cfg.DryRun {
		d.logger.Info(ctx, "simulation passed, dry run", "opportunity", opp.ID, "route", route)
		return d.finish(ctx, span, &domain.Result{
			Status:  domain.StatusSimulated,
			Request: req,
			Reason:  "dry run",
			At:      d.now(),
		}), nil
	}

	gp, err := d.gas.GetGasPrice(ctx)
	if err != nil {
		d.dedup.Delete(ctx, route)
		err = apperror.New(apperror.CodeGasEstimationFailed, apperror.WithCause(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	hash, err := d.executor.Submit(ctx, req, gp.Wei, d.cfg.GasLimit)
	if err != nil {
		err = apperror.New(apperror.CodeExecutionFailed,
			apperror.WithCause(err),
			apperror.WithContextf("submit %s", opp.ID))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d.logger.Info(ctx, "arbitrage submitted",
		"opportunity", opp.ID,
		"tx", hash.Hex(),
		"gas_price_gwei", gp.Gwei().StringFixed(2),
		"expected_profit", analysis.NetProfit.StringFixed(6))

	return d.finish(ctx, span, &domain.Result{
		Status:   domain.StatusSubmitted,
		Request:  req,
		TxHash:   hash,
		GasPrice: gp.Wei,
		GasLimit: d.cfg.GasLimit,
		At:       d.now(),
	}), nil
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, res *domain.Result) *domain.Result {
	d.metrics.dispatches.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(res.Status))))
	span.SetAttributes(attribute.String("status", string(res.Status)))
	span.SetStatus(codes.Ok, "")
	return res
}

// BuildRequest converts an analysis into the contract call. The flash loan
// borrows TokenIn; MinProfit is the net profit expressed in TokenIn.
func (d *Dispatcher) BuildRequest(analysis *arbDomain.ProfitAnalysis) (*domain.Request, error) {
	opp := analysis.Opportunity

	buyRouter, ok := d.cfg.Routers[opp.BuyVenue]
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("no router configured for %s", opp.BuyVenue))
	}
	sellRouter, ok := d.cfg.Routers[opp.SellVenue]
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("no router configured for %s", opp.SellVenue))
	}

	minProfit := decimal.Zero
	if opp.SellPrice.IsPositive() && analysis.NetProfit.IsPositive() {
		minProfit = analysis.NetProfit.Div(opp.SellPrice)
	}

	return &domain.Request{
		OpportunityID: opp.ID,
		RouteKey:      opp.RouteKey(),
		Token:         opp.TokenIn,
		Amount:        asset.FromDecimal(analysis.Amount, opp.DecimalsIn),
		BuyRouter:     buyRouter,
		SellRouter:    sellRouter,
		MinProfit:     asset.FromDecimal(minProfit, opp.DecimalsIn),
	}, nil
}
