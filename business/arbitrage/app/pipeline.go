package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	execDomain "github.com/fd1az/flashloan-arb/business/execution/domain"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

// Pipeline is the opportunity callback: validate, score, then dispatch the
// executable ones. Every decision is handed to the reporter.
type Pipeline struct {
	validator  *Validator
	model      *ProfitModel
	dispatcher Dispatcher
	reporter   Reporter
	logger     logger.LoggerInterface
	tracer     trace.Tracer
	now        func() time.Time

	rejected     atomic.Uint64
	unprofitable atomic.Uint64
	executable   atomic.Uint64
	submitted    atomic.Uint64
	simulated    atomic.Uint64
	simFailures  atomic.Uint64
	skipped      atomic.Uint64
	execFailures atomic.Uint64
}

// NewPipeline creates a Pipeline. dispatcher and reporter may be nil.
func NewPipeline(validator *Validator, model *ProfitModel, dispatcher Dispatcher, reporter Reporter, log logger.LoggerInterface) *Pipeline {
	return &Pipeline{
		validator:  validator,
		model:      model,
		dispatcher: dispatcher,
		reporter:   reporter,
		logger:     log,
		tracer:     otel.Tracer("arbitrage.pipeline"),
		now:        time.Now,
	}
}

// Handle runs one opportunity through the pipeline.
func (p *Pipeline) Handle(ctx context.Context, opp *domain.Opportunity) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.Handle",
		trace.WithAttributes(
			attribute.String("opportunity", opp.ID),
			attribute.String("buy_venue", opp.BuyVenue),
			attribute.String("sell_venue", opp.SellVenue),
		))
	defer span.End()

	d := Decision{Opportunity: opp, At: p.now()}
	defer func() { p.report(d) }()

	d.Verdict = p.validator.Validate(opp)
	if !d.Verdict.Valid {
		p.rejected.Add(1)
		p.logger.Debug(ctx, "opportunity rejected",
			"opportunity", opp.ID, "stage", d.Verdict.Stage.String(), "reason", d.Verdict.Reason)
		span.SetStatus(codes.Ok, "rejected")
		return nil
	}
	for _, w := range d.Verdict.Warnings {
		p.logger.Debug(ctx, "opportunity warning", "opportunity", opp.ID, "warning", w)
	}

	analysis := p.model.Analyze(opp)
	d.Analysis = &analysis
	if !analysis.IsExecutable {
		p.unprofitable.Add(1)
		p.logger.Debug(ctx, "opportunity not executable", "opportunity", opp.ID, "reasons", analysis.Summary())
		span.SetStatus(codes.Ok, "not executable")
		return nil
	}

	p.executable.Add(1)
	p.logger.Info(ctx, "executable opportunity",
		"opportunity", opp.ID,
		"buy", opp.BuyVenue,
		"sell", opp.SellVenue,
		"amount", analysis.Amount.String(),
		"net_profit", analysis.NetProfit.StringFixed(6),
		"net_profit_pct", analysis.NetProfitPct.StringFixed(3))

	if p.dispatcher == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	result, err := p.dispatcher.Dispatch(ctx, &analysis)
	if err != nil {
		p.execFailures.Add(1)
		d.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	d.Result = result

	switch result.Status {
	case execDomain.StatusSubmitted:
		p.submitted.Add(1)
	case execDomain.StatusSimulated:
		p.simulated.Add(1)
	case execDomain.StatusSimulationFailed:
		p.simFailures.Add(1)
	default:
		if result.Status.Skipped() {
			p.skipped.Add(1)
		}
	}

	span.SetAttributes(attribute.String("status", string(result.Status)))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Pipeline) report(d Decision) {
	if p.reporter != nil {
		p.reporter.ReportDecision(d)
	}
}

// Stats returns the pipeline's share of the running counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Rejected:     p.rejected.Load(),
		Unprofitable: p.unprofitable.Load(),
		Executable:   p.executable.Load(),
		Submitted:    p.submitted.Load(),
		Simulated:    p.simulated.Load(),
		SimFailures:  p.simFailures.Load(),
		Skipped:      p.skipped.Load(),
		ExecFailures: p.execFailures.Load(),
	}
}

// MergeStats combines aggregator and pipeline counters.
func MergeStats(agg, pipe Stats, startedAt time.Time) Stats {
	pipe.Cycles = agg.Cycles
	pipe.Quotes = agg.Quotes
	pipe.SourceErrors = agg.SourceErrors
	pipe.Opportunities = agg.Opportunities
	pipe.StartedAt = startedAt
	return pipe
}
