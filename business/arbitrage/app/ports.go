// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	execDomain "github.com/fd1az/flashloan-arb/business/execution/domain"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
)

// Callback consumes a synthesized opportunity. Errors and panics are
// contained by the aggregator.
type Callback func(ctx context.Context, opp *domain.Opportunity) error

// QuoteObserver sees every quote the aggregator fetches or receives.
type QuoteObserver func(q pricingDomain.PriceQuote)

// Dispatcher hands an executable analysis to the execution layer.
type Dispatcher interface {
	Dispatch(ctx context.Context, analysis *domain.ProfitAnalysis) (*execDomain.Result, error)
}

// Reporter defines the interface for reporting pipeline activity.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportQuote shows the latest quote from one venue.
	ReportQuote(q pricingDomain.PriceQuote)

	// ReportDecision shows the outcome for one opportunity.
	ReportDecision(d Decision)

	// ReportBlock shows the latest chain head.
	ReportBlock(number uint64, at time.Time)

	// ReportStats shows running counters.
	ReportStats(s Stats)

	// Stop gracefully shuts down the reporter.
	Stop() error
}

// Decision records how the pipeline handled one opportunity.
type Decision struct {
	Opportunity *domain.Opportunity
	Verdict     domain.Verdict
	Analysis    *domain.ProfitAnalysis
	Result      *execDomain.Result
	Err         error
	At          time.Time
}

// Outcome is a short label for the decision.
func (d Decision) Outcome() string {
	switch {
	case !d.Verdict.Valid:
		return "rejected"
	case d.Analysis == nil:
		return "validated"
	case !d.Analysis.IsExecutable:
		return "unprofitable"
	case d.Err != nil:
		return "failed"
	case d.Result == nil:
		return "executable"
	}
	return string(d.Result.Status)
}

// Detail returns the reason behind the outcome.
func (d Decision) Detail() string {
	switch {
	case !d.Verdict.Valid:
		return d.Verdict.Stage.String() + ": " + d.Verdict.Reason
	case d.Analysis != nil && !d.Analysis.IsExecutable:
		return d.Analysis.Summary()
	case d.Err != nil:
		return d.Err.Error()
	case d.Result != nil:
		return d.Result.Reason
	}
	return ""
}

// Stats are running pipeline counters.
type Stats struct {
	Cycles        uint64
	Quotes        uint64
	SourceErrors  uint64
	Opportunities uint64
	Rejected      uint64
	Unprofitable  uint64
	Executable    uint64
	Submitted     uint64
	Simulated     uint64
	SimFailures   uint64
	Skipped       uint64
	ExecFailures  uint64
	LastBlock     uint64
	GasPriceGwei  decimal.Decimal
	StartedAt     time.Time
}
