// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/pkg/ui"
	"github.com/fd1az/flashloan-arb/pkg/ui/components"
)

// TUIReporter implements Reporter for the Bubble Tea TUI. It converts domain
// values into ui messages; the program itself is owned by main.
type TUIReporter struct {
	registry  *asset.Registry
	send      func(tea.Msg)
	connected atomic.Bool
}

// NewTUIReporter creates a new TUIReporter that sends to the running program.
func NewTUIReporter(registry *asset.Registry) *TUIReporter {
	return NewTUIReporterWithSender(registry, ui.Send)
}

// NewTUIReporterWithSender creates a TUIReporter with a custom message sink.
func NewTUIReporterWithSender(registry *asset.Registry, send func(tea.Msg)) *TUIReporter {
	return &TUIReporter{registry: registry, send: send}
}

// Start marks the pricing and execution steps as ready.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.StartupMsg{Step: "pricing", Status: "done"})
	r.send(ui.StartupMsg{Step: "execution", Status: "done"})
	return nil
}

// ReportQuote sends a price row to the TUI.
func (r *TUIReporter) ReportQuote(q pricingDomain.PriceQuote) {
	r.send(ui.QuoteMsg{
		Pair:      pairLabel(r.registry, q.TokenA, q.TokenB),
		Venue:     q.Venue,
		Price:     q.PriceDecimal(),
		Liquidity: q.LiquidityB,
		FeeBps:    q.FeeBps,
		Block:     q.BlockNumber,
		At:        q.Timestamp,
	})
}

// ReportDecision sends a decision row to the TUI.
func (r *TUIReporter) ReportDecision(d app.Decision) {
	opp := d.Opportunity
	if opp == nil {
		return
	}
	msg := ui.DecisionMsg{
		At:        d.At,
		Block:     opp.BlockNumber,
		Pair:      pairLabel(r.registry, opp.TokenIn, opp.TokenOut),
		Buy:       opp.BuyVenue,
		Sell:      opp.SellVenue,
		SpreadPct: opp.Spread().Percent,
		Outcome:   d.Outcome(),
		Detail:    d.Detail(),
	}
	if d.Analysis != nil {
		msg.Amount = d.Analysis.Amount
		msg.NetProfit = d.Analysis.NetProfit
		msg.Executable = d.Analysis.IsExecutable
	}
	r.send(msg)
}

// ReportBlock sends the chain head; the first block marks Ethereum connected.
func (r *TUIReporter) ReportBlock(number uint64, at time.Time) {
	if r.connected.CompareAndSwap(false, true) {
		r.send(ui.ConnectionStatusMsg{Name: "Ethereum", Connected: true})
	}
	r.send(ui.BlockMsg{Number: number, Timestamp: at})
}

// ReportStats sends counters and the latest gas price.
func (r *TUIReporter) ReportStats(s app.Stats) {
	if s.GasPriceGwei.GreaterThan(decimal.Zero) {
		r.send(ui.GasPriceMsg{GweiPrice: s.GasPriceGwei.InexactFloat64()})
	}
	var uptime time.Duration
	if !s.StartedAt.IsZero() {
		uptime = time.Since(s.StartedAt)
	}
	r.send(ui.StatsMsg{Stats: components.Stats{
		Cycles:        int64(s.Cycles),
		Quotes:        int64(s.Quotes),
		SourceErrors:  int64(s.SourceErrors),
		Opportunities: int64(s.Opportunities),
		Rejected:      int64(s.Rejected),
		Unprofitable:  int64(s.Unprofitable),
		Executable:    int64(s.Executable),
		Submitted:     int64(s.Submitted),
		Simulated:     int64(s.Simulated),
		SimFailures:   int64(s.SimFailures),
		Skipped:       int64(s.Skipped),
		ExecFailures:  int64(s.ExecFailures),
		Uptime:        uptime,
	}})
}

// Stop is a no-op; main quits the program.
func (r *TUIReporter) Stop() error {
	return nil
}
