// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/asset"
)

// consoleStatsInterval throttles the periodic stats line.
const consoleStatsInterval = 30 * time.Second

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out      io.Writer
	registry *asset.Registry

	mu        sync.Mutex
	lastStats time.Time
	lastBlock uint64
	final     app.Stats
}

// NewConsoleReporter creates a new ConsoleReporter. registry may be nil, in
// which case tokens are shown by short address.
func NewConsoleReporter(out io.Writer, registry *asset.Registry) *ConsoleReporter {
	return &ConsoleReporter{out: out, registry: registry}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Flash-Loan Arbitrage Bot Started")
	fmt.Fprintln(r.out, "================================")
	return nil
}

// ReportQuote is a no-op; the console only shows decisions.
func (r *ConsoleReporter) ReportQuote(q pricingDomain.PriceQuote) {}

// ReportDecision prints a full block for executable opportunities and a
// single line otherwise.
func (r *ConsoleReporter) ReportDecision(d app.Decision) {
	opp := d.Opportunity
	if opp == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pair := pairLabel(r.registry, opp.TokenIn, opp.TokenOut)
	if d.Analysis == nil || !d.Analysis.IsExecutable {
		fmt.Fprintf(r.out, "[%s] %-12s %s → %s  spread %s%%  %s: %s\n",
			d.At.Format("15:04:05"), pair, opp.BuyVenue, opp.SellVenue,
			opp.Spread().Percent.StringFixed(3), d.Outcome(), d.Detail())
		return
	}

	a := d.Analysis
	out := r.out
	symOut := symbol(r.registry, opp.TokenOut)
	symIn := symbol(r.registry, opp.TokenIn)

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "================================================================================")
	fmt.Fprintln(out, "ARBITRAGE OPPORTUNITY")
	fmt.Fprintln(out, "================================================================================")
	fmt.Fprintf(out, "Block:          #%d\n", opp.BlockNumber)
	fmt.Fprintf(out, "Timestamp:      %s\n", opp.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(out, "Pair:           %s\n", pair)
	fmt.Fprintf(out, "Route:          buy on %s, sell on %s\n", opp.BuyVenue, opp.SellVenue)
	fmt.Fprintln(out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(out, "PRICES")
	fmt.Fprintf(out, "  Buy:            %s %s\n", opp.BuyPrice.StringFixed(6), symOut)
	fmt.Fprintf(out, "  Sell:           %s %s\n", opp.SellPrice.StringFixed(6), symOut)
	fmt.Fprintf(out, "  Spread:         %s%%\n", opp.Spread().Percent.StringFixed(4))
	fmt.Fprintln(out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(out, "TRADE")
	fmt.Fprintf(out, "  Amount:         %s %s\n", a.Amount.StringFixed(4), symIn)
	fmt.Fprintf(out, "  Impact:         buy %s%% / sell %s%%\n", a.BuyImpactPct.StringFixed(4), a.SellImpactPct.StringFixed(4))
	fmt.Fprintln(out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(out, "PROFIT")
	fmt.Fprintf(out, "  Gross:          %s %s\n", a.GrossProfit.StringFixed(6), symOut)
	fmt.Fprintf(out, "  Flash loan fee: %s\n", a.FlashLoanFee.StringFixed(6))
	fmt.Fprintf(out, "  DEX fees:       %s\n", a.DexFee.StringFixed(6))
	fmt.Fprintf(out, "  Gas:            %s\n", a.GasCost.StringFixed(6))
	fmt.Fprintf(out, "  Net:            %s %s (%s%%, ~%s ref)\n",
		a.NetProfit.StringFixed(6), symOut, a.NetProfitPct.StringFixed(4), a.NetProfitRef.StringFixed(2))
	fmt.Fprintln(out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(out, "Outcome:        %s\n", d.Outcome())
	if detail := d.Detail(); detail != "" {
		fmt.Fprintf(out, "Detail:         %s\n", detail)
	}
	if d.Result != nil && d.Result.TxHash != (common.Hash{}) {
		fmt.Fprintf(out, "Tx:             %s\n", d.Result.TxHash.Hex())
	}
	fmt.Fprintln(out, "================================================================================")
}

// ReportBlock remembers the latest block for the stats line.
func (r *ConsoleReporter) ReportBlock(number uint64, at time.Time) {
	r.mu.Lock()
	r.lastBlock = number
	r.mu.Unlock()
}

// ReportStats prints a summary line at most every consoleStatsInterval.
func (r *ConsoleReporter) ReportStats(s app.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.final = s
	if time.Since(r.lastStats) < consoleStatsInterval {
		return
	}
	r.lastStats = time.Now()
	r.printStats(s)
}

func (r *ConsoleReporter) printStats(s app.Stats) {
	block := s.LastBlock
	if block == 0 {
		block = r.lastBlock
	}
	fmt.Fprintf(r.out, "[%s] block #%d  gas %s gwei  cycles %d  quotes %d  opportunities %d  executable %d  submitted %d  simulated %d  skipped %d  errors %d\n",
		time.Now().Format("15:04:05"), block, s.GasPriceGwei.StringFixed(2),
		s.Cycles, s.Quotes, s.Opportunities, s.Executable, s.Submitted, s.Simulated, s.Skipped,
		s.SourceErrors+s.SimFailures+s.ExecFailures)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	r.printStats(r.final)
	fmt.Fprintln(r.out, "Arbitrage Bot Stopped")
	return nil
}

func symbol(registry *asset.Registry, addr common.Address) string {
	if registry == nil {
		return asset.ShortAddress(addr)
	}
	return registry.Symbol(addr)
}

func pairLabel(registry *asset.Registry, a, b common.Address) string {
	return symbol(registry, a) + "/" + symbol(registry, b)
}
