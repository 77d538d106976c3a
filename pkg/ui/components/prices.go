// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow is the latest quote from one venue for one pair.
type PriceRow struct {
	Pair      string
	Venue     string
	Price     decimal.Decimal
	Liquidity decimal.Decimal
	FeeBps    int
	Block     uint64
	UpdatedAt time.Time
}

// PricesComponent renders the latest quote per pair and venue.
type PricesComponent struct {
	rows map[string]PriceRow
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{rows: make(map[string]PriceRow)}
}

// Upsert records the latest quote for row's pair and venue.
func (p *PricesComponent) Upsert(row PriceRow) {
	p.rows[row.Pair+"|"+row.Venue] = row
}

// Rows returns the quotes ordered by pair, then venue.
func (p *PricesComponent) Rows() []PriceRow {
	out := make([]PriceRow, 0, len(p.rows))
	for _, r := range p.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pair != out[j].Pair {
			return out[i].Pair < out[j].Pair
		}
		return out[i].Venue < out[j].Venue
	})
	return out
}

// SpreadPct returns the widest cross-venue spread for pair.
func (p *PricesComponent) SpreadPct(pair string) decimal.Decimal {
	var lo, hi decimal.Decimal
	first := true
	for _, r := range p.rows {
		if r.Pair != pair || !r.Price.IsPositive() {
			continue
		}
		if first {
			lo, hi, first = r.Price, r.Price, false
			continue
		}
		lo = decimal.Min(lo, r.Price)
		hi = decimal.Max(hi, r.Price)
	}
	if first || lo.IsZero() {
		return decimal.Zero
	}
	return hi.Sub(lo).Div(lo).Mul(decimal.NewFromInt(100))
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	pairStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	hotStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)

	var b strings.Builder
	b.WriteString(headerStyle.Render("VENUE PRICES"))
	b.WriteString("\n\n")

	rows := p.Rows()
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("Waiting for price data..."))
		return b.String()
	}

	currentPair := ""
	for _, r := range rows {
		if r.Pair != currentPair {
			if currentPair != "" {
				b.WriteString("\n")
			}
			currentPair = r.Pair

			spread := p.SpreadPct(r.Pair)
			spreadStr := dimStyle.Render(fmt.Sprintf("spread %s%%", spread.StringFixed(3)))
			if spread.GreaterThanOrEqual(decimal.RequireFromString("0.5")) {
				spreadStr = hotStyle.Render(fmt.Sprintf("spread %s%%", spread.StringFixed(3)))
			}
			b.WriteString(fmt.Sprintf("%s  %s\n", pairStyle.Render(r.Pair), spreadStr))
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %-12s %16s %16s %6s %6s", "Venue", "Price", "Depth", "Fee", "Age")))
			b.WriteString("\n")
		}

		age := "-"
		if !r.UpdatedAt.IsZero() {
			age = time.Since(r.UpdatedAt).Round(time.Second).String()
		}
		b.WriteString(fmt.Sprintf("  %-12s %16s %16s %5.2f%% %6s\n",
			r.Venue,
			r.Price.StringFixed(6),
			r.Liquidity.StringFixed(0),
			float64(r.FeeBps)/100,
			age,
		))
	}

	return b.String()
}
