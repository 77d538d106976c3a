// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// DecisionRow is one opportunity and what the pipeline did with it.
type DecisionRow struct {
	Time       string
	Block      uint64
	Pair       string
	Route      string
	SpreadPct  decimal.Decimal
	NetProfit  decimal.Decimal
	Outcome    string
	Detail     string
	Executable bool
}

// OpportunitiesComponent renders the decision log, newest first.
type OpportunitiesComponent struct {
	rows    []DecisionRow
	maxRows int
	visible int
	offset  int
}

// NewOpportunitiesComponent creates a new opportunities component.
func NewOpportunitiesComponent(maxRows, visible int) *OpportunitiesComponent {
	return &OpportunitiesComponent{
		rows:    make([]DecisionRow, 0, maxRows),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add adds a new decision to the list.
func (o *OpportunitiesComponent) Add(row DecisionRow) {
	o.rows = append([]DecisionRow{row}, o.rows...)
	if len(o.rows) > o.maxRows {
		o.rows = o.rows[:o.maxRows]
	}
	if o.offset > 0 && o.offset < len(o.rows)-o.visible {
		o.offset++ // keep the viewed rows in place
	}
}

// Len returns the number of stored rows.
func (o *OpportunitiesComponent) Len() int {
	return len(o.rows)
}

// Clear clears all decisions.
func (o *OpportunitiesComponent) Clear() {
	o.rows = o.rows[:0]
	o.offset = 0
}

// ScrollUp moves the view towards newer rows.
func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

// ScrollDown moves the view towards older rows.
func (o *OpportunitiesComponent) ScrollDown() {
	if o.offset < len(o.rows)-o.visible {
		o.offset++
	}
}

// Visible returns the rows currently in view.
func (o *OpportunitiesComponent) Visible() []DecisionRow {
	end := o.offset + o.visible
	if end > len(o.rows) {
		end = len(o.rows)
	}
	return o.rows[o.offset:end]
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	goodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (%d)", len(o.rows))))
	b.WriteString("\n\n")

	if len(o.rows) == 0 {
		b.WriteString(dimStyle.Render("No opportunities detected yet..."))
		return b.String()
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("%-8s %-24s %8s %12s  %s", "Time", "Route", "Spread", "Net", "Outcome")))
	b.WriteString("\n")

	for _, row := range o.Visible() {
		style := dimStyle
		switch {
		case row.Outcome == "submitted" || row.Outcome == "simulated" || row.Outcome == "executable":
			style = goodStyle
		case row.Outcome == "failed" || row.Outcome == "simulation_failed":
			style = badStyle
		case row.Executable:
			style = warnStyle
		}

		net := "-"
		if !row.NetProfit.IsZero() {
			net = fmt.Sprintf("%+.4f", row.NetProfit.InexactFloat64())
		}

		b.WriteString(fmt.Sprintf("%-8s %-24s %7.3f%% %12s  %s\n",
			row.Time,
			truncate(row.Route, 24),
			row.SpreadPct.InexactFloat64(),
			net,
			style.Render(row.Outcome),
		))
		if row.Detail != "" {
			b.WriteString(dimStyle.Render("         " + truncate(row.Detail, 60)))
			b.WriteString("\n")
		}
	}

	if len(o.rows) > o.visible {
		b.WriteString(dimStyle.Render(fmt.Sprintf("showing %d-%d of %d", o.offset+1, o.offset+len(o.Visible()), len(o.rows))))
	}

	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
