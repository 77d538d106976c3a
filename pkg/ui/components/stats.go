// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds statistics for display.
type Stats struct {
	Cycles        int64
	Quotes        int64
	SourceErrors  int64
	Opportunities int64
	Rejected      int64
	Unprofitable  int64
	Executable    int64
	Submitted     int64
	Simulated     int64
	SimFailures   int64
	Skipped       int64
	ExecFailures  int64
	Uptime        time.Duration
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the last statistics received.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	executableRate := float64(0)
	if s.stats.Opportunities > 0 {
		executableRate = float64(s.stats.Executable) / float64(s.stats.Opportunities) * 100
	}

	errors := s.stats.SourceErrors + s.stats.SimFailures + s.stats.ExecFailures
	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", errors))
	if errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", errors))
	}

	num := func(n int64) string { return valueStyle.Render(fmt.Sprintf("%d", n)) }

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Cycles: %s  │  Quotes: %s  │  Opportunities: %s  │  Executable: %s (%.1f%%)\n",
			num(s.stats.Cycles),
			num(s.stats.Quotes),
			num(s.stats.Opportunities),
			num(s.stats.Executable),
			executableRate,
		) +
		fmt.Sprintf("Rejected: %s  │  Unprofitable: %s  │  Submitted: %s  │  Simulated: %s  │  Skipped: %s\n",
			num(s.stats.Rejected),
			num(s.stats.Unprofitable),
			num(s.stats.Submitted),
			num(s.stats.Simulated),
			num(s.stats.Skipped),
		) +
		fmt.Sprintf("Uptime: %s  │  Errors: %s",
			valueStyle.Render(s.stats.Uptime.Round(time.Second).String()),
			errorsDisplay,
		)
}
