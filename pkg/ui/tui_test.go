package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_StartupToDashboardOnFirstBlock(t *testing.T) {
	m := New()
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if m.phase != PhaseStartup {
		t.Fatalf("phase = %s, want %s", m.phase, PhaseStartup)
	}

	m = update(t, m, BlockMsg{Number: 19_000_000, Timestamp: time.Now()})
	if m.phase != PhaseDashboard {
		t.Fatalf("phase = %s, want %s", m.phase, PhaseDashboard)
	}
	if !strings.Contains(m.View(), "#19000000") {
		t.Error("dashboard should show the current block")
	}
}

func TestModel_QuotesAndDecisions(t *testing.T) {
	m := New()
	m.phase = PhaseDashboard

	m = update(t, m, QuoteMsg{Pair: "WETH/USDC", Venue: "uniswap_v2", Price: decimal.NewFromInt(1000), FeeBps: 30, At: time.Now()})
	m = update(t, m, QuoteMsg{Pair: "WETH/USDC", Venue: "sushiswap", Price: decimal.NewFromInt(1010), FeeBps: 30, At: time.Now()})

	if got := len(m.prices.Rows()); got != 2 {
		t.Fatalf("price rows = %d, want 2", got)
	}
	if got := m.prices.SpreadPct("WETH/USDC"); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("spread = %s, want 1", got)
	}

	m = update(t, m, DecisionMsg{At: time.Now(), Pair: "WETH/USDC", Buy: "uniswap_v2", Sell: "sushiswap", Outcome: "simulated", Executable: true})
	if m.opportunities.Len() != 1 {
		t.Fatalf("decisions = %d, want 1", m.opportunities.Len())
	}
	if !strings.Contains(m.View(), "uniswap_v2 → sushiswap") {
		t.Error("dashboard should list the route")
	}
}

func TestModel_PauseDropsUpdates(t *testing.T) {
	m := New()
	m.phase = PhaseDashboard
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if !m.paused {
		t.Fatal("expected paused")
	}

	m = update(t, m, DecisionMsg{At: time.Now(), Outcome: "rejected"})
	if m.opportunities.Len() != 0 {
		t.Errorf("decisions while paused = %d, want 0", m.opportunities.Len())
	}
}

func TestModel_ErrorsKeepLastThree(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m = update(t, m, ErrorMsg{Error: errors.New("boom")})
	}
	if len(m.errors) != 3 {
		t.Errorf("errors = %d, want 3", len(m.errors))
	}
	m.phase = PhaseDashboard
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	if len(m.errors) != 0 {
		t.Errorf("errors after clear = %d, want 0", len(m.errors))
	}
}
