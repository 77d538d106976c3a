// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/pkg/ui/components"
)

// Message types for TUI updates. Values arrive pre-computed; the UI only
// formats them.

// QuoteMsg is sent when a venue reports a price.
type QuoteMsg struct {
	Pair      string
	Venue     string
	Price     decimal.Decimal
	Liquidity decimal.Decimal
	FeeBps    int
	Block     uint64
	At        time.Time
}

// DecisionMsg is sent when the pipeline finishes with an opportunity.
type DecisionMsg struct {
	At         time.Time
	Block      uint64
	Pair       string
	Buy        string
	Sell       string
	SpreadPct  decimal.Decimal
	Amount     decimal.Decimal
	NetProfit  decimal.Decimal
	Outcome    string
	Detail     string
	Executable bool
}

// StatsMsg carries the running counters.
type StatsMsg struct {
	Stats components.Stats
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// BlockMsg is sent when a new block is received.
type BlockMsg struct {
	Number    uint64
	Timestamp time.Time
}

// GasPriceMsg is sent when gas price is updated.
type GasPriceMsg struct {
	GweiPrice float64
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed", "done"
	Message string // Optional message
}
