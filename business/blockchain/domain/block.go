// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block is the slice of a chain head the pipeline cares about: its number
// stamps quotes and opportunities, the base fee feeds gas display.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  time.Time
	GasLimit   uint64
	GasUsed    uint64
	BaseFee    *big.Int
}

// ConnectionState represents the state of a blockchain connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus is a snapshot of the head subscription.
type ConnectionStatus struct {
	State      ConnectionState
	LastBlock  uint64
	LastUpdate time.Time
	Reconnects int
	Polling    bool // heads come from HTTP polling
}

// HeadAge is the time since the last head arrived. Zero before any head.
func (s ConnectionStatus) HeadAge(now time.Time) time.Duration {
	if s.LastUpdate.IsZero() {
		return 0
	}
	return now.Sub(s.LastUpdate)
}

// Summary renders the status for health output.
func (s ConnectionStatus) Summary() string {
	mode := "subscription"
	if s.Polling {
		mode = "polling"
	}
	return fmt.Sprintf("%s block %d via %s, %d reconnects", s.State, s.LastBlock, mode, s.Reconnects)
}
