package app

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/blockchain/domain"
)

type stubSubscriber struct {
	status domain.ConnectionStatus
}

func (s *stubSubscriber) Subscribe(context.Context) (<-chan *domain.Block, error) { return nil, nil }
func (s *stubSubscriber) LatestBlock(context.Context) (*domain.Block, error) { return nil, nil }
func (s *stubSubscriber) BlockNumber() uint64 { return s.status.LastBlock }
func (s *stubSubscriber) State() domain.ConnectionState { return s.status.State }
func (s *stubSubscriber) Status() domain.ConnectionStatus { return s.status }
func (s *stubSubscriber) Close() error { return nil }

type stubGas struct{}

func (stubGas) GetGasPrice(context.Context) (*domain.GasPrice, error) { return nil, nil }
func (stubGas) EstimateGas(context.Context, common.Address, common.Address, []byte) (uint64, error) {
	return 0, nil
}
func (stubGas) GetGasEstimate(context.Context, common.Address, common.Address, []byte) (*domain.GasEstimate, error) {
	return nil, nil
}

func TestBlockchainServiceHealthy(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name   string
		status domain.ConnectionStatus
		want   bool
	}{
		{
			name:   "connected with fresh head",
			status: domain.ConnectionStatus{State: domain.StateConnected, LastBlock: 10, LastUpdate: now.Add(-12 * time.Second)},
			want:   true,
		},
		{
			name:   "connected before first head",
			status: domain.ConnectionStatus{State: domain.StateConnected},
			want:   true,
		},
		{
			name:   "connected with stale head",
			status: domain.ConnectionStatus{State: domain.StateConnected, LastBlock: 10, LastUpdate: now.Add(-2 * time.Minute)},
			want:   false,
		},
		{
			name:   "reconnecting",
			status: domain.ConnectionStatus{State: domain.StateReconnecting, LastBlock: 10, LastUpdate: now},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewBlockchainService(&stubSubscriber{status: tt.status}, stubGas{})
			svc.now = func() time.Time { return now }

			if got := svc.Healthy(); got != tt.want {
				t.Errorf("Healthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnectionStatusSummary(t *testing.T) {
	st := domain.ConnectionStatus{State: domain.StateConnected, LastBlock: 42, Polling: true, Reconnects: 2}

	want := "connected block 42 via polling, 2 reconnects"
	if got := st.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
