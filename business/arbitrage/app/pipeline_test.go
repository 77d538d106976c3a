package app

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	execDomain "github.com/fd1az/flashloan-arb/business/execution/domain"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
)

func newTestPipeline(d Dispatcher, r Reporter) *Pipeline {
	refs := testRefs()
	return NewPipeline(
		NewValidator(DefaultValidatorConfig(), refs),
		NewProfitModel(DefaultProfitConfig(), refs),
		d, r, testLogger(),
	)
}

func TestPipeline_EndToEnd(t *testing.T) {
	tests := []struct {
		name         string
		sellPrice    string
		wantOpps     int
		wantDispatch int
	}{
		{"profitable spread is dispatched", "1010", 1, 1},
		{"thin spread never reaches the pipeline", "1002", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newTestAggregator(t, false)
			qa := quote("uniswap_v2", poolA, "1000", "50000", 30)
			qb := quote("sushiswap", poolB, tt.sellPrice, "50000", 30)
			_ = agg.AddSource(newFakeSource("uniswap_v2", &qa))
			_ = agg.AddSource(newFakeSource("sushiswap", &qb))
			_, _ = agg.AddPair(weth, usdc)

			dispatcher := &fakeDispatcher{status: execDomain.StatusSubmitted}
			reporter := &recordingReporter{}
			pipe := newTestPipeline(dispatcher, reporter)
			agg.OnOpportunity(pipe.Handle)

			n, err := agg.ScanOnce(context.Background())
			if err != nil {
				t.Fatalf("ScanOnce: %v", err)
			}
			if n != tt.wantOpps {
				t.Fatalf("opportunities = %d, want %d", n, tt.wantOpps)
			}
			if len(dispatcher.received) != tt.wantDispatch {
				t.Fatalf("dispatched = %d, want %d", len(dispatcher.received), tt.wantDispatch)
			}
			if tt.wantDispatch == 0 {
				return
			}

			a := dispatcher.received[0]
			if !a.IsExecutable || !a.NetProfit.Equal(dec("64.931")) {
				t.Errorf("analysis = executable %v, net %s", a.IsExecutable, a.NetProfit)
			}
			if got := reporter.outcomes(); !reflect.DeepEqual(got, []string{"submitted"}) {
				t.Errorf("outcomes = %v", got)
			}
			if s := pipe.Stats(); s.Executable != 1 || s.Submitted != 1 {
				t.Errorf("stats = %+v", s)
			}
		})
	}
}

func TestPipeline_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(q *pricingDomain.PriceQuote)
		age         time.Duration
		dispatcher  *fakeDispatcher
		wantOutcome string
		wantErr     bool
	}{
		{
			name:        "stale opportunity rejected",
			age:         2 * time.Minute,
			dispatcher:  &fakeDispatcher{status: execDomain.StatusSubmitted},
			wantOutcome: "rejected",
		},
		{
			name:        "shallow pool rejected",
			mutate:      func(q *pricingDomain.PriceQuote) { q.LiquidityB = dec("5000") },
			dispatcher:  &fakeDispatcher{status: execDomain.StatusSubmitted},
			wantOutcome: "rejected",
		},
		{
			name:        "dry run",
			dispatcher:  &fakeDispatcher{status: execDomain.StatusSimulated},
			wantOutcome: "simulated",
		},
		{
			name:        "duplicate skipped",
			dispatcher:  &fakeDispatcher{status: execDomain.StatusDuplicate},
			wantOutcome: "duplicate",
		},
		{
			name:        "dispatch error",
			dispatcher:  &fakeDispatcher{err: errors.New("nonce too low")},
			wantOutcome: "failed",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buy := quote("uniswap_v2", poolA, "1000", "50000", 30)
			sell := quote("sushiswap", poolB, "1010", "50000", 30)
			if tt.mutate != nil {
				tt.mutate(&buy)
			}
			opps := Synthesize([]pricingDomain.PriceQuote{buy, sell}, dec("0.5"), dec("10"), time.Now().Add(-tt.age))
			if len(opps) != 1 {
				t.Fatalf("got %d opportunities, want 1", len(opps))
			}

			reporter := &recordingReporter{}
			pipe := newTestPipeline(tt.dispatcher, reporter)

			err := pipe.Handle(context.Background(), opps[0])
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := reporter.outcomes(); len(got) != 1 || got[0] != tt.wantOutcome {
				t.Errorf("outcomes = %v, want [%s]", got, tt.wantOutcome)
			}
		})
	}
}

func TestPipeline_WithoutDispatcher(t *testing.T) {
	reporter := &recordingReporter{}
	pipe := newTestPipeline(nil, reporter)

	if err := pipe.Handle(context.Background(), baseOpportunity(time.Now())); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := reporter.outcomes(); len(got) != 1 || got[0] != "executable" {
		t.Errorf("outcomes = %v, want [executable]", got)
	}
}
