package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	blockchainDomain "github.com/fd1az/flashloan-arb/business/blockchain/domain"
	"github.com/fd1az/flashloan-arb/business/execution/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/cache"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

var (
	weth       = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc       = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	v2Router   = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	sushiRoute = common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F")
)

type fakeExecutor struct {
	mu        sync.Mutex
	simErr    error
	submitErr error
	simulated []*domain.Request
	submitted []*domain.Request
	gasPrice  *big.Int
}

func (f *fakeExecutor) Simulate(_ context.Context, req *domain.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulated = append(f.simulated, req)
	return f.simErr
}

func (f *fakeExecutor) Submit(_ context.Context, req *domain.Request, gasPrice *big.Int, _ uint64) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return common.Hash{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	f.gasPrice = gasPrice
	return common.HexToHash("0xabc"), nil
}

type fixedGas struct{ err error }

func (g fixedGas) GetGasPrice(context.Context) (*blockchainDomain.GasPrice, error) {
	if g.err != nil {
		return nil, g.err
	}
	return blockchainDomain.NewGasPrice(big.NewInt(20_000_000_000), time.Now()), nil
}

type fakeLocker struct {
	held     map[string]bool
	err      error
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, apperror.New(apperror.CodeLockHeld)
	}
	return func() { l.released++ }, nil
}

func executableAnalysis() *arbDomain.ProfitAnalysis {
	opp := &arbDomain.Opportunity{
		ID:         "weth-usdc|uniswap_v2|sushiswap|1",
		PairKey:    "weth-usdc",
		TokenIn:    weth,
		TokenOut:   usdc,
		DecimalsIn: 18,
		BuyVenue:   "uniswap_v2",
		SellVenue:  "sushiswap",
		BuyPrice:   decimal.NewFromInt(1000),
		SellPrice:  decimal.NewFromInt(1010),
		Timestamp:  time.Now(),
	}
	return &arbDomain.ProfitAnalysis{
		Opportunity:  opp,
		Amount:       decimal.NewFromInt(10),
		NetProfit:    decimal.RequireFromString("50.5"),
		IsExecutable: true,
	}
}

func newTestDispatcher(t *testing.T, cfg DispatcherConfig, exec Executor, gas GasPricer, locker Locker) *Dispatcher {
	t.Helper()
	if cfg.Routers == nil {
		cfg.Routers = map[string]common.Address{"uniswap_v2": v2Router, "sushiswap": sushiRoute}
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = time.Minute
	}
	dedup := cache.New[string, string](time.Minute)
	t.Cleanup(dedup.Close)

	d, err := NewDispatcher(cfg, exec, gas, locker, dedup, logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestDispatcher_Submit(t *testing.T) {
	exec := &fakeExecutor{}
	locker := &fakeLocker{}
	d := newTestDispatcher(t, DispatcherConfig{GasLimit: 600_000}, exec, fixedGas{}, locker)

	res, err := d.Dispatch(context.Background(), executableAnalysis())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Status != domain.StatusSubmitted {
		t.Fatalf("Status = %s, want submitted", res.Status)
	}
	if len(exec.simulated) != 1 || len(exec.submitted) != 1 {
		t.Fatalf("simulated %d, submitted %d", len(exec.simulated), len(exec.submitted))
	}
	if exec.gasPrice.Cmp(big.NewInt(20_000_000_000)) != 0 {
		t.Errorf("gas price = %s", exec.gasPrice)
	}
	if locker.released != 1 {
		t.Errorf("lock released %d times, want 1", locker.released)
	}

	req := res.Request
	if req.Token != weth || req.BuyRouter != v2Router || req.SellRouter != sushiRoute {
		t.Errorf("request routing = %+v", req)
	}
	wantAmount, _ := new(big.Int).SetString("10000000000000000000", 10)
	if req.Amount.Cmp(wantAmount) != 0 {
		t.Errorf("Amount = %s, want %s", req.Amount, wantAmount)
	}
	wantMin, _ := new(big.Int).SetString("50000000000000000", 10)
	if req.MinProfit.Cmp(wantMin) != 0 {
		t.Errorf("MinProfit = %s, want %s", req.MinProfit, wantMin)
	}
}

func TestDispatcher_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		cfg        DispatcherConfig
		exec       *fakeExecutor
		gas        GasPricer
		locker     *fakeLocker
		wantStatus domain.Status
		wantCode   apperror.Code
		submitted  int
	}{
		{
			name:       "dry run stops after simulation",
			cfg:        DispatcherConfig{DryRun: true},
			exec:       &fakeExecutor{},
			wantStatus: domain.StatusSimulated,
		},
		{
			name:       "simulation revert is not fatal",
			exec:       &fakeExecutor{simErr: errors.New("execution reverted: no profit")},
			wantStatus: domain.StatusSimulationFailed,
		},
		{
			name:       "held lock skips",
			exec:       &fakeExecutor{},
			locker:     &fakeLocker{held: map[string]bool{"weth-usdc|uniswap_v2|sushiswap": true}},
			wantStatus: domain.StatusLocked,
		},
		{
			name:       "lock backend down skips",
			exec:       &fakeExecutor{},
			locker:     &fakeLocker{err: errors.New("dial tcp: connection refused")},
			wantStatus: domain.StatusLocked,
		},
		{
			name:     "submit failure",
			exec:     &fakeExecutor{submitErr: errors.New("nonce too low")},
			wantCode: apperror.CodeExecutionFailed,
		},
		{
			name:     "gas price failure",
			exec:     &fakeExecutor{},
			gas:      fixedGas{err: errors.New("timeout")},
			wantCode: apperror.CodeGasEstimationFailed,
		},
		{
			name:     "unknown venue router",
			cfg:      DispatcherConfig{Routers: map[string]common.Address{"uniswap_v2": v2Router}},
			exec:     &fakeExecutor{},
			wantCode: apperror.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gas := tt.gas
			if gas == nil {
				gas = fixedGas{}
			}
			var locker Locker
			if tt.locker != nil {
				locker = tt.locker
			}
			d := newTestDispatcher(t, tt.cfg, tt.exec, gas, locker)

			res, err := d.Dispatch(context.Background(), executableAnalysis())
			if tt.wantCode != "" {
				if !apperror.HasCode(err, tt.wantCode) {
					t.Fatalf("error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s (%s)", res.Status, tt.wantStatus, res.Reason)
			}
			if len(tt.exec.submitted) != tt.submitted {
				t.Errorf("submitted = %d, want %d", len(tt.exec.submitted), tt.submitted)
			}
		})
	}
}

func TestDispatcher_DeduplicatesRoute(t *testing.T) {
	exec := &fakeExecutor{}
	d := newTestDispatcher(t, DispatcherConfig{DryRun: true}, exec, fixedGas{}, nil)

	first, err := d.Dispatch(context.Background(), executableAnalysis())
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.Dispatch(context.Background(), executableAnalysis())
	if err != nil {
		t.Fatal(err)
	}

	if first.Status != domain.StatusSimulated || second.Status != domain.StatusDuplicate {
		t.Errorf("statuses = %s, %s", first.Status, second.Status)
	}
	if len(exec.simulated) != 1 {
		t.Errorf("simulated %d times, want 1", len(exec.simulated))
	}
}

// flakyGas fails until err is cleared.
type flakyGas struct{ err error }

func (g *flakyGas) GetGasPrice(ctx context.Context) (*blockchainDomain.GasPrice, error) {
	return fixedGas{err: g.err}.GetGasPrice(ctx)
}

func TestDispatcher_GasFailureReleasesRoute(t *testing.T) {
	exec := &fakeExecutor{}
	gas := &flakyGas{err: errors.New("timeout")}
	d := newTestDispatcher(t, DispatcherConfig{}, exec, gas, nil)

	if _, err := d.Dispatch(context.Background(), executableAnalysis()); !apperror.HasCode(err, apperror.CodeGasEstimationFailed) {
		t.Fatalf("error = %v, want GAS_ESTIMATION_FAILED", err)
	}

	gas.err = nil
	res, err := d.Dispatch(context.Background(), executableAnalysis())
	if err != nil {
		t.Fatalf("Dispatch after gas recovered: %v", err)
	}
	if res.Status != domain.StatusSubmitted {
		t.Errorf("Status = %s, want submitted (%s)", res.Status, res.Reason)
	}
	if len(exec.submitted) != 1 {
		t.Errorf("submitted = %d, want 1", len(exec.submitted))
	}
}

func TestDispatcher_UnbuildableRequestDoesNotClaimRoute(t *testing.T) {
	dedup := cache.New[string, string](time.Minute)
	t.Cleanup(dedup.Close)

	cfg := DispatcherConfig{
		Routers:  map[string]common.Address{"uniswap_v2": v2Router},
		DedupTTL: time.Minute,
	}
	d, err := NewDispatcher(cfg, &fakeExecutor{}, fixedGas{}, nil, dedup, logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	if _, err := d.Dispatch(context.Background(), executableAnalysis()); !apperror.HasCode(err, apperror.CodeInvalidInput) {
		t.Fatalf("error = %v, want INVALID_INPUT", err)
	}
	if dedup.Len() != 0 {
		t.Errorf("dedup holds %d routes, want 0", dedup.Len())
	}
}

func TestDispatcher_RejectsNonExecutable(t *testing.T) {
	d := newTestDispatcher(t, DispatcherConfig{}, &fakeExecutor{}, fixedGas{}, nil)

	a := executableAnalysis()
	a.IsExecutable = false

	if _, err := d.Dispatch(context.Background(), a); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Errorf("error = %v, want INVALID_STATE", err)
	}
}
