// Package execution implements the execution bounded context: simulating
// and submitting flash-loan arbitrage transactions.
package execution

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	"github.com/fd1az/flashloan-arb/business/execution/app"
	executionDI "github.com/fd1az/flashloan-arb/business/execution/di"
	"github.com/fd1az/flashloan-arb/business/execution/infra/flashloan"
	"github.com/fd1az/flashloan-arb/business/execution/infra/redislock"
	"github.com/fd1az/flashloan-arb/internal/cache"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
	"github.com/fd1az/flashloan-arb/internal/ratelimit"
)

const dedupSweepInterval = 30 * time.Second

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.Dispatcher, func(sr di.ServiceRegistry) *app.Dispatcher {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		if !cfg.Execution.Enabled {
			return nil
		}
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		client := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)
		limiter := sr.Get(monolith.ServiceRPCLimiter).(*ratelimit.Limiter)

		executor, err := flashloan.NewExecutor(
			common.HexToAddress(cfg.Execution.ContractAddress),
			new(big.Int).SetUint64(cfg.Ethereum.ChainID),
			cfg.Execution.PrivateKey,
			client, limiter, log,
		)
		if err != nil {
			panic("failed to create executor: " + err.Error())
		}

		var locker app.Locker
		if rc := sr.Get(monolith.ServiceRedis).(*redis.Client); rc != nil {
			locker = redislock.New(rc, cfg.App.Name)
		}

		routers := make(map[string]common.Address, len(cfg.Venues))
		for _, v := range cfg.Venues {
			if common.IsHexAddress(v.Router) {
				routers[v.Name] = v.RouterAddress()
			}
		}

		d, err := app.NewDispatcher(app.DispatcherConfig{
			DryRun:   cfg.Execution.DryRun,
			GasLimit: cfg.Execution.GasLimit,
			DedupTTL: cfg.Execution.DedupTTL,
			LockTTL:  cfg.Execution.LockTTL,
			Routers:  routers,
		}, executor, blockchainDI.GetGasOracle(sr), locker, cache.New[string, string](dedupSweepInterval), log)
		if err != nil {
			panic("failed to create dispatcher: " + err.Error())
		}
		return d
	})

	return nil
}

// Startup logs the execution mode.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if executionDI.GetDispatcher(mono.Services()) == nil {
		log.Info(ctx, "execution module started", "mode", "detect-only")
		return nil
	}

	mode := "live"
	if cfg.Execution.DryRun {
		mode = "dry-run"
	}
	log.Info(ctx, "execution module started",
		"mode", mode,
		"contract", cfg.Execution.ContractAddress,
		"distributed_lock", mono.Services().Get(monolith.ServiceRedis).(*redis.Client) != nil)
	return nil
}
