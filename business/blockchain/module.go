// Package blockchain implements the blockchain bounded context for Ethereum integration.
package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/flashloan-arb/business/blockchain/app"
	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	"github.com/fd1az/flashloan-arb/business/blockchain/infra/ethereum"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		httpClient := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)

		var ws app.HeadClient
		if wsClient := sr.Get(monolith.ServiceEthWSClient).(*ethclient.Client); wsClient != nil {
			ws = wsClient
		}

		subCfg := ethereum.DefaultSubscriberConfig()
		if cfg.Ethereum.PollInterval > 0 {
			subCfg.PollInterval = cfg.Ethereum.PollInterval
		}
		if cfg.Ethereum.ReconnectDelay > 0 {
			subCfg.ReconnectDelay = cfg.Ethereum.ReconnectDelay
		}

		sub, err := ethereum.NewSubscriber(subCfg, ws, httpClient, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		httpClient := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)

		oracleCfg := ethereum.DefaultGasOracleConfig()
		if ceiling := cfg.Profit.GasPriceCeilingWei(); ceiling.IsPositive() {
			oracleCfg.MaxGasPrice = ceiling.BigInt()
		}
		if cfg.Profit.GasUnits > 0 {
			oracleCfg.DefaultGas = cfg.Profit.GasUnits
		}

		oracle, err := ethereum.NewGasOracle(oracleCfg, httpClient, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(
			blockchainDI.GetBlockSubscriber(sr),
			blockchainDI.GetGasOracle(sr),
		)
	})

	return nil
}

// Startup verifies the chain id and starts following the head.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if chainID, err := mono.EthClient().ChainID(ctx); err != nil {
		log.Warn(ctx, "could not read chain id", "error", err)
	} else if cfg.Ethereum.ChainID != 0 && chainID.Cmp(new(big.Int).SetUint64(cfg.Ethereum.ChainID)) != 0 {
		log.Error(ctx, "connected to unexpected chain",
			"want", cfg.Ethereum.ChainID, "got", chainID.String())
	}

	svc := blockchainDI.GetBlockchainService(mono.Services())
	if _, err := svc.SubscribeBlocks(ctx); err != nil {
		log.Error(ctx, "failed to start block subscription", "error", err)
		// Quotes fall back to BlockNumber RPC calls.
	}

	log.Info(ctx, "blockchain module started")
	return nil
}
