// Package arbitrage implements the arbitrage bounded context: aggregating
// venue quotes into opportunities, validating and costing them and handing
// the profitable ones to execution.
package arbitrage

import (
	"context"
	"os"

	"github.com/ethereum/go-ethereum/common"

	arbitrageDI "github.com/fd1az/flashloan-arb/business/arbitrage/di"
	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/business/arbitrage/infra"
	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	executionDI "github.com/fd1az/flashloan-arb/business/execution/di"
	pricingDI "github.com/fd1az/flashloan-arb/business/pricing/di"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	refs := func(sr di.ServiceRegistry) domain.ReferencePrices {
		registry := sr.Get(monolith.ServiceAssetRegistry).(*asset.Registry)
		return domain.ReferencePricesFromAssets(registry.All())
	}

	di.RegisterToken(c, arbitrageDI.Validator, func(sr di.ServiceRegistry) *app.Validator {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return app.NewValidator(app.ValidatorConfigFrom(cfg.Validator), refs(sr))
	})

	di.RegisterToken(c, arbitrageDI.ProfitModel, func(sr di.ServiceRegistry) *app.ProfitModel {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return app.NewProfitModel(app.ProfitConfigFrom(cfg.Profit), refs(sr))
	})

	di.RegisterToken(c, arbitrageDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		agg, err := app.NewAggregator(app.AggregatorConfigFrom(cfg), log)
		if err != nil {
			panic("failed to create aggregator: " + err.Error())
		}
		for _, src := range pricingDI.GetPricingService(sr).Sources() {
			if err := agg.AddSource(src); err != nil {
				panic("failed to add price source: " + err.Error())
			}
		}
		for _, p := range cfg.Pairs {
			if _, err := agg.AddPair(common.HexToAddress(p.TokenA), common.HexToAddress(p.TokenB)); err != nil {
				panic("failed to add pair: " + err.Error())
			}
		}
		return agg
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		registry := sr.Get(monolith.ServiceAssetRegistry).(*asset.Registry)
		if cfg.TUIMode {
			return infra.NewTUIReporter(registry)
		}
		return infra.NewConsoleReporter(os.Stdout, registry)
	})

	di.RegisterToken(c, arbitrageDI.Pipeline, func(sr di.ServiceRegistry) *app.Pipeline {
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		var dispatcher app.Dispatcher
		if d := executionDI.GetDispatcher(sr); d != nil {
			dispatcher = d
		}
		return app.NewPipeline(
			di.GetToken(sr, arbitrageDI.Validator),
			di.GetToken(sr, arbitrageDI.ProfitModel),
			dispatcher,
			di.GetToken(sr, arbitrageDI.Reporter),
			log,
		)
	})

	di.RegisterToken(c, arbitrageDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		return app.NewDetector(
			arbitrageDI.GetAggregator(sr),
			di.GetToken(sr, arbitrageDI.Pipeline),
			di.GetToken(sr, arbitrageDI.Reporter),
			blockchainDI.GetBlockchainService(sr),
			log,
		)
	})

	return nil
}

// Startup resolves the detector so wiring errors surface before main starts it.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	agg := arbitrageDI.GetAggregator(mono.Services())
	_ = arbitrageDI.GetDetector(mono.Services())

	log.Info(ctx, "arbitrage module started",
		"pairs", len(agg.MonitoredPairs()),
		"sources", len(agg.Sources()),
		"event_driven", cfg.Aggregator.EventDriven,
		"poll_interval", cfg.Aggregator.PollInterval)
	return nil
}
