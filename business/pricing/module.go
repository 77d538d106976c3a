// Package pricing implements the pricing bounded context: one price source
// per configured venue.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	"github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDI "github.com/fd1az/flashloan-arb/business/pricing/di"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/evm"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/uniswapv2"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/uniswapv3"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
	"github.com/fd1az/flashloan-arb/internal/ratelimit"
)

const (
	initTimeout       = 20 * time.Second
	initRetryInterval = 30 * time.Second
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.PricingService, func(sr di.ServiceRegistry) *app.PricingService {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		registry := sr.Get(monolith.ServiceAssetRegistry).(*asset.Registry)
		limiter := sr.Get(monolith.ServiceRPCLimiter).(*ratelimit.Limiter)
		reader := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)

		var logs app.LogSubscriber
		if ws := sr.Get(monolith.ServiceEthWSClient).(*ethclient.Client); ws != nil {
			logs = ws
		}
		head := blockchainDI.GetBlockSubscriber(sr)

		sources := make([]app.PriceSource, 0, len(cfg.Venues))
		for _, v := range cfg.Venues {
			src, err := NewSource(v, reader, logs, head, registry, limiter, log)
			if err != nil {
				panic("failed to create price source: " + err.Error())
			}
			sources = append(sources, src)
		}
		return app.NewPricingService(log, sources...)
	})

	return nil
}

// NewSource builds the adapter for one venue.
func NewSource(v config.VenueConfig, reader app.ChainReader, logs app.LogSubscriber, head app.HeadTracker,
	registry *asset.Registry, limiter *ratelimit.Limiter, log logger.LoggerInterface) (app.PriceSource, error) {
	caller, err := evm.NewCaller(v.Name, reader, limiter, log)
	if err != nil {
		return nil, err
	}
	tokens := evm.NewTokens(caller, registry, log)

	switch v.Kind {
	case config.KindUniswapV2:
		return uniswapv2.New(uniswapv2.Config{
			Name:    v.Name,
			Factory: v.FactoryAddress(),
			FeeBps:  v.FeeBps,
		}, caller, tokens, head, logs, log), nil
	case config.KindUniswapV3:
		return uniswapv3.New(uniswapv3.Config{
			Name:    v.Name,
			Factory: v.FactoryAddress(),
			Quoter:  v.QuoterAddress(),
		}, caller, tokens, head, logs, log), nil
	}
	return nil, fmt.Errorf("unknown venue kind %q for %s", v.Kind, v.Name)
}

// Startup initializes every source; failures are retried in the background.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	svc := pricingDI.GetPricingService(mono.Services())

	ready := svc.InitializeAll(ctx, initTimeout, initRetryInterval)

	log.Info(ctx, "pricing module started", "sources", len(svc.Sources()), "ready", ready)
	return nil
}
