// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Validator   = di.NewToken[*app.Validator]("arbitrage.Validator")
	ProfitModel = di.NewToken[*app.ProfitModel]("arbitrage.ProfitModel")
	Aggregator  = di.NewToken[*app.Aggregator]("arbitrage.Aggregator")
	Reporter    = di.NewToken[app.Reporter]("arbitrage.Reporter")
	Pipeline    = di.NewToken[*app.Pipeline]("arbitrage.Pipeline")
	Detector    = di.NewToken[*app.Detector]("arbitrage.Detector")
)

// GetAggregator returns the shared Aggregator.
func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

// GetDetector returns the Detector that drives the whole pipeline.
func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}
