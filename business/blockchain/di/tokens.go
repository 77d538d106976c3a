// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/flashloan-arb/business/blockchain/app"
	"github.com/fd1az/flashloan-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")
	BlockSubscriber   = di.NewToken[app.BlockSubscriber]("blockchain.BlockSubscriber")
	GasOracle         = di.NewToken[app.GasOracle]("blockchain.GasOracle")
)

// GetBlockchainService returns the shared BlockchainService.
func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

// GetBlockSubscriber returns the head subscriber.
func GetBlockSubscriber(c di.ServiceRegistry) app.BlockSubscriber {
	return di.GetToken(c, BlockSubscriber)
}

// GetGasOracle returns the gas oracle.
func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}
