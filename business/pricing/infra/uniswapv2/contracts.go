package uniswapv2

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/flashloan-arb/business/pricing/infra/evm"
)

const factoryABIJSON = `[
	{"constant":true,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"pair","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"allPairsLength","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const pairABIJSON = `[
	{"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":false,"name":"reserve0","type":"uint112"},{"indexed":false,"name":"reserve1","type":"uint112"}],"name":"Sync","type":"event"}
]`

// Parsed ABIs for the factory and pair contracts.
var (
	FactoryABI = evm.MustParseABI(factoryABIJSON)
	PairABI    = evm.MustParseABI(pairABIJSON)
)

// SyncTopic is the topic hash of Sync(uint112,uint112).
var SyncTopic = crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))

// DefaultFeeBps is the swap fee charged by Uniswap V2 style pools.
const DefaultFeeBps = 30
