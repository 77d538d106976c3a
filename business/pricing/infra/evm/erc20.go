package evm

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

// DefaultDecimals is assumed when a token does not answer decimals().
const DefaultDecimals uint8 = 18

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// ERC20ABI is the subset of the ERC20 interface the sources use.
var ERC20ABI = MustParseABI(erc20ABIJSON)

// MustParseABI parses a JSON ABI and panics on failure. Used for package-level
// ABI constants only.
func MustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Tokens resolves ERC20 metadata. Decimals are looked up in the asset
// registry first, then on chain; successful lookups are cached for the
// process lifetime.
type Tokens struct {
	caller   *Caller
	registry *asset.Registry
	logger   logger.LoggerInterface

	mu       sync.RWMutex
	decimals map[common.Address]uint8
	group    singleflight.Group
}

// NewTokens creates a Tokens resolver. registry may be nil.
func NewTokens(caller *Caller, registry *asset.Registry, log logger.LoggerInterface) *Tokens {
	return &Tokens{
		caller:   caller,
		registry: registry,
		logger:   log,
		decimals: make(map[common.Address]uint8),
	}
}

// Decimals returns the token's decimals, falling back to DefaultDecimals
// with a warning when the token cannot be queried.
func (t *Tokens) Decimals(ctx context.Context, token common.Address) uint8 {
	if t.registry != nil {
		if a, ok := t.registry.Get(token); ok {
			return a.Decimals()
		}
	}

	t.mu.RLock()
	d, ok := t.decimals[token]
	t.mu.RUnlock()
	if ok {
		return d
	}

	v, err, _ := t.group.Do(token.Hex(), func() (any, error) {
		out, err := t.caller.Call(ctx, token, ERC20ABI, "decimals")
		if err != nil {
			return nil, err
		}
		d, ok := out[0].(uint8)
		if !ok {
			return nil, apperror.New(apperror.CodeContractCallFailed,
				apperror.WithContext("decimals() returned unexpected type"))
		}
		t.mu.Lock()
		t.decimals[token] = d
		t.mu.Unlock()
		return d, nil
	})
	if err != nil {
		t.logger.Warn(ctx, "token decimals unavailable, assuming default",
			"token", token.Hex(), "default", DefaultDecimals, "error", err)
		return DefaultDecimals
	}
	return v.(uint8)
}

// BalanceOf returns holder's raw balance of token.
func (t *Tokens) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	out, err := t.caller.Call(ctx, token, ERC20ABI, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("balanceOf returned unexpected type"))
	}
	return bal, nil
}
