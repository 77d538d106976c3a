// Package flashloan talks to the on-chain flash-loan arbitrage executor.
package flashloan

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/flashloan-arb/business/execution/app"
	"github.com/fd1az/flashloan-arb/business/execution/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/ratelimit"
)

const executorABIJSON = `[
  {"type":"function","name":"executeArbitrage","stateMutability":"nonpayable","inputs":[
    {"name":"token","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"buyRouter","type":"address"},
    {"name":"sellRouter","type":"address"},
    {"name":"minProfit","type":"uint256"}
  ],"outputs":[]}
]`

// ExecutorABI is the contract interface.
var ExecutorABI = mustParseABI(executorABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("flashloan: invalid abi: " + err.Error())
	}
	return parsed
}

var _ app.Executor = (*Executor)(nil)

// Backend is the RPC surface the executor needs. *ethclient.Client
// satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Executor calls executeArbitrage on the deployed contract.
type Executor struct {
	contract common.Address
	backend  Backend
	limiter  *ratelimit.Limiter
	key      *ecdsa.PrivateKey
	from     common.Address
	signer   types.Signer
	logger   logger.LoggerInterface

	// serializes nonce allocation
	submitMu sync.Mutex
}

// NewExecutor creates an Executor. privateKeyHex may be empty, in which case
// the executor can only simulate.
func NewExecutor(contract common.Address, chainID *big.Int, privateKeyHex string,
	backend Backend, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*Executor, error) {
	e := &Executor{
		contract: contract,
		backend:  backend,
		limiter:  limiter,
		signer:   types.NewEIP155Signer(chainID),
		logger:   log,
	}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithCause(err),
				apperror.WithContext("invalid executor private key"))
		}
		e.key = key
		e.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return e, nil
}

// From returns the signing account, zero when simulate-only.
func (e *Executor) From() common.Address {
	return e.from
}

// Pack encodes the contract call for req.
func Pack(req *domain.Request) ([]byte, error) {
	return ExecutorABI.Pack("executeArbitrage",
		req.Token, req.Amount, req.BuyRouter, req.SellRouter, req.MinProfit)
}

// Simulate runs the call against the latest state.
func (e *Executor) Simulate(ctx context.Context, req *domain.Request) error {
	data, err := Pack(req)
	if err != nil {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
		}
	}

	to := e.contract
	_, err = e.backend.CallContract(ctx, ethereum.CallMsg{
		From: e.from,
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return apperror.New(apperror.CodeSimulationFailed,
			apperror.WithCause(err),
			apperror.WithContextf("simulate %s", req.OpportunityID))
	}
	return nil
}

// Submit signs and broadcasts the call as a legacy transaction.
func (e *Executor) Submit(ctx context.Context, req *domain.Request, gasPrice *big.Int, gasLimit uint64) (common.Hash, error) {
	if e.key == nil {
		return common.Hash{}, apperror.New(apperror.CodeExecutionDisabled,
			apperror.WithContext("no signing key configured"))
	}

	data, err := Pack(req)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}

	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("pending nonce"))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &e.contract,
		Value:    big.NewInt(0),
		Data:     data,
	})

	signed, err := types.SignTx(tx, e.signer, e.key)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeTransactionSignFailed, apperror.WithCause(err))
	}

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, apperror.New(apperror.CodeExecutionFailed,
			apperror.WithCause(err),
			apperror.WithContextf("send %s", signed.Hash().Hex()))
	}

	e.logger.Info(ctx, "transaction sent", "tx", signed.Hash().Hex(), "nonce", nonce, "opportunity", req.OpportunityID)
	return signed.Hash(), nil
}
