// Package evmtest provides an in-memory chain for exercising price sources.
package evmtest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// ErrUnhandled is returned for calls with no registered handler; it mimics
// a call to an address without code.
var ErrUnhandled = errors.New("evmtest: unhandled call")

// Handler receives the decoded call arguments and returns the outputs to encode.
type Handler func(args []any) ([]any, error)

type route struct {
	to       common.Address
	selector [4]byte
}

type handler struct {
	method abi.Method
	fn     Handler
}

type watcher struct {
	query   ethereum.FilterQuery
	ch      chan<- types.Log
	drop    chan error
	dropped bool
}

// Chain is a fake node answering eth_call from registered handlers.
type Chain struct {
	mu       sync.Mutex
	routes   map[route]handler
	watchers []*watcher
	block    uint64
	calls    int
	failAll  error
}

// NewChain creates an empty Chain at block 1.
func NewChain() *Chain {
	return &Chain{routes: make(map[route]handler), block: 1}
}

// Handle registers fn for calls to method of parsed at address to.
func (c *Chain) Handle(to common.Address, parsed abi.ABI, method string, fn Handler) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("evmtest: unknown method %s", method))
	}
	var sel [4]byte
	copy(sel[:], m.ID)

	c.mu.Lock()
	c.routes[route{to: to, selector: sel}] = handler{method: m, fn: fn}
	c.mu.Unlock()
}

// Returns registers a handler that always answers with values.
func (c *Chain) Returns(to common.Address, parsed abi.ABI, method string, values ...any) {
	c.Handle(to, parsed, method, func([]any) ([]any, error) { return values, nil })
}

// FailAll makes every call fail with err until reset with nil.
func (c *Chain) FailAll(err error) {
	c.mu.Lock()
	c.failAll = err
	c.mu.Unlock()
}

// SetBlock sets the reported head.
func (c *Chain) SetBlock(n uint64) {
	c.mu.Lock()
	c.block = n
	c.mu.Unlock()
}

// Calls returns how many eth_calls were served.
func (c *Chain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// CallContract implements the pricing ChainReader.
func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	if c.failAll != nil {
		err := c.failAll
		c.mu.Unlock()
		return nil, err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		c.mu.Unlock()
		return nil, ErrUnhandled
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])
	h, ok := c.routes[route{to: *msg.To, selector: sel}]
	c.mu.Unlock()
	if !ok {
		// Like a call to an EOA: no revert, empty output.
		return nil, nil
	}

	args, err := h.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	out, err := h.fn(args)
	if err != nil {
		return nil, err
	}
	return h.method.Outputs.Pack(out...)
}

// BlockNumber implements the pricing ChainReader.
func (c *Chain) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

// SubscribeFilterLogs implements the pricing LogSubscriber.
func (c *Chain) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	w := &watcher{query: q, ch: ch, drop: make(chan error, 1)}
	sub := event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
			return nil
		case err := <-w.drop:
			return err
		}
	})

	c.mu.Lock()
	c.watchers = append(c.watchers, w)
	c.mu.Unlock()
	return sub, nil
}

// Watchers returns how many subscriptions were opened.
func (c *Chain) Watchers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers)
}

// DropSubscriptions ends every open subscription with err, as a node does
// when the websocket goes away.
func (c *Chain) DropSubscriptions(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.watchers {
		if w.dropped {
			continue
		}
		w.dropped = true
		w.drop <- err
	}
}

// Emit delivers l to every live subscription whose address filter matches.
func (c *Chain) Emit(l types.Log) {
	c.mu.Lock()
	watchers := make([]*watcher, 0, len(c.watchers))
	for _, w := range c.watchers {
		if !w.dropped {
			watchers = append(watchers, w)
		}
	}
	c.mu.Unlock()

	for _, w := range watchers {
		if matches(w.query, l) {
			w.ch <- l
		}
	}
}

func matches(q ethereum.FilterQuery, l types.Log) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && len(l.Topics) > 0 {
		for _, t := range q.Topics[0] {
			if t == l.Topics[0] {
				return true
			}
		}
		return false
	}
	return true
}
