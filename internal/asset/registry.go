package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe registry of known tokens keyed by address.
type Registry struct {
	byAddr   map[common.Address]*Asset
	bySymbol map[string]*Asset
	mu       sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byAddr:   make(map[common.Address]*Asset),
		bySymbol: make(map[string]*Asset),
	}
}

// Register adds an asset. Registering the same address twice is an error.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return fmt.Errorf("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddr[a.address]; exists {
		return fmt.Errorf("asset: %s already registered", a.address.Hex())
	}

	r.byAddr[a.address] = a
	r.bySymbol[a.symbol] = a
	return nil
}

// Upsert adds or replaces an asset.
func (r *Registry) Upsert(a *Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byAddr[a.address]; ok {
		delete(r.bySymbol, old.symbol)
	}
	r.byAddr[a.address] = a
	r.bySymbol[a.symbol] = a
}

// Get retrieves an asset by address.
func (r *Registry) Get(addr common.Address) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byAddr[addr]
	return a, ok
}

// GetBySymbol retrieves an asset by its symbol.
func (r *Registry) GetBySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.bySymbol[symbol]
	return a, ok
}

// Symbol returns the registered symbol or a shortened address.
func (r *Registry) Symbol(addr common.Address) string {
	if a, ok := r.Get(addr); ok {
		return a.Symbol()
	}
	return ShortAddress(addr)
}

// All returns all registered assets.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Asset, 0, len(r.byAddr))
	for _, a := range r.byAddr {
		result = append(result, a)
	}
	return result
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddr)
}
