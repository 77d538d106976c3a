package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fd1az/flashloan-arb/internal/logger"
)

// PricingService owns the configured price sources and their start-up.
type PricingService struct {
	mu      sync.RWMutex
	sources []PriceSource
	logger  logger.LoggerInterface
}

// NewPricingService creates a PricingService for sources.
func NewPricingService(log logger.LoggerInterface, sources ...PriceSource) *PricingService {
	return &PricingService{
		sources: sources,
		logger:  log,
	}
}

// Sources returns the registered sources ordered by name.
func (s *PricingService) Sources() []PriceSource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PriceSource, len(s.sources))
	copy(out, s.sources)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// InitializeAll initializes every source, bounding each attempt by timeout.
// Sources that fail are retried in the background every retryEvery until ctx
// ends. It returns how many sources are ready.
func (s *PricingService) InitializeAll(ctx context.Context, timeout, retryEvery time.Duration) int {
	var ready int
	for _, src := range s.Sources() {
		initCtx, cancel := context.WithTimeout(ctx, timeout)
		err := src.Initialize(initCtx)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "price source initialization failed, will retry",
				"venue", src.Name(), "error", err)
			go s.retryInitialize(ctx, src, retryEvery)
			continue
		}
		ready++
		s.logger.Info(ctx, "price source initialized", "venue", src.Name(), "kind", src.Kind())
	}
	return ready
}

func (s *PricingService) retryInitialize(ctx context.Context, src PriceSource, every time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(every):
			if err := src.Initialize(ctx); err != nil {
				s.logger.Debug(ctx, "price source retry failed", "venue", src.Name(), "error", err)
				continue
			}
			s.logger.Info(ctx, "price source initialized after retry", "venue", src.Name())
			return
		}
	}
}

// ReadyCount returns how many sources are initialized.
func (s *PricingService) ReadyCount() int {
	n := 0
	for _, src := range s.Sources() {
		if src.IsInitialized() {
			n++
		}
	}
	return n
}
