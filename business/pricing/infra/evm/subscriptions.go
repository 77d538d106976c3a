package evm

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

// Subscriptions tracks the log listeners opened by one adapter so they can
// be released together.
type Subscriptions struct {
	venue  string
	source app.LogSubscriber
	logger logger.LoggerInterface

	mu   sync.Mutex
	subs []ethereum.Subscription
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewSubscriptions creates a tracker. source may be nil, in which case every
// Watch call fails with CodeSubscribeFailed.
func NewSubscriptions(venue string, source app.LogSubscriber, log logger.LoggerInterface) *Subscriptions {
	return &Subscriptions{
		venue:  venue,
		source: source,
		logger: log,
		quit:   make(chan struct{}),
	}
}

// Watch subscribes to logs matching q and calls handle for each log on a
// dedicated goroutine, so deliveries for one watch are serialized.
func (s *Subscriptions) Watch(ctx context.Context, q ethereum.FilterQuery, handle func(context.Context, types.Log)) error {
	if s.source == nil {
		return apperror.New(apperror.CodeSubscribeFailed,
			apperror.WithContextf("%s: no log subscription endpoint configured", s.venue))
	}

	logs := make(chan types.Log, 64)
	sub, err := s.source.SubscribeFilterLogs(ctx, q, logs)
	if err != nil {
		return apperror.New(apperror.CodeSubscribeFailed,
			apperror.WithCause(err),
			apperror.WithContext(s.venue))
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	quit := s.quit
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-quit:
				return
			case <-ctx.Done():
				s.remove(sub)
				return
			case err, ok := <-sub.Err():
				s.remove(sub)
				if ok && err != nil {
					s.logger.Warn(ctx, "log subscription ended, pool falls back to polling",
						"venue", s.venue,
						"addresses", len(q.Addresses),
						"active", s.Count(),
						"error", err)
				}
				return
			case l := <-logs:
				if l.Removed {
					continue
				}
				handle(ctx, l)
			}
		}
	}()
	return nil
}

// remove drops a dead subscription from the active set.
func (s *Subscriptions) remove(sub ethereum.Subscription) {
	s.mu.Lock()
	for i, cur := range s.subs {
		if cur == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	sub.Unsubscribe()
}

// Count returns the number of active watches.
func (s *Subscriptions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close releases every watch and waits for their goroutines. It is safe to
// call repeatedly; later Watch calls start a fresh set.
func (s *Subscriptions) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	close(s.quit)
	s.quit = make(chan struct{})
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.wg.Wait()
}
