// Package clock provides the authoritative time source served by the API and
// the client-side machinery that tracks it: an offset estimator with
// round-trip compensation and a countdown board driven by the estimate.
package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Source yields the current time. The server's clockwork.Clock and a client
// Synchronizer both satisfy it.
type Source interface {
	Now() time.Time
}

// TimeFetcher performs one round trip to the authoritative clock.
type TimeFetcher interface {
	FetchTime(ctx context.Context) (time.Time, error)
}

const (
	DefaultMaxRetries    = 3
	DefaultRetryInterval = 2 * time.Second
)

// ErrDegraded is returned by Sync when every attempt failed and the
// synchronizer fell back to trusting the local clock.
var ErrDegraded = errors.New("clock sync degraded: falling back to local time")

// Synchronizer estimates offset = authoritative - local once per session so
// that Now can answer without further round trips.
type Synchronizer struct {
	fetcher       TimeFetcher
	clock         clockwork.Clock
	maxRetries    int
	retryInterval time.Duration

	mu       sync.RWMutex
	offset   time.Duration
	synced   bool
	degraded bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithClock replaces the local clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Synchronizer) { s.clock = c }
}

// WithRetry overrides the retry bound and the fixed backoff between attempts.
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(s *Synchronizer) {
		s.maxRetries = maxRetries
		s.retryInterval = interval
	}
}

// NewSynchronizer constructs a Synchronizer with zero offset.
func NewSynchronizer(fetcher TimeFetcher, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		fetcher:       fetcher,
		clock:         clockwork.NewRealClock(),
		maxRetries:    DefaultMaxRetries,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EstimateOffset attributes half the round trip to the response leg:
// serverTime - (t0 + (t1-t0)/2).
func EstimateOffset(t0, t1, serverTime time.Time) time.Duration {
	midpoint := t0.Add(t1.Sub(t0) / 2)
	return serverTime.Sub(midpoint)
}

// Sync measures the offset, retrying up to maxRetries times with a fixed
// backoff. When every attempt fails the offset is reset to zero, the
// synchronizer is marked degraded and an error wrapping ErrDegraded is
// returned; Now stays usable either way.
func (s *Synchronizer) Sync(ctx context.Context) (time.Duration, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Err(lastErr).
				Int("attempt", attempt).
				Int("max_retries", s.maxRetries).
				Msg("retrying clock sync")
			select {
			case <-s.clock.After(s.retryInterval):
			case <-ctx.Done():
				lastErr = ctx.Err()
				return s.fallback(lastErr)
			}
		}

		offset, err := s.measure(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		s.mu.Lock()
		s.offset = offset
		s.synced = true
		s.degraded = false
		s.mu.Unlock()

		log.Debug().Dur("offset", offset).Msg("clock synchronized")
		return offset, nil
	}
	return s.fallback(lastErr)
}

func (s *Synchronizer) measure(ctx context.Context) (time.Duration, error) {
	t0 := s.clock.Now()
	serverTime, err := s.fetcher.FetchTime(ctx)
	t1 := s.clock.Now()
	if err != nil {
		return 0, err
	}
	if serverTime.IsZero() {
		return 0, errors.New("authoritative clock returned zero time")
	}
	return EstimateOffset(t0, t1, serverTime), nil
}

func (s *Synchronizer) fallback(cause error) (time.Duration, error) {
	s.mu.Lock()
	s.offset = 0
	s.synced = true
	s.degraded = true
	s.mu.Unlock()

	log.Error().Err(cause).Msg("clock sync failed, using local time")
	return 0, fmt.Errorf("%w: %v", ErrDegraded, cause)
}

// Now returns the local time shifted by the estimated offset.
func (s *Synchronizer) Now() time.Time {
	s.mu.RLock()
	offset := s.offset
	s.mu.RUnlock()
	return s.clock.Now().Add(offset)
}

// Offset returns the current estimate.
func (s *Synchronizer) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Synced reports whether Sync has completed at least once.
func (s *Synchronizer) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// Degraded reports whether the last Sync fell back to local time.
func (s *Synchronizer) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}
