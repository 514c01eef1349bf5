package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "gemini-adapter-go/internal/errors"
	log "github.com/sirupsen/logrus"
)

// ResponseCache fronts a Store with per-key request coalescing: when
// several identical requests arrive together, exactly one goes upstream
// and the rest wait for its result. Failed computes are never stored.
type ResponseCache struct {
	store Store
	ttl   time.Duration

	mu       sync.Mutex
	inflight map[string]*flight

	hits   atomic.Int64
	misses atomic.Int64
}

type flight struct {
	wg      sync.WaitGroup
	payload []byte
	apiErr  *apperrors.APIError
}

// ComputeFunc produces the payload on a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, *apperrors.APIError)

func New(store Store, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store:    store,
		ttl:      ttl,
		inflight: make(map[string]*flight),
	}
}

// GetOrCompute returns the cached payload for key, or runs compute once
// across all concurrent callers and caches a successful result.
func (c *ResponseCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) ([]byte, *apperrors.APIError) {
	if payload, ok, err := c.store.Get(ctx, key); err == nil && ok {
		c.hits.Add(1)
		return payload, nil
	} else if err != nil {
		log.WithError(err).Warn("cache read failed; computing")
	}
	c.misses.Add(1)

	c.mu.Lock()
	if f := c.inflight[key]; f != nil {
		c.mu.Unlock()
		done := make(chan struct{})
		go func() { f.wg.Wait(); close(done) }()
		select {
		case <-ctx.Done():
			return nil, apperrors.NewKind(apperrors.KindTransientUpstream, 499, "client closed request")
		case <-done:
			return f.payload, f.apiErr
		}
	}
	f := &flight{}
	f.wg.Add(1)
	c.inflight[key] = f
	c.mu.Unlock()

	payload, apiErr := compute(ctx)
	f.payload, f.apiErr = payload, apiErr

	// Store before releasing waiters and the inflight slot so no caller
	// can fall between the flight ending and the entry appearing.
	if apiErr == nil {
		if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
			log.WithError(err).Warn("cache write failed")
		}
	}
	f.wg.Done()

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return payload, apiErr
}

// Invalidate drops a single entry.
func (c *ResponseCache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Flush drops every entry.
func (c *ResponseCache) Flush(ctx context.Context) error {
	return c.store.Flush(ctx)
}

// Stats reports hit/miss counters and the live entry count.
func (c *ResponseCache) Stats(ctx context.Context) (hits, misses int64, entries int) {
	return c.hits.Load(), c.misses.Load(), c.store.Len(ctx)
}
