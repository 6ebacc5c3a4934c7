// Package cache holds the latest known-good result per resource key and
// serves it stale-while-revalidate.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codebysope/crypto-checker/internal/clock"
	"github.com/codebysope/crypto-checker/internal/fetch"
	"github.com/codebysope/crypto-checker/internal/logging"
	"github.com/codebysope/crypto-checker/internal/resource"
)

// DefaultStaleAfter applies when no policy is configured.
const DefaultStaleAfter = 30 * time.Second

// Fetcher is satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (json.RawMessage, error)
}

// StalePolicy returns the freshness window for a key.
type StalePolicy func(key resource.Key) time.Duration

// Cache is the single writer of cache entries. It is safe for concurrent use;
// callers only ever receive copies.
type Cache struct {
	mu         sync.Mutex
	fetcher    Fetcher
	clock      clock.Clock
	staleAfter StalePolicy
	logger     *slog.Logger

	slots map[string]*slot
	group singleflight.Group

	listeners    map[int]func(Entry)
	nextListener int
}

type Option func(*Cache)

func WithClock(c clock.Clock) Option {
	return func(cache *Cache) {
		if c != nil {
			cache.clock = c
		}
	}
}

func WithStalePolicy(p StalePolicy) Option {
	return func(cache *Cache) {
		if p != nil {
			cache.staleAfter = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cache *Cache) {
		if logger != nil {
			cache.logger = logger
		}
	}
}

func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:    fetcher,
		clock:      clock.Real(),
		staleAfter: func(resource.Key) time.Duration { return DefaultStaleAfter },
		logger:     logging.Discard(),
		slots:      make(map[string]*slot),
		listeners:  make(map[int]func(Entry)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns whatever is held for key, possibly an empty entry. It never
// triggers a fetch.
func (c *Cache) Get(key resource.Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entryLocked(key, c.slots[key.String()])
}

// Refresh fetches key and returns the updated entry. Concurrent calls for the
// same key share a single in-flight fetch and receive the same entry.
//
// On failure the previous value is kept and the error is both recorded in the
// entry and returned. Cancelling ctx abandons the wait, not the shared fetch.
func (c *Cache) Refresh(ctx context.Context, key resource.Key) (Entry, error) {
	id := key.String()
	ch := c.group.DoChan(id, func() (any, error) {
		return c.run(context.WithoutCancel(ctx), key)
	})
	c.adjustWaiters(key, 1)
	defer c.adjustWaiters(key, -1)

	select {
	case <-ctx.Done():
		return c.Get(key), ctx.Err()
	case res := <-ch:
		entry, _ := res.Val.(Entry)
		return entry.clone(), res.Err
	}
}

// Subscribe registers fn to be called with a snapshot whenever an entry starts
// or finishes refreshing. fn runs on the refreshing goroutine and must not
// block. The returned func removes the registration.
func (c *Cache) Subscribe(fn func(Entry)) (cancel func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Keys lists every key the cache has seen, sorted by canonical form.
func (c *Cache) Keys() []resource.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]resource.Key, 0, len(c.slots))
	for _, s := range c.slots {
		keys = append(keys, s.key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (c *Cache) run(ctx context.Context, key resource.Key) (Entry, error) {
	seq, started := c.begin(key)
	c.notify(started)

	payload, err := c.fetcher.Fetch(ctx, fetch.Request{Key: key})

	entry := c.apply(key, seq, payload, err)
	c.notify(entry)
	if err != nil {
		c.logger.Warn("refresh failed",
			"key", key.String(),
			"serving_stale", entry.HasValue(),
			"error", err,
		)
		return entry, fmt.Errorf("refreshing %s: %w", key, err)
	}
	return entry, nil
}

// begin issues the next sequence number for key.
func (c *Cache) begin(key resource.Key) (uint64, Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slotLocked(key)
	s.issued++
	s.inflight++
	return s.issued, c.entryLocked(key, s)
}

// apply writes a completed fetch. Completions older than the last applied
// sequence number are discarded so a slow early response never overwrites
// newer data.
func (c *Cache) apply(key resource.Key, seq uint64, payload json.RawMessage, err error) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slotLocked(key)
	if s.inflight > 0 {
		s.inflight--
	}
	if seq <= s.applied {
		c.logger.Debug("discarding out-of-order completion",
			"key", key.String(),
			"seq", seq,
			"applied", s.applied,
		)
		return c.entryLocked(key, s)
	}
	s.applied = seq

	if err != nil {
		s.err = err
		return c.entryLocked(key, s)
	}
	if payload == nil {
		payload = json.RawMessage("null")
	}
	s.value = payload
	s.fetchedAt = c.clock.Now()
	s.err = nil
	return c.entryLocked(key, s)
}

func (c *Cache) slotLocked(key resource.Key) *slot {
	id := key.String()
	s, ok := c.slots[id]
	if !ok {
		s = &slot{key: key}
		c.slots[id] = s
	}
	return s
}

func (c *Cache) entryLocked(key resource.Key, s *slot) Entry {
	staleAfter := c.staleAfter(key)
	if s == nil {
		return Entry{Key: key, Status: StatusEmpty, StaleAfter: staleAfter}
	}
	e := Entry{
		Key:        s.key,
		Value:      s.value,
		FetchedAt:  s.fetchedAt,
		Err:        s.err,
		StaleAfter: staleAfter,
		Fetching:   s.inflight > 0,
	}
	switch {
	case s.value != nil && c.clock.Now().Sub(s.fetchedAt) < staleAfter:
		e.Status = StatusFresh
	case s.value != nil:
		e.Status = StatusStale
	case s.inflight > 0:
		e.Status = StatusLoading
	case s.err != nil:
		e.Status = StatusError
	default:
		e.Status = StatusEmpty
	}
	return e.clone()
}

func (c *Cache) adjustWaiters(key resource.Key, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slotLocked(key).waiters += delta
}

// waiting reports how many Refresh callers are attached to key.
func (c *Cache) waiting(key resource.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key.String()]; ok {
		return s.waiters
	}
	return 0
}

func (c *Cache) notify(entry Entry) {
	c.mu.Lock()
	fns := make([]func(Entry), 0, len(c.listeners))
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(entry.clone())
	}
}
