// Package poller drives periodic refresh of subscribed resource keys.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebysope/crypto-checker/internal/cache"
	"github.com/codebysope/crypto-checker/internal/clock"
	"github.com/codebysope/crypto-checker/internal/logging"
	"github.com/codebysope/crypto-checker/internal/resource"
)

// Refresher is satisfied by *cache.Cache.
type Refresher interface {
	Refresh(ctx context.Context, key resource.Key) (cache.Entry, error)
}

// NotifyFunc receives the outcome of every refresh driven for a handle's key.
type NotifyFunc func(entry cache.Entry, err error)

// Handle identifies one consumer of a key.
type Handle struct {
	ID  uuid.UUID
	Key resource.Key
}

type subscription struct {
	key      resource.Key
	interval time.Duration
	enabled  bool
	timer    clock.Timer
	// generation invalidates timers armed before a stop or pause.
	generation uint64
	handles    map[uuid.UUID]*attachment
}

// attachment serializes one handle's notifications against its Unsubscribe.
type attachment struct {
	mu       sync.Mutex
	notify   NotifyFunc
	detached bool
}

func (a *attachment) deliver(entry cache.Entry, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detached || a.notify == nil {
		return
	}
	a.notify(entry, err)
}

func (a *attachment) detach() {
	a.mu.Lock()
	a.detached = true
	a.mu.Unlock()
}

// Poller owns subscription lifecycles. It never holds cached values; every
// refresh goes through the Refresher, which dedups overlapping fetches.
type Poller struct {
	mu        sync.Mutex
	refresher Refresher
	clock     clock.Clock
	ctx       context.Context
	logger    *slog.Logger

	subs   map[string]*subscription
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Poller)

func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithContext sets the context refreshes run under.
func WithContext(ctx context.Context) Option {
	return func(p *Poller) {
		if ctx != nil {
			p.ctx = ctx
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(refresher Refresher, opts ...Option) *Poller {
	p := &Poller{
		refresher: refresher,
		clock:     clock.Real(),
		ctx:       context.Background(),
		logger:    logging.Discard(),
		subs:      make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers a consumer of key. The first consumer triggers an
// immediate refresh and arms a recurring one every interval; later consumers
// share that schedule. An interval <= 0 means refresh once, never poll.
// notify may be nil.
func (p *Poller) Subscribe(key resource.Key, interval time.Duration, notify NotifyFunc) Handle {
	return p.subscribe(key, interval, notify, true)
}

// Attach is Subscribe for a caller that already holds a fresh value for key:
// a new subscription waits one interval before its first refresh.
func (p *Poller) Attach(key resource.Key, interval time.Duration, notify NotifyFunc) Handle {
	return p.subscribe(key, interval, notify, false)
}

func (p *Poller) subscribe(key resource.Key, interval time.Duration, notify NotifyFunc, immediate bool) Handle {
	h := Handle{ID: uuid.New(), Key: key}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return h
	}

	id := key.String()
	if sub, ok := p.subs[id]; ok {
		sub.handles[h.ID] = &attachment{notify: notify}
		return h
	}

	sub := &subscription{
		key:      key,
		interval: interval,
		enabled:  true,
		handles:  map[uuid.UUID]*attachment{h.ID: {notify: notify}},
	}
	p.subs[id] = sub
	p.logger.Debug("subscription created", "key", id, "interval", interval, "immediate", immediate)

	if immediate {
		p.spawnLocked(sub)
	}
	p.armLocked(sub)
	return h
}

// Unsubscribe removes a consumer. It is synchronous: a notification already
// running for the handle finishes first, and none follow once it returns.
// A notify func must therefore not unsubscribe its own handle. When the last
// consumer leaves, the recurring timer is cancelled; an in-flight refresh
// still completes and updates the cache. Unknown handles are ignored.
func (p *Poller) Unsubscribe(h Handle) {
	if a := p.remove(h); a != nil {
		a.detach()
	}
}

func (p *Poller) remove(h Handle) *attachment {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := h.Key.String()
	sub, ok := p.subs[id]
	if !ok {
		return nil
	}
	a, ok := sub.handles[h.ID]
	if !ok {
		return nil
	}
	delete(sub.handles, h.ID)
	if len(sub.handles) > 0 {
		return a
	}

	p.stopLocked(sub)
	delete(p.subs, id)
	p.logger.Debug("subscription destroyed", "key", id)
	return a
}

// SetEnabled pauses or resumes recurring refresh for key. Resuming refreshes
// immediately. It reports whether key has a subscription.
func (p *Poller) SetEnabled(key resource.Key, enabled bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, ok := p.subs[key.String()]
	if !ok {
		return false
	}
	if sub.enabled == enabled {
		return true
	}
	sub.enabled = enabled
	if !enabled {
		p.stopLocked(sub)
		return true
	}
	p.spawnLocked(sub)
	p.armLocked(sub)
	return true
}

// Subscribers reports the reference count for key.
func (p *Poller) Subscribers(key resource.Key) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sub, ok := p.subs[key.String()]; ok {
		return len(sub.handles)
	}
	return 0
}

// Wait blocks until every refresh started so far has finished.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Close cancels every subscription and waits for in-flight refreshes.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	for id, sub := range p.subs {
		p.stopLocked(sub)
		delete(p.subs, id)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) armLocked(sub *subscription) {
	if sub.interval <= 0 || !sub.enabled {
		return
	}
	gen := sub.generation
	sub.timer = p.clock.AfterFunc(sub.interval, func() {
		p.tick(sub, gen)
	})
}

func (p *Poller) stopLocked(sub *subscription) {
	sub.generation++
	if sub.timer != nil {
		sub.timer.Stop()
		sub.timer = nil
	}
}

func (p *Poller) tick(sub *subscription, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || sub.generation != gen || p.subs[sub.key.String()] != sub {
		return
	}
	// Re-arm first so the cadence does not drift with fetch latency.
	p.armLocked(sub)
	p.spawnLocked(sub)
}

func (p *Poller) spawnLocked(sub *subscription) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		entry, err := p.refresher.Refresh(p.ctx, sub.key)
		if err != nil {
			p.logger.Debug("poll refresh failed", "key", sub.key.String(), "error", err)
		}
		p.deliver(sub, entry, err)
	}()
}

// deliver notifies the handles still attached when the refresh completes.
func (p *Poller) deliver(sub *subscription, entry cache.Entry, err error) {
	p.mu.Lock()
	var targets []*attachment
	if p.subs[sub.key.String()] == sub {
		for _, a := range sub.handles {
			if a.notify != nil {
				targets = append(targets, a)
			}
		}
	}
	p.mu.Unlock()

	for _, a := range targets {
		a.deliver(entry, err)
	}
}
