// Package feed accumulates successive pages of a news feed without
// duplicates and tracks when the upstream has no more data.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/codebysope/crypto-checker/internal/errkind"
	"github.com/codebysope/crypto-checker/internal/logging"
)

const DefaultPageSize = 20

type State string

const (
	StateIdle         State = "idle"
	StateLoadingFirst State = "loading-first-page"
	StateLoadingNext  State = "loading-next-page"
	StateHasMore      State = "idle-has-more"
	StateExhausted    State = "idle-exhausted"
	StateError        State = "error"
)

// PageFetcher loads one 1-indexed page of items for a filter.
type PageFetcher interface {
	FetchPage(ctx context.Context, filter Filter, page, size int) ([]Item, error)
}

type PageFetcherFunc func(ctx context.Context, filter Filter, page, size int) ([]Item, error)

func (f PageFetcherFunc) FetchPage(ctx context.Context, filter Filter, page, size int) ([]Item, error) {
	return f(ctx, filter, page, size)
}

// Snapshot is a copy of the accumulator state.
type Snapshot struct {
	Filter    Filter
	Items     []Item
	PageIndex int
	HasMore   bool
	State     State
	Err       error
}

// Loading reports whether a page load is in flight.
func (s Snapshot) Loading() bool {
	return s.State == StateLoadingFirst || s.State == StateLoadingNext
}

// Accumulator merges pages for one filter scope. Items are unique by ID and
// kept in insertion order.
type Accumulator struct {
	mu       sync.Mutex
	fetcher  PageFetcher
	pageSize int
	logger   *slog.Logger

	scoped     bool
	filter     Filter
	items      []Item
	index      map[string]int
	pageIndex  int
	hasMore    bool
	state      State
	err        error
	loading    bool
	generation uint64

	listeners    map[int]func(Snapshot)
	nextListener int
}

type Option func(*Accumulator)

func WithPageSize(n int) Option {
	return func(a *Accumulator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Accumulator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(fetcher PageFetcher, opts ...Option) *Accumulator {
	a := &Accumulator{
		fetcher:   fetcher,
		pageSize:  DefaultPageSize,
		logger:    logging.Discard(),
		index:     make(map[string]int),
		hasMore:   true,
		state:     StateIdle,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PageSize is the number of items requested per page.
func (a *Accumulator) PageSize() int {
	return a.pageSize
}

// LoadFirstPage scopes the accumulator to filter and fetches page 1. A new
// filter clears accumulated items and supersedes any load in flight. The same
// filter re-fetches page 1 and merges it without moving the paging position.
func (a *Accumulator) LoadFirstPage(ctx context.Context, filter Filter) (Snapshot, error) {
	filter = filter.normalized()

	a.mu.Lock()
	if !a.scoped || a.filter != filter {
		a.resetLocked(filter)
	} else if a.loading {
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, nil
	}
	a.generation++
	gen := a.generation
	a.loading = true
	a.state = StateLoadingFirst
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.notify(snap)

	items, err := a.fetcher.FetchPage(ctx, filter, 1, a.pageSize)
	return a.complete(gen, filter, 1, items, err)
}

// LoadNextPage fetches the page after the last one loaded. It is a no-op that
// returns the current state when nothing is scoped yet, the feed is exhausted,
// or a load is already in flight.
func (a *Accumulator) LoadNextPage(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	if !a.scoped || a.loading || !a.hasMore {
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, nil
	}
	gen := a.generation
	filter := a.filter
	page := a.pageIndex + 1
	a.loading = true
	a.state = StateLoadingNext
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.notify(snap)

	items, err := a.fetcher.FetchPage(ctx, filter, page, a.pageSize)
	return a.complete(gen, filter, page, items, err)
}

// Absorb merges items obtained outside the paging sequence, such as a polled
// refresh of page 1, into the current scope. Paging position and HasMore are
// untouched. It returns the number of new items.
func (a *Accumulator) Absorb(filter Filter, items []Item) int {
	filter = filter.normalized()

	a.mu.Lock()
	if !a.scoped || a.filter != filter {
		a.mu.Unlock()
		return 0
	}
	added := a.mergeLocked(items)
	snap := a.snapshotLocked()
	a.mu.Unlock()

	if added > 0 {
		a.notify(snap)
	}
	return added
}

func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Subscribe registers fn for state changes. fn must not block.
func (a *Accumulator) Subscribe(fn func(Snapshot)) (cancel func()) {
	a.mu.Lock()
	id := a.nextListener
	a.nextListener++
	a.listeners[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

func (a *Accumulator) complete(gen uint64, filter Filter, page int, items []Item, err error) (Snapshot, error) {
	a.mu.Lock()
	if gen != a.generation {
		// Superseded by a load for another scope.
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, nil
	}
	a.loading = false

	if err != nil {
		a.err = errkind.New(errkind.FeedFetchFailure, fmt.Sprintf("load page %d of %s", page, filter), err)
		a.state = StateError
		snap := a.snapshotLocked()
		a.mu.Unlock()
		a.logger.Warn("feed page failed", "filter", filter.String(), "page", page, "error", err)
		a.notify(snap)
		return snap, a.err
	}

	added := a.mergeLocked(items)
	if page > a.pageIndex {
		a.pageIndex = page
		// Overlapping upstream windows surface as pages with nothing new.
		// Page 1 may already be known from a polled head merge.
		if len(items) < a.pageSize || (page > 1 && added == 0) {
			a.hasMore = false
		}
	}
	a.err = nil
	a.state = a.idleStateLocked()
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.logger.Debug("feed page merged",
		"filter", filter.String(),
		"page", page,
		"received", len(items),
		"added", added,
		"has_more", snap.HasMore,
	)
	a.notify(snap)
	return snap, nil
}

func (a *Accumulator) resetLocked(filter Filter) {
	a.scoped = true
	a.filter = filter
	a.items = nil
	a.index = make(map[string]int)
	a.pageIndex = 0
	a.hasMore = true
	a.err = nil
	a.state = StateIdle
}

func (a *Accumulator) mergeLocked(items []Item) int {
	added := 0
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, seen := a.index[item.ID]; seen {
			continue
		}
		a.index[item.ID] = len(a.items)
		a.items = append(a.items, item.clone())
		added++
	}
	return added
}

func (a *Accumulator) idleStateLocked() State {
	if a.hasMore {
		return StateHasMore
	}
	return StateExhausted
}

func (a *Accumulator) snapshotLocked() Snapshot {
	items := make([]Item, len(a.items))
	for i, item := range a.items {
		items[i] = item.clone()
	}
	return Snapshot{
		Filter:    a.filter,
		Items:     items,
		PageIndex: a.pageIndex,
		HasMore:   a.hasMore,
		State:     a.state,
		Err:       a.err,
	}
}

func (a *Accumulator) notify(snap Snapshot) {
	a.mu.Lock()
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, a.listeners[id])
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
