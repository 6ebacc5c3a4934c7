package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/codebysope/crypto-checker/internal/cache"
	"github.com/codebysope/crypto-checker/internal/feed"
	"github.com/codebysope/crypto-checker/internal/poller"
	"github.com/codebysope/crypto-checker/internal/resource"
)

// PaginatedFeed accumulates news pages for one filter at a time. Page 1 of the
// current filter is polled at the news interval and new items are merged in
// without disturbing the paging position.
type PaginatedFeed struct {
	s        *Session
	acc      *feed.Accumulator
	unsubAcc func()
	changes  chan feed.Snapshot

	mu      sync.Mutex
	handle  poller.Handle
	polling bool
	closed  bool
}

// UsePaginatedFeed scopes a new feed to filter and loads its first page. The
// feed is returned even when that load fails; LoadMore or Reset retry it.
func (s *Session) UsePaginatedFeed(ctx context.Context, filter feed.Filter) (*PaginatedFeed, error) {
	f := &PaginatedFeed{
		s:       s,
		changes: make(chan feed.Snapshot, 1),
	}
	f.acc = feed.New(feed.PageFetcherFunc(f.fetchPage),
		feed.WithPageSize(s.cfg.PageSize()),
		feed.WithLogger(s.logger),
	)
	if !s.track(nil, f) {
		f.closed = true
		close(f.changes)
		return f, ErrClosed
	}
	f.unsubAcc = f.acc.Subscribe(f.publish)

	_, err := f.Reset(ctx, filter)
	return f, err
}

// Items returns the accumulated items in arrival order.
func (f *PaginatedFeed) Items() []feed.Item {
	return f.acc.Snapshot().Items
}

func (f *PaginatedFeed) HasMore() bool {
	return f.acc.Snapshot().HasMore
}

func (f *PaginatedFeed) IsLoading() bool {
	return f.acc.Snapshot().Loading()
}

func (f *PaginatedFeed) Snapshot() feed.Snapshot {
	return f.acc.Snapshot()
}

// Changes delivers the latest snapshot after every state change. Unread
// snapshots are coalesced; the channel is closed by Close.
func (f *PaginatedFeed) Changes() <-chan feed.Snapshot {
	return f.changes
}

// LoadMore fetches the next page. It returns the current snapshot without
// fetching when a load is in flight or the feed is exhausted. After a failed
// first page it retries page 1.
func (f *PaginatedFeed) LoadMore(ctx context.Context) (feed.Snapshot, error) {
	snap := f.acc.Snapshot()
	if snap.PageIndex == 0 && snap.State == feed.StateError {
		return f.acc.LoadFirstPage(ctx, snap.Filter)
	}
	return f.acc.LoadNextPage(ctx)
}

// Reset scopes the feed to filter and loads page 1. Changing the filter
// discards accumulated items and moves head polling to the new filter.
func (f *PaginatedFeed) Reset(ctx context.Context, filter feed.Filter) (feed.Snapshot, error) {
	snap, err := f.acc.LoadFirstPage(ctx, filter)
	f.pollHead(filter)
	return snap, err
}

// Close stops head polling for this feed.
func (f *PaginatedFeed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.changes)
	handle, polling := f.handle, f.polling
	f.polling = false
	f.mu.Unlock()

	f.unsubAcc()
	if polling {
		f.s.poller.Unsubscribe(handle)
	}
	f.s.untrack(nil, f)
}

func (f *PaginatedFeed) pollHead(filter feed.Filter) {
	key := newsKey(filter, 1, f.acc.PageSize())

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.polling && f.handle.Key.Equal(key) {
		f.mu.Unlock()
		return
	}
	old, hadOld := f.handle, f.polling
	subscribe := f.s.poller.Subscribe
	if f.s.cache.Get(key).Status == cache.StatusFresh {
		// LoadFirstPage just fetched this key.
		subscribe = f.s.poller.Attach
	}
	f.handle = subscribe(key, f.s.cfg.PollInterval(key), func(e cache.Entry, err error) {
		if err != nil || !e.HasValue() {
			return
		}
		var items []feed.Item
		if err := e.Decode(&items); err != nil {
			f.s.logger.Warn("decoding polled news page", "key", key.String(), "error", err)
			return
		}
		if added := f.acc.Absorb(filter, items); added > 0 {
			f.s.logger.Debug("merged polled news", "filter", filter.String(), "added", added)
		}
	})
	f.polling = true
	f.mu.Unlock()

	if hadOld {
		f.s.poller.Unsubscribe(old)
	}
}

func (f *PaginatedFeed) fetchPage(ctx context.Context, filter feed.Filter, page, size int) ([]feed.Item, error) {
	entry, err := f.s.cache.Refresh(ctx, newsKey(filter, page, size))
	if err != nil {
		return nil, err
	}
	var items []feed.Item
	if err := entry.Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding news page %d: %w", page, err)
	}
	return items, nil
}

func (f *PaginatedFeed) publish(snap feed.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	offer(f.changes, snap)
}

// newsKey maps a feed position onto the cache key the news source serves.
func newsKey(filter feed.Filter, page, size int) resource.Key {
	params := map[string]string{
		"page": strconv.Itoa(page),
		"size": strconv.Itoa(size),
	}
	if c := strings.TrimSpace(filter.Category); c != "" && !strings.EqualFold(c, feed.AllCategories) {
		params["category"] = c
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		params["search"] = q
	}
	return resource.NewKey(resource.KindNews, params)
}
