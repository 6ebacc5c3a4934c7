// Package dashboard is the consumer-facing surface of the sync core. A
// Session owns one cache, one poller and one store for the life of the
// process; presentation code asks it for live resources, paginated feeds,
// derived views and the persisted collections.
package dashboard

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/codebysope/crypto-checker/internal/cache"
	"github.com/codebysope/crypto-checker/internal/clock"
	"github.com/codebysope/crypto-checker/internal/config"
	"github.com/codebysope/crypto-checker/internal/feed"
	"github.com/codebysope/crypto-checker/internal/fetch"
	"github.com/codebysope/crypto-checker/internal/logging"
	"github.com/codebysope/crypto-checker/internal/poller"
	"github.com/codebysope/crypto-checker/internal/store"
	"github.com/codebysope/crypto-checker/internal/view"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("dashboard: session closed")

type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  clock.Clock

	client *fetch.Client
	cache  *cache.Cache
	poller *poller.Poller
	store  *store.Store

	mu        sync.Mutex
	resources map[*Resource]struct{}
	feeds     map[*PaginatedFeed]struct{}
	closed    bool
}

type options struct {
	clock  clock.Clock
	logger *slog.Logger
	wait   fetch.WaitFunc
}

type Option func(*options)

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFetchWait replaces the sleep between retry attempts.
func WithFetchWait(wait fetch.WaitFunc) Option {
	return func(o *options) {
		if wait != nil {
			o.wait = wait
		}
	}
}

// New wires a session. source answers every resource kind the session will be
// asked for; backend holds the persisted collections.
func New(cfg *config.Config, source fetch.Source, backend store.Backend, opts ...Option) *Session {
	o := options{
		clock:  clock.Real(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.RequestTimeout()),
		fetch.WithMaxRetries(cfg.MaxRetries()),
		fetch.WithBackoff(cfg.BaseDelay(), cfg.MaxDelay()),
		fetch.WithLogger(o.logger),
	}
	if o.wait != nil {
		fetchOpts = append(fetchOpts, fetch.WithWait(o.wait))
	}
	client := fetch.New(source, fetchOpts...)

	c := cache.New(client,
		cache.WithClock(o.clock),
		cache.WithStalePolicy(cfg.StaleAfter),
		cache.WithLogger(o.logger),
	)

	return &Session{
		cfg:    cfg,
		logger: o.logger,
		clock:  o.clock,
		client: client,
		cache:  c,
		poller: poller.New(c,
			poller.WithClock(o.clock),
			poller.WithLogger(o.logger),
		),
		store: store.New(backend,
			store.WithLogger(o.logger),
			store.WithDefaultPreferences(cfg.DefaultPreferences()),
		),
		resources: make(map[*Resource]struct{}),
		feeds:     make(map[*PaginatedFeed]struct{}),
	}
}

// Cache exposes the shared cache for read-only inspection.
func (s *Session) Cache() *cache.Cache {
	return s.cache
}

func (s *Session) Config() *config.Config {
	return s.cfg
}

// UseWatchlist returns the persisted watchlist.
func (s *Session) UseWatchlist() *store.IDSet {
	return s.store.Watchlist()
}

// UseSavedArticles returns the persisted set of saved news item ids.
func (s *Session) UseSavedArticles() *store.IDSet {
	return s.store.SavedArticles()
}

func (s *Session) UseRecentViews() *store.RecentViews {
	return s.store.RecentViews()
}

func (s *Session) UsePreferences() *store.Preferences {
	return s.store.Preferences()
}

// ViewOptions selects a derived view. SavedOnly restricts the result to items
// in the saved articles collection.
type ViewOptions struct {
	Search    string
	Sources   []view.SourceRef
	Sort      view.SortKey
	SavedOnly bool
}

// UseDerivedView filters and orders items without touching the input.
func (s *Session) UseDerivedView(items []feed.Item, opts ViewOptions) []feed.Item {
	q := view.Query{
		Search:  opts.Search,
		Sources: opts.Sources,
		Sort:    opts.Sort,
	}
	if opts.SavedOnly {
		q.Saved = s.store.SavedArticles().Set()
	}
	return view.Apply(items, q)
}

// Close releases every resource and feed still open and waits for in-flight
// polls to finish. The session cannot be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	resources := make([]*Resource, 0, len(s.resources))
	for r := range s.resources {
		resources = append(resources, r)
	}
	feeds := make([]*PaginatedFeed, 0, len(s.feeds))
	for f := range s.feeds {
		feeds = append(feeds, f)
	}
	s.mu.Unlock()

	for _, r := range resources {
		r.Close()
	}
	for _, f := range feeds {
		f.Close()
	}
	s.poller.Close()
	s.logger.Debug("session closed", "resources", len(resources), "feeds", len(feeds))
}

func (s *Session) track(r *Resource, f *PaginatedFeed) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if r != nil {
		s.resources[r] = struct{}{}
	}
	if f != nil {
		s.feeds[f] = struct{}{}
	}
	return true
}

func (s *Session) untrack(r *Resource, f *PaginatedFeed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, r)
	delete(s.feeds, f)
}

// offer delivers v on a one-slot channel, replacing an unread value.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
