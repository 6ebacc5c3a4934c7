// Package store persists user-owned collections (watchlist, saved articles,
// recent views, preferences) through a durable key/value backend.
//
// Collections load lazily on first access and write through on every
// mutation. A failed write is reported but the in-memory value stays
// authoritative for the rest of the session.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/codebysope/crypto-checker/internal/errkind"
	"github.com/codebysope/crypto-checker/internal/logging"
)

const (
	NamespaceWatchlist     = "watchlist"
	NamespaceSavedArticles = "savedArticles"
	NamespaceRecentViews   = "recentViews"
	NamespacePreferences   = "preferences"
)

// Backend is the durable key/value capability.
type Backend interface {
	Get(namespace string) (value string, ok bool, err error)
	Set(namespace, value string) error
}

// MemoryBackend is a process-local Backend.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]string
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (m *MemoryBackend) Get(namespace string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[namespace]
	return v, ok, nil
}

func (m *MemoryBackend) Set(namespace, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[namespace] = value
	return nil
}

type Store struct {
	backend  Backend
	logger   *slog.Logger
	defaults map[string]any

	mu          sync.Mutex
	watchlist   *IDSet
	saved       *IDSet
	recent      *RecentViews
	preferences *Preferences
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultPreferences sets the values merged under stored preferences.
func WithDefaultPreferences(defaults map[string]any) Option {
	return func(s *Store) {
		s.defaults = maps.Clone(defaults)
	}
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load decodes namespace into v. Absent content leaves v untouched and
// returns nil. Unreadable content returns ErrStorageRead; v must then be
// treated as unspecified, so callers decode into a scratch value.
func (s *Store) Load(namespace string, v any) error {
	_, err := s.load(namespace, v)
	return err
}

func (s *Store) load(namespace string, v any) (bool, error) {
	raw, ok, err := s.backend.Get(namespace)
	if err != nil {
		return false, errkind.New(errkind.StorageRead, "load "+namespace, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, errkind.New(errkind.StorageRead, "load "+namespace, fmt.Errorf("decoding: %w", err))
	}
	return true, nil
}

// Save encodes v and writes it to namespace.
func (s *Store) Save(namespace string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errkind.New(errkind.StorageWrite, "save "+namespace, fmt.Errorf("encoding: %w", err))
	}
	if err := s.backend.Set(namespace, string(data)); err != nil {
		return errkind.New(errkind.StorageWrite, "save "+namespace, err)
	}
	return nil
}

// Watchlist returns the session's watchlist.
func (s *Store) Watchlist() *IDSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchlist == nil {
		s.watchlist = &IDSet{store: s, namespace: NamespaceWatchlist}
	}
	return s.watchlist
}

// SavedArticles returns the ids of news items the user bookmarked.
func (s *Store) SavedArticles() *IDSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = &IDSet{store: s, namespace: NamespaceSavedArticles}
	}
	return s.saved
}

func (s *Store) RecentViews() *RecentViews {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recent == nil {
		s.recent = &RecentViews{store: s}
	}
	return s.recent
}

func (s *Store) Preferences() *Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preferences == nil {
		s.preferences = &Preferences{store: s, defaults: maps.Clone(s.defaults)}
	}
	return s.preferences
}

// loadOrDefault decodes namespace into a scratch value, returning def when
// the content is absent or unreadable.
func loadOrDefault[T any](s *Store, namespace string, def T) T {
	var scratch T
	found, err := s.load(namespace, &scratch)
	if err != nil {
		s.logger.Warn("storage read failed, using defaults", "namespace", namespace, "error", err)
		return def
	}
	if !found {
		return def
	}
	return scratch
}

func (s *Store) persist(namespace string, v any) error {
	if err := s.Save(namespace, v); err != nil {
		s.logger.Warn("storage write failed, keeping in-memory state", "namespace", namespace, "error", err)
		return err
	}
	return nil
}
