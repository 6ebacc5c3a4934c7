package store

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// MaxRecentViews caps the recent views list.
const MaxRecentViews = 5

// IDSet is an ordered set of ids, oldest first.
type IDSet struct {
	store     *Store
	namespace string

	mu     sync.Mutex
	loaded bool
	ids    []string
}

func (w *IDSet) loadLocked() {
	if w.loaded {
		return
	}
	w.loaded = true
	ids := loadOrDefault[[]string](w.store, w.namespace, nil)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			w.ids = append(w.ids, id)
		}
	}
}

func (w *IDSet) IDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadLocked()
	return slices.Clone(w.ids)
}

func (w *IDSet) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadLocked()
	return slices.Contains(w.ids, id)
}

// Set returns the ids as a membership map.
func (w *IDSet) Set() map[string]bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadLocked()
	out := make(map[string]bool, len(w.ids))
	for _, id := range w.ids {
		out[id] = true
	}
	return out
}

// Add appends id. Adding a present id does nothing.
func (w *IDSet) Add(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadLocked()
	if id == "" || slices.Contains(w.ids, id) {
		return nil
	}
	w.ids = append(w.ids, id)
	return w.store.persist(w.namespace, w.ids)
}

// Remove deletes id. Removing an absent id does nothing.
func (w *IDSet) Remove(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadLocked()
	i := slices.Index(w.ids, id)
	if i < 0 {
		return nil
	}
	w.ids = slices.Delete(w.ids, i, i+1)
	return w.store.persist(w.namespace, w.ids)
}

// Toggle adds id when absent and removes it otherwise. It reports whether id
// is present afterwards.
func (w *IDSet) Toggle(id string) (bool, error) {
	if w.Contains(id) {
		return false, w.Remove(id)
	}
	return true, w.Add(id)
}

// RecentView is one entry of the recently viewed coins list.
type RecentView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Symbol   string    `json:"symbol,omitempty"`
	Image    string    `json:"image,omitempty"`
	ViewedAt time.Time `json:"viewed_at"`
}

// RecentViews is most-recent-first and holds at most MaxRecentViews entries.
type RecentViews struct {
	store *Store

	mu     sync.Mutex
	loaded bool
	items  []RecentView
}

func (r *RecentViews) loadLocked() {
	if r.loaded {
		return
	}
	r.loaded = true
	items := loadOrDefault[[]RecentView](r.store, NamespaceRecentViews, nil)
	for _, item := range items {
		if item.ID == "" || slices.ContainsFunc(r.items, func(v RecentView) bool { return v.ID == item.ID }) {
			continue
		}
		r.items = append(r.items, item)
		if len(r.items) == MaxRecentViews {
			break
		}
	}
}

func (r *RecentViews) Items() []RecentView {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	return slices.Clone(r.items)
}

// Add moves v to the front, dropping any earlier entry with the same id and
// evicting the oldest entry beyond the cap.
func (r *RecentViews) Add(v RecentView) error {
	if v.ID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()

	items := make([]RecentView, 0, MaxRecentViews)
	items = append(items, v)
	for _, item := range r.items {
		if item.ID != v.ID {
			items = append(items, item)
		}
	}
	if len(items) > MaxRecentViews {
		items = items[:MaxRecentViews]
	}
	r.items = items
	return r.store.persist(NamespaceRecentViews, r.items)
}

// Preferences is a key/value map layered over defaults. Keys added to the
// defaults later show up for users whose stored map predates them.
type Preferences struct {
	store    *Store
	defaults map[string]any

	mu     sync.Mutex
	loaded bool
	values map[string]any
}

func (p *Preferences) loadLocked() {
	if p.loaded {
		return
	}
	p.loaded = true
	stored := loadOrDefault[map[string]any](p.store, NamespacePreferences, nil)
	p.values = maps.Clone(p.defaults)
	if p.values == nil {
		p.values = make(map[string]any)
	}
	maps.Copy(p.values, stored)
}

// All returns a copy of the merged preferences.
func (p *Preferences) All() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadLocked()
	return maps.Clone(p.values)
}

func (p *Preferences) Get(key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadLocked()
	v, ok := p.values[key]
	return v, ok
}

// Update sets key and writes the whole map through.
func (p *Preferences) Update(key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadLocked()
	p.values[key] = value
	return p.store.persist(NamespacePreferences, p.values)
}
