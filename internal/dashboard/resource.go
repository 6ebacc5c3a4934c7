package dashboard

import (
	"context"
	"sync"

	"github.com/codebysope/crypto-checker/internal/cache"
	"github.com/codebysope/crypto-checker/internal/poller"
	"github.com/codebysope/crypto-checker/internal/resource"
)

// Resource is one consumer's live view of a cached key. While open it keeps
// the key polled at the configured interval.
type Resource struct {
	s      *Session
	key    resource.Key
	handle poller.Handle

	mu      sync.Mutex
	changes chan cache.Entry
	unsub   func()
	closed  bool
}

// UseResource subscribes to kind with params. The first consumer of a key
// triggers an immediate fetch; every consumer shares the result.
func (s *Session) UseResource(kind resource.Kind, params map[string]string) *Resource {
	key := resource.NewKey(kind, params)
	r := &Resource{
		s:       s,
		key:     key,
		changes: make(chan cache.Entry, 1),
	}
	if !s.track(r, nil) {
		r.closed = true
		close(r.changes)
		return r
	}

	id := key.String()
	r.unsub = s.cache.Subscribe(func(e cache.Entry) {
		if e.Key.String() == id {
			r.publish(e)
		}
	})
	r.handle = s.poller.Subscribe(key, s.cfg.PollInterval(key), nil)
	return r
}

func (r *Resource) Key() resource.Key {
	return r.key
}

// Entry returns the current cache snapshot for the key.
func (r *Resource) Entry() cache.Entry {
	return r.s.cache.Get(r.key)
}

// Refresh forces a fetch, joining one already in flight.
func (r *Resource) Refresh(ctx context.Context) (cache.Entry, error) {
	return r.s.cache.Refresh(ctx, r.key)
}

// Changes delivers the latest entry whenever the key starts or finishes a
// refresh. Unread updates are coalesced; the channel is closed by Close.
func (r *Resource) Changes() <-chan cache.Entry {
	return r.changes
}

// SetPolling pauses or resumes the recurring refresh of the key for every
// consumer sharing it.
func (r *Resource) SetPolling(enabled bool) {
	r.s.poller.SetEnabled(r.key, enabled)
}

// Close stops this consumer's subscription. Other consumers of the key keep
// polling.
func (r *Resource) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.changes)
	r.mu.Unlock()

	r.unsub()
	r.s.poller.Unsubscribe(r.handle)
	r.s.untrack(r, nil)
}

func (r *Resource) publish(e cache.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	offer(r.changes, e)
}

// Decode unmarshals the resource's current value into T. ok is false while
// nothing has been fetched yet; the entry's error, if any, is returned
// alongside whatever stale value is held.
func Decode[T any](r *Resource) (v T, ok bool, err error) {
	e := r.Entry()
	if !e.HasValue() {
		return v, false, e.Err
	}
	if err := e.Decode(&v); err != nil {
		return v, false, err
	}
	return v, true, e.Err
}
