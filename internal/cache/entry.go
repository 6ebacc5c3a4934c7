package cache

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/codebysope/crypto-checker/internal/resource"
)

type Status string

const (
	StatusEmpty   Status = "empty"
	StatusLoading Status = "loading"
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale"
	StatusError   Status = "error"
)

// Entry is an immutable snapshot of one cache slot.
//
// Status is derived from the clock at read time: a value younger than
// StaleAfter is fresh, an older one is stale but still served. Err holds the
// last refresh failure and is cleared by the next success.
type Entry struct {
	Key        resource.Key
	Value      json.RawMessage
	FetchedAt  time.Time
	Status     Status
	Err        error
	StaleAfter time.Duration
	// Fetching is true while a refresh for Key is in flight.
	Fetching bool
}

func (e Entry) HasValue() bool {
	return e.Value != nil
}

// Age is the time since the value was fetched, or 0 without a value.
func (e Entry) Age(now time.Time) time.Duration {
	if e.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(e.FetchedAt)
}

// Decode unmarshals the held value into v. It is a no-op without a value.
func (e Entry) Decode(v any) error {
	if !e.HasValue() {
		return nil
	}
	return json.Unmarshal(e.Value, v)
}

func (e Entry) clone() Entry {
	e.Value = bytes.Clone(e.Value)
	return e
}

type slot struct {
	key       resource.Key
	value     json.RawMessage
	fetchedAt time.Time
	err       error
	inflight  int
	// issued is the last sequence number handed to a fetch; applied is the
	// last one whose completion was written.
	issued  uint64
	applied uint64
	waiters int
}
