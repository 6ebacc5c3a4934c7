// Package errkind defines the failure taxonomy shared by the fetch, cache,
// feed and store layers.
package errkind

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure by how callers are expected to react to it.
type Kind int

const (
	// Timeout means a single fetch attempt exceeded its bound. Retryable.
	Timeout Kind = iota + 1
	// TransientUpstream covers 5xx responses and network-level failures. Retryable.
	TransientUpstream
	// ClientRequest covers 4xx-equivalent failures. Never retried.
	ClientRequest
	// UpstreamFailure is terminal: retries were exhausted or the request was rejected.
	UpstreamFailure
	// FeedFetchFailure means one page of a paginated feed failed to load.
	FeedFetchFailure
	// StorageRead means durable content was unreadable or corrupt.
	StorageRead
	// StorageWrite means a durable write failed; in-memory state stays authoritative.
	StorageWrite
)

var (
	ErrTimeout           = errors.New("timeout")
	ErrTransientUpstream = errors.New("transient upstream error")
	ErrClientRequest     = errors.New("client request error")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrFeedFetchFailure  = errors.New("feed fetch failure")
	ErrStorageRead       = errors.New("storage read error")
	ErrStorageWrite      = errors.New("storage write error")
)

var sentinels = map[Kind]error{
	Timeout:           ErrTimeout,
	TransientUpstream: ErrTransientUpstream,
	ClientRequest:     ErrClientRequest,
	UpstreamFailure:   ErrUpstreamFailure,
	FeedFetchFailure:  ErrFeedFetchFailure,
	StorageRead:       ErrStorageRead,
	StorageWrite:      ErrStorageWrite,
}

func (k Kind) String() string {
	if err, ok := sentinels[k]; ok {
		return err.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind together with the operation that failed and its cause.
//
// errors.Is matches both the cause chain and the sentinel for Kind, so callers
// can test errors.Is(err, errkind.ErrUpstreamFailure) without unwrapping.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the outermost classification found in err's chain.
func KindOf(err error) (Kind, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind, true
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return 0, false
}

// Retryable reports whether a fetch attempt that failed with err may be retried.
// Unclassified errors are treated as network-level failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	return kind == Timeout || kind == TransientUpstream
}
