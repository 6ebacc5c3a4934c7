// Package fetch executes logical upstream requests with a per-attempt timeout
// and a deterministic exponential backoff between attempts.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codebysope/crypto-checker/internal/errkind"
	"github.com/codebysope/crypto-checker/internal/logging"
	"github.com/codebysope/crypto-checker/internal/resource"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// Source is the abstract upstream capability: GET semantics over a resource
// key returning a JSON-shaped payload.
//
// Implementations should return errkind ClientRequest errors for rejected
// requests so they are not retried. Any other error is treated as transient.
type Source interface {
	Fetch(ctx context.Context, key resource.Key) (json.RawMessage, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key resource.Key) (json.RawMessage, error)

func (f SourceFunc) Fetch(ctx context.Context, key resource.Key) (json.RawMessage, error) {
	return f(ctx, key)
}

// Request is one logical fetch. A zero Timeout uses the client default.
type Request struct {
	Key     resource.Key
	Timeout time.Duration
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Client wraps a Source with timeout and retry policy. It knows nothing about
// caching or polling.
type Client struct {
	source     Source
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	wait       WaitFunc
	logger     *slog.Logger
}

type Option func(*Client)

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries sets the total number of attempts per request.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the base and cap of the delay schedule.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// WithWait replaces the sleep between attempts.
func WithWait(wait WaitFunc) Option {
	return func(c *Client) {
		if wait != nil {
			c.wait = wait
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(source Source, opts ...Option) *Client {
	c := &Client{
		source:     source,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		wait:       sleep,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch runs req against the source, retrying transient failures.
//
// Every terminal outcome is an errkind UpstreamFailure wrapping the last
// error. Client request errors end the loop after the first attempt.
func (c *Client) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	op := "fetch " + req.Key.String()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	delays := Schedule(c.maxRetries, c.baseDelay, c.maxDelay)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := delays[attempt-2]
			c.logger.Debug("retrying fetch",
				"key", req.Key.String(),
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			if err := c.wait(ctx, delay); err != nil {
				return nil, errkind.New(errkind.UpstreamFailure, op, errors.Join(lastErr, err))
			}
		}

		payload, err := c.attempt(ctx, req.Key, timeout)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, errkind.New(errkind.UpstreamFailure, op, errors.Join(lastErr, ctx.Err()))
		}
		if !errkind.Retryable(err) {
			return nil, errkind.New(errkind.UpstreamFailure, op, err)
		}
	}

	c.logger.Warn("fetch retries exhausted",
		"key", req.Key.String(),
		"attempts", c.maxRetries,
		"error", lastErr,
	)
	return nil, errkind.New(errkind.UpstreamFailure, fmt.Sprintf("%s after %d attempts", op, c.maxRetries), lastErr)
}

func (c *Client) attempt(ctx context.Context, key resource.Key, timeout time.Duration) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := c.source.Fetch(attemptCtx, key)
	if err == nil {
		return payload, nil
	}
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, errkind.New(errkind.Timeout, fmt.Sprintf("attempt exceeded %s", timeout), err)
	}
	return nil, err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
