package errkind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorIsMatchesSentinelAndCause(t *testing.T) {
	err := New(UpstreamFailure, "fetch top", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("refreshing: %w", err)

	if !errors.Is(wrapped, ErrUpstreamFailure) {
		t.Error("expected wrapped error to match ErrUpstreamFailure")
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("expected wrapped error to match its cause")
	}
	if errors.Is(wrapped, ErrTimeout) {
		t.Error("did not expect a match for ErrTimeout")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   Kind
		wantOK bool
	}{
		{"typed", New(ClientRequest, "", nil), ClientRequest, true},
		{"wrapped typed", fmt.Errorf("x: %w", New(StorageWrite, "save", io.EOF)), StorageWrite, true},
		{"bare sentinel", fmt.Errorf("x: %w", ErrTimeout), Timeout, true},
		{"unclassified", io.EOF, 0, false},
	}
	for _, tt := range tests {
		got, ok := KindOf(tt.err)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s: KindOf = (%v, %v), want (%v, %v)", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", New(Timeout, "", nil), true},
		{"transient", New(TransientUpstream, "", nil), true},
		{"client", New(ClientRequest, "", nil), false},
		{"terminal", New(UpstreamFailure, "", nil), false},
		{"network", io.ErrUnexpectedEOF, true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("%s: Retryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(FeedFetchFailure, "load page 2", io.EOF)
	want := "load page 2: feed fetch failure: EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
