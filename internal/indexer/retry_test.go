package indexer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

type codeError struct {
	code int
}

func (e codeError) Error() string  { return fmt.Sprintf("rpc error %d", e.code) }
func (e codeError) ErrorCode() int { return e.code }

func TestWithRetryRecoversTransientFailure(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), nil, "getSlot", 3, time.Nanosecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("calls %d err %v, want 3 calls and success", calls, err)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), nil, "getSlot", 2, time.Nanosecond, func(context.Context) error {
		calls++
		return errors.New("node unavailable")
	})
	if err == nil || calls != 3 {
		t.Fatalf("calls %d err %v, want 3 calls and failure", calls, err)
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	invalid := fmt.Errorf("getTransaction: %w", codeError{code: -32602})
	err := withRetry(context.Background(), nil, "getTransaction", 5, time.Nanosecond, func(context.Context) error {
		calls++
		return invalid
	})
	if !errors.Is(err, invalid) || calls != 1 {
		t.Fatalf("calls %d err %v, want a single attempt", calls, err)
	}
}

func TestWithRetryHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, nil, "getSlot", 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("calls %d err %v, want cancellation after one attempt", calls, err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("eof"), true},
		{codeError{code: -32005}, true},
		{codeError{code: -32601}, false},
		{rpc.HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{rpc.HTTPError{StatusCode: http.StatusBadGateway}, true},
		{rpc.HTTPError{StatusCode: http.StatusUnauthorized}, false},
		{context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestNextDelayBacksOffOnRateLimit(t *testing.T) {
	limited := rpc.HTTPError{StatusCode: http.StatusTooManyRequests}
	if got := nextDelay(limited, 100*time.Millisecond); got != rateLimitDelay {
		t.Fatalf("rate limited delay %v, want %v", got, rateLimitDelay)
	}
	if got := nextDelay(errors.New("eof"), 100*time.Millisecond); got != 100*time.Millisecond {
		t.Fatalf("plain delay %v", got)
	}
	if got := nextDelay(errors.New("eof"), time.Hour); got != maxRetryDelay {
		t.Fatalf("capped delay %v, want %v", got, maxRetryDelay)
	}
}
