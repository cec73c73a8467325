package indexer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	maxRetryDelay  = 30 * time.Second
	rateLimitDelay = 2 * time.Second
)

// JSON-RPC codes that will fail the same way on every attempt.
var permanentCodes = map[int]bool{
	-32600: true, // invalid request
	-32601: true, // method not found
	-32602: true, // invalid params
}

// retryable reports whether another attempt of an RPC call could succeed.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && permanentCodes[rpcErr.ErrorCode()] {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests, httpErr.StatusCode == http.StatusRequestTimeout:
			return true
		case httpErr.StatusCode >= 400 && httpErr.StatusCode < 500:
			return false
		}
	}
	return true
}

// nextDelay doubles delay up to maxRetryDelay. A rate-limited node gets at
// least rateLimitDelay.
func nextDelay(err error, delay time.Duration) time.Duration {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests && delay < rateLimitDelay {
		delay = rateLimitDelay
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// withRetry runs the RPC call op, retrying transient failures at most
// maxRetries times.
func withRetry(ctx context.Context, logger *zap.Logger, op string, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		wait := nextDelay(err, delay)
		logger.Warn("rpc call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = wait * 2
	}
}
