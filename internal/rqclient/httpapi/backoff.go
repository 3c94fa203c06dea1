package httpapi

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"

	"github.com/brightcrawl/rqueue/internal/rqclient"
)

// BackoffPolicy implements the transport-layer retry rule from the
// coordinator's error handling design: exponential backoff with full
// jitter, base 500ms, factor 2, capped at 8 attempts.
type BackoffPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewBackoffPolicy builds the default policy.
func NewBackoffPolicy() *BackoffPolicy {
	return &BackoffPolicy{
		maxAttempts: 8,
		baseDelay:   500 * time.Millisecond,
		maxDelay:    30 * time.Second,
	}
}

// ShouldRetry decides whether attempt (1-based) should be retried for err.
// Benign not-found and client (programmer) errors are never retried.
func (p *BackoffPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, rqclient.ErrNotFound) {
		return false
	}
	var failure *rqclient.Failure
	if errors.As(err, &failure) {
		return failure.StatusCode >= 500 || failure.StatusCode == 429
	}
	if errors.Is(err, rqclient.ErrInvalidBody) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// Backoff returns the full-jitter wait duration before the given attempt
// (1-based): a random value in [0, min(maxDelay, base*2^(attempt-1))).
func (p *BackoffPolicy) Backoff(attempt int) time.Duration {
	exp := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(p.maxDelay) {
		exp = float64(p.maxDelay)
	}
	return p.fullJitter(time.Duration(exp))
}

func (p *BackoffPolicy) fullJitter(upperBound time.Duration) time.Duration {
	if upperBound <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(upperBound)))
	if err != nil {
		return upperBound / 2
	}
	return time.Duration(n.Int64())
}

// MaxAttempts reports the configured attempt ceiling.
func (p *BackoffPolicy) MaxAttempts() int {
	return p.maxAttempts
}
