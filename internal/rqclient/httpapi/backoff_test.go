package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brightcrawl/rqueue/internal/rqclient"
)

func TestBackoffPolicyShouldRetryRetriesServerErrors(t *testing.T) {
	t.Parallel()

	p := NewBackoffPolicy()
	err := &rqclient.Failure{StatusCode: 503}
	assert.True(t, p.ShouldRetry(err, 1))
}

func TestBackoffPolicyShouldRetryNeverRetriesNotFound(t *testing.T) {
	t.Parallel()

	p := NewBackoffPolicy()
	assert.False(t, p.ShouldRetry(rqclient.ErrNotFound, 1))
}

func TestBackoffPolicyShouldRetryStopsAtMaxAttempts(t *testing.T) {
	t.Parallel()

	p := NewBackoffPolicy()
	assert.False(t, p.ShouldRetry(&rqclient.Failure{StatusCode: 503}, p.MaxAttempts()))
}

func TestBackoffPolicyBackoffIsBoundedByMaxDelay(t *testing.T) {
	t.Parallel()

	p := NewBackoffPolicy()
	for attempt := 1; attempt <= p.MaxAttempts(); attempt++ {
		d := p.Backoff(attempt)
		assert.LessOrEqual(t, d, p.maxDelay)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}
