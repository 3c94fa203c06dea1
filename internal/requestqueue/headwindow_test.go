package requestqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightcrawl/rqueue/internal/clock/manual"
	"github.com/brightcrawl/rqueue/internal/rqclient"
)

// inconsistentHeadClient always reports an empty, just-modified head with
// multiple clients, so ensureHeadIsNonEmpty's consistency retry never
// converges and must eventually give up.
type inconsistentHeadClient struct {
	noopClient
	clock   *manual.Clock
	queries int
}

func (c *inconsistentHeadClient) ListHead(_ context.Context, limit int) (*rqclient.HeadListResult, error) {
	c.queries++
	return &rqclient.HeadListResult{
		QueueModifiedAt:    c.clock.Now(),
		HadMultipleClients: true,
	}, nil
}

func TestEnsureHeadIsNonEmptyGivesUpAfterConsistencyRetryCap(t *testing.T) {
	t.Parallel()

	c := manual.New(time.Unix(0, 0))
	fake := &inconsistentHeadClient{clock: c}
	coord, err := New(Config{ID: "q1", Client: fake, Clock: c})
	require.NoError(t, err)

	// Advance the clock alongside the coordinator's own consistency sleeps
	// so the retry loop doesn't block forever waiting on an idle manual clock.
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				c.Advance(apiProcessedRequestsDelay)
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer close(done)

	result, err := coord.ensureHeadIsNonEmpty(context.Background(), true, nil, 0)
	require.NoError(t, err)
	assert.False(t, result)
	assert.GreaterOrEqual(t, fake.queries, maxQueriesForConsistency)
}

// delayDuringQueryClient simulates a remote ListHead call that itself takes
// as long as the consistency delay: the clock advances between when the
// query starts and when it returns its (now-stale-looking) queueModifiedAt.
type delayDuringQueryClient struct {
	noopClient
	clock *manual.Clock
}

func (c *delayDuringQueryClient) ListHead(_ context.Context, _ int) (*rqclient.HeadListResult, error) {
	modAt := c.clock.Now()
	c.clock.Advance(apiProcessedRequestsDelay)
	return &rqclient.HeadListResult{QueueModifiedAt: modAt, HadMultipleClients: false}, nil
}

func TestEnsureHeadIsNonEmptyAnchorsConsistencyOnQueryStartTime(t *testing.T) {
	t.Parallel()

	c := manual.New(time.Unix(0, 0))
	fake := &delayDuringQueryClient{clock: c}
	coord, err := New(Config{ID: "q1", Client: fake, Clock: c})
	require.NoError(t, err)

	// assumedTotal > assumedHandled keeps locallyConsistent false, so the
	// outcome turns entirely on the databaseConsistent calculation.
	coord.mu.Lock()
	coord.assumedTotalCount = 1
	coord.mu.Unlock()

	// Passing an iteration already past the retry cap means the function
	// returns immediately after this single query, based solely on how it
	// judged database consistency for that one query.
	result, err := coord.ensureHeadIsNonEmpty(context.Background(), true, nil, maxQueriesForConsistency+1)
	require.NoError(t, err)
	assert.False(t, result, "a query that took as long as the consistency delay must not be judged consistent just because the clock had advanced by the time it returned")
}

func TestMaybeAddRequestToQueueHeadForefrontBecomesOldest(t *testing.T) {
	t.Parallel()

	c := manual.New(time.Unix(0, 0))
	coord, err := New(Config{ID: "q1", Client: &noopClient{}, Clock: c})
	require.NoError(t, err)

	coord.mu.Lock()
	coord.maybeAddRequestToQueueHead("r1", false)
	coord.maybeAddRequestToQueueHead("r2", true)
	k, _, ok := coord.headWindow.ShiftOldest()
	coord.mu.Unlock()

	require.True(t, ok)
	assert.Equal(t, "r2", k)
}

func TestMaybeAddRequestToQueueHeadNoopsPastMinLength(t *testing.T) {
	t.Parallel()

	c := manual.New(time.Unix(0, 0))
	coord, err := New(Config{ID: "q1", Client: &noopClient{}, Clock: c})
	require.NoError(t, err)

	coord.mu.Lock()
	coord.assumedTotalCount = queryHeadMinLength
	coord.maybeAddRequestToQueueHead("r1", false)
	size := coord.headWindow.Len()
	coord.mu.Unlock()

	assert.Equal(t, 0, size)
}
