package requestqueue

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/brightcrawl/rqueue/internal/requestid"
)

type queryHeadResult struct {
	wasLimitReached    bool
	prevLimit          int
	queueModifiedAt    time.Time
	queryStartedAt     time.Time
	hadMultipleClients bool
}

// ensureHeadIsNonEmpty fills the head window from the remote service when
// it's empty, per §4.5. The returned bool is not "is the head non-empty";
// it is whether the fetch converged (true) or gave up after
// maxQueriesForConsistency retries while waiting for consistency (false,
// a permitted false negative). Callers that care whether the head is
// non-empty check the window directly after calling this.
func (c *Coordinator) ensureHeadIsNonEmpty(ctx context.Context, consistency bool, limit *int, iteration int) (bool, error) {
	c.mu.Lock()
	if c.headWindow.Len() > 0 {
		c.mu.Unlock()
		return true, nil
	}

	effectiveLimit := 0
	if limit != nil {
		effectiveLimit = *limit
	} else {
		effectiveLimit = len(c.inProgress) * queryHeadBuffer
		if effectiveLimit < queryHeadMinLength {
			effectiveLimit = queryHeadMinLength
		}
	}

	inFlight := c.queryHeadInFlight
	if inFlight == nil {
		inFlight = &inFlightHeadQuery{done: make(chan struct{})}
		c.queryHeadInFlight = inFlight
		go c.runQueryHead(ctx, inFlight, effectiveLimit)
	}
	c.mu.Unlock()

	<-inFlight.done
	if inFlight.err != nil {
		return false, inFlight.err
	}
	result := inFlight.result

	if result.prevLimit >= requestQueueHeadMaxLimit {
		c.log.Warn("requestqueue: head query limit reached platform maximum", zap.Int("limit", result.prevLimit))
	}

	c.mu.Lock()
	headEmpty := c.headWindow.Len() == 0
	assumedTotal := c.assumedTotalCount
	assumedHandled := c.assumedHandledCount
	c.mu.Unlock()

	shouldRetryHigherLimit := headEmpty && result.wasLimitReached && result.prevLimit < requestQueueHeadMaxLimit
	databaseConsistent := result.queryStartedAt.Sub(result.queueModifiedAt) >= apiProcessedRequestsDelay
	locallyConsistent := !result.hadMultipleClients && assumedTotal <= assumedHandled
	shouldRetryForConsistency := consistency && !databaseConsistent && !locallyConsistent

	if !shouldRetryHigherLimit && !shouldRetryForConsistency {
		return true, nil
	}
	if !shouldRetryHigherLimit && shouldRetryForConsistency && iteration > maxQueriesForConsistency {
		return false, nil
	}

	nextLimit := result.prevLimit
	if shouldRetryHigherLimit {
		nextLimit = int(math.Round(float64(result.prevLimit) * 1.5))
	}

	if shouldRetryForConsistency {
		wait := apiProcessedRequestsDelay - result.queryStartedAt.Sub(result.queueModifiedAt)
		if wait < 0 {
			wait = 0
		}
		c.clock.Sleep(wait)
	}

	return c.ensureHeadIsNonEmpty(ctx, consistency, &nextLimit, iteration+1)
}

// runQueryHead executes the shared in-flight head fetch and publishes its
// result to every caller awaiting inFlight.done, clearing the handle so the
// next call starts a fresh fetch.
func (c *Coordinator) runQueryHead(ctx context.Context, inFlight *inFlightHeadQuery, limit int) {
	result, err := c.queryHead(ctx, limit)
	inFlight.result = result
	inFlight.err = err
	close(inFlight.done)

	c.mu.Lock()
	if c.queryHeadInFlight == inFlight {
		c.queryHeadInFlight = nil
	}
	c.mu.Unlock()
}

func (c *Coordinator) queryHead(ctx context.Context, limit int) (queryHeadResult, error) {
	startedAt := c.clock.Now()

	listResult, err := c.client.ListHead(ctx, limit)
	if err != nil {
		return queryHeadResult{}, err
	}

	c.mu.Lock()
	for _, item := range listResult.Items {
		if c.isInProgress(item.ID) || c.recentlyHandled.Contains(item.ID) {
			continue
		}
		c.headWindow.Append(item.ID, item.ID)
		c.requestCache.Put(requestid.Derive(item.UniqueKey), CachedRequestInfo{
			ID:        item.ID,
			UniqueKey: item.UniqueKey,
		})
	}
	c.mu.Unlock()

	return queryHeadResult{
		wasLimitReached:    len(listResult.Items) >= limit,
		prevLimit:          limit,
		queueModifiedAt:    listResult.QueueModifiedAt,
		queryStartedAt:     startedAt,
		hadMultipleClients: listResult.HadMultipleClients,
	}, nil
}

// maybeAddRequestToQueueHead inserts id into the head window per §4.5's
// forefront/threshold rule. The caller must hold mu.
func (c *Coordinator) maybeAddRequestToQueueHead(id string, forefront bool) {
	if forefront {
		c.headWindow.Forefront(id, id)
		return
	}
	if c.assumedTotalCount < queryHeadMinLength {
		c.headWindow.Append(id, id)
	}
}
