package requestqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightcrawl/rqueue/internal/clock"
	"github.com/brightcrawl/rqueue/internal/deferred"
	idgen "github.com/brightcrawl/rqueue/internal/id/uuid"
	"github.com/brightcrawl/rqueue/internal/lru"
	"github.com/brightcrawl/rqueue/internal/orderedmap"
	"github.com/brightcrawl/rqueue/internal/requestid"
	"github.com/brightcrawl/rqueue/internal/rqclient"
)

// Config configures a Coordinator.
type Config struct {
	ID                        string
	Name                      string
	Client                    rqclient.Client
	Clock                     clock.Clock
	Logger                    *zap.Logger
	MaxCachedRequests         int
	RecentlyHandledCacheSize  int
	InternalTimeoutSecs       int
}

// Coordinator is the client-side request-queue coordinator: the public
// surface application code calls (Add, Get, FetchNext, MarkHandled,
// Reclaim, IsEmpty, IsFinished, Drop). All state is private to one
// instance and serialized by mu, per the single-owner concurrency model.
type Coordinator struct {
	mu sync.Mutex

	id        string
	name      string
	clientKey string

	client rqclient.Client
	clock  clock.Clock
	log    *zap.Logger

	lastActivity        time.Time
	internalTimeoutSecs int

	assumedTotalCount   int64
	assumedHandledCount int64

	headWindow      *orderedmap.Map[string, string]
	inProgress      map[string]struct{}
	recentlyHandled *lru.Cache[string, struct{}]
	requestCache    *lru.Cache[string, CachedRequestInfo]

	queryHeadInFlight *inFlightHeadQuery
}

type inFlightHeadQuery struct {
	done   chan struct{}
	result queryHeadResult
	err    error
}

// New constructs a Coordinator. The caller (the storage-open façade) is
// responsible for choosing the client implementation (remote or local).
func New(cfg Config) (*Coordinator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("requestqueue: client is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("requestqueue: clock is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	maxCached := cfg.MaxCachedRequests
	if maxCached <= 0 {
		maxCached = defaultMaxCachedRequests
	}
	recentlySize := cfg.RecentlyHandledCacheSize
	if recentlySize <= 0 {
		recentlySize = defaultRecentlyHandledCacheSize
	}
	timeout := cfg.InternalTimeoutSecs
	if timeout <= 0 {
		timeout = defaultInternalTimeoutSecs
	}

	clientKey, err := idgen.New().NewClientKey()
	if err != nil {
		return nil, fmt.Errorf("requestqueue: generate client key: %w", err)
	}

	c := &Coordinator{
		id:                  cfg.ID,
		name:                cfg.Name,
		clientKey:           clientKey,
		client:              cfg.Client,
		clock:               cfg.Clock,
		log:                 log,
		lastActivity:        cfg.Clock.Now(),
		internalTimeoutSecs: timeout,
		headWindow:          orderedmap.New[string, string](),
		inProgress:          make(map[string]struct{}),
		recentlyHandled:     lru.New[string, struct{}](recentlySize),
		requestCache:        lru.New[string, CachedRequestInfo](maxCached),
	}
	return c, nil
}

// ID returns the coordinator's queue id.
func (c *Coordinator) ID() string { return c.id }

// Name returns the coordinator's queue name, which may be empty.
func (c *Coordinator) Name() string { return c.name }

func (c *Coordinator) touchActivity() {
	c.lastActivity = c.clock.Now()
}

// Add enqueues a request, deduplicating on uniqueKey. Per §4.4: returns
// wasAlreadyPresent without a remote call when the cache already has it.
func (c *Coordinator) Add(ctx context.Context, req Request, forefront bool) (*QueueOperationResult, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("requestqueue: request url is required")
	}

	c.mu.Lock()
	c.touchActivity()

	uniqueKey := req.UniqueKey
	if uniqueKey == "" {
		normalized, err := requestid.NormalizeURL(req.URL, requestid.NormalizeOptions{})
		if err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("requestqueue: normalize url: %w", err)
		}
		uniqueKey = normalized
		req.UniqueKey = uniqueKey
	}
	cacheKey := requestid.Derive(uniqueKey)

	if cached, ok := c.requestCache.Get(cacheKey); ok {
		c.mu.Unlock()
		return &QueueOperationResult{
			RequestID:         cached.ID,
			UniqueKey:         cached.UniqueKey,
			WasAlreadyPresent: true,
			WasAlreadyHandled: cached.IsHandled,
		}, nil
	}
	c.mu.Unlock()

	result, err := c.client.AddRequest(ctx, req, forefront)
	if err != nil {
		return nil, err
	}
	result.UniqueKey = uniqueKey

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestCache.Put(cacheKey, CachedRequestInfo{
		ID:                result.RequestID,
		UniqueKey:         uniqueKey,
		IsHandled:         result.WasAlreadyHandled,
		WasAlreadyHandled: result.WasAlreadyHandled,
	})

	if !result.WasAlreadyHandled && !result.WasAlreadyPresent && !c.isInProgress(result.RequestID) && !c.recentlyHandled.Contains(result.RequestID) {
		c.assumedTotalCount++
		c.maybeAddRequestToQueueHead(result.RequestID, forefront)
	}

	return result, nil
}

func (c *Coordinator) isInProgress(id string) bool {
	_, ok := c.inProgress[id]
	return ok
}

// Get fetches a request by id, returning nil (not an error) on not-found.
func (c *Coordinator) Get(ctx context.Context, requestID string) (*Request, error) {
	req, err := c.client.GetRequest(ctx, requestID)
	if err != nil {
		if err == rqclient.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// FetchNext pops the next eligible request from the head window and marks
// it in-progress. It returns (nil, nil) when there is nothing to dispatch.
func (c *Coordinator) FetchNext(ctx context.Context) (*Request, error) {
	if _, err := c.ensureHeadIsNonEmpty(ctx, false, nil, 0); err != nil {
		return nil, err
	}

	c.mu.Lock()
	nextID, _, ok := c.headWindow.ShiftOldest()
	if !ok {
		c.mu.Unlock()
		return nil, nil
	}

	if c.isInProgress(nextID) || c.recentlyHandled.Contains(nextID) {
		c.log.Warn("requestqueue: head entry already tracked, skipping", zap.String("requestId", nextID))
		c.mu.Unlock()
		return nil, nil
	}

	c.inProgress[nextID] = struct{}{}
	c.touchActivity()
	c.mu.Unlock()

	req, err := c.client.GetRequest(ctx, nextID)
	if err != nil && err != rqclient.ErrNotFound {
		c.mu.Lock()
		delete(c.inProgress, nextID)
		c.mu.Unlock()
		return nil, err
	}

	if err == rqclient.ErrNotFound || req == nil {
		id := nextID
		deferred.After(c.clock, storageConsistencyDelay, func() {
			c.mu.Lock()
			delete(c.inProgress, id)
			c.mu.Unlock()
		})
		return nil, nil
	}

	if req.IsHandled() {
		c.mu.Lock()
		c.recentlyHandled.Put(nextID, struct{}{})
		c.mu.Unlock()
		return nil, nil
	}

	return req, nil
}

// MarkHandled records a request as handled. Returns (nil, nil), not an
// error, if requestID is not in the in-progress set.
func (c *Coordinator) MarkHandled(ctx context.Context, req Request) (*QueueOperationResult, error) {
	if req.ID == "" || req.UniqueKey == "" {
		return nil, fmt.Errorf("requestqueue: id and uniqueKey are required")
	}

	c.mu.Lock()
	c.touchActivity()
	if !c.isInProgress(req.ID) {
		c.log.Warn("requestqueue: mark handled for request not in progress", zap.String("requestId", req.ID))
		c.mu.Unlock()
		return nil, nil
	}
	c.mu.Unlock()

	if req.HandledAt == nil {
		now := c.clock.Now()
		req.HandledAt = &now
	}

	result, err := c.client.UpdateRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}
	result.UniqueKey = req.UniqueKey

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inProgress, req.ID)
	c.recentlyHandled.Put(req.ID, struct{}{})
	if !result.WasAlreadyHandled {
		c.assumedHandledCount++
	}
	c.requestCache.Put(requestid.Derive(req.UniqueKey), CachedRequestInfo{
		ID:                req.ID,
		UniqueKey:         req.UniqueKey,
		IsHandled:         true,
		WasAlreadyHandled: result.WasAlreadyHandled,
	})

	return result, nil
}

// Reclaim returns a dispatched request to the queue, e.g. after a failed
// processing attempt. Returns (nil, nil) if requestID is not in progress.
func (c *Coordinator) Reclaim(ctx context.Context, req Request, forefront bool) (*QueueOperationResult, error) {
	if req.ID == "" || req.UniqueKey == "" {
		return nil, fmt.Errorf("requestqueue: id and uniqueKey are required")
	}

	c.mu.Lock()
	if !c.isInProgress(req.ID) {
		c.log.Warn("requestqueue: reclaim for request not in progress", zap.String("requestId", req.ID))
		c.mu.Unlock()
		return nil, nil
	}
	c.mu.Unlock()

	result, err := c.client.UpdateRequest(ctx, req, forefront)
	if err != nil {
		return nil, err
	}
	result.UniqueKey = req.UniqueKey

	c.mu.Lock()
	c.requestCache.Put(requestid.Derive(req.UniqueKey), CachedRequestInfo{
		ID:        req.ID,
		UniqueKey: req.UniqueKey,
	})
	c.mu.Unlock()

	id := req.ID
	deferred.After(c.clock, storageConsistencyDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.isInProgress(id) {
			delete(c.inProgress, id)
			c.maybeAddRequestToQueueHead(id, forefront)
		}
	})

	return result, nil
}

// Peek returns up to limit request ids currently buffered in the head
// window, oldest first, without dispatching them. Used by diagnostic
// tooling that wants to inspect upcoming work without affecting it.
func (c *Coordinator) Peek(ctx context.Context, limit int) ([]string, error) {
	if _, err := c.ensureHeadIsNonEmpty(ctx, false, nil, 0); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := c.headWindow.Keys()
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

// PrimeHead eagerly fills the head window from the resource client. The
// storage-open façade calls this right after constructing a coordinator for
// a freshly created queue, so the window is already warm before the first
// FetchNext/Peek instead of paying for that fetch lazily on first use.
func (c *Coordinator) PrimeHead(ctx context.Context) error {
	_, err := c.ensureHeadIsNonEmpty(ctx, false, nil, 0)
	return err
}

// IsEmpty reports whether the head window has no entries, after ensuring
// it has been given a chance to refill.
func (c *Coordinator) IsEmpty(ctx context.Context) (bool, error) {
	if _, err := c.ensureHeadIsNonEmpty(ctx, false, nil, 0); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headWindow.Len() == 0, nil
}

// IsFinished reports whether the coordinator considers the queue finished,
// performing a stuck-state reset first if the instance has been idle with
// outstanding in-progress work. It returns false while the head window or
// the in-progress set has entries; otherwise it returns the result of a
// consistency-checked ensureHeadIsNonEmpty, which is true once that head
// query converges, even when the query put new entries into the window.
func (c *Coordinator) IsFinished(ctx context.Context) (bool, error) {
	c.mu.Lock()
	inProgressCount := len(c.inProgress)
	idleFor := c.clock.Now().Sub(c.lastActivity)
	if inProgressCount > 0 && idleFor > time.Duration(c.internalTimeoutSecs)*time.Second {
		c.log.Warn("requestqueue: resetting stuck coordinator state",
			zap.String("queueId", c.id), zap.Duration("idleFor", idleFor))
		c.resetLocked()
	}
	headEmpty := c.headWindow.Len() == 0
	inProgressEmpty := len(c.inProgress) == 0
	c.mu.Unlock()

	if !headEmpty || !inProgressEmpty {
		return false, nil
	}

	return c.ensureHeadIsNonEmpty(ctx, true, nil, 0)
}

func (c *Coordinator) resetLocked() {
	c.headWindow.Clear()
	c.inProgress = make(map[string]struct{})
	c.recentlyHandled.Clear()
	c.requestCache.Clear()
	c.assumedTotalCount = 0
	c.assumedHandledCount = 0
	c.lastActivity = c.clock.Now()
}

// Drop deletes the remote queue state. The caller (the storage-open
// façade) is responsible for removing the instance from its registry.
func (c *Coordinator) Drop(ctx context.Context) error {
	return c.client.Delete(ctx)
}

// CurrentStats returns a snapshot of the coordinator's advisory counters.
func (c *Coordinator) CurrentStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		HeadWindowSize:      c.headWindow.Len(),
		InProgressCount:     len(c.inProgress),
		RecentlyHandledSize: c.recentlyHandled.Len(),
		RequestCacheSize:    c.requestCache.Len(),
		AssumedTotalCount:   c.assumedTotalCount,
		AssumedHandledCount: c.assumedHandledCount,
		LastActivity:        c.lastActivity,
	}
}
