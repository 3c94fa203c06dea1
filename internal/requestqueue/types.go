// Package requestqueue implements the client-side request-queue
// coordinator: head-window prefetch, in-progress tracking, dedup caches,
// and the consistency-aware termination protocol described by the
// resource-client contract in rqclient.
package requestqueue

import (
	"time"

	"github.com/brightcrawl/rqueue/internal/rqclient"
)

// Defaults mirror the coordinator's documented constants.
const (
	defaultMaxCachedRequests         = 1_000_000
	defaultRecentlyHandledCacheSize  = 1000
	defaultInternalTimeoutSecs       = 300
	queryHeadMinLength                = 100
	queryHeadBuffer                   = 3
	apiProcessedRequestsDelay         = 10 * time.Second
	maxQueriesForConsistency          = 6
	requestQueueHeadMaxLimit          = 1000
	storageConsistencyDelay           = 3 * time.Second
)

// CachedRequestInfo is the request cache's value type, keyed by the
// request-ID derived from uniqueKey (never by the remote id alone).
type CachedRequestInfo struct {
	ID                string
	UniqueKey         string
	IsHandled         bool
	WasAlreadyHandled bool
}

// QueueOperationResult mirrors rqclient.QueueOperationResult with the
// uniqueKey attached, as returned by Add, MarkHandled and Reclaim.
type QueueOperationResult = rqclient.QueueOperationResult

// Request is the coordinator-facing request record.
type Request = rqclient.Request

// Stats is a snapshot of a coordinator's advisory counters, exposed for
// diagnostics and metrics (the rqctl stats command passes its fields to
// internal/metrics).
type Stats struct {
	HeadWindowSize      int
	InProgressCount     int
	RecentlyHandledSize int
	RequestCacheSize    int
	AssumedTotalCount   int64
	AssumedHandledCount int64
	LastActivity        time.Time
}
