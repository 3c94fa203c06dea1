// Package rqclient declares the resource-client contract the coordinator
// depends on: a thin interface over a remote request-queue service, with a
// local directory-backed emulator satisfying the same contract. The
// coordinator never talks to either backend directly; it only calls
// through Client.
package rqclient

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetRequest and Get when the backend reports a
// 404 with type record-not-found or record-or-token-not-found. Callers
// translate it to an absent value rather than propagating it as a failure.
var ErrNotFound = errors.New("rqclient: not found")

// ErrInvalidBody signals a partial or unparseable response body. It is
// retryable by the httpapi backend's backoff policy.
var ErrInvalidBody = errors.New("rqclient: invalid response body")

// Failure is an API error: the remote returned a non-2xx status.
type Failure struct {
	StatusCode int
	Type       string
	Message    string
	Attempt    int
}

func (f *Failure) Error() string {
	return "rqclient: api error: " + f.Message
}

// IsNotFoundType reports whether an API error type denotes a benign
// not-found, per §6/§7: record-not-found and record-or-token-not-found are
// translated to absent rather than surfaced as errors.
func IsNotFoundType(t string) bool {
	return t == "record-not-found" || t == "record-or-token-not-found"
}

// QueueInfo describes a request queue's metadata.
type QueueInfo struct {
	ID            string
	Name          string
	CreatedAt     time.Time
	ModifiedAt    time.Time
	AccessedAt    time.Time
	HadMultipleClients bool
	TotalCount    int64
	HandledCount  int64
}

// Request is the caller-facing request record. Extra carries caller fields
// not otherwise modeled, preserved verbatim through add/update round-trips.
type Request struct {
	ID        string
	URL       string
	UniqueKey string
	HandledAt *time.Time
	Extra     map[string]any
}

// IsHandled reports whether the request carries a handled timestamp.
func (r *Request) IsHandled() bool {
	return r != nil && r.HandledAt != nil
}

// QueueOperationResult is returned by AddRequest, UpdateRequest and Reclaim.
type QueueOperationResult struct {
	RequestID         string
	UniqueKey         string
	WasAlreadyPresent bool
	WasAlreadyHandled bool
}

// HeadItem is one entry of a listHead/listAndLockHead response.
type HeadItem struct {
	ID        string
	UniqueKey string
}

// HeadListResult is the response to ListHead/ListAndLockHead.
type HeadListResult struct {
	Items              []HeadItem
	QueueModifiedAt    time.Time
	HadMultipleClients bool
}

// RequestPage is one page of ListRequests.
type RequestPage struct {
	Items           []Request
	NextExclusiveID string
}

// BatchResult is one item's outcome within a batch add/delete call.
type BatchResult struct {
	UniqueKey string
	Result    QueueOperationResult
	Err       error
}

// Client is the resource-client contract consumed by the coordinator.
// Remote (httpapi) and local (localstore) backends both implement it.
type Client interface {
	Get(ctx context.Context) (*QueueInfo, error)
	// GetOrCreate resolves a queue by name, creating it first if no queue by
	// that name exists yet. The returned bool reports whether this call
	// created the queue, so callers can prime state that only makes sense
	// for a brand new queue.
	GetOrCreate(ctx context.Context, name string) (*QueueInfo, bool, error)
	Update(ctx context.Context, name string) (*QueueInfo, error)
	Delete(ctx context.Context) error

	ListHead(ctx context.Context, limit int) (*HeadListResult, error)
	ListAndLockHead(ctx context.Context, lockSecs, limit int) (*HeadListResult, error)

	AddRequest(ctx context.Context, req Request, forefront bool) (*QueueOperationResult, error)
	GetRequest(ctx context.Context, id string) (*Request, error)
	UpdateRequest(ctx context.Context, req Request, forefront bool) (*QueueOperationResult, error)
	DeleteRequest(ctx context.Context, id string) error

	ProlongRequestLock(ctx context.Context, id string, lockSecs int, forefront bool) error
	DeleteRequestLock(ctx context.Context, id string, forefront bool) error

	BatchAddRequests(ctx context.Context, reqs []Request, forefront bool) ([]BatchResult, error)
	BatchDeleteRequests(ctx context.Context, ids []string) error

	ListRequests(ctx context.Context, limit int, exclusiveStartID string) (*RequestPage, error)
}
