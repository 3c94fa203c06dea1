// Package httpapi implements rqclient.Client against a remote request-queue
// service over net/http, with exponential backoff retry on transport and
// 5xx/429 failures.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/brightcrawl/rqueue/internal/rqclient"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	QueueID    string
	ClientKey  string
	HTTPClient *http.Client
}

// Client talks to the remote request-queue service.
type Client struct {
	baseURL   string
	token     string
	queueID   string
	clientKey string
	http      *http.Client
	backoff   *BackoffPolicy
	log       *zap.Logger
}

// New constructs a remote Client. log may be nil, in which case a no-op
// logger is used.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("httpapi: base url is required")
	}
	if cfg.QueueID == "" {
		return nil, fmt.Errorf("httpapi: queue id is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		token:     cfg.Token,
		queueID:   cfg.QueueID,
		clientKey: cfg.ClientKey,
		http:      httpClient,
		backoff:   NewBackoffPolicy(),
		log:       log,
	}, nil
}

func (c *Client) endpoint(pathSuffix string, query url.Values) string {
	u := c.baseURL + "/request-queues/" + c.queueID + pathSuffix
	if query == nil {
		query = url.Values{}
	}
	if c.clientKey != "" {
		query.Set("clientKey", c.clientKey)
	}
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	return c.doStatus(ctx, method, endpoint, body, out, nil)
}

// doStatus behaves like do, additionally reporting the successful response's
// status code through statusOut when non-nil. Callers that need to tell a
// 201 Created apart from a 200 OK (GetOrCreate) use this; everyone else uses
// do.
func (c *Client) doStatus(ctx context.Context, method, endpoint string, body any, out any, statusOut *int) error {
	var lastErr error
	maxAttempts := c.backoff.MaxAttempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.doOnce(ctx, method, endpoint, body, out, statusOut)
		if err == nil {
			return nil
		}
		lastErr = err
		if !c.backoff.ShouldRetry(err, attempt) {
			return err
		}
		wait := c.backoff.Backoff(attempt)
		c.log.Warn("httpapi: retrying request",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body any, out any, statusOut *int) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpapi: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("httpapi: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", rqclient.ErrInvalidBody, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		var apiErr apiErrorBody
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && rqclient.IsNotFoundType(apiErr.Error.Type) {
			return rqclient.ErrNotFound
		}
	}
	if resp.StatusCode >= 300 {
		var apiErr apiErrorBody
		_ = json.Unmarshal(raw, &apiErr)
		return &rqclient.Failure{
			StatusCode: resp.StatusCode,
			Type:       apiErr.Error.Type,
			Message:    apiErr.Error.Message,
		}
	}

	if statusOut != nil {
		*statusOut = resp.StatusCode
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", rqclient.ErrInvalidBody, err)
	}
	return nil
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type queueInfoWire struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	CreatedAt          time.Time `json:"createdAt"`
	ModifiedAt         time.Time `json:"modifiedAt"`
	AccessedAt         time.Time `json:"accessedAt"`
	HadMultipleClients bool      `json:"hadMultipleClients"`
	TotalRequestCount  int64     `json:"totalRequestCount"`
	HandledRequestCount int64    `json:"handledRequestCount"`
}

func (w *queueInfoWire) toQueueInfo() *rqclient.QueueInfo {
	return &rqclient.QueueInfo{
		ID:                 w.ID,
		Name:               w.Name,
		CreatedAt:          w.CreatedAt,
		ModifiedAt:         w.ModifiedAt,
		AccessedAt:         w.AccessedAt,
		HadMultipleClients: w.HadMultipleClients,
		TotalCount:         w.TotalRequestCount,
		HandledCount:       w.HandledRequestCount,
	}
}

// Get fetches the queue's metadata.
func (c *Client) Get(ctx context.Context) (*rqclient.QueueInfo, error) {
	var wire queueInfoWire
	if err := c.do(ctx, http.MethodGet, c.endpoint("", nil), nil, &wire); err != nil {
		return nil, err
	}
	return wire.toQueueInfo(), nil
}

// GetOrCreate resolves a queue by name against the collection endpoint,
// creating it server-side if no queue by that name exists yet. The bool
// result reports whether the response carried a 201 Created, i.e. whether
// this call is the one that brought the queue into existence.
func (c *Client) GetOrCreate(ctx context.Context, name string) (*rqclient.QueueInfo, bool, error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if c.clientKey != "" {
		q.Set("clientKey", c.clientKey)
	}
	endpoint := c.baseURL + "/request-queues"
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var wire queueInfoWire
	status := 0
	if err := c.doStatus(ctx, http.MethodPost, endpoint, nil, &wire, &status); err != nil {
		return nil, false, err
	}
	c.queueID = wire.ID
	return wire.toQueueInfo(), status == http.StatusCreated, nil
}

// Update changes the queue's name.
func (c *Client) Update(ctx context.Context, name string) (*rqclient.QueueInfo, error) {
	var wire queueInfoWire
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPut, c.endpoint("", nil), body, &wire); err != nil {
		return nil, err
	}
	return wire.toQueueInfo(), nil
}

// Delete removes the queue. Idempotent on not-found.
func (c *Client) Delete(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, c.endpoint("", nil), nil, nil)
	if err != nil && err != rqclient.ErrNotFound {
		return err
	}
	return nil
}

type headItemWire struct {
	ID        string `json:"id"`
	UniqueKey string `json:"uniqueKey"`
}

type headListWire struct {
	Items              []headItemWire `json:"items"`
	QueueModifiedAt    time.Time      `json:"queueModifiedAt"`
	HadMultipleClients bool           `json:"hadMultipleClients"`
}

func (w *headListWire) toResult() *rqclient.HeadListResult {
	items := make([]rqclient.HeadItem, 0, len(w.Items))
	for _, it := range w.Items {
		items = append(items, rqclient.HeadItem{ID: it.ID, UniqueKey: it.UniqueKey})
	}
	return &rqclient.HeadListResult{
		Items:              items,
		QueueModifiedAt:    w.QueueModifiedAt,
		HadMultipleClients: w.HadMultipleClients,
	}
}

// ListHead returns up to limit head items without locking them.
func (c *Client) ListHead(ctx context.Context, limit int) (*rqclient.HeadListResult, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var wire headListWire
	if err := c.do(ctx, http.MethodGet, c.endpoint("/head", q), nil, &wire); err != nil {
		return nil, err
	}
	return wire.toResult(), nil
}

// ListAndLockHead returns and locks up to limit head items for lockSecs.
func (c *Client) ListAndLockHead(ctx context.Context, lockSecs, limit int) (*rqclient.HeadListResult, error) {
	q := url.Values{
		"limit":    {strconv.Itoa(limit)},
		"lockSecs": {strconv.Itoa(lockSecs)},
	}
	var wire headListWire
	if err := c.do(ctx, http.MethodGet, c.endpoint("/head/lock", q), nil, &wire); err != nil {
		return nil, err
	}
	return wire.toResult(), nil
}

type requestWire struct {
	ID        string         `json:"id,omitempty"`
	URL       string         `json:"url"`
	UniqueKey string         `json:"uniqueKey"`
	HandledAt *time.Time     `json:"handledAt,omitempty"`
	Extra     map[string]any `json:"userData,omitempty"`
}

func toRequestWire(r rqclient.Request) requestWire {
	return requestWire{
		ID:        r.ID,
		URL:       r.URL,
		UniqueKey: r.UniqueKey,
		HandledAt: r.HandledAt,
		Extra:     r.Extra,
	}
}

func (w *requestWire) toRequest() *rqclient.Request {
	return &rqclient.Request{
		ID:        w.ID,
		URL:       w.URL,
		UniqueKey: w.UniqueKey,
		HandledAt: w.HandledAt,
		Extra:     w.Extra,
	}
}

type operationResultWire struct {
	RequestID         string `json:"requestId"`
	UniqueKey         string `json:"uniqueKey"`
	WasAlreadyPresent bool   `json:"wasAlreadyPresent"`
	WasAlreadyHandled bool   `json:"wasAlreadyHandled"`
}

func (w *operationResultWire) toResult() *rqclient.QueueOperationResult {
	return &rqclient.QueueOperationResult{
		RequestID:         w.RequestID,
		UniqueKey:         w.UniqueKey,
		WasAlreadyPresent: w.WasAlreadyPresent,
		WasAlreadyHandled: w.WasAlreadyHandled,
	}
}

// AddRequest enqueues a request.
func (c *Client) AddRequest(ctx context.Context, req rqclient.Request, forefront bool) (*rqclient.QueueOperationResult, error) {
	q := url.Values{}
	if forefront {
		q.Set("forefront", "true")
	}
	var wire operationResultWire
	if err := c.do(ctx, http.MethodPost, c.endpoint("/requests", q), toRequestWire(req), &wire); err != nil {
		return nil, err
	}
	return wire.toResult(), nil
}

// GetRequest fetches a single request by id, or ErrNotFound.
func (c *Client) GetRequest(ctx context.Context, id string) (*rqclient.Request, error) {
	var wire requestWire
	if err := c.do(ctx, http.MethodGet, c.endpoint("/requests/"+id, nil), nil, &wire); err != nil {
		return nil, err
	}
	return wire.toRequest(), nil
}

// UpdateRequest persists changes to a request, e.g. marking it handled.
func (c *Client) UpdateRequest(ctx context.Context, req rqclient.Request, forefront bool) (*rqclient.QueueOperationResult, error) {
	q := url.Values{}
	if forefront {
		q.Set("forefront", "true")
	}
	var wire operationResultWire
	if err := c.do(ctx, http.MethodPut, c.endpoint("/requests/"+req.ID, q), toRequestWire(req), &wire); err != nil {
		return nil, err
	}
	return wire.toResult(), nil
}

// DeleteRequest removes a request. Idempotent on not-found.
func (c *Client) DeleteRequest(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, c.endpoint("/requests/"+id, nil), nil, nil)
	if err != nil && err != rqclient.ErrNotFound {
		return err
	}
	return nil
}

// ProlongRequestLock extends a listAndLockHead lock on id.
func (c *Client) ProlongRequestLock(ctx context.Context, id string, lockSecs int, forefront bool) error {
	q := url.Values{"lockSecs": {strconv.Itoa(lockSecs)}}
	if forefront {
		q.Set("forefront", "true")
	}
	return c.do(ctx, http.MethodPut, c.endpoint("/requests/"+id+"/lock", q), nil, nil)
}

// DeleteRequestLock releases a listAndLockHead lock on id early.
func (c *Client) DeleteRequestLock(ctx context.Context, id string, forefront bool) error {
	q := url.Values{}
	if forefront {
		q.Set("forefront", "true")
	}
	return c.do(ctx, http.MethodDelete, c.endpoint("/requests/"+id+"/lock", q), nil, nil)
}

type batchResultWire struct {
	UniqueKey string                `json:"uniqueKey"`
	Result    *operationResultWire  `json:"result,omitempty"`
	Error     *apiErrorBody         `json:"error,omitempty"`
}

// BatchAddRequests enqueues multiple requests in one call.
func (c *Client) BatchAddRequests(ctx context.Context, reqs []rqclient.Request, forefront bool) ([]rqclient.BatchResult, error) {
	q := url.Values{}
	if forefront {
		q.Set("forefront", "true")
	}
	wireReqs := make([]requestWire, 0, len(reqs))
	for _, r := range reqs {
		wireReqs = append(wireReqs, toRequestWire(r))
	}
	var wireResults []batchResultWire
	if err := c.do(ctx, http.MethodPost, c.endpoint("/requests/batch", q), map[string]any{"requests": wireReqs}, &wireResults); err != nil {
		return nil, err
	}
	out := make([]rqclient.BatchResult, 0, len(wireResults))
	for _, w := range wireResults {
		br := rqclient.BatchResult{UniqueKey: w.UniqueKey}
		if w.Result != nil {
			br.Result = *w.Result.toResult()
		}
		if w.Error != nil {
			br.Err = &rqclient.Failure{Type: w.Error.Error.Type, Message: w.Error.Error.Message}
		}
		out = append(out, br)
	}
	return out, nil
}

// BatchDeleteRequests removes multiple requests by id in one call.
func (c *Client) BatchDeleteRequests(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodPost, c.endpoint("/requests/batch-delete", nil), map[string]any{"requestIds": ids}, nil)
}

type requestPageWire struct {
	Items           []requestWire `json:"items"`
	NextExclusiveID string        `json:"nextExclusiveStartId"`
}

// ListRequests paginates through all requests in the queue.
func (c *Client) ListRequests(ctx context.Context, limit int, exclusiveStartID string) (*rqclient.RequestPage, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if exclusiveStartID != "" {
		q.Set("exclusiveStartId", exclusiveStartID)
	}
	var wire requestPageWire
	if err := c.do(ctx, http.MethodGet, c.endpoint("/requests", q), nil, &wire); err != nil {
		return nil, err
	}
	items := make([]rqclient.Request, 0, len(wire.Items))
	for _, w := range wire.Items {
		items = append(items, *w.toRequest())
	}
	return &rqclient.RequestPage{Items: items, NextExclusiveID: wire.NextExclusiveID}, nil
}

var _ rqclient.Client = (*Client)(nil)
