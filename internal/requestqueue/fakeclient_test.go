package requestqueue

import (
	"context"

	"github.com/brightcrawl/rqueue/internal/rqclient"
)

// noopClient is a minimal rqclient.Client stub for headwindow tests that
// only exercise ListHead. Embed it and override the methods a given test
// needs.
type noopClient struct{}

func (noopClient) Get(context.Context) (*rqclient.QueueInfo, error) { return &rqclient.QueueInfo{}, nil }
func (noopClient) GetOrCreate(context.Context, string) (*rqclient.QueueInfo, bool, error) {
	return &rqclient.QueueInfo{}, false, nil
}
func (noopClient) Update(context.Context, string) (*rqclient.QueueInfo, error) {
	return &rqclient.QueueInfo{}, nil
}
func (noopClient) Delete(context.Context) error { return nil }

func (noopClient) ListHead(context.Context, int) (*rqclient.HeadListResult, error) {
	return &rqclient.HeadListResult{}, nil
}
func (noopClient) ListAndLockHead(context.Context, int, int) (*rqclient.HeadListResult, error) {
	return &rqclient.HeadListResult{}, nil
}

func (noopClient) AddRequest(context.Context, rqclient.Request, bool) (*rqclient.QueueOperationResult, error) {
	return &rqclient.QueueOperationResult{}, nil
}
func (noopClient) GetRequest(context.Context, string) (*rqclient.Request, error) {
	return nil, rqclient.ErrNotFound
}
func (noopClient) UpdateRequest(context.Context, rqclient.Request, bool) (*rqclient.QueueOperationResult, error) {
	return &rqclient.QueueOperationResult{}, nil
}
func (noopClient) DeleteRequest(context.Context, string) error { return nil }

func (noopClient) ProlongRequestLock(context.Context, string, int, bool) error { return nil }
func (noopClient) DeleteRequestLock(context.Context, string, bool) error       { return nil }

func (noopClient) BatchAddRequests(context.Context, []rqclient.Request, bool) ([]rqclient.BatchResult, error) {
	return nil, nil
}
func (noopClient) BatchDeleteRequests(context.Context, []string) error { return nil }

func (noopClient) ListRequests(context.Context, int, string) (*rqclient.RequestPage, error) {
	return &rqclient.RequestPage{}, nil
}

var _ rqclient.Client = noopClient{}
