// Package storageopen resolves a queue id or name to a coordinator
// instance, choosing between the remote HTTP backend and the local
// directory emulator and caching instances at process level so repeated
// opens of the same key return the same coordinator.
package storageopen

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/brightcrawl/rqueue/internal/clock"
	"github.com/brightcrawl/rqueue/internal/config"
	"github.com/brightcrawl/rqueue/internal/requestqueue"
	"github.com/brightcrawl/rqueue/internal/rqclient"
	"github.com/brightcrawl/rqueue/internal/rqclient/httpapi"
	"github.com/brightcrawl/rqueue/internal/rqclient/localstore"
)

// Registry caches opened coordinators by (backend, key) so concurrent opens
// of the same queue return the same instance. The open façade never uses a
// package-level singleton; callers construct and pass a Registry so tests
// can keep instances isolated.
type Registry struct {
	mu    sync.Mutex
	byKey map[string]*requestqueue.Coordinator
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*requestqueue.Coordinator)}
}

func (r *Registry) get(key string) (*requestqueue.Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byKey[key]
	return c, ok
}

// put stores c under key unless another coordinator is already there, and
// returns whichever coordinator the registry holds for key afterwards.
func (r *Registry) put(key string, c *requestqueue.Coordinator) *requestqueue.Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[key]; ok {
		return existing
	}
	r.byKey[key] = c
	return c
}

func (r *Registry) remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, key)
}

// Options controls a single Open call.
type Options struct {
	ID         string
	Name       string
	ForceCloud bool
}

func registryKey(backend, id, name string) string {
	if name != "" {
		return backend + ":name:" + name
	}
	return backend + ":id:" + id
}

// Open resolves id/name to a coordinator, creating one via the resource
// client if none is cached, per §4.6.
func Open(ctx context.Context, reg *Registry, opts Options, cfg config.Config, clk clock.Clock, log *zap.Logger) (*requestqueue.Coordinator, error) {
	useRemote := opts.ForceCloud || cfg.ForceCloud || cfg.RemoteBaseURL != ""

	id := opts.ID
	if id == "" && opts.Name == "" {
		id = cfg.DefaultRequestQueueID
	}

	backend := "local"
	if useRemote {
		backend = "remote"
	}
	key := registryKey(backend, id, opts.Name)

	if existing, ok := reg.get(key); ok {
		return existing, nil
	}

	client, resolvedID, wasCreated, err := newClient(ctx, useRemote, id, opts.Name, cfg, clk, log)
	if err != nil {
		return nil, err
	}

	coord, err := requestqueue.New(requestqueue.Config{
		ID:                  resolvedID,
		Name:                opts.Name,
		Client:              client,
		Clock:               clk,
		Logger:              log,
		InternalTimeoutSecs: cfg.InternalTimeoutSecs,
	})
	if err != nil {
		return nil, err
	}

	if wasCreated {
		if err := coord.PrimeHead(ctx); err != nil {
			return nil, fmt.Errorf("storageopen: prime head for new queue %q: %w", resolvedID, err)
		}
	}

	coord = reg.put(key, coord)
	if opts.Name != "" {
		reg.put(registryKey(backend, resolvedID, ""), coord)
	}
	return coord, nil
}

// newClient resolves id/name to a resource client, choosing the remote or
// local backend. When name is given it asks the backend to get-or-create by
// that name, per §4.6 step 3. When only id is given, the remote backend
// fails if the id doesn't already exist, while the local backend creates a
// queue for an id it has not seen. The returned bool reports whether this
// call created the queue.
func newClient(ctx context.Context, useRemote bool, id, name string, cfg config.Config, clk clock.Clock, log *zap.Logger) (rqclient.Client, string, bool, error) {
	if useRemote {
		if cfg.RemoteBaseURL == "" {
			return nil, "", false, fmt.Errorf("storageopen: remote backend selected but no remote_base_url configured")
		}
		resolvedID := id
		if resolvedID == "" {
			resolvedID = name
		}
		client, err := httpapi.New(httpapi.Config{
			BaseURL: cfg.RemoteBaseURL,
			Token:   cfg.RemoteToken,
			QueueID: resolvedID,
		}, log)
		if err != nil {
			return nil, "", false, err
		}

		if name != "" {
			info, wasCreated, err := client.GetOrCreate(ctx, name)
			if err != nil {
				return nil, "", false, fmt.Errorf("storageopen: get-or-create remote queue %q: %w", name, err)
			}
			return client, info.ID, wasCreated, nil
		}
		if _, err := client.Get(ctx); err != nil {
			return nil, "", false, fmt.Errorf("storageopen: open remote queue %q: %w", resolvedID, err)
		}
		return client, resolvedID, false, nil
	}

	resolvedID := id
	if resolvedID == "" {
		resolvedID = name
	}
	store, err := localstore.New(localstore.Config{
		BaseDir:       cfg.LocalStorageDir,
		QueueID:       resolvedID,
		Name:          name,
		WriteMetadata: cfg.WriteMetadata,
		Persist:       cfg.PersistStorage,
		Clock:         clk,
	})
	if err != nil {
		return nil, "", false, err
	}
	return store, resolvedID, store.WasCreated(), nil
}

// Drop deletes the coordinator's remote state and removes it from reg.
func Drop(ctx context.Context, reg *Registry, backend string, coord *requestqueue.Coordinator) error {
	if err := coord.Drop(ctx); err != nil {
		return err
	}
	reg.remove(registryKey(backend, coord.ID(), ""))
	if coord.Name() != "" {
		reg.remove(registryKey(backend, "", coord.Name()))
	}
	return nil
}
