// Package localstore implements rqclient.Client against the local
// filesystem: a single directory per queue holding one JSON file per
// request, used when neither force_cloud nor a remote base URL is
// configured (a remote token alone does not select the remote backend).
// When Config.Persist
// is false, the same layout is kept entirely in memory instead, per the
// persist_storage configuration knob.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brightcrawl/rqueue/internal/clock"
	idgen "github.com/brightcrawl/rqueue/internal/id/uuid"
	"github.com/brightcrawl/rqueue/internal/rqclient"
)

// tempFileCounter and oldDirCounter hand out the numeric suffixes for the
// disk backend's staging entries: __APIFY_TEMPORARY_<n>__ for an in-flight
// atomic write, __OLD_<n>__ for a queue directory that's been moved aside
// pending an async delete. Package-level so concurrent Stores rooted at the
// same BaseDir never collide on a suffix.
var tempFileCounter int64
var oldDirCounter int64

const (
	tempFilePrefix = "__APIFY_TEMPORARY_"
	oldDirPrefix   = "__OLD_"
)

// Config configures a Store.
type Config struct {
	// BaseDir is the storage root; queues live under
	// <BaseDir>/request_queues/<QueueID>/. Unused when Persist is false.
	BaseDir string
	QueueID string
	Name    string
	// WriteMetadata maintains __metadata__.json alongside request files.
	WriteMetadata bool
	// Persist writes request files to BaseDir. When false, the queue's
	// contents live only in process memory for the Store's lifetime.
	Persist bool
	Clock   clock.Clock
}

const metadataFileName = "__metadata__.json"

type metadata struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	AccessedAt time.Time `json:"accessedAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	ItemCount  int       `json:"itemCount"`
}

type fileEntry struct {
	name    string
	modTime time.Time
}

// backend abstracts the two storage modes a Store can run in: writing
// files under a directory, or keeping them in an in-memory map. Both
// satisfy the same file-name/bytes contract so the rest of Store doesn't
// need to know which one it's talking to.
type backend interface {
	read(name string) ([]byte, error)
	write(name string, data []byte) error
	remove(name string) error
	list() ([]fileEntry, error)
	removeAll() error
}

type diskBackend struct {
	dir string
}

func (b *diskBackend) path(name string) string { return filepath.Join(b.dir, name) }

func (b *diskBackend) read(name string) ([]byte, error) {
	return os.ReadFile(b.path(name))
}

// write stages the new content under a __APIFY_TEMPORARY_<n>__ name in the
// same directory, then renames it over the target. A crash or concurrent
// reader never observes a partially written file this way, since rename is
// atomic within a filesystem.
func (b *diskBackend) write(name string, data []byte) error {
	n := atomic.AddInt64(&tempFileCounter, 1)
	tmpPath := filepath.Join(b.dir, fmt.Sprintf("%s%d__", tempFilePrefix, n))
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, b.path(name)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (b *diskBackend) remove(name string) error {
	return os.Remove(b.path(name))
}

func (b *diskBackend) list() ([]fileEntry, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}
	out := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, fileEntry{name: e.Name(), modTime: info.ModTime()})
	}
	return out, nil
}

// removeAll moves the queue directory aside to a sibling __OLD_<n>__ name
// and deletes that copy in the background, so Delete returns as soon as the
// rename lands instead of blocking on a potentially large recursive
// removal.
func (b *diskBackend) removeAll() error {
	n := atomic.AddInt64(&oldDirCounter, 1)
	stagePath := filepath.Join(filepath.Dir(b.dir), fmt.Sprintf("%s%d__", oldDirPrefix, n))
	if err := os.Rename(b.dir, stagePath); err != nil {
		return err
	}
	go func() {
		_ = os.RemoveAll(stagePath)
	}()
	return nil
}

type memBackend struct {
	mu       sync.Mutex
	files    map[string][]byte
	modTimes map[string]time.Time
	clock    clock.Clock
}

func newMemBackend(c clock.Clock) *memBackend {
	return &memBackend{files: make(map[string][]byte), modTimes: make(map[string]time.Time), clock: c}
}

func (b *memBackend) read(name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (b *memBackend) write(name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[name] = data
	b.modTimes[name] = b.clock.Now()
	return nil
}

func (b *memBackend) remove(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[name]; !ok {
		return os.ErrNotExist
	}
	delete(b.files, name)
	delete(b.modTimes, name)
	return nil
}

func (b *memBackend) list() ([]fileEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]fileEntry, 0, len(b.files))
	for name := range b.files {
		out = append(out, fileEntry{name: name, modTime: b.modTimes[name]})
	}
	return out, nil
}

// removeAll clears the in-memory maps directly; there's no slow recursive
// directory removal to hide behind an async purge when nothing touches
// disk.
func (b *memBackend) removeAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files = make(map[string][]byte)
	b.modTimes = make(map[string]time.Time)
	return nil
}

// Store is the local emulator of the remote request-queue API. A single
// Store instance is expected to back one coordinator; all operations are
// serialized by mu, matching the single-owner-per-instance concurrency
// model the coordinator assumes of its resource client.
type Store struct {
	mu            sync.Mutex
	backend       backend
	queueID       string
	name          string
	writeMetadata bool
	clock         clock.Clock
	meta          metadata
	head          []string // request IDs in head-queue order (unlocked).
	created       bool
}

// WasCreated reports whether New initialized a brand new queue rather than
// reopening one that already had persisted or in-memory state.
func (s *Store) WasCreated() bool {
	return s.created
}

// New creates or opens a local queue. When cfg.Persist is true (the
// default expectation when a caller wants durability across restarts),
// the queue is backed by a directory under cfg.BaseDir; otherwise it lives
// only in memory.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.QueueID) == "" {
		return nil, fmt.Errorf("localstore: queue id is required")
	}
	c := cfg.Clock
	if c == nil {
		return nil, fmt.Errorf("localstore: clock is required")
	}

	var b backend
	if cfg.Persist {
		if strings.TrimSpace(cfg.BaseDir) == "" {
			return nil, fmt.Errorf("localstore: base directory is required when persisting")
		}
		dir := filepath.Join(cfg.BaseDir, "request_queues", cfg.QueueID)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("localstore: create queue directory: %w", err)
		}
		b = &diskBackend{dir: dir}
	} else {
		b = newMemBackend(c)
	}

	s := &Store{
		backend:       b,
		queueID:       cfg.QueueID,
		name:          cfg.Name,
		writeMetadata: cfg.WriteMetadata,
		clock:         c,
	}

	if existing, err := s.loadMetadata(); err == nil {
		s.meta = existing
	} else {
		now := c.Now()
		s.meta = metadata{ID: cfg.QueueID, Name: cfg.Name, CreatedAt: now, AccessedAt: now, ModifiedAt: now}
		prior, _ := s.backend.list()
		s.created = len(prior) == 0
		if cfg.WriteMetadata {
			if err := s.persistMetadata(); err != nil {
				return nil, err
			}
		}
	}

	if err := s.rebuildHead(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) loadMetadata() (metadata, error) {
	raw, err := s.backend.read(metadataFileName)
	if err != nil {
		return metadata{}, err
	}
	var m metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return metadata{}, err
	}
	return m, nil
}

func (s *Store) persistMetadata() error {
	raw, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("localstore: marshal metadata: %w", err)
	}
	if err := s.backend.write(metadataFileName, raw); err != nil {
		return fmt.Errorf("localstore: write metadata: %w", err)
	}
	return nil
}

// rebuildHead walks the backend and reconstructs the in-order unhandled
// head list from file write-time order, so a restarted process resumes in
// the order the request files were last written; forefront placement is
// not preserved across a reopen.
func (s *Store) rebuildHead() error {
	entries, err := s.backend.list()
	if err != nil {
		return fmt.Errorf("localstore: list queue contents: %w", err)
	}

	type stamped struct {
		id      string
		modTime time.Time
	}
	var pending []stamped
	for _, e := range entries {
		if !strings.HasSuffix(e.name, ".json") || e.name == metadataFileName {
			continue
		}
		req, err := s.readRequestFile(e.name)
		if err != nil || req == nil || req.HandledAt != nil {
			continue
		}
		pending = append(pending, stamped{id: req.ID, modTime: e.modTime})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].modTime.Before(pending[j].modTime) })

	s.head = make([]string, 0, len(pending))
	for _, p := range pending {
		s.head = append(s.head, p.id)
	}
	return nil
}

func (s *Store) readRequestFile(fileName string) (*rqclient.Request, error) {
	raw, err := s.backend.read(fileName)
	if err != nil {
		return nil, err
	}
	var req rqclient.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) writeRequestFile(req rqclient.Request) error {
	raw, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("localstore: marshal request: %w", err)
	}
	if err := s.backend.write(req.ID+".json", raw); err != nil {
		return fmt.Errorf("localstore: write request: %w", err)
	}
	return nil
}

func (s *Store) touchModified() {
	s.meta.ModifiedAt = s.clock.Now()
	if s.writeMetadata {
		_ = s.persistMetadata()
	}
}

// Get returns the queue's metadata.
func (s *Store) Get(_ context.Context) (*rqclient.QueueInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.AccessedAt = s.clock.Now()
	return &rqclient.QueueInfo{
		ID:           s.meta.ID,
		Name:         s.meta.Name,
		CreatedAt:    s.meta.CreatedAt,
		ModifiedAt:   s.meta.ModifiedAt,
		AccessedAt:   s.meta.AccessedAt,
		TotalCount:   int64(s.meta.ItemCount),
		HandledCount: 0,
	}, nil
}

// GetOrCreate returns the queue's metadata. New already creates the queue
// on open if it didn't exist, so this never needs a separate create step;
// it only reports whether that creation happened during this Store's New.
func (s *Store) GetOrCreate(ctx context.Context, name string) (*rqclient.QueueInfo, bool, error) {
	s.mu.Lock()
	wasCreated := s.created
	if name != "" {
		s.meta.Name = name
	}
	s.mu.Unlock()

	info, err := s.Get(ctx)
	if err != nil {
		return nil, false, err
	}
	return info, wasCreated, nil
}

// Update renames the queue.
func (s *Store) Update(_ context.Context, name string) (*rqclient.QueueInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.Name = name
	s.touchModified()
	return &rqclient.QueueInfo{ID: s.meta.ID, Name: s.meta.Name, ModifiedAt: s.meta.ModifiedAt}, nil
}

// Delete removes the entire queue. Idempotent on not-found.
func (s *Store) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.removeAll(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localstore: delete queue: %w", err)
	}
	return nil
}

// ListHead returns up to limit unhandled requests from the head, oldest
// first, without removing them from the local ledger.
func (s *Store) ListHead(_ context.Context, limit int) (*rqclient.HeadListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := limit
	if n > len(s.head) {
		n = len(s.head)
	}
	items := make([]rqclient.HeadItem, 0, n)
	for _, id := range s.head[:n] {
		req, err := s.readRequestFile(id + ".json")
		if err != nil {
			continue
		}
		items = append(items, rqclient.HeadItem{ID: req.ID, UniqueKey: req.UniqueKey})
	}
	return &rqclient.HeadListResult{
		Items:              items,
		QueueModifiedAt:    s.meta.ModifiedAt,
		HadMultipleClients: false,
	}, nil
}

// ListAndLockHead behaves like ListHead; the single-process emulator has no
// other clients to lock against.
func (s *Store) ListAndLockHead(ctx context.Context, _ int, limit int) (*rqclient.HeadListResult, error) {
	return s.ListHead(ctx, limit)
}

func (s *Store) appendToHead(id string, forefront bool) {
	for i, existing := range s.head {
		if existing == id {
			s.head = append(s.head[:i], s.head[i+1:]...)
			break
		}
	}
	if forefront {
		s.head = append([]string{id}, s.head...)
		return
	}
	s.head = append(s.head, id)
}

// AddRequest writes a new request file, or reports WasAlreadyPresent if a
// request with the same id already exists.
func (s *Store) AddRequest(_ context.Context, req rqclient.Request, forefront bool) (*rqclient.QueueOperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		id, err := idgen.New().NewRequestID()
		if err != nil {
			return nil, fmt.Errorf("localstore: generate request id: %w", err)
		}
		req.ID = id
	}

	if existing, err := s.readRequestFile(req.ID + ".json"); err == nil && existing != nil {
		return &rqclient.QueueOperationResult{
			RequestID:         existing.ID,
			UniqueKey:         existing.UniqueKey,
			WasAlreadyPresent: true,
			WasAlreadyHandled: existing.IsHandled(),
		}, nil
	}

	if err := s.writeRequestFile(req); err != nil {
		return nil, err
	}
	if req.HandledAt == nil {
		s.appendToHead(req.ID, forefront)
	}
	s.meta.ItemCount++
	s.touchModified()

	return &rqclient.QueueOperationResult{RequestID: req.ID, UniqueKey: req.UniqueKey}, nil
}

// GetRequest returns a request by id, or rqclient.ErrNotFound.
func (s *Store) GetRequest(_ context.Context, id string) (*rqclient.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.readRequestFile(id + ".json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rqclient.ErrNotFound
		}
		return nil, fmt.Errorf("localstore: read request: %w", err)
	}
	return req, nil
}

// UpdateRequest overwrites a request's file, e.g. to set HandledAt.
func (s *Store) UpdateRequest(_ context.Context, req rqclient.Request, forefront bool) (*rqclient.QueueOperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readRequestFile(req.ID + ".json")
	wasAlreadyHandled := err == nil && existing != nil && existing.IsHandled()

	if err := s.writeRequestFile(req); err != nil {
		return nil, err
	}
	if req.HandledAt != nil {
		s.removeFromHead(req.ID)
	} else {
		s.appendToHead(req.ID, forefront)
	}
	s.touchModified()

	return &rqclient.QueueOperationResult{
		RequestID:         req.ID,
		UniqueKey:         req.UniqueKey,
		WasAlreadyHandled: wasAlreadyHandled,
	}, nil
}

func (s *Store) removeFromHead(id string) {
	for i, existing := range s.head {
		if existing == id {
			s.head = append(s.head[:i], s.head[i+1:]...)
			return
		}
	}
}

// DeleteRequest removes a request. Idempotent on not-found.
func (s *Store) DeleteRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeFromHead(id)
	if err := s.backend.remove(id + ".json"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localstore: delete request: %w", err)
	}
	s.touchModified()
	return nil
}

// ProlongRequestLock is a no-op: the single-process emulator has no other
// clients to exclude.
func (s *Store) ProlongRequestLock(_ context.Context, _ string, _ int, _ bool) error {
	return nil
}

// DeleteRequestLock is a no-op for the same reason as ProlongRequestLock.
func (s *Store) DeleteRequestLock(_ context.Context, _ string, _ bool) error {
	return nil
}

// BatchAddRequests adds each request independently, collecting per-item
// results so a single failure doesn't abort the batch.
func (s *Store) BatchAddRequests(ctx context.Context, reqs []rqclient.Request, forefront bool) ([]rqclient.BatchResult, error) {
	out := make([]rqclient.BatchResult, 0, len(reqs))
	for _, r := range reqs {
		result, err := s.AddRequest(ctx, r, forefront)
		br := rqclient.BatchResult{UniqueKey: r.UniqueKey, Err: err}
		if result != nil {
			br.Result = *result
		}
		out = append(out, br)
	}
	return out, nil
}

// BatchDeleteRequests deletes each id, ignoring not-found per id.
func (s *Store) BatchDeleteRequests(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.DeleteRequest(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListRequests paginates through every request in the queue, sorted by id
// for a stable ordering across calls.
func (s *Store) ListRequests(_ context.Context, limit int, exclusiveStartID string) (*rqclient.RequestPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.backend.list()
	if err != nil {
		return nil, fmt.Errorf("localstore: list queue contents: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !strings.HasSuffix(e.name, ".json") || e.name == metadataFileName {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.name, ".json"))
	}
	sort.Strings(ids)

	start := 0
	if exclusiveStartID != "" {
		for i, id := range ids {
			if id == exclusiveStartID {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	if start > len(ids) {
		start = len(ids)
	}

	page := &rqclient.RequestPage{}
	for _, id := range ids[start:end] {
		req, err := s.readRequestFile(id + ".json")
		if err != nil {
			continue
		}
		page.Items = append(page.Items, *req)
	}
	if end < len(ids) {
		page.NextExclusiveID = ids[end-1]
	}
	return page, nil
}

var _ rqclient.Client = (*Store)(nil)
