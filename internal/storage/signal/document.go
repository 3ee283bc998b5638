package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/storage/archive"
)

// DocumentStore keeps the signals log as a single JSON list in archive
// storage. Reads use the copy loaded on first use or by Reload. Insert and
// Update re-read the document before rewriting it, so records appended by
// another writer since the last load are kept.
type DocumentStore struct {
	storage archive.Storage
	path    string

	mu     sync.Mutex // serializes load and persist
	loaded bool
	mem    *MemoryStore
}

// NewDocumentStore creates a store over the document at path.
func NewDocumentStore(storage archive.Storage, path string) *DocumentStore {
	return &DocumentStore{
		storage: storage,
		path:    path,
		mem:     NewMemoryStore(),
	}
}

var _ Store = (*DocumentStore)(nil)

// Reload drops the loaded copy and reads the document again.
func (d *DocumentStore) Reload(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read(ctx)
}

func (d *DocumentStore) load(ctx context.Context) error {
	if d.loaded {
		return nil
	}
	return d.read(ctx)
}

func (d *DocumentStore) read(ctx context.Context) error {
	data, err := d.storage.Read(ctx, d.path)
	if errors.Is(err, archive.ErrNotExist) {
		d.mem = NewMemoryStore()
		d.loaded = true
		return nil
	}
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("reading %s: %w", d.path, err))
	}

	var signals []core.Signal
	if err := json.Unmarshal(data, &signals); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding %s: %w", d.path, err))
	}

	mem := NewMemoryStore()
	for _, sig := range signals {
		// Later duplicates of an id win, as a rewrite of the same record.
		mem.signals[sig.ID] = sig
	}
	d.mem = mem
	d.loaded = true
	return nil
}

func (d *DocumentStore) persist(ctx context.Context) error {
	data, err := json.MarshalIndent(d.mem.all(), "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := d.storage.Write(ctx, d.path, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", d.path, err))
	}
	return nil
}

func (d *DocumentStore) List(ctx context.Context, filter ListFilter) ([]core.Signal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(ctx); err != nil {
		return nil, err
	}
	return d.mem.List(ctx, filter)
}

func (d *DocumentStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(ctx); err != nil {
		return 0, err
	}
	return d.mem.Count(ctx, filter)
}

func (d *DocumentStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(ctx); err != nil {
		return nil, err
	}
	return d.mem.GetByID(ctx, id)
}

// Insert adds sig and rewrites the document. On a write failure the
// in-memory state is rolled back.
func (d *DocumentStore) Insert(ctx context.Context, sig core.Signal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.read(ctx); err != nil {
		return err
	}

	if err := d.mem.Insert(ctx, sig); err != nil {
		return err
	}
	if err := d.persist(ctx); err != nil {
		d.mem.mu.Lock()
		delete(d.mem.signals, sig.ID)
		d.mem.mu.Unlock()
		return err
	}
	return nil
}

// Update replaces sig and rewrites the document. On a write failure the
// previous record is restored.
func (d *DocumentStore) Update(ctx context.Context, sig core.Signal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.read(ctx); err != nil {
		return err
	}

	prev, err := d.mem.GetByID(ctx, sig.ID)
	if err != nil {
		return err
	}
	if err := d.mem.Update(ctx, sig); err != nil {
		return err
	}
	if err := d.persist(ctx); err != nil {
		_ = d.mem.Update(ctx, *prev)
		return err
	}
	return nil
}
