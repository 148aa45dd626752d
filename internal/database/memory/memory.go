// Package memory is a store kept entirely in process memory, it is meant
// for tests and for previewing migrations without a real store
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
)

type Options struct {
	Clock     clock.Clock
	LayoutTTL time.Duration
}

type Store struct {
	mu sync.RWMutex
	lg logger.Logger

	entries  map[string]migration.Entry
	active   *migration.Schema
	snapshot *migration.Schema
	items    map[string]map[string]migration.Item

	layouts *database.LayoutCache
}

var _ database.Store = (*Store)(nil)
var _ migration.ItemStore = (*Store)(nil)

func New(opts Options) *Store {
	s := &Store{
		lg:      logger.NullLogger{},
		entries: make(map[string]migration.Entry),
		items:   make(map[string]map[string]migration.Item),
	}

	s.layouts = database.NewLayoutCache(opts.Clock, opts.LayoutTTL, s.describe)

	return s
}

func (s *Store) SetLogger(lg logger.Logger) {
	s.lg = lg
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) FindAll(_ context.Context) (migration.Entries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(migration.Entries, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})

	result.Sort()

	return result, nil
}

func (s *Store) Record(_ context.Context, e migration.Entry, mode database.RecordMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.Version]; ok && mode == database.InsertIfAbsent {
		return errors.Wrapf(migration.ErrDuplicateEntry, "version [%s]", e.Version)
	}

	s.entries[e.Version] = e
	return nil
}

func (s *Store) Remove(_ context.Context, version string) error {
	s.mu.Lock()
	delete(s.entries, version)
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]migration.Entry)
	s.mu.Unlock()
	return nil
}

func (s *Store) ActivateSchema(_ context.Context, schema *migration.Schema) error {
	if schema == nil {
		return nil
	}

	s.mu.Lock()
	s.active = schema.Clone()
	s.mu.Unlock()

	s.layouts.Invalidate()

	return nil
}

func (s *Store) PersistSchema(_ context.Context, schema *migration.Schema) error {
	if schema == nil {
		return nil
	}

	s.mu.Lock()
	s.snapshot = schema.Clone()
	s.mu.Unlock()

	return nil
}

// CurrentSchema returns the persisted snapshot
func (s *Store) CurrentSchema(_ context.Context) (*migration.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot.Clone(), nil
}

// ActiveSchema returns the schema reads and writes are currently shaped by
func (s *Store) ActiveSchema() *migration.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.active.Clone()
}

func (s *Store) Put(ctx context.Context, model string, item migration.Item) error {
	key, err := s.key(ctx, item)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.items[model]
	if !ok {
		bucket = make(map[string]migration.Item)
		s.items[model] = bucket
	}

	bucket[key] = copyItem(item)
	return nil
}

func (s *Store) Get(ctx context.Context, model string, key migration.Item) (migration.Item, error) {
	k, err := s.key(ctx, key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[model][k]
	if !ok {
		return nil, errors.Wrapf(migration.ErrItemNotFound, "model [%s] key [%s]", model, k)
	}

	return copyItem(item), nil
}

func (s *Store) Delete(ctx context.Context, model string, key migration.Item) error {
	k, err := s.key(ctx, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.items[model], k)
	s.mu.Unlock()

	return nil
}

// Scan visits the items of the model in key order
func (s *Store) Scan(_ context.Context, model string, fn func(migration.Item) error) error {
	s.mu.RLock()
	bucket := s.items[model]
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	items := make([]migration.Item, 0, len(bucket))
	sort.Strings(keys)
	for _, k := range keys {
		items = append(items, copyItem(bucket[k]))
	}
	s.mu.RUnlock()

	for _, item := range items {
		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) key(ctx context.Context, item migration.Item) (string, error) {
	layout, err := s.layouts.Get(ctx)
	if err != nil {
		return "", err
	}

	return layout.Key(item)
}

func (s *Store) describe(_ context.Context) (database.KeyLayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schema := s.active
	if schema == nil {
		schema = s.snapshot
	}

	return database.LayoutFromSchema(schema)
}

func copyItem(item migration.Item) migration.Item {
	c := make(migration.Item, len(item))
	for k, v := range item {
		c[k] = v
	}
	return c
}
