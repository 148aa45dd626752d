package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
)

// DefaultLayoutTTL is how long a described key layout is trusted
const DefaultLayoutTTL = 60 * time.Second

const keySeparator = "#"

// KeyLayout names the attributes items are keyed by
type KeyLayout struct {
	Hash string
	Sort string
}

// LayoutFromSchema derives the key layout from the primary index
func LayoutFromSchema(s *migration.Schema) (KeyLayout, error) {
	idx, ok := s.Primary()
	if !ok {
		return KeyLayout{}, migration.ErrNoKeyLayout
	}

	return KeyLayout{Hash: idx.Hash, Sort: idx.Sort}, nil
}

// Key builds the storage key of the item
func (l KeyLayout) Key(item migration.Item) (string, error) {
	hash, ok := item[l.Hash]
	if !ok || hash == nil {
		return "", errors.Wrapf(migration.ErrMissingKey, "hash attribute [%s]", l.Hash)
	}

	if l.Sort == "" {
		return fmt.Sprint(hash), nil
	}

	sort, ok := item[l.Sort]
	if !ok || sort == nil {
		return "", errors.Wrapf(migration.ErrMissingKey, "sort attribute [%s]", l.Sort)
	}

	return strings.Join([]string{fmt.Sprint(hash), fmt.Sprint(sort)}, keySeparator), nil
}

// DescribeFunc fetches the key layout from the store
type DescribeFunc func(ctx context.Context) (KeyLayout, error)

// LayoutCache holds the last described key layout and refreshes it
// once it is older than the ttl
type LayoutCache struct {
	mu        sync.Mutex
	clock     clock.Clock
	ttl       time.Duration
	describe  DescribeFunc
	layout    KeyLayout
	fetchedAt time.Time
	valid     bool
}

func NewLayoutCache(clk clock.Clock, ttl time.Duration, describe DescribeFunc) *LayoutCache {
	if clk == nil {
		clk = clock.New()
	}

	if ttl <= 0 {
		ttl = DefaultLayoutTTL
	}

	return &LayoutCache{clock: clk, ttl: ttl, describe: describe}
}

func (c *LayoutCache) Get(ctx context.Context) (KeyLayout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.clock.Since(c.fetchedAt) < c.ttl {
		return c.layout, nil
	}

	layout, err := c.describe(ctx)
	if err != nil {
		return KeyLayout{}, err
	}

	c.layout = layout
	c.fetchedAt = c.clock.Now()
	c.valid = true

	return layout, nil
}

// Invalidate forces the next Get to describe the store again
func (c *LayoutCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
