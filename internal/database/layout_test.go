package database

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LayoutFromSchema(t *testing.T) {
	t.Run("primary index", func(t *testing.T) {
		s := &migration.Schema{Indexes: map[string]migration.Index{
			migration.PrimaryIndex: {Hash: "pk", Sort: "sk"},
		}}

		layout, err := LayoutFromSchema(s)
		require.NoError(t, err)
		assert.Equal(t, KeyLayout{Hash: "pk", Sort: "sk"}, layout)
	})

	tt := []struct {
		name   string
		schema *migration.Schema
	}{
		{name: "nil schema", schema: nil},
		{name: "no indexes", schema: &migration.Schema{}},
		{name: "only a secondary index", schema: &migration.Schema{Indexes: map[string]migration.Index{
			"gs1": {Hash: "gs1pk"},
		}}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LayoutFromSchema(tc.schema)
			assert.True(t, errors.Is(err, migration.ErrNoKeyLayout))
		})
	}
}

func Test_KeyLayout(t *testing.T) {
	t.Run("hash and sort", func(t *testing.T) {
		key, err := KeyLayout{Hash: "pk", Sort: "sk"}.Key(migration.Item{"pk": "user", "sk": 42})
		require.NoError(t, err)
		assert.Equal(t, "user#42", key)
	})

	t.Run("hash only", func(t *testing.T) {
		key, err := KeyLayout{Hash: "pk"}.Key(migration.Item{"pk": "user", "name": "foo"})
		require.NoError(t, err)
		assert.Equal(t, "user", key)
	})

	t.Run("missing hash", func(t *testing.T) {
		_, err := KeyLayout{Hash: "pk", Sort: "sk"}.Key(migration.Item{"sk": 1})
		assert.True(t, errors.Is(err, migration.ErrMissingKey))
	})

	t.Run("missing sort", func(t *testing.T) {
		_, err := KeyLayout{Hash: "pk", Sort: "sk"}.Key(migration.Item{"pk": "user", "sk": nil})
		assert.True(t, errors.Is(err, migration.ErrMissingKey))
	})
}

func Test_LayoutCache(t *testing.T) {
	calls := 0
	layout := KeyLayout{Hash: "pk"}
	describe := func(_ context.Context) (KeyLayout, error) {
		calls++
		return layout, nil
	}

	clk := clock.NewMock()
	cache := NewLayoutCache(clk, 10*time.Second, describe)
	ctx := context.Background()

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, KeyLayout{Hash: "pk"}, got)
	assert.Equal(t, 1, calls)

	layout = KeyLayout{Hash: "pk", Sort: "sk"}

	clk.Add(5 * time.Second)
	got, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, KeyLayout{Hash: "pk"}, got, "layout is served from the cache within the ttl")
	assert.Equal(t, 1, calls)

	clk.Add(5 * time.Second)
	got, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, KeyLayout{Hash: "pk", Sort: "sk"}, got)
	assert.Equal(t, 2, calls)

	cache.Invalidate()
	_, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	t.Run("describe errors are not cached", func(t *testing.T) {
		failing := NewLayoutCache(clk, 0, func(_ context.Context) (KeyLayout, error) {
			return KeyLayout{}, migration.ErrNoKeyLayout
		})

		_, err := failing.Get(ctx)
		assert.True(t, errors.Is(err, migration.ErrNoKeyLayout))
		assert.False(t, failing.valid)
		assert.Equal(t, DefaultLayoutTTL, failing.ttl)
	})
}

func Test_RecordMode(t *testing.T) {
	assert.Equal(t, "insert-if-absent", InsertIfAbsent.String())
	assert.Equal(t, "upsert", Upsert.String())
}
