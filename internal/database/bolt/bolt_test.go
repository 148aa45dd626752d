package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()

	s, err := Open(Options{Path: path})
	require.NoError(t, err)

	return s
}

func schemaV1() *migration.Schema {
	return &migration.Schema{
		Format:  migration.SchemaFormat,
		Version: "1.0.0",
		Indexes: map[string]migration.Index{
			migration.PrimaryIndex: {Hash: "pk", Sort: "sk"},
		},
		Models: map[string]migration.Model{
			"User": {"pk": {Type: "string", Required: true}, "name": {Type: "string"}},
		},
	}
}

func Test_BoltLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.bolt")
	s := openStore(t, path)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, migration.Entry{Version: "0.2.0", Status: migration.StatusSuccess, MigratedAt: now.Add(time.Second)}, database.InsertIfAbsent))
	require.NoError(t, s.Record(ctx, migration.Entry{Version: "0.10.0", Status: migration.StatusSuccess, MigratedAt: now.Add(2 * time.Second)}, database.InsertIfAbsent))
	require.NoError(t, s.Record(ctx, migration.Entry{Version: "0.1.0", Status: migration.StatusSuccess, MigratedAt: now}, database.InsertIfAbsent))

	err := s.Record(ctx, migration.Entry{Version: "0.2.0"}, database.InsertIfAbsent)
	assert.True(t, errors.Is(err, migration.ErrDuplicateEntry))

	require.NoError(t, s.Record(ctx, migration.Entry{Version: "0.2.0", Status: "boom", MigratedAt: now.Add(time.Second)}, database.Upsert))

	entries, err := s.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"0.1.0", "0.2.0", "0.10.0"}, []string{entries[0].Version, entries[1].Version, entries[2].Version})
	assert.Equal(t, "boom", entries[1].Status)
	assert.True(t, entries[0].MigratedAt.Equal(now))

	require.NoError(t, s.Remove(ctx, "0.10.0"))
	require.NoError(t, s.Remove(ctx, "0.10.0"))

	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()

	entries, err = s.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "ledger survives reopening the file")

	require.NoError(t, s.Clear(ctx))
	entries, err = s.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, s.Record(ctx, migration.Entry{Version: "1.0.0"}, database.InsertIfAbsent))
}

func Test_BoltSchemaSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "schema.bolt")
	s := openStore(t, path)

	current, err := s.CurrentSchema(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	require.NoError(t, s.ActivateSchema(ctx, nil))
	require.NoError(t, s.PersistSchema(ctx, nil))
	require.NoError(t, s.PersistSchema(ctx, schemaV1()))
	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()

	current, err = s.CurrentSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemaV1(), current)

	t.Run("persisted snapshot keys items after reopening", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "User", migration.Item{"pk": "u", "sk": "1", "name": "foo"}))

		item, err := s.Get(ctx, "User", migration.Item{"pk": "u", "sk": "1"})
		require.NoError(t, err)
		assert.Equal(t, "foo", item["name"])
	})
}

func Test_BoltItems(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "items.bolt"))
	defer s.Close()

	t.Run("items need a key layout", func(t *testing.T) {
		err := s.Put(ctx, "User", migration.Item{"pk": "u", "sk": "1"})
		assert.True(t, errors.Is(err, migration.ErrNoKeyLayout))
	})

	require.NoError(t, s.ActivateSchema(ctx, schemaV1()))

	require.NoError(t, s.Put(ctx, "User", migration.Item{"pk": "u", "sk": "2", "name": "bar"}))
	require.NoError(t, s.Put(ctx, "User", migration.Item{"pk": "u", "sk": "1", "name": "foo"}))

	var names []string
	require.NoError(t, s.Scan(ctx, "User", func(item migration.Item) error {
		names = append(names, item["name"].(string))
		return nil
	}))
	assert.Equal(t, []string{"foo", "bar"}, names)

	t.Run("scan callback may write to the store", func(t *testing.T) {
		err := s.Scan(ctx, "User", func(item migration.Item) error {
			item["name"] = item["name"].(string) + "!"
			return s.Put(ctx, "User", item)
		})
		require.NoError(t, err)

		item, err := s.Get(ctx, "User", migration.Item{"pk": "u", "sk": "2"})
		require.NoError(t, err)
		assert.Equal(t, "bar!", item["name"])
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "User", migration.Item{"pk": "u", "sk": "1"}))
		require.NoError(t, s.Delete(ctx, "Unknown", migration.Item{"pk": "u", "sk": "1"}))

		_, err := s.Get(ctx, "User", migration.Item{"pk": "u", "sk": "1"})
		assert.True(t, errors.Is(err, migration.ErrItemNotFound))

		_, err = s.Get(ctx, "Unknown", migration.Item{"pk": "u", "sk": "1"})
		assert.True(t, errors.Is(err, migration.ErrItemNotFound))
	})

	t.Run("scan of an unknown model visits nothing", func(t *testing.T) {
		visited := 0
		require.NoError(t, s.Scan(ctx, "Unknown", func(migration.Item) error {
			visited++
			return nil
		}))
		assert.Zero(t, visited)
	})

	t.Run("missing key attribute", func(t *testing.T) {
		err := s.Put(ctx, "User", migration.Item{"pk": "u"})
		assert.True(t, errors.Is(err, migration.ErrMissingKey))
	})
}

func Test_BoltNumericKeysSurviveRewrite(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "numeric.bolt"))
	defer s.Close()

	require.NoError(t, s.ActivateSchema(ctx, schemaV1()))
	require.NoError(t, s.Put(ctx, "Order", migration.Item{"pk": 1234567, "sk": "a", "total": 10}))

	var scanned []migration.Item
	require.NoError(t, s.Scan(ctx, "Order", func(item migration.Item) error {
		scanned = append(scanned, item)
		return nil
	}))
	require.Len(t, scanned, 1)
	assert.Equal(t, "1234567", fmt.Sprint(scanned[0]["pk"]))

	scanned[0]["total"] = 20
	require.NoError(t, s.Put(ctx, "Order", scanned[0]))

	count := 0
	require.NoError(t, s.Scan(ctx, "Order", func(item migration.Item) error {
		count++
		assert.Equal(t, "20", fmt.Sprint(item["total"]))
		return nil
	}))
	assert.Equal(t, 1, count)

	item, err := s.Get(ctx, "Order", migration.Item{"pk": 1234567, "sk": "a"})
	require.NoError(t, err)
	assert.Equal(t, "20", fmt.Sprint(item["total"]))
}

func Test_BoltCustomBuckets(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Options{
		Path:          filepath.Join(t.TempDir(), "custom.bolt"),
		CommonOptions: database.CommonOptions{MigrationsTable: "ledger", SchemasTable: "snapshots"},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []byte("ledger"), s.migrationsBucket)
	assert.Equal(t, []byte("snapshots"), s.schemasBucket)
	assert.Equal(t, DefaultOpenTimeout, s.opts.OpenTimeout)

	require.NoError(t, s.Record(ctx, migration.Entry{Version: "1.0.0"}, database.InsertIfAbsent))
	assert.NotNil(t, s.DB())
}
