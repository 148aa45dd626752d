package sqlgateway

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/migration"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteGateway(t *testing.T, opts *SqliteOptions) *SQLGateway {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	connector := MakeRetryingConnector(db, SqliteDialectName, &ConnectOptions{
		MaxAttempts: 2,
		MaxTimeout:  5 * time.Second,
		RetryStep:   10 * time.Millisecond,
	})

	return NewSqliteGateway(connector, opts)
}

func Test_SqliteLedger(t *testing.T) {
	ctx := context.Background()
	g := sqliteGateway(t, &SqliteOptions{})
	defer g.Close()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []migration.Entry{
		{Version: "0.2.0", Description: "second", Path: "0.2.0.yaml", Status: migration.StatusSuccess, MigratedAt: now.Add(time.Second)},
		{Version: "0.1.0", Description: "first", Path: "0.1.0.yaml", Status: migration.StatusSuccess, MigratedAt: now},
		{Version: "0.2.0-fix", Description: "fix", Status: migration.StatusSuccess, Order: 1, MigratedAt: now.Add(time.Second)},
	}

	for _, e := range entries {
		require.NoError(t, g.Record(ctx, e, database.InsertIfAbsent))
	}

	t.Run("insert if absent maps the duplicate key", func(t *testing.T) {
		err := g.Record(ctx, entries[0], database.InsertIfAbsent)
		assert.True(t, errors.Is(err, migration.ErrDuplicateEntry))
	})

	t.Run("entries are ordered by time then order", func(t *testing.T) {
		found, err := g.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, found, 3)

		assert.Equal(t, "0.1.0", found[0].Version)
		assert.Equal(t, "first", found[0].Description)
		assert.Equal(t, "0.1.0.yaml", found[0].Path)
		assert.True(t, found[0].MigratedAt.Equal(now))
		assert.Equal(t, "0.2.0", found[1].Version)
		assert.Equal(t, "0.2.0-fix", found[2].Version)
		assert.Equal(t, 1, found[2].Order)
	})

	t.Run("upsert replaces the entry", func(t *testing.T) {
		failed := entries[1]
		failed.Status = "boom"
		require.NoError(t, g.Record(ctx, failed, database.Upsert))

		found, err := g.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, found, 3)

		e, ok := found.Find("0.1.0")
		require.True(t, ok)
		assert.Equal(t, "boom", e.Status)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, g.Remove(ctx, "0.2.0-fix"))
		require.NoError(t, g.Remove(ctx, "0.2.0-fix"))

		found, err := g.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, g.Clear(ctx))

		found, err := g.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func Test_SqliteSchemaSnapshot(t *testing.T) {
	ctx := context.Background()
	g := sqliteGateway(t, &SqliteOptions{})
	g.SetClock(clock.NewMock())

	current, err := g.CurrentSchema(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	v1 := &migration.Schema{
		Format:  migration.SchemaFormat,
		Version: "1.0.0",
		Indexes: map[string]migration.Index{migration.PrimaryIndex: {Hash: "pk", Sort: "sk"}},
		Models:  map[string]migration.Model{"User": {"pk": {Type: "string", Required: true}}},
	}

	require.NoError(t, g.ActivateSchema(ctx, nil))
	require.NoError(t, g.PersistSchema(ctx, nil))
	require.NoError(t, g.ActivateSchema(ctx, v1))
	assert.Equal(t, v1, g.ActiveSchema())

	current, err = g.CurrentSchema(ctx)
	require.NoError(t, err)
	assert.Nil(t, current, "activation does not persist the snapshot")

	require.NoError(t, g.PersistSchema(ctx, v1))

	v2 := v1.Clone()
	v2.Version = "2.0.0"
	require.NoError(t, g.PersistSchema(ctx, v2))

	current, err = g.CurrentSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, current)
}

func Test_SqliteTables(t *testing.T) {
	ctx := context.Background()
	g := sqliteGateway(t, &SqliteOptions{
		CommonOptions: database.CommonOptions{MigrationsTable: "kv_ledger", SchemasTable: "kv_schemas"},
	})

	require.NoError(t, g.Record(ctx, migration.Entry{Version: "1.0.0", MigratedAt: time.Now()}, database.InsertIfAbsent))

	tables, err := g.ShowTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kv_ledger", "kv_schemas"}, tables)

	require.NoError(t, g.DropTables(ctx))

	tables, err = g.ShowTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kv_ledger", "kv_schemas"}, tables, "tables are recreated on the next use")

	found, err := g.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.NotNil(t, g.DB())
}

func Test_SqliteConcurrentUse(t *testing.T) {
	ctx := context.Background()
	g := sqliteGateway(t, &SqliteOptions{})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			e := migration.Entry{Version: fmt.Sprintf("1.%d.0", i), MigratedAt: now.Add(time.Duration(i) * time.Second)}
			errs <- g.Record(ctx, e, database.InsertIfAbsent)
		}()
		go func() {
			defer wg.Done()
			if g.DB() == nil {
				errs <- errors.New("no database handle")
				return
			}
			_, err := g.FindAll(ctx)
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	found, err := g.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, found, 8)

	require.NoError(t, g.DropTables(ctx))

	found, err = g.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, found, "tables are recreated after being dropped")
}

func Test_DialectDuplicateKey(t *testing.T) {
	tt := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{name: "mysql duplicate entry", dialect: mysqlDialect{}, err: errors.Wrap(&mysql.MySQLError{Number: 1062}, "insert"), want: true},
		{name: "mysql other error", dialect: mysqlDialect{}, err: &mysql.MySQLError{Number: 1146}, want: false},
		{name: "postgres unique violation", dialect: postgresDialect{}, err: &pq.Error{Code: "23505"}, want: true},
		{name: "postgres other error", dialect: postgresDialect{}, err: &pq.Error{Code: "42P01"}, want: false},
		{name: "sqlite plain error", dialect: sqliteDialect{}, err: errors.New("boom"), want: false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.dialect.IsDuplicateKey(tc.err))
		})
	}
}

func Test_MySQLGatewayDefaults(t *testing.T) {
	opts := &MySQLOptions{}
	g := NewMySQLGateway(MakeRetryingConnector(nil, MySQLDialectName, nil), opts)

	assert.Equal(t, MySQLDefaultCharset, opts.Charset)
	assert.Equal(t, database.DefaultMigrationsTable, g.migrationsTable)
	assert.Equal(t, database.DefaultSchemasTable, g.schemasTable)

	queries := g.dialect.InitQueries("m", "s")
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "CHARACTER SET=utf8mb4")
}
