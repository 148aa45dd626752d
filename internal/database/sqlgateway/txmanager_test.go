package sqlgateway

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TxManager(t *testing.T) {
	ctx := context.Background()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	txm := NewTxManager(db)
	count := func() int {
		var n int
		require.NoError(t, db.GetContext(ctx, &n, "SELECT COUNT(*) FROM items"))
		return n
	}

	t.Run("commit", func(t *testing.T) {
		err := txm.ReadWrite(ctx, func(ctx context.Context, ex Executor) error {
			_, err := ex.ExecContext(ctx, "INSERT INTO items (id) VALUES (1)")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on callback error", func(t *testing.T) {
		boom := errors.New("boom")
		err := txm.ReadWrite(ctx, func(ctx context.Context, ex Executor) error {
			if _, err := ex.ExecContext(ctx, "INSERT INTO items (id) VALUES (2)"); err != nil {
				return err
			}
			return boom
		})
		assert.Equal(t, boom, err)
		assert.Equal(t, 1, count())
	})

	t.Run("deadlocks are reported as such", func(t *testing.T) {
		err := txm.ReadWrite(ctx, func(context.Context, Executor) error {
			return errors.New("Deadlock found when trying to get lock")
		})
		assert.True(t, errors.Is(err, ErrTxDeadlock))
	})
}

func Test_Isolation(t *testing.T) {
	tt := []struct {
		iso  ISO
		want sql.IsolationLevel
	}{
		{iso: Serializable, want: sql.LevelSerializable},
		{iso: RepeatableRead, want: sql.LevelRepeatableRead},
		{iso: ReadCommitted, want: sql.LevelReadCommitted},
	}

	for _, tc := range tt {
		var cfg TxConfig
		Isolation(tc.iso)(&cfg)
		assert.Equal(t, tc.want, cfg.Iso)
	}
}
