package kvtern

import (
	"time"

	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/database/bolt"
	"github.com/denismitr/kvtern/internal/database/memory"
)

type (
	MemoryOptionFunc func(*memory.Options)
	BoltOptionFunc   func(*bolt.Options)
)

// UseInMemoryStore keeps the ledger, the schema and the items in process memory
func UseInMemoryStore(options ...MemoryOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		memOpts := &memory.Options{LayoutTTL: database.DefaultLayoutTTL}

		for _, oFunc := range options {
			oFunc(memOpts)
		}

		m.newStore = func(m *Migrator) (database.Store, error) {
			if memOpts.Clock == nil {
				memOpts.Clock = m.clock
			}

			return memory.New(*memOpts), nil
		}

		return nil
	}
}

func WithMemoryLayoutTTL(ttl time.Duration) MemoryOptionFunc {
	return func(memOpts *memory.Options) {
		memOpts.LayoutTTL = ttl
	}
}

// UseBoltStore keeps the ledger, the schema and the items in a bolt file
func UseBoltStore(path string, options ...BoltOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		boltOpts := &bolt.Options{
			Path:        path,
			OpenTimeout: bolt.DefaultOpenTimeout,
			LayoutTTL:   database.DefaultLayoutTTL,
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
				SchemasTable:    database.DefaultSchemasTable,
			},
		}

		for _, oFunc := range options {
			oFunc(boltOpts)
		}

		m.newStore = func(m *Migrator) (database.Store, error) {
			if boltOpts.Clock == nil {
				boltOpts.Clock = m.clock
			}

			store, err := bolt.Open(*boltOpts)
			if err != nil {
				return nil, err
			}

			m.closerFns = append(m.closerFns, store.Close)

			return store, nil
		}

		return nil
	}
}

func WithBoltMigrationsBucket(bucket string) BoltOptionFunc {
	return func(boltOpts *bolt.Options) {
		boltOpts.MigrationsTable = bucket
	}
}

func WithBoltSchemasBucket(bucket string) BoltOptionFunc {
	return func(boltOpts *bolt.Options) {
		boltOpts.SchemasTable = bucket
	}
}

func WithBoltOpenTimeout(timeout time.Duration) BoltOptionFunc {
	return func(boltOpts *bolt.Options) {
		boltOpts.OpenTimeout = timeout
	}
}

func WithBoltLayoutTTL(ttl time.Duration) BoltOptionFunc {
	return func(boltOpts *bolt.Options) {
		boltOpts.LayoutTTL = ttl
	}
}
