package database

import (
	"context"

	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/migration"
)

const (
	DefaultMigrationsTable = "migrations"
	DefaultSchemasTable    = "schemas"
)

// RecordMode tells the ledger how to treat an existing entry
type RecordMode uint8

const (
	// InsertIfAbsent fails with migration.ErrDuplicateEntry when the entry exists
	InsertIfAbsent RecordMode = iota
	// Upsert replaces an existing entry
	Upsert
)

func (m RecordMode) String() string {
	if m == Upsert {
		return "upsert"
	}
	return "insert-if-absent"
}

type CommonOptions struct {
	MigrationsTable string
	SchemasTable    string
}

// LedgerStore is the narrow contract every store adapter implements for
// the ledger, the engine never depends on the store's query capabilities
type LedgerStore interface {
	FindAll(ctx context.Context) (migration.Entries, error)
	Record(ctx context.Context, e migration.Entry, mode RecordMode) error
	Remove(ctx context.Context, version string) error
	Clear(ctx context.Context) error
}

// SchemaSyncer keeps the active schema of the store in line with
// the last applied migration
type SchemaSyncer interface {
	migration.Store
}

type Store interface {
	SchemaSyncer
	LedgerStore

	SetLogger(lg logger.Logger)
	Close() error
}
