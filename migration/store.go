package migration

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type (
	// Store is the handle migration bodies receive, it always
	// supports schema synchronization
	Store interface {
		ActivateSchema(ctx context.Context, s *Schema) error
		PersistSchema(ctx context.Context, s *Schema) error
		CurrentSchema(ctx context.Context) (*Schema, error)
	}

	Item map[string]interface{}

	// ItemStore is implemented by key-value stores, items are keyed by
	// the primary index of the active schema
	ItemStore interface {
		Store

		Put(ctx context.Context, model string, item Item) error
		Get(ctx context.Context, model string, key Item) (Item, error)
		Delete(ctx context.Context, model string, key Item) error
		Scan(ctx context.Context, model string, fn func(Item) error) error
	}

	SQLStore interface {
		Store

		DB() *sqlx.DB
	}

	// Runner gives migration bodies read access to the catalog and the ledger
	Runner interface {
		CurrentVersion(ctx context.Context) (Identifier, error)
		OutstandingVersions(ctx context.Context, limit int) (Identifiers, error)
		PastMigrations(ctx context.Context) (Entries, error)
	}

	Options struct {
		DryRun bool
	}
)
