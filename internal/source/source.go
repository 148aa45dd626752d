package source

import (
	"context"

	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
)

const DefaultMigrationsFolder = "./migrations"

var (
	ErrDuplicateIdentifier = errors.New("identifier appears more than once in the catalog")
	ErrVersionMismatch     = errors.New("manifest version does not match its file name")
	ErrAlreadyExists       = errors.New("migration already exists")
)

type Options struct {
	// RequireSchema makes resolution fail for migrations without a schema
	RequireSchema bool
}

// Selector lists every identifier known to the catalog in catalog order
type Selector interface {
	List(ctx context.Context) (migration.Identifiers, error)
}

// Resolver builds a fresh migration definition for the identifier
type Resolver interface {
	Resolve(ctx context.Context, name string) (*migration.Migration, error)
}

type Catalog interface {
	Selector
	Resolver
}

// Source is a catalog that can also author new migrations
type Source interface {
	Catalog

	IsValid() bool
	AlreadyExists(version string) bool
	Create(version, description string) (*migration.Migration, error)
}

func validate(m *migration.Migration, name string, opts Options) error {
	if m.Version == "" {
		return errors.Wrapf(migration.ErrMissingVersion, "migration [%s]", name)
	}

	if m.Description == "" {
		return errors.Wrapf(migration.ErrMissingDescription, "migration [%s]", name)
	}

	if opts.RequireSchema && m.Schema == nil {
		return errors.Wrapf(migration.ErrMissingSchema, "migration [%s]", name)
	}

	return nil
}
