package source

import (
	"context"

	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
)

type InMemorySource struct {
	migrations migration.Migrations
	opts       Options
}

var _ Catalog = (*InMemorySource)(nil)

func NewInMemorySource(opts Options, factories ...migration.Factory) (*InMemorySource, error) {
	m, err := migration.NewMigrations(factories...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(m))
	for i := range m {
		if seen[m[i].Version] {
			return nil, errors.Wrapf(ErrDuplicateIdentifier, "%s", m[i].Version)
		}
		seen[m[i].Version] = true
	}

	return &InMemorySource{
		migrations: m,
		opts:       opts,
	}, nil
}

func (s *InMemorySource) List(_ context.Context) (migration.Identifiers, error) {
	return s.migrations.Identifiers(), nil
}

func (s *InMemorySource) Resolve(_ context.Context, name string) (*migration.Migration, error) {
	for _, m := range s.migrations {
		if m.Version != name {
			continue
		}

		if err := validate(m, name, s.opts); err != nil {
			return nil, err
		}

		return m.Copy(), nil
	}

	return nil, errors.Wrapf(migration.ErrNotFound, "cannot find migration [%s]", name)
}
