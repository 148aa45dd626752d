package migration

import (
	"context"

	"github.com/pkg/errors"
)

// MemoryPath is reported as the origin of migrations from an in-memory source
const MemoryPath = "memory"

type (
	// Func is the body of a migration, it receives the store handle,
	// the runner for ledger introspection and the caller's options
	Func func(ctx context.Context, db Store, r Runner, o Options) error

	Migration struct {
		Version     string
		Description string
		Schema      *Schema
		Up          Func
		Down        Func
		Path        string
		Order       int
	}

	Migrations []*Migration

	Factory func() (*Migration, error)

	DefinitionOption func(m *Migration)
)

func New(version, description string, up, down Func, options ...DefinitionOption) Factory {
	return func() (*Migration, error) {
		m := &Migration{
			Version:     version,
			Description: description,
			Up:          up,
			Down:        down,
			Path:        MemoryPath,
		}

		for _, o := range options {
			o(m)
		}

		if err := m.Validate(); err != nil {
			return nil, err
		}

		return m, nil
	}
}

func WithSchema(s *Schema) DefinitionOption {
	return func(m *Migration) {
		m.Schema = s
	}
}

func WithOrder(order int) DefinitionOption {
	return func(m *Migration) {
		m.Order = order
	}
}

func NewMigrations(factories ...Factory) (Migrations, error) {
	migrations := make(Migrations, len(factories))

	for i := range factories {
		m, err := factories[i]()
		if err != nil {
			return nil, err
		}

		migrations[i] = m
	}

	return migrations, nil
}

// Validate checks that the definition carries a version and a description
func (m *Migration) Validate() error {
	if m.Version == "" {
		return errors.Wrapf(ErrMissingVersion, "migration with description [%s]", m.Description)
	}

	if m.Description == "" {
		return errors.Wrapf(ErrMissingDescription, "migration [%s]", m.Version)
	}

	return nil
}

func (m *Migration) Identifier() Identifier {
	id := ParseIdentifier(m.Version)
	id.Order = m.Order
	return id
}

// Body returns the procedure for the given direction, a missing
// procedure is a no-op
func (m *Migration) Body(d Direction) Func {
	var f Func
	if d == DirectionDown {
		f = m.Down
	} else {
		f = m.Up
	}

	if f == nil {
		return noop
	}

	return f
}

// Copy returns a shallow copy of the definition with its own schema document
func (m *Migration) Copy() *Migration {
	c := *m
	c.Schema = m.Schema.Clone()
	return &c
}

func (m Migrations) Versions() []string {
	result := make([]string, 0, len(m))
	for i := range m {
		result = append(result, m[i].Version)
	}
	return result
}

func (m Migrations) Identifiers() Identifiers {
	result := make(Identifiers, 0, len(m))
	for i := range m {
		result = append(result, m[i].Identifier())
	}
	return result
}

func noop(context.Context, Store, Runner, Options) error {
	return nil
}
