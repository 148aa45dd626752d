package kvtern

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/engine"
	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/internal/source"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var ErrStoreNotInitialized = errors.New("migrations store has not been initialized")

type CloserFunc func() error

type (
	storeFactory  func(m *Migrator) (database.Store, error)
	sourceFactory func(m *Migrator) (source.Catalog, error)
)

type Migrator struct {
	lg        logger.Logger
	clock     clock.Clock
	store     database.Store
	catalog   source.Catalog
	engine    *engine.Engine
	closerFns []CloserFunc

	newStore  storeFactory
	newSource sourceFactory
}

// NewMigrator creates a migrator from the option callbacks, a store option
// is required, the migrations are read from the default local folder
// unless a source option is given
func NewMigrator(opts ...OptionFunc) (*Migrator, CloserFunc, error) {
	m := new(Migrator)
	m.lg = &logger.NullLogger{}
	m.clock = clock.New()

	for _, oFunc := range opts {
		if err := oFunc(m); err != nil {
			return nil, nil, err
		}
	}

	if m.newStore == nil {
		return nil, nil, ErrStoreNotInitialized
	}

	store, err := m.newStore(m)
	if err != nil {
		return nil, nil, err
	}

	m.store = store
	m.store.SetLogger(m.lg)

	// Default source implementation
	if m.newSource == nil {
		m.newSource = localFolderSource(source.DefaultMigrationsFolder, nil, sourceConfig{})
	}

	catalog, err := m.newSource(m)
	if err != nil {
		return nil, nil, multierr.Append(err, m.close())
	}

	m.catalog = catalog
	m.engine = engine.New(m.store, m.catalog, m.lg, m.clock)

	return m, m.close, nil
}

// Apply runs the action against the store, the target is the version
// for up, down and repeat, the executed migrations are returned
func (m *Migrator) Apply(
	ctx context.Context,
	action migration.Action,
	target string,
	cfs ...ActionConfigurator,
) (migration.Migrations, error) {
	var opts migration.Options
	for _, f := range cfs {
		f(&opts)
	}

	executed, err := m.engine.Apply(ctx, action, target, opts)
	if err != nil {
		if !errors.Is(err, migration.ErrNoChangesRequired) {
			m.lg.Error(err)
		}

		return executed, err
	}

	return executed, nil
}

// Run parses the action name or legacy numeric code and applies it
func (m *Migrator) Run(ctx context.Context, action, target string, cfs ...ActionConfigurator) (migration.Migrations, error) {
	a, err := migration.ParseAction(action)
	if err != nil {
		return nil, err
	}

	return m.Apply(ctx, a, target, cfs...)
}

func (m *Migrator) Up(ctx context.Context, target string, cfs ...ActionConfigurator) (migration.Migrations, error) {
	return m.Apply(ctx, migration.Up(), target, cfs...)
}

func (m *Migrator) Down(ctx context.Context, target string, cfs ...ActionConfigurator) (migration.Migrations, error) {
	return m.Apply(ctx, migration.Down(), target, cfs...)
}

func (m *Migrator) Reset(ctx context.Context, cfs ...ActionConfigurator) (migration.Migrations, error) {
	return m.Apply(ctx, migration.Reset(), "", cfs...)
}

func (m *Migrator) Repeat(ctx context.Context, target string, cfs ...ActionConfigurator) (migration.Migrations, error) {
	return m.Apply(ctx, migration.Repeat(), target, cfs...)
}

// RunNamed applies the named migration once
func (m *Migrator) RunNamed(ctx context.Context, name string, cfs ...ActionConfigurator) (migration.Migrations, error) {
	return m.Apply(ctx, migration.Named(name), "", cfs...)
}

func (m *Migrator) CurrentVersion(ctx context.Context) (migration.Identifier, error) {
	return m.engine.CurrentVersion(ctx)
}

func (m *Migrator) OutstandingVersions(ctx context.Context, limit int) (migration.Identifiers, error) {
	return m.engine.OutstandingVersions(ctx, limit)
}

func (m *Migrator) OutstandingMigrations(ctx context.Context, limit int) (migration.Migrations, error) {
	return m.engine.OutstandingMigrations(ctx, limit)
}

func (m *Migrator) PastMigrations(ctx context.Context) (migration.Entries, error) {
	return m.engine.PastMigrations(ctx)
}

func (m *Migrator) NamedMigrations(ctx context.Context, limit int) (migration.Identifiers, error) {
	return m.engine.NamedMigrations(ctx, limit)
}

// Store returns the handle migration bodies receive
func (m *Migrator) Store() migration.Store {
	return m.store
}

// Source - returns migrator catalog if it implements the full source.Source interface
func (m *Migrator) Source() source.Source {
	if s, ok := m.catalog.(source.Source); ok {
		return s
	}

	return nil
}

// Close the migrator
func (m *Migrator) close() error {
	if m.store == nil {
		return ErrStoreNotInitialized
	}

	var err error
	for i := len(m.closerFns) - 1; i >= 0; i-- {
		err = multierr.Append(err, m.closerFns[i]())
	}

	if err != nil {
		m.lg.Error(err)
	}

	return err
}
