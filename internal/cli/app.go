package cli

import (
	"context"

	"github.com/denismitr/kvtern"
	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/internal/source"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var (
	ErrMigrationAlreadyExists = errors.New("migration already exists")
	ErrFolderInvalid          = errors.New("migrations folder is invalid")
	ErrSourceTypeIsNotValid   = errors.New("source type is not valid")
)

type (
	CloserFunc func() error

	// ActionConfig names an action or, when Named is set, a named
	// migration to run once
	ActionConfig struct {
		Action string
		Target string
		Named  bool
		DryRun bool
	}

	// Status is a snapshot of the ledger against the catalog
	Status struct {
		Current     migration.Identifier
		Past        migration.Entries
		Outstanding migration.Identifiers
		Named       migration.Identifiers
	}

	App struct {
		source   source.Source
		migrator *kvtern.Migrator
	}
)

func NewFromYaml(path string, registry *migration.Registry, p logger.Printer) (*App, CloserFunc, error) {
	cfg, err := ConfigFromYaml(path)
	if err != nil {
		return nil, nil, err
	}

	return New(cfg, registry, p)
}

// New builds the app for the store behind the database url, bodies of
// migrations are looked up in the registry
func New(cfg Config, registry *migration.Registry, p logger.Printer) (*App, CloserFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	storeOpt, dbCloser, err := storeOption(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	var sourceOpts []kvtern.SourceConfigurator
	if cfg.RequireSchema {
		sourceOpts = append(sourceOpts, kvtern.WithRequiredSchema())
	}

	opts := []kvtern.OptionFunc{
		kvtern.UseColorLogger(p, cfg.Debug),
		storeOpt,
		kvtern.UseLocalFolderSource(cfg.MigrationsFolder, registry, sourceOpts...),
	}

	m, closer, err := kvtern.NewMigrator(opts...)
	if err != nil {
		return nil, nil, multierr.Append(err, dbCloser())
	}

	s := m.Source()
	if s == nil {
		return nil, nil, multierr.Combine(ErrSourceTypeIsNotValid, closer(), dbCloser())
	}

	return &App{
		source:   s,
		migrator: m,
	}, func() error { return multierr.Append(closer(), dbCloser()) }, nil
}

func (app *App) CreateMigration(version, description string) (*migration.Migration, error) {
	if !app.source.IsValid() {
		return nil, ErrFolderInvalid
	}

	if app.source.AlreadyExists(version) {
		return nil, errors.Wrapf(ErrMigrationAlreadyExists, "version [%s]", version)
	}

	return app.source.Create(version, description)
}

// Apply resolves the action name and runs it
func (app *App) Apply(ctx context.Context, cfg ActionConfig) (migration.Migrations, error) {
	var configurators []kvtern.ActionConfigurator
	if cfg.DryRun {
		configurators = append(configurators, kvtern.WithDryRun())
	}

	if cfg.Named {
		return app.migrator.RunNamed(ctx, cfg.Action, configurators...)
	}

	return app.migrator.Run(ctx, cfg.Action, cfg.Target, configurators...)
}

func (app *App) Status(ctx context.Context, limit int) (Status, error) {
	var st Status
	var err error

	if st.Current, err = app.migrator.CurrentVersion(ctx); err != nil {
		return st, err
	}

	if st.Past, err = app.migrator.PastMigrations(ctx); err != nil {
		return st, err
	}

	if st.Outstanding, err = app.migrator.OutstandingVersions(ctx, limit); err != nil {
		return st, err
	}

	if st.Named, err = app.migrator.NamedMigrations(ctx, limit); err != nil {
		return st, err
	}

	return st, nil
}
