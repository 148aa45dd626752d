package engine

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/ledger"
	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/internal/source"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
)

// Store is what the engine needs from a store adapter, the same
// value is handed to migration bodies
type Store interface {
	database.SchemaSyncer
	database.LedgerStore
}

type Engine struct {
	// one step at a time within an engine instance
	mu sync.Mutex

	store   Store
	catalog source.Catalog
	ledger  *ledger.Ledger
	lg      logger.Logger
	clock   clock.Clock

	lastStamp time.Time
}

var _ migration.Runner = (*Engine)(nil)

func New(store Store, catalog source.Catalog, lg logger.Logger, clk clock.Clock) *Engine {
	if lg == nil {
		lg = &logger.NullLogger{}
	}

	if clk == nil {
		clk = clock.New()
	}

	return &Engine{
		store:   store,
		catalog: catalog,
		ledger:  ledger.New(store, catalog),
		lg:      lg,
		clock:   clk,
	}
}

// Apply runs the action and returns the migrations whose bodies were executed,
// the target is a version for up, down and repeat and is ignored otherwise
func (e *Engine) Apply(
	ctx context.Context,
	action migration.Action,
	target string,
	opts migration.Options,
) (migration.Migrations, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lg.Debugf("run migration action [%s] target [%s] dry run [%v]", action, target, opts.DryRun)

	if opts.DryRun {
		current, err := e.ledger.CurrentVersion(ctx)
		if err != nil {
			return nil, err
		}

		// the active schema goes back to the one of the unchanged current version
		defer func() {
			if _, err := e.activate(ctx, current); err != nil {
				e.lg.Error(errors.Wrap(err, "could not reactivate schema after dry run"))
			}
		}()
	}

	switch action.Kind() {
	case migration.UpKind:
		return e.up(ctx, target, opts)
	case migration.DownKind:
		return e.down(ctx, target, opts)
	case migration.ResetKind:
		return e.reset(ctx, opts)
	case migration.RepeatKind:
		return e.repeat(ctx, target, opts)
	case migration.NamedKind:
		return e.named(ctx, action.Name(), opts)
	default:
		return nil, errors.Wrapf(migration.ErrInvalidAction, "%s", action)
	}
}

func (e *Engine) CurrentVersion(ctx context.Context) (migration.Identifier, error) {
	return e.ledger.CurrentVersion(ctx)
}

func (e *Engine) OutstandingVersions(ctx context.Context, limit int) (migration.Identifiers, error) {
	return e.ledger.OutstandingVersions(ctx, limit)
}

// OutstandingMigrations resolves the definitions of the outstanding versions
func (e *Engine) OutstandingMigrations(ctx context.Context, limit int) (migration.Migrations, error) {
	ids, err := e.ledger.OutstandingVersions(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := make(migration.Migrations, 0, len(ids))
	for _, id := range ids {
		m, err := e.catalog.Resolve(ctx, id.Name)
		if err != nil {
			return nil, err
		}

		result = append(result, m)
	}

	return result, nil
}

// PastMigrations returns the ledger ascending by the time of application
func (e *Engine) PastMigrations(ctx context.Context) (migration.Entries, error) {
	return e.ledger.FindAll(ctx)
}

// NamedMigrations lists the catalog identifiers that are not versions
func (e *Engine) NamedMigrations(ctx context.Context, limit int) (migration.Identifiers, error) {
	ids, err := e.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	return ids.Named().Limit(limit), nil
}

func (e *Engine) up(ctx context.Context, target string, opts migration.Options) (migration.Migrations, error) {
	entries, ids, err := e.state(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := planUp(ids, entries, target)
	if err != nil {
		return nil, err
	}

	var executed migration.Migrations
	for _, id := range plan {
		m, err := e.forward(ctx, id.Name, database.InsertIfAbsent, opts)
		if err != nil {
			return executed, err
		}

		executed = append(executed, m)
	}

	return executed, nil
}

func (e *Engine) down(ctx context.Context, target string, opts migration.Options) (migration.Migrations, error) {
	entries, err := e.ledger.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := planDown(entries, target)
	if err != nil {
		return nil, err
	}

	var executed migration.Migrations
	for _, id := range plan {
		m, err := e.backward(ctx, id.Name, opts)
		if err != nil {
			return executed, err
		}

		entries = remaining(entries, id.Name)
		executed = append(executed, m)

		if opts.DryRun {
			continue
		}

		if err := e.restore(ctx, ledger.Current(entries)); err != nil {
			return executed, err
		}
	}

	return executed, nil
}

func (e *Engine) reset(ctx context.Context, opts migration.Options) (migration.Migrations, error) {
	ids, err := e.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	versions, latest, err := rebuild(ids)
	if err != nil {
		return nil, err
	}

	m, err := e.catalog.Resolve(ctx, latest.Name)
	if err != nil {
		return nil, err
	}

	if err := e.invoke(ctx, m, migration.DirectionUp, opts); err != nil {
		return nil, err
	}

	if opts.DryRun {
		return migration.Migrations{m}, nil
	}

	if err := e.ledger.Clear(ctx); err != nil {
		return nil, err
	}

	for _, id := range versions {
		def, err := e.catalog.Resolve(ctx, id.Name)
		if err != nil {
			return nil, err
		}

		entry := migration.NewEntry(def, e.stamp(), migration.StatusSuccess)
		if err := e.ledger.Record(ctx, entry, database.InsertIfAbsent); err != nil {
			return nil, err
		}
	}

	if err := e.store.PersistSchema(ctx, m.Schema); err != nil {
		return nil, errors.Wrapf(err, "could not persist schema of [%s]", m.Version)
	}

	e.lg.Successf("ledger rebuilt with %d versions, store is at [%s]", len(versions), m.Version)

	return migration.Migrations{m}, nil
}

func (e *Engine) repeat(ctx context.Context, target string, opts migration.Options) (migration.Migrations, error) {
	if target == "" {
		current, err := e.ledger.CurrentVersion(ctx)
		if err != nil {
			return nil, err
		}

		if current.IsZero() {
			return nil, errors.Wrap(migration.ErrTargetNotFound, "no version to repeat")
		}

		target = current.Name
	}

	m, err := e.forward(ctx, target, database.Upsert, opts)
	if err != nil {
		return nil, err
	}

	return migration.Migrations{m}, nil
}

func (e *Engine) named(ctx context.Context, name string, opts migration.Options) (migration.Migrations, error) {
	if name == "" || migration.IsVersion(name) {
		return nil, errors.Wrapf(migration.ErrInvalidAction, "[%s] is not a named migration", name)
	}

	entries, err := e.ledger.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	mode := database.InsertIfAbsent
	if existing, ok := entries.Find(name); ok {
		if existing.Succeeded() {
			return nil, errors.Wrapf(migration.ErrDuplicateEntry, "named migration [%s] was already applied", name)
		}

		// a failed attempt is retried in place
		mode = database.Upsert
	}

	m, err := e.forward(ctx, name, mode, opts)
	if err != nil {
		return nil, err
	}

	return migration.Migrations{m}, nil
}

// forward resolves and runs the up body of a single migration, then
// persists its schema and records it in the ledger
func (e *Engine) forward(
	ctx context.Context,
	name string,
	mode database.RecordMode,
	opts migration.Options,
) (*migration.Migration, error) {
	m, err := e.catalog.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := e.invoke(ctx, m, migration.DirectionUp, opts); err != nil {
		return nil, err
	}

	if opts.DryRun {
		return m, nil
	}

	if err := e.store.PersistSchema(ctx, m.Schema); err != nil {
		return nil, errors.Wrapf(err, "could not persist schema of [%s]", m.Version)
	}

	if err := e.ledger.Record(ctx, migration.NewEntry(m, e.stamp(), migration.StatusSuccess), mode); err != nil {
		return nil, err
	}

	e.lg.Successf("migrated [%s] %s", m.Version, m.Description)

	return m, nil
}

// backward resolves and runs the down body of a single migration and
// removes it from the ledger
func (e *Engine) backward(ctx context.Context, name string, opts migration.Options) (*migration.Migration, error) {
	m, err := e.catalog.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := e.invoke(ctx, m, migration.DirectionDown, opts); err != nil {
		return nil, err
	}

	if opts.DryRun {
		return m, nil
	}

	if err := e.ledger.Remove(ctx, m.Version); err != nil {
		return nil, err
	}

	e.lg.Successf("rolled back [%s] %s", m.Version, m.Description)

	return m, nil
}

// restore brings the store schema back to the one of the given version,
// nothing is restored below the first version
func (e *Engine) restore(ctx context.Context, current migration.Identifier) error {
	m, err := e.activate(ctx, current)
	if err != nil || m == nil {
		return err
	}

	if err := e.store.PersistSchema(ctx, m.Schema); err != nil {
		return errors.Wrapf(err, "could not persist schema of [%s]", m.Version)
	}

	return nil
}

// activate makes the schema of the given version the active one,
// the zero version has no migration and activates nothing
func (e *Engine) activate(ctx context.Context, id migration.Identifier) (*migration.Migration, error) {
	if id.IsZero() {
		return nil, nil
	}

	m, err := e.catalog.Resolve(ctx, id.Name)
	if err != nil {
		return nil, err
	}

	if err := e.store.ActivateSchema(ctx, m.Schema); err != nil {
		return nil, errors.Wrapf(err, "could not activate schema of [%s]", m.Version)
	}

	return m, nil
}

// invoke activates the schema of the migration and runs its body, a failing
// body leaves a ledger entry with the error message as its status
func (e *Engine) invoke(ctx context.Context, m *migration.Migration, d migration.Direction, opts migration.Options) error {
	if err := e.store.ActivateSchema(ctx, m.Schema); err != nil {
		return errors.Wrapf(err, "could not activate schema of [%s]", m.Version)
	}

	e.lg.Debugf("invoke [%s] %s", m.Version, d)

	bodyErr := m.Body(d)(ctx, e.store, e, opts)
	if bodyErr == nil {
		return nil
	}

	mErr := &migration.Error{Version: m.Version, Direction: d, Err: bodyErr}
	e.lg.Error(mErr)

	if opts.DryRun {
		return mErr
	}

	failure := migration.NewEntry(m, e.stamp(), bodyErr.Error())
	if err := e.ledger.Record(ctx, failure, database.Upsert); err != nil {
		e.lg.Error(errors.Wrapf(err, "could not record failure of [%s]", m.Version))
	}

	return mErr
}

func (e *Engine) state(ctx context.Context) (migration.Entries, migration.Identifiers, error) {
	entries, err := e.ledger.FindAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	ids, err := e.catalog.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	return entries, ids, nil
}

// stamp returns strictly increasing timestamps so that entries written
// within one run keep their order in the ledger
func (e *Engine) stamp() time.Time {
	t := e.clock.Now().UTC().Truncate(time.Microsecond)
	if !t.After(e.lastStamp) {
		t = e.lastStamp.Add(time.Microsecond)
	}

	e.lastStamp = t
	return t
}
