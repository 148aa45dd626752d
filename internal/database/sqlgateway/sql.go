package sqlgateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const currentSchemaID = "current"

var entryColumns = []string{"version", "description", "path", "status", "ord", "migrated_at"}

type (
	MySQLOptions struct {
		database.CommonOptions
		Charset string
	}

	SqliteOptions struct {
		database.CommonOptions
	}

	PostgresOptions struct {
		database.CommonOptions
	}
)

// SQLGateway keeps the ledger and the schema snapshot in two tables
// of a relational database
type SQLGateway struct {
	connector Connector
	dialect   Dialect
	lg        logger.Logger
	clock     clock.Clock

	migrationsTable string
	schemasTable    string

	// mu guards the table initialization and the active schema
	mu          sync.RWMutex
	initialized bool
	active      *migration.Schema
}

var _ database.Store = (*SQLGateway)(nil)
var _ migration.SQLStore = (*SQLGateway)(nil)

func NewMySQLGateway(connector Connector, opts *MySQLOptions) *SQLGateway {
	if opts.Charset == "" {
		opts.Charset = MySQLDefaultCharset
	}

	return newGateway(connector, mysqlDialect{charset: opts.Charset}, opts.CommonOptions)
}

func NewSqliteGateway(connector Connector, opts *SqliteOptions) *SQLGateway {
	return newGateway(connector, sqliteDialect{}, opts.CommonOptions)
}

func NewPostgresGateway(connector Connector, opts *PostgresOptions) *SQLGateway {
	return newGateway(connector, postgresDialect{}, opts.CommonOptions)
}

func newGateway(connector Connector, d Dialect, opts database.CommonOptions) *SQLGateway {
	g := &SQLGateway{
		connector:       connector,
		dialect:         d,
		lg:              logger.NullLogger{},
		clock:           clock.New(),
		migrationsTable: opts.MigrationsTable,
		schemasTable:    opts.SchemasTable,
	}

	if g.migrationsTable == "" {
		g.migrationsTable = database.DefaultMigrationsTable
	}

	if g.schemasTable == "" {
		g.schemasTable = database.DefaultSchemasTable
	}

	return g
}

func (g *SQLGateway) SetLogger(lg logger.Logger) {
	g.lg = lg
}

func (g *SQLGateway) SetClock(c clock.Clock) {
	g.clock = c
}

func (g *SQLGateway) Close() error {
	return g.connector.Close()
}

// DB returns the database handle, it is nil until the first successful connect
func (g *SQLGateway) DB() *sqlx.DB {
	db, err := g.connector.Connect(context.Background())
	if err != nil {
		g.lg.Error(err)
		return nil
	}

	return db
}

func (g *SQLGateway) FindAll(ctx context.Context) (migration.Entries, error) {
	db, err := g.init(ctx)
	if err != nil {
		return nil, err
	}

	q, args, err := g.builder().
		Select(entryColumns...).
		From(g.migrationsTable).
		OrderBy("migrated_at ASC", "ord ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "could not build read ledger query")
	}

	g.lg.Debugf("%s", q)

	var result migration.Entries
	if err := db.SelectContext(ctx, &result, q, args...); err != nil {
		return nil, errors.Wrapf(err, "could not read the ledger from [%s]", g.migrationsTable)
	}

	result.Sort()

	return result, nil
}

func (g *SQLGateway) Record(ctx context.Context, e migration.Entry, mode database.RecordMode) error {
	db, err := g.init(ctx)
	if err != nil {
		return err
	}

	if mode == database.InsertIfAbsent {
		return g.insertEntry(ctx, db, e)
	}

	return NewTxManager(db).ReadWrite(ctx, func(ctx context.Context, ex Executor) error {
		if err := g.deleteEntry(ctx, ex, e.Version); err != nil {
			return err
		}

		return g.insertEntry(ctx, ex, e)
	})
}

func (g *SQLGateway) Remove(ctx context.Context, version string) error {
	db, err := g.init(ctx)
	if err != nil {
		return err
	}

	return g.deleteEntry(ctx, db, version)
}

func (g *SQLGateway) Clear(ctx context.Context) error {
	db, err := g.init(ctx)
	if err != nil {
		return err
	}

	q, args, err := g.builder().Delete(g.migrationsTable).ToSql()
	if err != nil {
		return errors.Wrap(err, "could not build clear ledger query")
	}

	if _, err := db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "could not clear the ledger in [%s]", g.migrationsTable)
	}

	return nil
}

func (g *SQLGateway) ActivateSchema(_ context.Context, s *migration.Schema) error {
	if s == nil {
		return nil
	}

	g.mu.Lock()
	g.active = s.Clone()
	g.mu.Unlock()

	return nil
}

func (g *SQLGateway) ActiveSchema() *migration.Schema {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active.Clone()
}

func (g *SQLGateway) PersistSchema(ctx context.Context, s *migration.Schema) error {
	if s == nil {
		return nil
	}

	db, err := g.init(ctx)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "could not encode schema")
	}

	return NewTxManager(db).ReadWrite(ctx, func(ctx context.Context, ex Executor) error {
		del, args, err := g.builder().
			Delete(g.schemasTable).
			Where(sq.Eq{"id": currentSchemaID}).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := ex.ExecContext(ctx, del, args...); err != nil {
			return errors.Wrap(err, "could not remove previous schema snapshot")
		}

		ins, args, err := g.builder().
			Insert(g.schemasTable).
			Columns("id", "document", "saved_at").
			Values(currentSchemaID, string(doc), g.clock.Now().UTC()).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := ex.ExecContext(ctx, ins, args...); err != nil {
			return errors.Wrap(err, "could not save schema snapshot")
		}

		return nil
	})
}

func (g *SQLGateway) CurrentSchema(ctx context.Context) (*migration.Schema, error) {
	db, err := g.init(ctx)
	if err != nil {
		return nil, err
	}

	q, args, err := g.builder().
		Select("document").
		From(g.schemasTable).
		Where(sq.Eq{"id": currentSchemaID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var doc string
	if err := db.GetContext(ctx, &doc, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "could not read the schema snapshot")
	}

	s := new(migration.Schema)
	if err := json.Unmarshal([]byte(doc), s); err != nil {
		return nil, errors.Wrap(err, "could not decode the schema snapshot")
	}

	return s, nil
}

// ShowTables lists the tables of the database
func (g *SQLGateway) ShowTables(ctx context.Context) ([]string, error) {
	db, err := g.init(ctx)
	if err != nil {
		return nil, err
	}

	var result []string
	if err := db.SelectContext(ctx, &result, g.dialect.ShowTablesQuery()); err != nil {
		return nil, errors.Wrap(err, "could not list all tables")
	}

	return result, nil
}

func (g *SQLGateway) DropTables(ctx context.Context) error {
	db, err := g.init(ctx)
	if err != nil {
		return err
	}

	for _, table := range []string{g.migrationsTable, g.schemasTable} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return errors.Wrapf(err, "could not drop table [%s]", table)
		}
	}

	g.mu.Lock()
	g.initialized = false
	g.mu.Unlock()

	return nil
}

func (g *SQLGateway) insertEntry(ctx context.Context, ex Executor, e migration.Entry) error {
	q, args, err := g.builder().
		Insert(g.migrationsTable).
		Columns(entryColumns...).
		Values(e.Version, e.Description, e.Path, e.Status, e.Order, e.MigratedAt.UTC()).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "could not build insert ledger entry query")
	}

	g.lg.Debugf("%s %v", q, args)

	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		if g.dialect.IsDuplicateKey(err) {
			return errors.Wrapf(migration.ErrDuplicateEntry, "version [%s]", e.Version)
		}

		return errors.Wrapf(err, "could not insert ledger entry [%s]", e.Version)
	}

	return nil
}

func (g *SQLGateway) deleteEntry(ctx context.Context, ex Executor, version string) error {
	q, args, err := g.builder().
		Delete(g.migrationsTable).
		Where(sq.Eq{"version": version}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "could not build remove ledger entry query")
	}

	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "could not remove ledger entry [%s]", version)
	}

	return nil
}

// init connects and creates the tables once per gateway
func (g *SQLGateway) init(ctx context.Context) (*sqlx.DB, error) {
	db, err := g.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized {
		return db, nil
	}

	for _, q := range g.dialect.InitQueries(g.migrationsTable, g.schemasTable) {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return nil, errors.Wrapf(err, "could not create %s tables", g.dialect.Name())
		}
	}

	g.initialized = true

	return db, nil
}

func (g *SQLGateway) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(g.dialect.Placeholder())
}
