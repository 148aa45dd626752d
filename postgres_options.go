package kvtern

import (
	"database/sql"
	"time"

	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/database/sqlgateway"
)

type PostgresOptionFunc func(*sqlgateway.PostgresOptions, *sqlgateway.ConnectOptions)

func UsePostgres(db *sql.DB, options ...PostgresOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		pgOpts := &sqlgateway.PostgresOptions{
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
				SchemasTable:    database.DefaultSchemasTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(pgOpts, connectOpts)
		}

		m.newStore = func(m *Migrator) (database.Store, error) {
			connector := sqlgateway.MakeRetryingConnector(db, sqlgateway.PostgresDialectName, connectOpts)
			gateway := sqlgateway.NewPostgresGateway(connector, pgOpts)
			gateway.SetClock(m.clock)

			m.closerFns = append(m.closerFns, gateway.Close)

			return gateway, nil
		}

		return nil
	}
}

func WithPostgresMigrationTable(migrationTable string) PostgresOptionFunc {
	return func(pgOpts *sqlgateway.PostgresOptions, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.MigrationsTable = migrationTable
	}
}

func WithPostgresSchemasTable(schemasTable string) PostgresOptionFunc {
	return func(pgOpts *sqlgateway.PostgresOptions, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.SchemasTable = schemasTable
	}
}

func WithPostgresMaxConnectionAttempts(attempts int) PostgresOptionFunc {
	return func(pgOpts *sqlgateway.PostgresOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}

func WithPostgresConnectionTimeout(timeout time.Duration) PostgresOptionFunc {
	return func(pgOpts *sqlgateway.PostgresOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}
