package kvtern

import (
	"database/sql"
	"time"

	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/database/sqlgateway"
)

type MySQLOptionFunc func(*sqlgateway.MySQLOptions, *sqlgateway.ConnectOptions)

func UseMySQL(db *sql.DB, options ...MySQLOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		mysqlOpts := &sqlgateway.MySQLOptions{
			Charset: sqlgateway.MySQLDefaultCharset,
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
				SchemasTable:    database.DefaultSchemasTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(mysqlOpts, connectOpts)
		}

		m.newStore = func(m *Migrator) (database.Store, error) {
			connector := sqlgateway.MakeRetryingConnector(db, sqlgateway.MySQLDialectName, connectOpts)
			gateway := sqlgateway.NewMySQLGateway(connector, mysqlOpts)
			gateway.SetClock(m.clock)

			m.closerFns = append(m.closerFns, gateway.Close)

			return gateway, nil
		}

		return nil
	}
}

func WithMySQLMigrationTable(migrationTable string) MySQLOptionFunc {
	return func(mysqlOpts *sqlgateway.MySQLOptions, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.MigrationsTable = migrationTable
	}
}

func WithMySQLSchemasTable(schemasTable string) MySQLOptionFunc {
	return func(mysqlOpts *sqlgateway.MySQLOptions, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.SchemasTable = schemasTable
	}
}

func WithMySQLCharset(charset string) MySQLOptionFunc {
	return func(mysqlOpts *sqlgateway.MySQLOptions, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.Charset = charset
	}
}

func WithMySQLConnectionTimeout(timeout time.Duration) MySQLOptionFunc {
	return func(mysqlOpts *sqlgateway.MySQLOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithMySQLMaxConnectionAttempts(attempts int) MySQLOptionFunc {
	return func(mysqlOpts *sqlgateway.MySQLOptions, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}
