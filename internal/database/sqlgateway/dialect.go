package sqlgateway

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Dialect holds what differs between the supported databases
type Dialect interface {
	Name() string
	InitQueries(migrationsTable, schemasTable string) []string
	Placeholder() sq.PlaceholderFormat
	ShowTablesQuery() string
	IsDuplicateKey(err error) bool
}

const (
	MySQLDialectName    = "mysql"
	SqliteDialectName   = "sqlite3"
	PostgresDialectName = "postgres"

	MySQLDefaultCharset = "utf8mb4"
)

type mysqlDialect struct {
	charset string
}

func (d mysqlDialect) Name() string {
	return MySQLDialectName
}

func (d mysqlDialect) InitQueries(migrationsTable, schemasTable string) []string {
	const createMigrationsSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			version VARCHAR(255) PRIMARY KEY,
			description TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			ord INT NOT NULL DEFAULT 0,
			migrated_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB CHARACTER SET=%s
	`

	const createSchemasSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(32) PRIMARY KEY,
			document LONGTEXT NOT NULL,
			saved_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB CHARACTER SET=%s
	`

	return []string{
		fmt.Sprintf(createMigrationsSQL, migrationsTable, d.charset),
		fmt.Sprintf(createSchemasSQL, schemasTable, d.charset),
	}
}

func (d mysqlDialect) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

func (d mysqlDialect) ShowTablesQuery() string {
	return "SHOW TABLES;"
}

func (d mysqlDialect) IsDuplicateKey(err error) bool {
	const duplicateEntry = 1062
	if mErr, ok := errors.Cause(err).(*mysql.MySQLError); ok {
		return mErr.Number == duplicateEntry
	}
	return false
}

type sqliteDialect struct{}

func (d sqliteDialect) Name() string {
	return SqliteDialectName
}

func (d sqliteDialect) InitQueries(migrationsTable, schemasTable string) []string {
	const createMigrationsSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			version VARCHAR(255) PRIMARY KEY,
			description TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			ord INTEGER NOT NULL DEFAULT 0,
			migrated_at TIMESTAMP NOT NULL
		);
	`

	const createSchemasSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(32) PRIMARY KEY,
			document TEXT NOT NULL,
			saved_at TIMESTAMP NOT NULL
		);
	`

	return []string{
		fmt.Sprintf(createMigrationsSQL, migrationsTable),
		fmt.Sprintf(createSchemasSQL, schemasTable),
	}
}

func (d sqliteDialect) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

func (d sqliteDialect) ShowTablesQuery() string {
	return "SELECT name as table_name FROM sqlite_master WHERE type='table' ORDER BY name;"
}

func (d sqliteDialect) IsDuplicateKey(err error) bool {
	if sErr, ok := errors.Cause(err).(sqlite3.Error); ok {
		return sErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

type postgresDialect struct{}

func (d postgresDialect) Name() string {
	return PostgresDialectName
}

func (d postgresDialect) InitQueries(migrationsTable, schemasTable string) []string {
	const createMigrationsSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			version VARCHAR(255) PRIMARY KEY,
			description TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			ord INTEGER NOT NULL DEFAULT 0,
			migrated_at TIMESTAMP NOT NULL
		);
	`

	const createSchemasSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(32) PRIMARY KEY,
			document TEXT NOT NULL,
			saved_at TIMESTAMP NOT NULL
		);
	`

	return []string{
		fmt.Sprintf(createMigrationsSQL, migrationsTable),
		fmt.Sprintf(createSchemasSQL, schemasTable),
	}
}

func (d postgresDialect) Placeholder() sq.PlaceholderFormat {
	return sq.Dollar
}

func (d postgresDialect) ShowTablesQuery() string {
	return "SELECT tablename as table_name FROM pg_catalog.pg_tables WHERE schemaname = current_schema() ORDER BY tablename;"
}

func (d postgresDialect) IsDuplicateKey(err error) bool {
	const uniqueViolation = "23505"
	if pErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pErr.Code == uniqueViolation
	}
	return false
}
