package cli

import (
	"database/sql"
	"net/url"
	"strings"

	"github.com/denismitr/kvtern"
	"github.com/denismitr/kvtern/internal/database/sqlgateway"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var ErrUnknownDriver = errors.New("unknown database driver")

type (
	storeFactory    func(dsn string) (kvtern.OptionFunc, kvtern.CloserFunc, error)
	storeFactoryMap map[string]storeFactory
)

var factories = storeFactoryMap{
	"memory":   createMemoryStore,
	"bolt":     createBoltStore,
	"sqlite":   createSqliteStore,
	"sqlite3":  createSqliteStore,
	"mysql":    createMySQLStore,
	"postgres": createPostgresStore,
}

func noopCloser() error { return nil }

// storeOption picks the store by the scheme of the database url
func storeOption(databaseURL string) (kvtern.OptionFunc, kvtern.CloserFunc, error) {
	idx := strings.Index(databaseURL, "://")
	if idx < 0 {
		return nil, nil, errors.Wrapf(ErrUnknownDriver, "[%s] has no scheme", databaseURL)
	}

	scheme, dsn := databaseURL[:idx], databaseURL[idx+3:]
	if scheme == "postgresql" {
		scheme = "postgres"
	}

	factory, ok := factories[scheme]
	if !ok {
		return nil, nil, errors.Wrapf(ErrUnknownDriver, "could not find factory for driver [%s]", scheme)
	}

	return factory(dsn)
}

func createMemoryStore(string) (kvtern.OptionFunc, kvtern.CloserFunc, error) {
	return kvtern.UseInMemoryStore(), noopCloser, nil
}

func createBoltStore(path string) (kvtern.OptionFunc, kvtern.CloserFunc, error) {
	if path == "" {
		return nil, nil, errors.New("bolt file path was not defined")
	}

	return kvtern.UseBoltStore(path), noopCloser, nil
}

func createSqliteStore(path string) (kvtern.OptionFunc, kvtern.CloserFunc, error) {
	db, err := sql.Open(sqlgateway.SqliteDialectName, path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not open sqlite database")
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return kvtern.UseSqlite(db), db.Close, nil
}

func createMySQLStore(dsn string) (kvtern.OptionFunc, kvtern.CloserFunc, error) {
	db, err := sql.Open(sqlgateway.MySQLDialectName, withParseTime(dsn))
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not open mysql database")
	}

	return kvtern.UseMySQL(db), db.Close, nil
}

func createPostgresStore(dsn string) (kvtern.OptionFunc, kvtern.CloserFunc, error) {
	db, err := sql.Open(sqlgateway.PostgresDialectName, "postgres://"+dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not open postgres database")
	}

	return kvtern.UsePostgres(db), db.Close, nil
}

// withParseTime makes the mysql driver scan DATETIME columns into time.Time
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}

	q := url.Values{}
	q.Set("parseTime", "true")

	if strings.Contains(dsn, "?") {
		return dsn + "&" + q.Encode()
	}

	return dsn + "?" + q.Encode()
}
