package bolt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
	bbolt "go.etcd.io/bbolt"
)

const (
	DefaultFilename    = "kvtern.bolt"
	DefaultOpenTimeout = time.Second

	currentSchemaKey = "current"
)

var itemsBucket = []byte("items")

type Options struct {
	database.CommonOptions

	Path        string
	OpenTimeout time.Duration
	LayoutTTL   time.Duration
	Clock       clock.Clock
}

// Store keeps the ledger, the schema snapshot and the items
// in a single bbolt file
type Store struct {
	db   *bbolt.DB
	lg   logger.Logger
	opts Options

	migrationsBucket []byte
	schemasBucket    []byte

	active  *migration.Schema
	layouts *database.LayoutCache
}

var _ database.Store = (*Store)(nil)
var _ migration.ItemStore = (*Store)(nil)

// Open creates the bolt file if it does not exist, and the buckets the
// ledger and the schema snapshot live in
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = DefaultFilename
	}

	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = DefaultOpenTimeout
	}

	if opts.MigrationsTable == "" {
		opts.MigrationsTable = database.DefaultMigrationsTable
	}

	if opts.SchemasTable == "" {
		opts.SchemasTable = database.DefaultSchemasTable
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, errors.Wrapf(err, "unable to create directory for [%s]", opts.Path)
	}

	db, err := bbolt.Open(opts.Path, 0600, &bbolt.Options{Timeout: opts.OpenTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open bolt file [%s]", opts.Path)
	}

	s := &Store{
		db:               db,
		lg:               logger.NullLogger{},
		opts:             opts,
		migrationsBucket: []byte(opts.MigrationsTable),
		schemasBucket:    []byte(opts.SchemasTable),
	}

	s.layouts = database.NewLayoutCache(opts.Clock, opts.LayoutTTL, s.describe)

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{s.migrationsBucket, s.schemasBucket, itemsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return errors.Wrapf(err, "could not create bucket [%s]", b)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) SetLogger(lg logger.Logger) {
	s.lg = lg
}

// DB exposes the underlying bolt database to migration bodies
func (s *Store) DB() *bbolt.DB {
	return s.db
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return errors.Wrapf(err, "could not close bolt file [%s]", s.opts.Path)
	}

	return nil
}

func (s *Store) FindAll(ctx context.Context) (migration.Entries, error) {
	var result migration.Entries

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.migrationsBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var e migration.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return errors.Wrapf(err, "could not decode ledger entry [%s]", k)
			}

			result = append(result, e)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not read the ledger")
	}

	result.Sort()

	return result, nil
}

func (s *Store) Record(_ context.Context, e migration.Entry, mode database.RecordMode) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrapf(err, "could not encode ledger entry [%s]", e.Version)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(s.migrationsBucket)
		if mode == database.InsertIfAbsent && bkt.Get([]byte(e.Version)) != nil {
			return errors.Wrapf(migration.ErrDuplicateEntry, "version [%s]", e.Version)
		}

		s.lg.Debugf("%s ledger entry [%s] status [%s]", mode, e.Version, e.Status)

		return bkt.Put([]byte(e.Version), data)
	})
}

func (s *Store) Remove(_ context.Context, version string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.migrationsBucket).Delete([]byte(version))
	})
}

func (s *Store) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.migrationsBucket); err != nil && err != bbolt.ErrBucketNotFound {
			return errors.Wrap(err, "could not clear the ledger")
		}

		_, err := tx.CreateBucket(s.migrationsBucket)
		return err
	})
}

func (s *Store) ActivateSchema(_ context.Context, schema *migration.Schema) error {
	if schema == nil {
		return nil
	}

	s.active = schema.Clone()
	s.layouts.Invalidate()

	return nil
}

func (s *Store) PersistSchema(_ context.Context, schema *migration.Schema) error {
	if schema == nil {
		return nil
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return errors.Wrap(err, "could not encode schema")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.schemasBucket).Put([]byte(currentSchemaKey), data)
	})
}

func (s *Store) CurrentSchema(_ context.Context) (*migration.Schema, error) {
	var schema *migration.Schema

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.schemasBucket).Get([]byte(currentSchemaKey))
		if data == nil {
			return nil
		}

		schema = new(migration.Schema)
		return json.Unmarshal(data, schema)
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not read the schema snapshot")
	}

	return schema, nil
}

func (s *Store) describe(ctx context.Context) (database.KeyLayout, error) {
	if s.active != nil {
		return database.LayoutFromSchema(s.active)
	}

	schema, err := s.CurrentSchema(ctx)
	if err != nil {
		return database.KeyLayout{}, err
	}

	return database.LayoutFromSchema(schema)
}
