package bolt

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
	bbolt "go.etcd.io/bbolt"
)

func (s *Store) Put(ctx context.Context, model string, item migration.Item) error {
	key, err := s.key(ctx, item)
	if err != nil {
		return err
	}

	data, err := json.Marshal(item)
	if err != nil {
		return errors.Wrapf(err, "could not encode item [%s] of model [%s]", key, model)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bkt, err := tx.Bucket(itemsBucket).CreateBucketIfNotExists([]byte(model))
		if err != nil {
			return errors.Wrapf(err, "could not create bucket for model [%s]", model)
		}

		return bkt.Put([]byte(key), data)
	})
}

func (s *Store) Get(ctx context.Context, model string, key migration.Item) (migration.Item, error) {
	k, err := s.key(ctx, key)
	if err != nil {
		return nil, err
	}

	var item migration.Item
	err = s.db.View(func(tx *bbolt.Tx) error {
		var data []byte
		if bkt := tx.Bucket(itemsBucket).Bucket([]byte(model)); bkt != nil {
			data = bkt.Get([]byte(k))
		}

		if data == nil {
			return errors.Wrapf(migration.ErrItemNotFound, "model [%s] key [%s]", model, k)
		}

		decoded, err := decodeItem(data)
		if err != nil {
			return errors.Wrapf(err, "could not decode item [%s] of model [%s]", k, model)
		}

		item = decoded
		return nil
	})

	return item, err
}

func (s *Store) Delete(ctx context.Context, model string, key migration.Item) error {
	k, err := s.key(ctx, key)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(itemsBucket).Bucket([]byte(model))
		if bkt == nil {
			return nil
		}

		return bkt.Delete([]byte(k))
	})
}

// Scan visits the items of the model in key order, the callback runs
// outside of the read transaction so it may write to the store
func (s *Store) Scan(ctx context.Context, model string, fn func(migration.Item) error) error {
	var items []migration.Item

	err := s.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(itemsBucket).Bucket([]byte(model))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(k, v []byte) error {
			item, err := decodeItem(v)
			if err != nil {
				return errors.Wrapf(err, "could not decode item [%s] of model [%s]", k, model)
			}

			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) key(ctx context.Context, item migration.Item) (string, error) {
	layout, err := s.layouts.Get(ctx)
	if err != nil {
		return "", err
	}

	return layout.Key(item)
}

// decodeItem keeps numbers as json.Number so that key attributes
// render the same way they did when the item was put
func decodeItem(data []byte) (migration.Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var item migration.Item
	if err := dec.Decode(&item); err != nil {
		return nil, err
	}

	return item, nil
}
