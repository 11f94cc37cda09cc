package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/storage"
)

// NewMemoryCollection creates an in-memory collection for testing.
// Returns the collection and its backend; the caller closes both.
// The backend outlives the collection so tests can reopen the namespace
// after a pipeline has closed it.
func NewMemoryCollection(database, collection string) (*Collection, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}

	coll, err := NewCollection(backend, database, collection)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	return coll, backend, nil
}

// GetRecord and Records read back stored records so tests can inspect what a
// run wrote. Ingestion itself never reads records.

// GetRecord retrieves a single record by ID.
// Returns storage.ErrNotFound if the record doesn't exist.
func (c *Collection) GetRecord(ctx context.Context, id core.ID) (*core.Record, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	var record *core.Record
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRecordKey(c.namespace, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = decodeRecord(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Records returns every record in the collection ordered by ID.
func (c *Collection) Records(ctx context.Context) ([]*core.Record, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	var records []*core.Record
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.namespace
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				record, err := decodeRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return records, nil
}
