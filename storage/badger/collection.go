// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/storage"
)

// BackendName identifies badger collections in storage.Handle.
const BackendName = "badger"

// storedRecord is the on-disk value of a record.
type storedRecord struct {
	ChunkID   string         `json:"chunk_id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

// Collection implements storage.VectorCollection for BadgerDB.
type Collection struct {
	backend     *Backend
	ownsBackend bool
	database    string
	name        string
	namespace   []byte
	mu          sync.Mutex
	closed      bool
	logger      *slog.Logger
}

var _ storage.VectorCollection = (*Collection)(nil)

// NewCollection creates a collection on an open backend.
// Closing the collection leaves the backend open.
func NewCollection(backend *Backend, database, collection string) (*Collection, error) {
	if database == "" || collection == "" {
		return nil, fmt.Errorf("%w: database and collection are required", core.ErrConfig)
	}
	return &Collection{
		backend:   backend,
		database:  database,
		name:      collection,
		namespace: makeNamespacePrefix(database, collection),
		logger:    slog.Default().With("component", "badger-collection", "collection", collection),
	}, nil
}

// AddRecords writes all records in a single transaction.
func (c *Collection) AddRecords(ctx context.Context, records ...*core.Record) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrWriteFailed, err)
	}

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if err := core.ValidateRecord(record); err != nil {
				return err
			}

			value, err := json.Marshal(&storedRecord{
				ChunkID:   record.ID.String(),
				Text:      record.Text,
				Metadata:  record.Metadata,
				Embedding: record.Vector,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
			}

			if err := tx.Set(makeRecordKey(c.namespace, record.ID), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrWriteFailed, err)
	}

	c.logger.Debug("added records", "count", len(records))
	return nil
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.namespace
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Describe identifies the collection.
func (c *Collection) Describe() storage.Handle {
	return storage.NewHandle(BackendName, c.database, c.name)
}

// Close marks the collection closed and closes the backend if the collection opened it.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.ownsBackend {
		return c.backend.Close()
	}
	return nil
}

func (c *Collection) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

func decodeRecord(val []byte) (*core.Record, error) {
	var stored storedRecord
	if err := json.Unmarshal(val, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
	}
	id, err := strconv.ParseUint(stored.ChunkID, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk id %q: %v", storage.ErrSerializationFailed, stored.ChunkID, err)
	}
	return &core.Record{
		ID:       core.ID(id),
		Text:     stored.Text,
		Metadata: stored.Metadata,
		Vector:   stored.Embedding,
	}, nil
}
