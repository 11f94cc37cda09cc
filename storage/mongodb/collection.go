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


package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// BackendName identifies MongoDB collections in storage.Handle.
const BackendName = "mongodb"

func init() {
	storage.Register(Open, "mongodb", "mongodb+srv")
}

// Collection implements storage.VectorCollection on a MongoDB collection.
type Collection struct {
	client    *mongo.Client
	coll      *mongo.Collection
	database  string
	name      string
	closeOnce sync.Once
	logger    *slog.Logger
}

var _ storage.VectorCollection = (*Collection)(nil)

// Open connects to the deployment at uri, verifies it by pinging the primary
// and resolves the named collection.
//
// Returns storage.VectorCollection interface to enforce abstraction.
func Open(ctx context.Context, uri, database, collection string) (storage.VectorCollection, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: mongodb: %v", core.ErrConnection, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: mongodb ping: %v", core.ErrConnection, err)
	}

	return &Collection{
		client:   client,
		coll:     client.Database(database).Collection(collection),
		database: database,
		name:     collection,
		logger:   slog.Default().With("component", "mongodb-collection", "collection", collection),
	}, nil
}

// AddRecords inserts records with one ordered InsertMany call.
func (c *Collection) AddRecords(ctx context.Context, records ...*core.Record) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]any, 0, len(records))
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrWriteFailed, err)
		}
		docs = append(docs, toDocument(record))
	}

	result, err := c.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("%w: mongodb insert: %v", storage.ErrWriteFailed, err)
	}

	c.logger.Debug("inserted documents", "count", len(result.InsertedIDs))
	return nil
}

// Count returns the number of documents in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	return c.coll.CountDocuments(ctx, bson.D{})
}

// Describe identifies the collection.
func (c *Collection) Describe() storage.Handle {
	return storage.NewHandle(BackendName, c.database, c.name)
}

// Close disconnects the client.
func (c *Collection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.client.Disconnect(context.Background())
	})
	return err
}

// reservedFields are owned by the record layout and never taken from metadata.
var reservedFields = map[string]bool{
	"_id":                  true,
	storage.TextField:      true,
	storage.EmbeddingField: true,
	storage.ChunkIDField:   true,
}

// toDocument lays a record out as {text, embedding, <metadata...>, chunk_id},
// with metadata keys flattened to the top level in sorted order.
func toDocument(record *core.Record) bson.D {
	doc := bson.D{
		{Key: storage.TextField, Value: record.Text},
		{Key: storage.EmbeddingField, Value: record.Vector},
	}

	keys := make([]string, 0, len(record.Metadata))
	for k := range record.Metadata {
		if !reservedFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: record.Metadata[k]})
	}

	return append(doc, bson.E{Key: storage.ChunkIDField, Value: record.ID.String()})
}
