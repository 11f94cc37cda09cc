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


package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/storage"
)

// BackendName identifies PostgreSQL tables in storage.Handle.
const BackendName = "postgres"

func init() {
	storage.Register(Open, "postgres", "postgresql")
}

// Table implements storage.VectorCollection on a PostgreSQL table with a
// pgvector embedding column. The table is created on first insert, when the
// vector dimension is known.
type Table struct {
	pool      *pgxpool.Pool
	database  string
	name      string
	ident     pgx.Identifier
	mu        sync.Mutex
	dimension int
	closeOnce sync.Once
	logger    *slog.Logger
}

var _ storage.VectorCollection = (*Table)(nil)

// Open connects a pool to the database at uri and makes sure the vector
// extension is installed. When the URI names a database it must equal
// database; otherwise database is used. collection names the table.
//
// Returns storage.VectorCollection interface to enforce abstraction.
func Open(ctx context.Context, uri, database, collection string) (storage.VectorCollection, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		// parse errors can echo the password
		return nil, fmt.Errorf("%w: invalid postgres connection string", core.ErrConnection)
	}
	if err := resolveDatabase(cfg.ConnConfig, database); err != nil {
		return nil, err
	}

	if err := ensureExtension(ctx, cfg.ConnConfig); err != nil {
		return nil, err
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: %v", core.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: postgres ping: %v", core.ErrConnection, err)
	}

	return &Table{
		pool:     pool,
		database: database,
		name:     collection,
		ident:    pgx.Identifier{collection},
		logger:   slog.Default().With("component", "postgres-table", "table", collection),
	}, nil
}

// resolveDatabase reconciles the URI's database with the requested one.
func resolveDatabase(cfg *pgx.ConnConfig, database string) error {
	if cfg.Database == "" {
		cfg.Database = database
		return nil
	}
	if cfg.Database != database {
		return fmt.Errorf("%w: connection string names database %q but %q was requested", core.ErrConfig, cfg.Database, database)
	}
	return nil
}

func ensureExtension(ctx context.Context, cfg *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: postgres: %v", core.ErrConnection, err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: enabling pgvector: %v", core.ErrConnection, err)
	}
	return nil
}

// AddRecords inserts records in one transaction using a single batch.
func (t *Table) AddRecords(ctx context.Context, records ...*core.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrWriteFailed, err)
		}
	}

	if err := t.ensureTable(ctx, len(records[0].Vector)); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrWriteFailed, err)
	}

	batch := &pgx.Batch{}
	insert := insertSQL(t.ident)
	for _, record := range records {
		metadata, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("%w: %w: %v", storage.ErrWriteFailed, storage.ErrSerializationFailed, err)
		}
		batch.Queue(insert, record.ID.String(), record.Text, metadata, pgvector.NewVector(record.Vector))
	}

	err := pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%w: postgres insert: %v", storage.ErrWriteFailed, err)
	}

	t.logger.Debug("inserted rows", "count", len(records))
	return nil
}

func (t *Table) ensureTable(ctx context.Context, dimension int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dimension != 0 {
		if dimension != t.dimension {
			return fmt.Errorf("vector dimension %d does not match table dimension %d", dimension, t.dimension)
		}
		return nil
	}

	if _, err := t.pool.Exec(ctx, createTableSQL(t.ident, dimension)); err != nil {
		return fmt.Errorf("creating table %s: %w", t.ident.Sanitize(), err)
	}
	t.dimension = dimension
	return nil
}

// Count returns the number of rows in the table, zero if it does not exist yet.
func (t *Table) Count(ctx context.Context) (int64, error) {
	var exists bool
	err := t.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", t.ident.Sanitize()).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var count int64
	err = t.pool.QueryRow(ctx, "SELECT count(*) FROM "+t.ident.Sanitize()).Scan(&count)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	return count, nil
}

// Describe identifies the table.
func (t *Table) Describe() storage.Handle {
	return storage.NewHandle(BackendName, t.database, t.name)
}

// Close closes the pool.
func (t *Table) Close() error {
	t.closeOnce.Do(t.pool.Close)
	return nil
}

func createTableSQL(ident pgx.Identifier, dimension int) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id text PRIMARY KEY, %s text NOT NULL, %s jsonb NOT NULL, %s vector(%d) NOT NULL)",
		ident.Sanitize(), storage.TextField, storage.MetadataField, storage.EmbeddingField, dimension,
	)
}

func insertSQL(ident pgx.Identifier) string {
	return fmt.Sprintf(
		"INSERT INTO %s (id, %s, %s, %s) VALUES ($1, $2, $3, $4)",
		ident.Sanitize(), storage.TextField, storage.MetadataField, storage.EmbeddingField,
	)
}
