package storage

import (
	"context"

	"github.com/poiesic/ragingest/core"
)

// Standard field names used by every backend, matching the layout vector
// search indexes expect.
const (
	TextField      = "text"
	EmbeddingField = "embedding"
	MetadataField  = "metadata"
	ChunkIDField   = "chunk_id"
)

// VectorCollection is a named collection in a vector-search-capable document store.
// Implementations must be thread-safe and support concurrent access.
type VectorCollection interface {
	// AddRecords persists records as one unit. On error nothing from this
	// call is guaranteed to be stored and the error wraps ErrWriteFailed.
	AddRecords(ctx context.Context, records ...*core.Record) error

	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int64, error)

	// Describe identifies the collection for later retrieval.
	Describe() Handle

	// Close releases the connection. Close is safe to call more than once.
	Close() error
}

// Handle identifies where records were written so a retrieval system can
// search them.
type Handle struct {
	Backend        string
	Database       string
	Collection     string
	TextField      string
	EmbeddingField string
	Records        int64
}

// NewHandle returns a handle with the standard field names.
func NewHandle(backend, database, collection string) Handle {
	return Handle{
		Backend:        backend,
		Database:       database,
		Collection:     collection,
		TextField:      TextField,
		EmbeddingField: EmbeddingField,
	}
}

// String renders the handle as backend/database/collection.
func (h Handle) String() string {
	return h.Backend + "/" + h.Database + "/" + h.Collection
}
