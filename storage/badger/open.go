package badger

import (
	"context"
	"fmt"
	"net/url"

	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/storage"
)

// memoryHost selects an in-memory database: badger://memory
const memoryHost = "memory"

func init() {
	storage.Register(Open, "badger")
}

// Open opens a collection from a badger:// URI. badger://memory opens a fresh
// in-memory database; any other URI names a directory, e.g. badger://data/db
// or badger:///var/lib/ragingest. The collection owns the database and closes
// it on Close.
//
// Returns storage.VectorCollection interface to enforce abstraction.
func Open(ctx context.Context, uri, database, collection string) (storage.VectorCollection, error) {
	dir, inMemory, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(dir, inMemory)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger database: %v", core.ErrConnection, err)
	}

	coll, err := NewCollection(backend, database, collection)
	if err != nil {
		backend.Close()
		return nil, err
	}
	coll.ownsBackend = true
	return coll, nil
}

// parseURI extracts the database directory from a badger:// URI.
func parseURI(uri string) (dir string, inMemory bool, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "badger" {
		return "", false, fmt.Errorf("%w: not a badger URI", core.ErrConnection)
	}
	if u.Host == memoryHost && (u.Path == "" || u.Path == "/") {
		return "", true, nil
	}
	dir = u.Host + u.Path
	if dir == "" {
		return "", false, fmt.Errorf("%w: badger URI names no directory", core.ErrConfig)
	}
	return dir, false, nil
}
