// Package badger implements storage.VectorCollection on BadgerDB.
//
// Records are stored under keys namespaced by database and collection,
// database/collection/rec:<chunk id>, with JSON values holding the text,
// metadata and embedding. The store has no vector index; it serves offline
// runs and tests. Importing the package registers the badger:// scheme.
package badger
