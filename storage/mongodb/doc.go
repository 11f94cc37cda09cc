// Package mongodb implements storage.VectorCollection on MongoDB.
//
// Documents follow the layout Atlas Vector Search indexes are usually defined
// over: the chunk text under "text", the vector under "embedding" and each
// metadata key (source, start_index and so on) as a top-level field. A
// "chunk_id" field carries the content-derived chunk ID. Importing the package
// registers the mongodb:// and mongodb+srv:// schemes.
package mongodb
