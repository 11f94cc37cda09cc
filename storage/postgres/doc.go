// Package postgres implements storage.VectorCollection on PostgreSQL with the
// pgvector extension.
//
// Each collection is a table with columns id (the chunk ID), text, metadata
// (jsonb) and embedding (vector). The table is created on the first insert
// with the dimension of the first vector. Importing the package registers the
// postgres:// and postgresql:// schemes.
package postgres
