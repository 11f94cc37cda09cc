// Package ragingest loads text documents into a vector-search-capable
// document store for retrieval-augmented generation.
//
// Documents are read from a directory, split into overlapping chunks, embedded
// through an OpenAI-compatible or Gemini embedding API and written as
// (text, metadata, vector) records to MongoDB, PostgreSQL with pgvector, or a
// local BadgerDB store.
//
//	ds, err := ragingest.NewDataStore(ctx, os.Getenv("MONGO_URI"),
//	    ragingest.WithAIConfig(ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ds.Close()
//
//	handle, err := ds.CreateDatabase(ctx, ingestion.DefaultConfig())
package ragingest
