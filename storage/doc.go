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


// Package storage provides the document store abstraction for ingestion.
//
// A VectorCollection accepts records made of text, metadata and an embedding
// vector. Backends live in subpackages and register themselves by URI scheme:
//
//   - storage/mongodb: mongodb:// and mongodb+srv://
//   - storage/postgres: postgres:// and postgresql:// (pgvector)
//   - storage/badger: badger://<dir> and badger://memory
//
// Import the backends you need for their side effect and call Connect:
//
//	import _ "github.com/poiesic/ragingest/storage/mongodb"
//
//	coll, err := storage.Connect(ctx, os.Getenv("MONGO_URI"), "langchain_demo", "collection_of_text_blobs")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer coll.Close()
//
// # Constructor Return Type Pattern
//
// Backend constructors return the storage.VectorCollection interface so
// callers never couple to a specific store. Internal helpers may return
// concrete types since they're only used within the implementation package.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access from
// multiple goroutines.
//
// # Context Support
//
// All collection methods accept context.Context for cancellation and timeout
// support.
package storage
