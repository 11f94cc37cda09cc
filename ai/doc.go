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


// Package ai provides abstractions for the embedding services used by ragingest.
//
// This package defines the Embedder capability the ingestion pipeline depends
// on, the Provider that owns an embedder's client resources, and the Config
// shared by every implementation.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI and OpenAI-compatible servers through langchaingo
//   - ai/gemini: Google Gemini embeddings
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, gemini.NewProvider) return the
// Provider interface so callers never couple to a specific service. Test
// constructors (mock.NewMockEmbedder) return concrete types so tests can
// inject behavior and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"Hello world"})
//
// Throttling is layered on with WithRateLimiting and applies to any Embedder.
package ai
