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


package core

import (
	"context"
	"errors"
)

// Pipeline error taxonomy. Every fatal error returned by this module wraps
// exactly one of these so operators can tell failures apart.
var (
	// ErrConfig indicates a missing or invalid configuration value.
	ErrConfig = errors.New("invalid configuration")

	// ErrConnection indicates the document store is unreachable or rejected the credentials.
	ErrConnection = errors.New("connection failed")

	// ErrNotFound indicates the source directory does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDecode indicates a file could not be read as text.
	// Loaders recover from it by skipping the file.
	ErrDecode = errors.New("decode failed")

	// ErrEmbeddingService indicates the external embedding call failed.
	ErrEmbeddingService = errors.New("embedding service failed")
)

// Record validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyContent indicates the text of a chunk or record is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyVector indicates a record has no embedding.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrMissingSource indicates the source metadata key is absent.
	ErrMissingSource = errors.New("source metadata is required")
)

// Kind returns a short name for the taxonomy error wrapped by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrEmbeddingService):
		return "embedding_service"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "internal"
}
