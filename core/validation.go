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
	"fmt"
	"strings"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Content must contain non-whitespace text
//   - Metadata must carry the source path
//   - start_index must be present and non-negative
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidRecord)
	}
	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent)
	}
	if chunk.Source() == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingSource)
	}
	if chunk.StartIndex() < 0 {
		return fmt.Errorf("%w: start_index missing or negative", ErrInvalidRecord)
	}
	return nil
}

// ValidateRecord validates a Record before it is written.
//
// Validation rules:
//   - Text must not be empty
//   - Vector must not be empty
//   - Metadata must carry the source path
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if record.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent)
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyVector)
	}
	if s, _ := record.Metadata[MetadataSource].(string); s == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingSource)
	}
	return nil
}
