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
	"encoding/binary"
	"fmt"
	"maps"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// Metadata keys set by the loader and splitter.
const (
	MetadataSource     = "source"
	MetadataFileName   = "file_name"
	MetadataExtension  = "extension"
	MetadataStartIndex = "start_index"
)

// ID is a unique identifier for stored chunks.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the ID of a chunk from its source, offset and content.
func ChunkID(source string, startIndex int, content string) ID {
	return IDFromContent(source + "\x00" + strconv.Itoa(startIndex) + "\x00" + content)
}

// String returns the ID as a fixed-width hex string.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// RawDocument is the text of one loaded file.
type RawDocument struct {
	Content  string
	Metadata map[string]any // Always carries MetadataSource
}

// Source returns the path of the file the document was loaded from.
func (d *RawDocument) Source() string {
	s, _ := d.Metadata[MetadataSource].(string)
	return s
}

// Chunk is a bounded span of a RawDocument.
type Chunk struct {
	ID       ID
	Content  string
	Metadata map[string]any // Parent metadata plus MetadataStartIndex
}

// NewChunk creates a chunk of doc starting at startIndex (in characters).
// The parent metadata is copied, never shared.
func NewChunk(doc *RawDocument, content string, startIndex int) *Chunk {
	metadata := make(map[string]any, len(doc.Metadata)+1)
	maps.Copy(metadata, doc.Metadata)
	metadata[MetadataStartIndex] = startIndex

	return &Chunk{
		ID:       ChunkID(doc.Source(), startIndex, content),
		Content:  content,
		Metadata: metadata,
	}
}

// StartIndex returns the chunk offset within its parent document, or -1 if unknown.
func (c *Chunk) StartIndex() int {
	switch v := c.Metadata[MetadataStartIndex].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return -1
}

// Source returns the path of the file the chunk came from.
func (c *Chunk) Source() string {
	s, _ := c.Metadata[MetadataSource].(string)
	return s
}

// Record is the unit persisted into a vector collection.
type Record struct {
	ID       ID
	Text     string
	Metadata map[string]any
	Vector   []float32 // Embedding of Text
}

// NewRecord pairs a chunk with its embedding.
func NewRecord(chunk *Chunk, vector []float32) *Record {
	return &Record{
		ID:       chunk.ID,
		Text:     chunk.Content,
		Metadata: chunk.Metadata,
		Vector:   vector,
	}
}
