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


package splitter

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragingest/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter divides documents into overlapping chunks, recording where each
// chunk starts in its parent.
type Splitter struct {
	size       int
	overlap    int
	separators []string
	text       textsplitter.RecursiveCharacter
	logger     *slog.Logger
}

// Option configures a Splitter.
type Option func(*Splitter) error

// WithSeparators replaces the separator hierarchy.
func WithSeparators(separators ...string) Option {
	return func(s *Splitter) error {
		if len(separators) == 0 {
			return fmt.Errorf("%w: at least one separator is required", core.ErrConfig)
		}
		s.separators = separators
		return nil
	}
}

// ValidateSizes checks the chunk size and overlap preconditions.
func ValidateSizes(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrConfig, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", core.ErrConfig, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", core.ErrConfig, overlap, size)
	}
	return nil
}

// New creates a splitter producing chunks of at most size code points that
// share up to overlap code points with their predecessor.
func New(size, overlap int, opts ...Option) (*Splitter, error) {
	if err := ValidateSizes(size, overlap); err != nil {
		return nil, err
	}

	s := &Splitter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
		logger:     slog.Default().With("component", "splitter"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.text = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(s.separators),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	return s, nil
}

// Split is a convenience wrapper that splits docs with the default separators.
func Split(docs []*core.RawDocument, size, overlap int) ([]*core.Chunk, error) {
	s, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return s.Split(docs)
}

// Split splits every document, preserving document order.
func (s *Splitter) Split(docs []*core.RawDocument) ([]*core.Chunk, error) {
	chunks := make([]*core.Chunk, 0, len(docs))
	for chunk, err := range s.Seq(documents(docs)) {
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func documents(docs []*core.RawDocument) iter.Seq2[*core.RawDocument, error] {
	return func(yield func(*core.RawDocument, error) bool) {
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// Seq lazily splits a document sequence. A non-nil error ends the sequence.
func (s *Splitter) Seq(docs iter.Seq2[*core.RawDocument, error]) iter.Seq2[*core.Chunk, error] {
	return func(yield func(*core.Chunk, error) bool) {
		for doc, err := range docs {
			if err != nil {
				yield(nil, err)
				return
			}
			chunks, err := s.SplitDocument(doc)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, chunk := range chunks {
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}

// SplitDocument splits one document into chunks ordered by start index.
// Documents without any non-whitespace content produce no chunks.
func (s *Splitter) SplitDocument(doc *core.RawDocument) ([]*core.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	if utf8.RuneCountInString(doc.Content) <= s.size {
		return []*core.Chunk{core.NewChunk(doc, doc.Content, 0)}, nil
	}

	pieces, err := s.text.SplitText(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", doc.Source(), err)
	}

	chunks := s.place(doc, pieces)
	s.logger.Debug("split document", "source", doc.Source(), "chunks", len(chunks))
	return chunks, nil
}

// place locates each piece in doc and assigns its start index.
//
// A piece normally starts inside the last overlap code points of its
// predecessor and reaches at least as far, so the latest match in that window
// wins. Otherwise the first match after the predecessor is used. A piece
// starting where its predecessor starts replaces it when longer, which keeps
// start indexes strictly increasing. Pieces that occur only before their
// predecessor are logged and dropped.
func (s *Splitter) place(doc *core.RawDocument, pieces []string) []*core.Chunk {
	index := newRuneIndex(doc.Content)
	chunks := make([]*core.Chunk, 0, len(pieces))
	prevStart, prevEnd := -1, 0
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		length := utf8.RuneCountInString(piece)

		var start int
		if prevStart < 0 {
			start = index.find(piece, 0)
		} else {
			start = index.findLast(piece, max(prevEnd-s.overlap, prevStart, prevEnd-length), prevEnd)
			if start < 0 {
				start = index.find(piece, prevEnd+1)
			}
			if start < 0 {
				start = index.find(piece, prevStart+1)
			}
		}
		if start < 0 {
			s.logger.Warn("dropping chunk that repeats earlier text",
				"source", doc.Source(), "after", prevStart, "length", length)
			continue
		}

		if start == prevStart {
			if start+length > prevEnd {
				chunks[len(chunks)-1] = core.NewChunk(doc, piece, start)
				prevEnd = start + length
			}
			continue
		}

		chunks = append(chunks, core.NewChunk(doc, piece, start))
		prevStart, prevEnd = start, start+length
	}
	return chunks
}
