package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateChunk(t *testing.T) {
	valid := func() *Chunk {
		return &Chunk{
			Content:  "some text",
			Metadata: map[string]any{MetadataSource: "a.txt", MetadataStartIndex: 0},
		}
	}

	tests := []struct {
		name    string
		chunk   func() *Chunk
		wantErr error
	}{
		{
			name:  "valid chunk",
			chunk: valid,
		},
		{
			name:    "nil chunk",
			chunk:   func() *Chunk { return nil },
			wantErr: ErrInvalidRecord,
		},
		{
			name: "whitespace content",
			chunk: func() *Chunk {
				c := valid()
				c.Content = " \n\t"
				return c
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "missing source",
			chunk: func() *Chunk {
				c := valid()
				delete(c.Metadata, MetadataSource)
				return c
			},
			wantErr: ErrMissingSource,
		},
		{
			name: "negative start index",
			chunk: func() *Chunk {
				c := valid()
				c.Metadata[MetadataStartIndex] = -2
				return c
			},
			wantErr: ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *Record
		wantErr error
	}{
		{
			name: "valid record",
			record: &Record{
				Text:     "text",
				Vector:   []float32{1},
				Metadata: map[string]any{MetadataSource: "a.txt"},
			},
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidRecord,
		},
		{
			name: "empty text",
			record: &Record{
				Vector:   []float32{1},
				Metadata: map[string]any{MetadataSource: "a.txt"},
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "empty vector",
			record: &Record{
				Text:     "text",
				Metadata: map[string]any{MetadataSource: "a.txt"},
			},
			wantErr: ErrEmptyVector,
		},
		{
			name: "missing source",
			record: &Record{
				Text:   "text",
				Vector: []float32{1},
			},
			wantErr: ErrMissingSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: fmt.Errorf("%w: chunk size", ErrConfig), want: "config"},
		{err: fmt.Errorf("%w: ./missing", ErrNotFound), want: "not_found"},
		{err: fmt.Errorf("dial: %w", ErrConnection), want: "connection"},
		{err: fmt.Errorf("%w: 429", ErrEmbeddingService), want: "embedding_service"},
		{err: ErrDecode, want: "decode"},
		{err: fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent), want: "invalid_record"},
		{err: fmt.Errorf("embedding: %w", context.DeadlineExceeded), want: "timeout"},
		{err: context.Canceled, want: "canceled"},
		{err: fmt.Errorf("%w: %w", ErrEmbeddingService, context.DeadlineExceeded), want: "embedding_service"},
		{err: errors.New("boom"), want: "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}
