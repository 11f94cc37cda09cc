package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragingest/ai"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/progress"
	"github.com/poiesic/ragingest/storage"
)

// Sink embeds chunks and writes the resulting records to a collection.
//
// Ingestion runs in two phases. All batches are embedded first, concurrently
// on a bounded worker pool; the first failure cancels the remaining batches
// and nothing is written. Records are then written batch by batch in order.
type Sink struct {
	embedder     ai.Embedder
	collection   storage.VectorCollection
	batchSize    int
	workers      int
	embedTimeout time.Duration
	maxRetries   int
	retryDelay   time.Duration
	normalize    bool
	progress     io.Writer
	logger       *slog.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink) error

// WithBatchSize sets the number of chunks per embedding call and per write.
func WithBatchSize(size int) SinkOption {
	return func(s *Sink) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", core.ErrConfig, size)
		}
		s.batchSize = size
		return nil
	}
}

// WithWorkers sets the embedding worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(n int) SinkOption {
	return func(s *Sink) error {
		if n < 1 {
			n = 1
		}
		s.workers = n
		return nil
	}
}

// WithEmbedTimeout limits each embedding call. Zero disables the limit.
func WithEmbedTimeout(d time.Duration) SinkOption {
	return func(s *Sink) error {
		s.embedTimeout = d
		return nil
	}
}

// WithRetry retries failed embedding calls with exponential backoff.
// maxAttempts of 1 disables retries.
func WithRetry(maxAttempts int, baseDelay time.Duration) SinkOption {
	return func(s *Sink) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		s.maxRetries = maxAttempts
		s.retryDelay = baseDelay
		return nil
	}
}

// WithNormalization scales vectors to unit length before they are stored.
func WithNormalization(enabled bool) SinkOption {
	return func(s *Sink) error {
		s.normalize = enabled
		return nil
	}
}

// WithSinkProgress reports embedding and write progress to w.
func WithSinkProgress(w io.Writer) SinkOption {
	return func(s *Sink) error {
		s.progress = w
		return nil
	}
}

// WithSinkLogger sets a custom logger.
func WithSinkLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "sink")
		return nil
	}
}

// NewSink creates a sink writing to collection.
func NewSink(embedder ai.Embedder, collection storage.VectorCollection, opts ...SinkOption) (*Sink, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if collection == nil {
		return nil, ErrCollectionRequired
	}

	s := &Sink{
		embedder:     embedder,
		collection:   collection,
		batchSize:    DefaultBatchSize,
		workers:      defaultWorkers(),
		embedTimeout: DefaultEmbedTimeout,
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
		logger:       slog.Default().With("component", "sink"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Ingest embeds every chunk and stores one record per chunk. The returned
// handle counts the records written, including on a partial write failure.
// Embedding failures wrap core.ErrEmbeddingService and leave the collection
// untouched; write failures wrap storage.ErrWriteFailed.
func (s *Sink) Ingest(ctx context.Context, chunks []*core.Chunk) (storage.Handle, error) {
	handle := s.collection.Describe()
	if len(chunks) == 0 {
		return handle, nil
	}

	if err := checkChunks(chunks); err != nil {
		return handle, err
	}

	batches := makeBatches(chunks, s.batchSize)
	s.logger.Info("ingesting chunks", "chunks", len(chunks), "batches", len(batches), "workers", s.workers)

	vectors, err := s.embedAll(ctx, batches)
	if err != nil {
		return handle, err
	}

	written, err := s.writeAll(ctx, batches, vectors)
	handle.Records = written
	if err != nil {
		return handle, err
	}

	s.logger.Info("ingestion complete", "records", written)
	return handle, nil
}

// embedAll embeds all batches concurrently. vectors[i] holds the vectors of batches[i].
func (s *Sink) embedAll(ctx context.Context, batches [][]*core.Chunk) ([][][]float32, error) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	embedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	tracker := progress.NewTracker(s.progress, "Embedding", countChunks(batches), s.batchSize).WithUnit("chunks")
	tracker.Start()

	vectors := make([][][]float32, len(batches))
	for i, batch := range batches {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if embedCtx.Err() != nil {
				return
			}
			v, err := s.embedBatch(embedCtx, batch)
			if err != nil {
				fail(err)
				return
			}
			vectors[i] = v
			tracker.Increment(len(batch))
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		tracker.Stop()
		s.logger.Error("embedding failed, nothing written", "err", firstErr)
		return nil, firstErr
	}

	tracker.Finish()
	return vectors, nil
}

// embedBatch embeds one batch with the per-call timeout and retry policy.
func (s *Sink) embedBatch(ctx context.Context, batch []*core.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Content
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.embedTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		}
		defer cancel()

		v, err := s.embedder.EmbedTexts(callCtx, texts)
		if err != nil {
			return err
		}
		if len(v) != len(texts) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(v))
		}
		for i := range v {
			if len(v[i]) == 0 {
				return fmt.Errorf("empty embedding for chunk %d of %s", batch[i].StartIndex(), batch[i].Source())
			}
		}
		vectors = v
		return nil
	}, s.maxRetries, s.retryDelay)

	if err != nil {
		// Cancellation from outside the call is not a service failure.
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
	}
	return vectors, nil
}

// writeAll stores the records batch by batch and returns how many were written.
func (s *Sink) writeAll(ctx context.Context, batches [][]*core.Chunk, vectors [][][]float32) (int64, error) {
	tracker := progress.NewTracker(s.progress, "Storing", countChunks(batches), s.batchSize).WithUnit("records")
	tracker.Start()

	var written int64
	for i, batch := range batches {
		records := make([]*core.Record, len(batch))
		for j, chunk := range batch {
			vector := vectors[i][j]
			if s.normalize {
				vector = NormalizeVector(vector)
			}
			records[j] = core.NewRecord(chunk, vector)
		}

		if err := s.collection.AddRecords(ctx, records...); err != nil {
			tracker.Stop()
			s.logger.Error("write failed", "batch", i, "written", written, "err", err)
			if !errors.Is(err, storage.ErrWriteFailed) {
				err = fmt.Errorf("%w: %w", storage.ErrWriteFailed, err)
			}
			return written, err
		}
		written += int64(len(records))
		tracker.Increment(len(records))
	}

	tracker.Finish()
	return written, nil
}

// checkChunks validates every chunk and fails if two chunks share an ID,
// which would store the same chunk twice.
func checkChunks(chunks []*core.Chunk) error {
	seen := make(map[core.ID]struct{}, len(chunks))
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		if _, dup := seen[chunk.ID]; dup {
			return fmt.Errorf("%w: chunk %s at %d in %s", storage.ErrDuplicateKey, chunk.ID, chunk.StartIndex(), chunk.Source())
		}
		seen[chunk.ID] = struct{}{}
	}
	return nil
}

func makeBatches(chunks []*core.Chunk, size int) [][]*core.Chunk {
	batches := make([][]*core.Chunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batches = append(batches, chunks[start:end])
	}
	return batches
}

func countChunks(batches [][]*core.Chunk) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}
