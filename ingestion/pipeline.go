package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragingest/ai"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/loader"
	"github.com/poiesic/ragingest/splitter"
	"github.com/poiesic/ragingest/storage"
)

// Connector opens the target collection for a run.
type Connector func(ctx context.Context, database, collection string) (storage.VectorCollection, error)

// ConnectURI returns a Connector that dials the store at uri with storage.Connect.
func ConnectURI(uri string) Connector {
	return func(ctx context.Context, database, collection string) (storage.VectorCollection, error) {
		return storage.Connect(ctx, uri, database, collection)
	}
}

// Report summarizes a run.
type Report struct {
	RunID     uuid.UUID
	Started   time.Time
	Documents int
	Skipped   int
	Chunks    int
	Records   int64
	Elapsed   time.Duration
	Handle    storage.Handle
}

// Pipeline orchestrates loading, splitting, embedding and storing documents.
// Stages run strictly in order: Connecting, Loading, Splitting,
// EmbeddingAndStoring. Any failure moves the pipeline to StageFailed and is
// returned as a *StageError naming the stage.
type Pipeline struct {
	embedder ai.Embedder
	connect  Connector
	progress io.Writer
	state    atomic.Int32
	running  atomic.Bool
	mu       sync.Mutex
	report   Report
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithProgress writes stage messages and progress bars to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(embedder ai.Embedder, connect Connector, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if connect == nil {
		return nil, ErrConnectorRequired
	}

	p := &Pipeline{
		embedder: embedder,
		connect:  connect,
		logger:   slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// State returns the current stage.
func (p *Pipeline) State() Stage {
	return Stage(p.state.Load())
}

// Report returns the summary of the current or last run.
func (p *Pipeline) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report
}

// Run executes one ingestion with a copy of config. Configuration errors and
// a missing source directory are reported before the store is contacted.
func (p *Pipeline) Run(ctx context.Context, config *Config) (storage.Handle, error) {
	if !p.running.CompareAndSwap(false, true) {
		return storage.Handle{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	runID := uuid.New()
	logger := p.logger.With("run_id", runID.String())
	p.setState(StageIdle)
	p.updateReport(func(r *Report) {
		*r = Report{RunID: runID, Started: time.Now()}
	})
	defer p.updateReport(func(r *Report) {
		r.Elapsed = time.Since(r.Started)
	})

	if config == nil {
		return storage.Handle{}, p.fail(logger, StageIdle, fmt.Errorf("%w: config required", core.ErrConfig))
	}
	cfg := *config
	if err := cfg.Validate(); err != nil {
		return storage.Handle{}, p.fail(logger, StageIdle, err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	// Preflight so a missing directory is reported before any network call.
	ld, err := loader.New(cfg.SourceDir, loader.WithPattern(cfg.Glob), loader.WithProgress(p.progress))
	if err != nil {
		return storage.Handle{}, p.fail(logger, StageLoading, err)
	}
	if err := loader.CheckDir(cfg.SourceDir); err != nil {
		return storage.Handle{}, p.fail(logger, StageLoading, err)
	}

	p.enter(logger, StageConnecting, "Connecting to %s/%s...", cfg.Database, cfg.Collection)
	collection, err := p.connect(ctx, cfg.Database, cfg.Collection)
	if err != nil {
		return storage.Handle{}, p.fail(logger, StageConnecting, err)
	}
	defer func() {
		if err := collection.Close(); err != nil {
			logger.Warn("error closing collection", "err", err)
		}
	}()

	p.enter(logger, StageLoading, "Loading documents from %s (%s)...", cfg.SourceDir, ld.Pattern())
	docs, err := ld.Load(ctx)
	if err != nil {
		return storage.Handle{}, p.fail(logger, StageLoading, err)
	}
	p.updateReport(func(r *Report) {
		r.Documents = len(docs)
		r.Skipped = ld.Skipped()
	})

	p.enter(logger, StageSplitting, "Splitting %d documents into chunks...", len(docs))
	chunks, err := p.split(&cfg, docs)
	if err != nil {
		return storage.Handle{}, p.fail(logger, StageSplitting, err)
	}
	p.updateReport(func(r *Report) {
		r.Chunks = len(chunks)
	})
	p.note(logger, "Split %d documents into %d chunks.", len(docs), len(chunks))

	p.enter(logger, StageEmbeddingAndStoring, "Embedding and storing %d chunks...", len(chunks))
	sink, err := NewSink(p.embedder, collection,
		WithBatchSize(cfg.BatchSize),
		WithWorkers(cfg.Workers),
		WithEmbedTimeout(cfg.EmbedTimeout),
		WithRetry(cfg.MaxRetries, cfg.RetryDelay),
		WithNormalization(cfg.NormalizeVectors),
		WithSinkProgress(p.progress),
		WithSinkLogger(logger),
	)
	if err != nil {
		return storage.Handle{}, p.fail(logger, StageEmbeddingAndStoring, err)
	}

	handle, err := sink.Ingest(ctx, chunks)
	p.updateReport(func(r *Report) {
		r.Records = handle.Records
		r.Handle = handle
	})
	if err != nil {
		return handle, p.fail(logger, StageEmbeddingAndStoring, err)
	}

	p.enter(logger, StageDone, "Done: %d records written to %s", handle.Records, handle)
	return handle, nil
}

// split turns documents into chunks, or into one whole-document chunk each
// when splitting is disabled.
func (p *Pipeline) split(cfg *Config, docs []*core.RawDocument) ([]*core.Chunk, error) {
	if cfg.SkipSplit {
		chunks := make([]*core.Chunk, 0, len(docs))
		for _, doc := range docs {
			if strings.TrimSpace(doc.Content) == "" {
				continue
			}
			chunks = append(chunks, core.NewChunk(doc, doc.Content, 0))
		}
		return chunks, nil
	}

	s, err := splitter.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return s.Split(docs)
}

func (p *Pipeline) enter(logger *slog.Logger, stage Stage, format string, args ...any) {
	p.setState(stage)
	p.note(logger, format, args...)
}

// note writes a progress line and logs it against the current stage.
func (p *Pipeline) note(logger *slog.Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.progress != nil {
		fmt.Fprintln(p.progress, msg)
	}
	logger.Info(msg, "stage", p.State().String())
}

func (p *Pipeline) fail(logger *slog.Logger, stage Stage, err error) error {
	p.setState(StageFailed)
	logger.Error("run failed", "stage", stage.String(), "kind", core.Kind(err), "err", err)
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) setState(stage Stage) {
	p.state.Store(int32(stage))
}

func (p *Pipeline) updateReport(fn func(r *Report)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.report)
}
