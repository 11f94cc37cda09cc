package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragingest/ai/mock"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/splitter"
	"github.com/poiesic/ragingest/storage"
	"github.com/poiesic/ragingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore hands out collections on one in-memory backend and counts connects.
type testStore struct {
	backend  *badger.Backend
	connects int
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return &testStore{backend: backend}
}

func (s *testStore) connect(ctx context.Context, database, collection string) (storage.VectorCollection, error) {
	s.connects++
	return badger.NewCollection(s.backend, database, collection)
}

func (s *testStore) records(t *testing.T, database, collection string) []*core.Record {
	t.Helper()
	coll, err := badger.NewCollection(s.backend, database, collection)
	require.NoError(t, err)
	records, err := coll.Records(context.Background())
	require.NoError(t, err)
	return records
}

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func testConfig(dir string) *Config {
	return NewConfig(
		WithDatabase("db"),
		WithCollection("coll"),
		WithSource(dir, "*.txt"),
		WithChunking(100, 20),
	)
}

func TestNewPipeline_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := NewPipeline(nil, store.connect)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(mock.NewMockEmbedder(), nil)
	assert.ErrorIs(t, err, ErrConnectorRequired)
}

func TestPipeline_Run_TwoFiles(t *testing.T) {
	dir := writeSource(t, map[string]string{
		"a.txt": strings.Repeat("Hello world. ", 50),
		"b.txt": "0123456789",
	})
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()

	var out bytes.Buffer
	p, err := NewPipeline(embedder, store.connect, WithProgress(&out))
	require.NoError(t, err)

	handle, err := p.Run(context.Background(), testConfig(dir))
	require.NoError(t, err)
	assert.Equal(t, StageDone, p.State())

	// Expected chunks computed independently of the pipeline
	docs := []*core.RawDocument{
		{Content: strings.Repeat("Hello world. ", 50), Metadata: map[string]any{core.MetadataSource: filepath.Join(dir, "a.txt")}},
		{Content: "0123456789", Metadata: map[string]any{core.MetadataSource: filepath.Join(dir, "b.txt")}},
	}
	expected, err := splitter.Split(docs, 100, 20)
	require.NoError(t, err)

	perSource := map[string]int{}
	for _, c := range expected {
		perSource[c.Source()]++
	}
	assert.Greater(t, perSource[filepath.Join(dir, "a.txt")], 1)
	assert.Equal(t, 1, perSource[filepath.Join(dir, "b.txt")])

	assert.Equal(t, int64(len(expected)), handle.Records)
	assert.Equal(t, "db", handle.Database)
	assert.Equal(t, "coll", handle.Collection)

	records := store.records(t, "db", "coll")
	require.Len(t, records, len(expected))
	byID := make(map[core.ID]*core.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	for _, c := range expected {
		rec, ok := byID[c.ID]
		require.True(t, ok, "chunk at %d of %s not stored", c.StartIndex(), c.Source())
		assert.Equal(t, c.Content, rec.Text)
		assert.Equal(t, c.Source(), rec.Metadata[core.MetadataSource])
		assert.EqualValues(t, c.StartIndex(), rec.Metadata[core.MetadataStartIndex])
		assert.NotEmpty(t, rec.Vector)
	}

	report := p.Report()
	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, len(expected), report.Chunks)
	assert.Equal(t, int64(len(expected)), report.Records)
	assert.Greater(t, report.Elapsed, time.Duration(0))

	assert.Contains(t, out.String(), "Loading documents")
	assert.Contains(t, out.String(), fmt.Sprintf("Split 2 documents into %d chunks.", len(expected)))
	assert.Contains(t, out.String(), "Done:")
}

func TestPipeline_Run_ProseWithParagraphBreaks(t *testing.T) {
	text := "document dog source embeddings\n\nindex retrieval generation brown lazy chunk metadata over search " +
		"generation source\nembeddings\nquick search chunk retrieval metadata source lazy dog quick retrieval source" +
		"\n\n\nindex fox\nembeddings\n\n\naugmented embeddings search\n\nfox fox document over"
	dir := writeSource(t, map[string]string{"a.txt": text})
	store := newTestStore(t)

	p, err := NewPipeline(mock.NewMockEmbedder(), store.connect)
	require.NoError(t, err)

	cfg := testConfig(dir)
	cfg.ChunkSize, cfg.ChunkOverlap = 200, 40

	handle, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), handle.Records)

	starts := map[int]bool{}
	for _, rec := range store.records(t, "db", "coll") {
		starts[(&core.Chunk{Metadata: rec.Metadata}).StartIndex()] = true
	}
	assert.Equal(t, map[int]bool{0: true, 205: true}, starts)
}

func TestPipeline_Run_EmptyDirectory(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()
	p, err := NewPipeline(embedder, store.connect)
	require.NoError(t, err)

	handle, err := p.Run(context.Background(), testConfig(t.TempDir()))
	require.NoError(t, err)

	assert.Zero(t, handle.Records)
	assert.Zero(t, embedder.CallCount())
	assert.Empty(t, store.records(t, "db", "coll"))
	assert.Equal(t, StageDone, p.State())
}

func TestPipeline_Run_MissingDirectory(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()
	p, err := NewPipeline(embedder, store.connect)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), testConfig(filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)

	stage, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, StageLoading, stage)
	assert.Equal(t, StageFailed, p.State())
	assert.Zero(t, store.connects, "store must not be contacted")
	assert.Zero(t, embedder.CallCount())
}

func TestPipeline_Run_InvalidChunkingBeforeIO(t *testing.T) {
	store := newTestStore(t)
	p, err := NewPipeline(mock.NewMockEmbedder(), store.connect)
	require.NoError(t, err)

	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))
	cfg.ChunkOverlap = cfg.ChunkSize

	_, err = p.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, core.ErrConfig)
	assert.Equal(t, "config", core.Kind(err))
	assert.Zero(t, store.connects)
}

func TestPipeline_Run_ConnectionFailure(t *testing.T) {
	refused := func(ctx context.Context, database, collection string) (storage.VectorCollection, error) {
		return nil, errors.Join(core.ErrConnection, errors.New("auth rejected"))
	}
	p, err := NewPipeline(mock.NewMockEmbedder(), refused)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), testConfig(t.TempDir()))
	assert.ErrorIs(t, err, core.ErrConnection)

	stage, _ := FailedStage(err)
	assert.Equal(t, StageConnecting, stage)
}

func TestPipeline_Run_EmbeddingFailureWritesNothing(t *testing.T) {
	dir := writeSource(t, map[string]string{"a.txt": strings.Repeat("Hello world. ", 50)})
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("quota exceeded")
	})
	p, err := NewPipeline(embedder, store.connect)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), testConfig(dir))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Equal(t, "embedding_service", core.Kind(err))

	stage, _ := FailedStage(err)
	assert.Equal(t, StageEmbeddingAndStoring, stage)
	assert.Empty(t, store.records(t, "db", "coll"))
}

func TestPipeline_Run_SkipsUndecodableFiles(t *testing.T) {
	dir := writeSource(t, map[string]string{
		"good.txt": "readable text",
		"bad.txt":  string([]byte{0xff, 0xfe, 0x00, 0x41}),
	})
	store := newTestStore(t)
	p, err := NewPipeline(mock.NewMockEmbedder(), store.connect)
	require.NoError(t, err)

	handle, err := p.Run(context.Background(), testConfig(dir))
	require.NoError(t, err)

	assert.Equal(t, int64(1), handle.Records)
	assert.Equal(t, 1, p.Report().Skipped)
	assert.Equal(t, 1, p.Report().Documents)
}

func TestPipeline_Run_SkipSplit(t *testing.T) {
	long := strings.Repeat("Hello world. ", 50)
	dir := writeSource(t, map[string]string{"a.txt": long, "blank.txt": "   "})
	store := newTestStore(t)
	p, err := NewPipeline(mock.NewMockEmbedder(), store.connect)
	require.NoError(t, err)

	cfg := testConfig(dir)
	cfg.SkipSplit = true

	handle, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, int64(1), handle.Records)

	records := store.records(t, "db", "coll")
	require.Len(t, records, 1)
	assert.Equal(t, long, records[0].Text)
	assert.EqualValues(t, 0, records[0].Metadata[core.MetadataStartIndex])
}

func TestPipeline_Run_Timeout(t *testing.T) {
	dir := writeSource(t, map[string]string{"a.txt": "some text"})
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p, err := NewPipeline(embedder, store.connect)
	require.NoError(t, err)

	cfg := testConfig(dir)
	cfg.EmbedTimeout = 0
	cfg.Timeout = 50 * time.Millisecond

	_, err = p.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "timeout", core.Kind(err))
	assert.Empty(t, store.records(t, "db", "coll"))
}

func TestPipeline_Run_DoesNotMutateConfig(t *testing.T) {
	store := newTestStore(t)
	p, err := NewPipeline(mock.NewMockEmbedder(), store.connect)
	require.NoError(t, err)

	cfg := &Config{Database: "db", Collection: "coll", SourceDir: t.TempDir(), ChunkSize: 100, ChunkOverlap: 10}
	_, err = p.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Empty(t, cfg.Glob)
	assert.Zero(t, cfg.BatchSize)
}

func TestPipeline_Run_NilConfig(t *testing.T) {
	p, err := NewPipeline(mock.NewMockEmbedder(), newTestStore(t).connect)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageConnecting, Err: core.ErrConnection}
	assert.Equal(t, "connecting: connection failed", err.Error())
	assert.ErrorIs(t, err, core.ErrConnection)

	_, ok := FailedStage(errors.New("plain"))
	assert.False(t, ok)

	assert.Equal(t, "embedding_and_storing", StageEmbeddingAndStoring.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
