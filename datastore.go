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


package ragingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/poiesic/ragingest/ai"
	"github.com/poiesic/ragingest/ai/gemini"
	"github.com/poiesic/ragingest/ai/openai"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/ingestion"
	"github.com/poiesic/ragingest/storage"

	// Backends register their URI schemes with storage.Connect.
	_ "github.com/poiesic/ragingest/storage/badger"
	_ "github.com/poiesic/ragingest/storage/mongodb"
	_ "github.com/poiesic/ragingest/storage/postgres"
)

// DataStore ties an embedding provider to a document store connection string
// and runs ingestion pipelines against it.
type DataStore struct {
	uri      string
	provider ai.Provider
	progress io.Writer
	logger   *slog.Logger
}

// DataStoreOption configures a DataStore.
type DataStoreOption func(*dataStoreOptions)

type dataStoreOptions struct {
	aiConfig *ai.Config
	provider ai.Provider
	progress io.Writer
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(config *ai.Config) DataStoreOption {
	return func(o *dataStoreOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses an already constructed provider instead of building one
// from the AI configuration. The DataStore takes ownership and closes it.
func WithProvider(provider ai.Provider) DataStoreOption {
	return func(o *dataStoreOptions) {
		o.provider = provider
	}
}

// WithProgress writes stage messages and progress bars to w.
func WithProgress(w io.Writer) DataStoreOption {
	return func(o *dataStoreOptions) {
		o.progress = w
	}
}

// NewDataStore creates a DataStore for the store at uri. The store itself is
// contacted only when a pipeline runs.
func NewDataStore(ctx context.Context, uri string, opts ...DataStoreOption) (*DataStore, error) {
	options := &dataStoreOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}

	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%w: connection URI is required", core.ErrConfig)
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = NewProvider(ctx, options.aiConfig)
		if err != nil {
			return nil, err
		}
	}

	return &DataStore{
		uri:      uri,
		provider: provider,
		progress: options.progress,
		logger:   slog.Default().With("component", "datastore"),
	}, nil
}

// NewProvider builds the embedding provider selected by config.Provider.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: ai config required", core.ErrConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Provider {
	case ai.ProviderGemini:
		return gemini.NewProvider(ctx, config)
	default:
		return openai.NewProvider(config)
	}
}

// Close releases the embedding provider.
func (ds *DataStore) Close() error {
	if err := ds.provider.Close(); err != nil {
		ds.logger.Error("error closing AI provider", "err", err)
		return err
	}
	return nil
}

// Provider returns the embedding provider.
func (ds *DataStore) Provider() ai.Provider {
	return ds.provider
}

// NewIngestionPipeline creates a pipeline writing to the DataStore's store.
func (ds *DataStore) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	defaults := []ingestion.Option{ingestion.WithProgress(ds.progress)}
	return ingestion.NewPipeline(ds.provider.Embedder(), ingestion.ConnectURI(ds.uri), append(defaults, opts...)...)
}

// CreateDatabase loads, splits, embeds and stores the documents described by config.
func (ds *DataStore) CreateDatabase(ctx context.Context, config *ingestion.Config) (storage.Handle, error) {
	pipeline, err := ds.NewIngestionPipeline()
	if err != nil {
		return storage.Handle{}, err
	}
	return pipeline.Run(ctx, config)
}

// LoadData stores each document whole, without splitting.
func (ds *DataStore) LoadData(ctx context.Context, config *ingestion.Config) (storage.Handle, error) {
	if config == nil {
		return storage.Handle{}, fmt.Errorf("%w: config required", core.ErrConfig)
	}
	whole := *config
	whole.SkipSplit = true
	return ds.CreateDatabase(ctx, &whole)
}
