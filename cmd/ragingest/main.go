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


package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/ragingest"
	"github.com/poiesic/ragingest/ai"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/ingestion"
	"github.com/poiesic/ragingest/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragingest",
		Usage: "Load text documents into a vector store for retrieval-augmented generation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML or YAML settings file (secrets are not accepted there)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file to load before reading environment variables",
				Value: ".env",
			},
		},
		Before: func(c *cli.Context) error {
			if err := loadEnv(c); err != nil {
				return err
			}
			return setupLogger(c)
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Split, embed and store every matching document",
				Action: ingestCommand,
				Flags:  pipelineFlags(),
			},
			{
				Name:   "load",
				Usage:  "Embed and store every matching document whole, without splitting",
				Action: loadCommand,
				Flags:  pipelineFlags(),
			},
		},
	}
}

func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "uri",
			Usage:   "Document store connection string (mongodb://, postgres://, badger://)",
			EnvVars: []string{"MONGO_URI", "DATABASE_URI"},
		},
		&cli.StringFlag{
			Name:    "db-name",
			Usage:   "Database name",
			Value:   ingestion.DefaultDatabase,
			EnvVars: []string{"DB_NAME"},
		},
		&cli.StringFlag{
			Name:    "collection-name",
			Usage:   "Collection (or table) name",
			Value:   ingestion.DefaultCollection,
			EnvVars: []string{"COLLECTION_NAME"},
		},
		&cli.StringFlag{
			Name:    "source-dir",
			Aliases: []string{"d"},
			Usage:   "Directory to read documents from",
			Value:   ingestion.DefaultSourceDir,
			EnvVars: []string{"FILE_PATHS"},
		},
		&cli.StringFlag{
			Name:    "glob",
			Usage:   "Glob pattern relative to the source directory; use ** to recurse",
			Value:   ingestion.DefaultGlob,
			EnvVars: []string{"GLOB"},
		},
		&cli.IntFlag{
			Name:    "chunk-size",
			Usage:   "Maximum chunk length in characters",
			Value:   ingestion.DefaultChunkSize,
			EnvVars: []string{"CHUNK_SIZE"},
		},
		&cli.IntFlag{
			Name:    "chunk-overlap",
			Usage:   "Characters shared by consecutive chunks",
			Value:   ingestion.DefaultChunkOverlap,
			EnvVars: []string{"CHUNK_OVERLAP"},
		},
		&cli.StringFlag{
			Name:    "provider",
			Usage:   "Embedding provider (openai, gemini)",
			Value:   string(ai.ProviderOpenAI),
			EnvVars: []string{"EMBEDDING_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "OpenAI-compatible embedding service URL",
			Value:   ai.DefaultOpenAIHost,
			EnvVars: []string{"EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name (provider default if empty)",
			EnvVars: []string{"EMBEDDING_MODEL"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Embedding service API key",
			EnvVars: []string{"OPENAI_API_KEY", "EMBEDDING_API_KEY", "GEMINI_API_KEY"},
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of chunks per embedding call and per write",
			Value: ingestion.DefaultBatchSize,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent embedding calls (default NumCPU/2)",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Attempts per embedding call; 1 disables retries",
			Value: ingestion.DefaultMaxRetries,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: ingestion.DefaultRetryDelay,
		},
		&cli.DurationFlag{
			Name:  "embed-timeout",
			Usage: "Timeout for each embedding call (0 disables)",
			Value: ingestion.DefaultEmbedTimeout,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for the whole run (0 disables)",
		},
		&cli.Float64Flag{
			Name:  "rate-limit",
			Usage: "Maximum embedding requests per second (0 is unlimited)",
		},
		&cli.BoolFlag{
			Name:  "normalize",
			Usage: "Scale embeddings to unit length before storing them",
		},
	}
}

func ingestCommand(c *cli.Context) error {
	return runPipeline(c, false)
}

func loadCommand(c *cli.Context) error {
	return runPipeline(c, true)
}

func runPipeline(c *cli.Context, skipSplit bool) error {
	cfg, aiConfig, uri, err := buildConfig(c)
	if err != nil {
		return failure(err)
	}
	cfg.SkipSplit = skipSplit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := ragingest.NewDataStore(ctx, uri,
		ragingest.WithAIConfig(aiConfig),
		ragingest.WithProgress(c.App.ErrWriter),
	)
	if err != nil {
		return failure(err)
	}
	defer ds.Close()

	fmt.Fprintf(c.App.ErrWriter, "Source: %s (%s)\n", cfg.SourceDir, cfg.Glob)
	fmt.Fprintf(c.App.ErrWriter, "Target: %s/%s\n", cfg.Database, cfg.Collection)
	fmt.Fprintf(c.App.ErrWriter, "Embeddings: %s %s\n", aiConfig.Provider, aiConfig.Model)
	fmt.Fprintln(c.App.ErrWriter)

	var handle storage.Handle
	if skipSplit {
		handle, err = ds.LoadData(ctx, cfg)
	} else {
		handle, err = ds.CreateDatabase(ctx, cfg)
	}
	if err != nil {
		return failure(err)
	}

	fmt.Fprintf(c.App.Writer, "Wrote %d records to %s (text field %q, embedding field %q)\n",
		handle.Records, handle, handle.TextField, handle.EmbeddingField)
	return nil
}

// buildConfig layers defaults, the settings file, then environment variables
// and flags.
func buildConfig(c *cli.Context) (*ingestion.Config, *ai.Config, string, error) {
	cfg := ingestion.DefaultConfig()
	aiConfig := ai.DefaultConfig()

	if path := c.String("config"); path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return nil, nil, "", err
		}
		if err := fc.apply(cfg, aiConfig); err != nil {
			return nil, nil, "", err
		}
	}

	applyFlags(c, cfg, aiConfig)

	uri := strings.TrimSpace(c.String("uri"))
	if uri == "" {
		return nil, nil, "", fmt.Errorf("%w: a connection string is required (--uri or MONGO_URI)", core.ErrConfig)
	}
	return cfg, aiConfig, uri, nil
}

// applyFlags copies flags and environment variables that were explicitly set.
func applyFlags(c *cli.Context, cfg *ingestion.Config, aiConfig *ai.Config) {
	setString := func(name string, dst *string) {
		if v := c.String(name); c.IsSet(name) && v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if c.IsSet(name) {
			*dst = c.Duration(name)
		}
	}

	setString("db-name", &cfg.Database)
	setString("collection-name", &cfg.Collection)
	setString("source-dir", &cfg.SourceDir)
	setString("glob", &cfg.Glob)
	setInt("chunk-size", &cfg.ChunkSize)
	setInt("chunk-overlap", &cfg.ChunkOverlap)
	setInt("batch-size", &cfg.BatchSize)
	setInt("workers", &cfg.Workers)
	setInt("max-retries", &cfg.MaxRetries)
	setDuration("retry-delay", &cfg.RetryDelay)
	setDuration("embed-timeout", &cfg.EmbedTimeout)
	setDuration("timeout", &cfg.Timeout)
	if c.IsSet("normalize") {
		cfg.NormalizeVectors = c.Bool("normalize")
	}

	if c.IsSet("provider") {
		aiConfig.Provider = ai.ProviderKind(c.String("provider"))
	}
	setString("embedding-host", &aiConfig.Host)
	setString("embedding-model", &aiConfig.Model)
	setString("api-key", &aiConfig.APIKey)
	if c.IsSet("rate-limit") {
		aiConfig.RequestsPerSecond = c.Float64("rate-limit")
	}
}

// failure renders err with the stage and error kind for operators.
func failure(err error) error {
	stage := "setup"
	if s, ok := ingestion.FailedStage(err); ok {
		stage = s.String()
	}
	return fmt.Errorf("ingestion failed (stage=%s, kind=%s): %w", stage, core.Kind(err), err)
}

func loadEnv(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
