package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/ragingest/ai"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type captured struct {
	cfg      *ingestion.Config
	aiConfig *ai.Config
	uri      string
}

// captureApp returns the real app with the ingest action replaced by one that
// records the resolved configuration.
func captureApp(t *testing.T) (*cli.App, *captured) {
	t.Helper()
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	got := &captured{}
	for _, cmd := range app.Commands {
		if cmd.Name == "ingest" {
			cmd.Action = func(c *cli.Context) error {
				cfg, aiConfig, uri, err := buildConfig(c)
				if err != nil {
					return err
				}
				got.cfg, got.aiConfig, got.uri = cfg, aiConfig, uri
				return nil
			}
		}
	}
	return app, got
}

func findFlag(flags []cli.Flag, name string) cli.Flag {
	for _, f := range flags {
		if f.Names()[0] == name {
			return f
		}
	}
	return nil
}

func TestPipelineFlags(t *testing.T) {
	flags := pipelineFlags()

	t.Run("environment variables", func(t *testing.T) {
		cases := map[string][]string{
			"uri":             {"MONGO_URI", "DATABASE_URI"},
			"db-name":         {"DB_NAME"},
			"collection-name": {"COLLECTION_NAME"},
			"source-dir":      {"FILE_PATHS"},
			"glob":            {"GLOB"},
			"api-key":         {"OPENAI_API_KEY", "EMBEDDING_API_KEY", "GEMINI_API_KEY"},
		}
		for name, envVars := range cases {
			flag, ok := findFlag(flags, name).(*cli.StringFlag)
			require.True(t, ok, name)
			assert.Equal(t, envVars, flag.EnvVars, name)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		db := findFlag(flags, "db-name").(*cli.StringFlag)
		assert.Equal(t, "langchain_demo", db.Value)

		coll := findFlag(flags, "collection-name").(*cli.StringFlag)
		assert.Equal(t, "collection_of_text_blobs", coll.Value)

		size := findFlag(flags, "chunk-size").(*cli.IntFlag)
		assert.Equal(t, 1000, size.Value)
		assert.Equal(t, []string{"CHUNK_SIZE"}, size.EnvVars)

		overlap := findFlag(flags, "chunk-overlap").(*cli.IntFlag)
		assert.Equal(t, 150, overlap.Value)
		assert.Equal(t, []string{"CHUNK_OVERLAP"}, overlap.EnvVars)

		retries := findFlag(flags, "max-retries").(*cli.IntFlag)
		assert.Equal(t, 1, retries.Value)
	})

	t.Run("uri is not required at parse time", func(t *testing.T) {
		uri := findFlag(flags, "uri").(*cli.StringFlag)
		assert.False(t, uri.Required)
	})
}

func TestLogLevelFlag(t *testing.T) {
	app := newApp()
	flag, ok := findFlag(app.Flags, "log-level").(*cli.StringFlag)
	require.True(t, ok)
	assert.Equal(t, "info", flag.Value)
	assert.Contains(t, flag.Aliases, "l")

	err := app.Run([]string{"ragingest", "--log-level", "loud", "ingest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestBuildConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		app, got := captureApp(t)
		err := app.Run([]string{"ragingest", "ingest", "--uri", "badger://memory"})
		require.NoError(t, err)

		assert.Equal(t, "badger://memory", got.uri)
		assert.Equal(t, ingestion.DefaultChunkSize, got.cfg.ChunkSize)
		assert.Equal(t, ingestion.DefaultChunkOverlap, got.cfg.ChunkOverlap)
		assert.Equal(t, ingestion.DefaultGlob, got.cfg.Glob)
	})

	t.Run("flags", func(t *testing.T) {
		app, got := captureApp(t)
		err := app.Run([]string{"ragingest", "ingest",
			"--uri", "badger://memory",
			"--db-name", "docs",
			"--collection-name", "chunks",
			"--chunk-size", "200",
			"--chunk-overlap", "20",
			"--batch-size", "8",
			"--embed-timeout", "5s",
			"--provider", "gemini",
			"--embedding-model", "custom",
			"--rate-limit", "2.5",
			"--normalize",
		})
		require.NoError(t, err)

		assert.Equal(t, "docs", got.cfg.Database)
		assert.Equal(t, "chunks", got.cfg.Collection)
		assert.Equal(t, 200, got.cfg.ChunkSize)
		assert.Equal(t, 20, got.cfg.ChunkOverlap)
		assert.Equal(t, 8, got.cfg.BatchSize)
		assert.Equal(t, 5*time.Second, got.cfg.EmbedTimeout)
		assert.True(t, got.cfg.NormalizeVectors)
		assert.Equal(t, ai.ProviderGemini, got.aiConfig.Provider)
		assert.Equal(t, "custom", got.aiConfig.Model)
		assert.InDelta(t, 2.5, got.aiConfig.RequestsPerSecond, 1e-9)
	})

	t.Run("environment overrides file, flags override environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
db_name = "from_file"
collection_name = "file_coll"
chunk_size = 300
chunk_overlap = 30
`), 0o600))
		t.Setenv("COLLECTION_NAME", "env_coll")
		t.Setenv("CHUNK_SIZE", "400")

		app, got := captureApp(t)
		err := app.Run([]string{"ragingest", "--config", path, "ingest",
			"--uri", "badger://memory",
			"--chunk-size", "500",
		})
		require.NoError(t, err)

		assert.Equal(t, "from_file", got.cfg.Database)
		assert.Equal(t, "env_coll", got.cfg.Collection)
		assert.Equal(t, 500, got.cfg.ChunkSize)
		assert.Equal(t, 30, got.cfg.ChunkOverlap)
	})

	t.Run("uri from environment", func(t *testing.T) {
		t.Setenv("MONGO_URI", "badger://memory")
		app, got := captureApp(t)
		require.NoError(t, app.Run([]string{"ragingest", "ingest"}))
		assert.Equal(t, "badger://memory", got.uri)
	})

	t.Run("missing uri", func(t *testing.T) {
		t.Setenv("MONGO_URI", "")
		t.Setenv("DATABASE_URI", "")
		app, _ := captureApp(t)
		err := app.Run([]string{"ragingest", "ingest"})
		require.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("dotenv file", func(t *testing.T) {
		t.Setenv("DB_NAME", "")
		require.NoError(t, os.Unsetenv("DB_NAME"))

		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("DB_NAME=from_dotenv\n"), 0o600))

		app, got := captureApp(t)
		err := app.Run([]string{"ragingest", "--env-file", path, "ingest", "--uri", "badger://memory"})
		require.NoError(t, err)
		assert.Equal(t, "from_dotenv", got.cfg.Database)
	})

	t.Run("missing dotenv file is ignored", func(t *testing.T) {
		app, _ := captureApp(t)
		err := app.Run([]string{"ragingest", "--env-file", filepath.Join(t.TempDir(), "absent.env"),
			"ingest", "--uri", "badger://memory"})
		require.NoError(t, err)
	})
}

func TestLoadFileConfig(t *testing.T) {
	write := func(t *testing.T, name, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	t.Run("yaml", func(t *testing.T) {
		path := write(t, "settings.yaml", `
db_name: yaml_db
file_paths: ./docs
glob: "**/*.md"
chunk_overlap: 0
retry_delay: 250ms
rate_limit: 4
`)
		fc, err := loadFileConfig(path)
		require.NoError(t, err)

		cfg := ingestion.DefaultConfig()
		aiConfig := ai.DefaultConfig()
		require.NoError(t, fc.apply(cfg, aiConfig))

		assert.Equal(t, "yaml_db", cfg.Database)
		assert.Equal(t, ingestion.DefaultCollection, cfg.Collection)
		assert.Equal(t, "./docs", cfg.SourceDir)
		assert.Equal(t, "**/*.md", cfg.Glob)
		assert.Equal(t, 0, cfg.ChunkOverlap)
		assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
		assert.InDelta(t, 4.0, aiConfig.RequestsPerSecond, 1e-9)
	})

	t.Run("toml", func(t *testing.T) {
		path := write(t, "settings.toml", "provider = \"gemini\"\nembedding_model = \"m\"\nnormalize = true\n")
		fc, err := loadFileConfig(path)
		require.NoError(t, err)

		cfg := ingestion.DefaultConfig()
		aiConfig := ai.DefaultConfig()
		require.NoError(t, fc.apply(cfg, aiConfig))

		assert.Equal(t, ai.ProviderGemini, aiConfig.Provider)
		assert.Equal(t, "m", aiConfig.Model)
		assert.True(t, cfg.NormalizeVectors)
	})

	t.Run("secrets rejected", func(t *testing.T) {
		for _, body := range []string{
			"mongo_uri = \"mongodb://user:pw@host\"\n",
			"OPENAI_API_KEY = \"sk-test\"\n",
		} {
			_, err := loadFileConfig(write(t, "settings.toml", body))
			require.ErrorIs(t, err, core.ErrConfig)
			assert.NotContains(t, err.Error(), "pw@host")
			assert.NotContains(t, err.Error(), "sk-test")
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		fc, err := loadFileConfig(write(t, "settings.yml", "timeout: soon\n"))
		require.NoError(t, err)
		err = fc.apply(ingestion.DefaultConfig(), ai.DefaultConfig())
		require.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := loadFileConfig(write(t, "settings.json", "{}"))
		require.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadFileConfig(filepath.Join(t.TempDir(), "nope.toml"))
		require.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := loadFileConfig(write(t, "settings.toml", "chunk_size = [\n"))
		require.ErrorIs(t, err, core.ErrConfig)
	})
}

func TestRunFailures(t *testing.T) {
	run := func(t *testing.T, args ...string) error {
		t.Helper()
		app := newApp()
		app.Writer = &bytes.Buffer{}
		app.ErrWriter = &bytes.Buffer{}
		return app.Run(append([]string{"ragingest"}, args...))
	}
	base := []string{"--uri", "badger://memory", "--embedding-host", "http://localhost:11434"}

	t.Run("missing source directory", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing")
		err := run(t, append([]string{"ingest", "--source-dir", missing}, base...)...)
		require.ErrorIs(t, err, core.ErrNotFound)
		assert.Contains(t, err.Error(), "stage=loading")
		assert.Contains(t, err.Error(), "kind=not_found")
	})

	t.Run("overlap not smaller than size", func(t *testing.T) {
		err := run(t, append([]string{"ingest", "--source-dir", t.TempDir(),
			"--chunk-size", "100", "--chunk-overlap", "100"}, base...)...)
		require.ErrorIs(t, err, core.ErrConfig)
		assert.Contains(t, err.Error(), "kind=config")
	})

	t.Run("empty directory succeeds", func(t *testing.T) {
		app := newApp()
		out := &bytes.Buffer{}
		app.Writer = out
		app.ErrWriter = &bytes.Buffer{}
		err := app.Run(append([]string{"ragingest", "load", "--source-dir", t.TempDir()}, base...))
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Wrote 0 records")
	})
}
