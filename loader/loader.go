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


package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/poiesic/ragingest/core"
	"github.com/poiesic/ragingest/progress"
)

// DefaultPattern matches plain-text files directly inside the source directory.
const DefaultPattern = "*.txt"

// Loader reads the files under a directory that match a glob pattern.
type Loader struct {
	dir      string
	pattern  string
	progress io.Writer
	skipped  atomic.Int64
	logger   *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader) error

// WithPattern sets the glob pattern, matched relative to the directory.
// Subdirectories are only searched when the pattern contains "**".
func WithPattern(pattern string) Option {
	return func(l *Loader) error {
		pattern = normalizePattern(pattern)
		if pattern == "" {
			pattern = DefaultPattern
		}
		if strings.HasPrefix(pattern, "/") || !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: invalid glob pattern %q", core.ErrConfig, pattern)
		}
		l.pattern = pattern
		return nil
	}
}

// WithProgress reports one tick per matched file to w.
func WithProgress(w io.Writer) Option {
	return func(l *Loader) error {
		l.progress = w
		return nil
	}
}

// New creates a loader for dir. The directory is not touched until loading starts.
func New(dir string, opts ...Option) (*Loader, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: source directory is required", core.ErrConfig)
	}
	l := &Loader{
		dir:     dir,
		pattern: DefaultPattern,
		logger:  slog.Default().With("component", "loader"),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Load is a convenience wrapper that reads every matching file under dir.
func Load(ctx context.Context, dir, pattern string) ([]*core.RawDocument, error) {
	l, err := New(dir, WithPattern(pattern))
	if err != nil {
		return nil, err
	}
	return l.Load(ctx)
}

// CheckDir returns core.ErrNotFound unless dir exists and is a directory.
func CheckDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: source directory %s does not exist", core.ErrNotFound, dir)
		}
		return fmt.Errorf("%w: source directory %s: %v", core.ErrNotFound, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", core.ErrNotFound, dir)
	}
	return nil
}

// Dir returns the source directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Pattern returns the normalized glob pattern.
func (l *Loader) Pattern() string {
	return l.pattern
}

// Skipped returns how many matched files were skipped because they could not be decoded.
func (l *Loader) Skipped() int {
	return int(l.skipped.Load())
}

// Match returns the paths of matching regular files relative to the
// directory, sorted lexicographically.
func (l *Loader) Match() ([]string, error) {
	if err := CheckDir(l.dir); err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(l.dir), l.pattern, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, doublestar.ErrBadPattern) {
			return nil, fmt.Errorf("%w: invalid glob pattern %q", core.ErrConfig, l.pattern)
		}
		return nil, fmt.Errorf("matching %s in %s: %w", l.pattern, l.dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Load reads all matching files. Files that cannot be decoded are logged and
// skipped. An empty match set yields an empty slice.
func (l *Loader) Load(ctx context.Context) ([]*core.RawDocument, error) {
	docs := make([]*core.RawDocument, 0)
	for doc, err := range l.Seq(ctx) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Seq lazily reads matching files in order. A non-nil error ends the sequence.
func (l *Loader) Seq(ctx context.Context) iter.Seq2[*core.RawDocument, error] {
	return func(yield func(*core.RawDocument, error) bool) {
		paths, err := l.Match()
		if err != nil {
			yield(nil, err)
			return
		}

		l.logger.Debug("matched files", "dir", l.dir, "pattern", l.pattern, "count", len(paths))

		tracker := progress.NewTracker(l.progress, "Loading", len(paths), 1).WithUnit("files")
		tracker.Start()
		defer tracker.Finish()

		for _, rel := range paths {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			doc, err := l.loadFile(ctx, rel)
			tracker.Increment(1)
			if err != nil {
				if errors.Is(err, core.ErrDecode) {
					l.skipped.Add(1)
					l.logger.Warn("skipping file", "path", rel, "error", err)
					continue
				}
				yield(nil, err)
				return
			}

			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (l *Loader) loadFile(ctx context.Context, rel string) (*core.RawDocument, error) {
	path := filepath.Join(l.dir, filepath.FromSlash(rel))

	content, err := readText(ctx, path)
	if err != nil {
		return nil, err
	}

	return &core.RawDocument{
		Content: content,
		Metadata: map[string]any{
			core.MetadataSource:    path,
			core.MetadataFileName:  filepath.Base(path),
			core.MetadataExtension: strings.ToLower(filepath.Ext(path)),
		},
	}, nil
}

func normalizePattern(pattern string) string {
	pattern = strings.TrimSpace(filepath.ToSlash(pattern))
	for strings.HasPrefix(pattern, "./") {
		pattern = strings.TrimPrefix(pattern, "./")
	}
	return pattern
}
