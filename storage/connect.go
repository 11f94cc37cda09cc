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


package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/ragingest/core"
)

// Opener connects to one backend. database and collection are already validated.
type Opener func(ctx context.Context, uri, database, collection string) (VectorCollection, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[string]Opener)
)

// Register makes a backend available to Connect under the given URI schemes.
// It panics if a scheme is registered twice.
func Register(opener Opener, schemes ...string) {
	openersMu.Lock()
	defer openersMu.Unlock()

	for _, scheme := range schemes {
		scheme = strings.ToLower(scheme)
		if _, dup := openers[scheme]; dup {
			panic("storage: Register called twice for scheme " + scheme)
		}
		openers[scheme] = opener
	}
}

// Schemes returns the registered URI schemes, sorted.
func Schemes() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	schemes := make([]string, 0, len(openers))
	for scheme := range openers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Connect opens the collection named by database and collection on the store
// at uri. The backend is chosen by the URI scheme. Connection failures wrap
// core.ErrConnection and missing inputs wrap core.ErrConfig. No retries are
// attempted.
func Connect(ctx context.Context, uri, database, collection string) (VectorCollection, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%w: connection URI is required", core.ErrConfig)
	}
	if strings.TrimSpace(database) == "" {
		return nil, fmt.Errorf("%w: database name is required", core.ErrConfig)
	}
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("%w: collection name is required", core.ErrConfig)
	}

	u, err := url.Parse(uri)
	if err != nil {
		// url errors echo the URI, which may hold credentials
		return nil, fmt.Errorf("%w: malformed connection URI", core.ErrConnection)
	}

	scheme := strings.ToLower(u.Scheme)
	openersMu.RLock()
	opener, ok := openers[scheme]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %w %q (supported: %s)", core.ErrConnection, ErrUnsupportedScheme, scheme, strings.Join(Schemes(), ", "))
	}

	logger := slog.Default().With("component", "storage")
	logger.Debug("connecting", "uri", u.Redacted(), "database", database, "collection", collection)

	coll, err := opener(ctx, uri, database, collection)
	if err != nil {
		if errors.Is(err, core.ErrConfig) || errors.Is(err, core.ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrConnection, err)
	}

	logger.Info("connected", "backend", coll.Describe().Backend, "database", database, "collection", collection)
	return coll, nil
}
