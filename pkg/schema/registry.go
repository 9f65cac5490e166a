// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package schema resolves the logical schema of a data source: live
// introspection for relational kinds, built-in vendor schemas for SaaS
// kinds, and the frozen schema hint for file-backed kinds.
package schema

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/teradata-labs/weft/pkg/types"
)

// Introspector discovers the live schema of a relational source.
// The adapter registry implements this.
type Introspector interface {
	Introspect(ctx context.Context, ds types.DataSource) (*types.Schema, error)
}

// DefaultMaxEntries bounds the memoisation cache.
const DefaultMaxEntries = 256

// ErrUnavailable is wrapped into every schema resolution failure.
var ErrUnavailable = fmt.Errorf("schema unavailable")

// Registry memoises schema lookups per (source ID, last sync time).
// Concurrent misses for the same key are collapsed into one fetch.
type Registry struct {
	introspector Introspector
	maxEntries   int

	mu    sync.Mutex
	cache map[string]*types.Schema
	order []string

	group singleflight.Group
}

// NewRegistry creates a registry. introspector may be nil when only
// SaaS and file-backed sources are in play.
func NewRegistry(introspector Introspector) *Registry {
	return &Registry{
		introspector: introspector,
		maxEntries:   DefaultMaxEntries,
		cache:        make(map[string]*types.Schema),
	}
}

func cacheKey(ds types.DataSource) string {
	return ds.ID + "@" + ds.LastSyncedAt.UTC().Format("20060102T150405.000000000")
}

// GetSchema returns the logical schema for ds. Results are cached
// until the source's LastSyncedAt changes.
func (r *Registry) GetSchema(ctx context.Context, ds types.DataSource) (*types.Schema, error) {
	key := cacheKey(ds)

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		schema, err := r.resolve(ctx, ds)
		if err != nil {
			return nil, err
		}
		r.store(key, schema)
		return schema, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w for source %s: %v", ErrUnavailable, ds.ID, err)
	}
	return v.(*types.Schema), nil
}

// Invalidate drops every cached entry for the given source ID.
func (r *Registry) Invalidate(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	prefix := sourceID + "@"
	for _, key := range r.order {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(r.cache, key)
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept
}

func (r *Registry) store(key string, schema *types.Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[key]; ok {
		return
	}
	for len(r.order) >= r.maxEntries {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.cache, oldest)
	}
	r.cache[key] = schema
	r.order = append(r.order, key)
}

func (r *Registry) resolve(ctx context.Context, ds types.DataSource) (*types.Schema, error) {
	switch {
	case ds.Kind.Relational():
		if r.introspector == nil {
			return nil, fmt.Errorf("no introspector configured for kind %s", ds.Kind)
		}
		return r.introspector.Introspect(ctx, ds)
	case ds.Kind.SaaS():
		return BuiltinSchema(ds.Kind)
	case ds.Kind == types.KindSpreadsheet, ds.Kind == types.KindCSV:
		if ds.SchemaHint != nil {
			return ds.SchemaHint, nil
		}
		if r.introspector == nil {
			return nil, fmt.Errorf("source %s has no schema hint", ds.ID)
		}
		return r.introspector.Introspect(ctx, ds)
	default:
		return nil, fmt.Errorf("unknown source kind %q", ds.Kind)
	}
}
