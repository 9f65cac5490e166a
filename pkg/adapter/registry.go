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

package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/teradata-labs/weft/pkg/types"
)

// Registry dispatches by source kind. It also serves schema
// introspection for the registry of schemas.
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.SourceKind]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[types.SourceKind]Adapter)}
}

// NewDefaultRegistry registers every built-in adapter.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPostgres())
	r.Register(NewMySQL())
	r.Register(NewCSV())
	r.Register(NewSpreadsheet())
	for _, kind := range []types.SourceKind{types.KindEcommerceOrders, types.KindPayments, types.KindAccounting} {
		r.Register(NewSaaS(kind))
	}
	return r
}

// Register adds or replaces the adapter for its kind.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Kind()] = a
}

// For returns the adapter for kind.
func (r *Registry) For(kind types.SourceKind) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for kind %q", kind)
	}
	return a, nil
}

// Execute dispatches to the adapter for the source's kind.
func (r *Registry) Execute(ctx context.Context, sql string, ds types.DataSource, opts ExecOptions) (*types.ResultSet, error) {
	a, err := r.For(ds.Kind)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, sql, ds, opts)
}

// Introspect dispatches schema discovery to the source's adapter.
func (r *Registry) Introspect(ctx context.Context, ds types.DataSource) (*types.Schema, error) {
	a, err := r.For(ds.Kind)
	if err != nil {
		return nil, err
	}
	return a.Introspect(ctx, ds)
}

// Close closes every registered adapter, returning the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, a := range r.adapters {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
