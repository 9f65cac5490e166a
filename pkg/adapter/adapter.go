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

// Package adapter executes validated SQL against concrete data source
// kinds: live databases, staged files, and SaaS vendor APIs. Each
// adapter returns portable result sets with columns in driver order.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/teradata-labs/weft/pkg/types"
)

// Execution timeout defaults.
const (
	DefaultBatchTimeout  = 30 * time.Second
	DefaultStreamTimeout = 120 * time.Second
)

// ExecOptions controls one execution.
type ExecOptions struct {
	// Timeout bounds the execution. Zero means DefaultBatchTimeout.
	Timeout time.Duration
	// OnProgress, when set, is called at row-batch boundaries with a
	// short message and a fraction in [0,1].
	OnProgress func(message string, fraction float64)
}

func (o ExecOptions) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultBatchTimeout
}

func (o ExecOptions) progress(message string, fraction float64) {
	if o.OnProgress != nil {
		o.OnProgress(message, fraction)
	}
}

// Adapter executes read-only SQL against one source kind.
type Adapter interface {
	Kind() types.SourceKind
	Execute(ctx context.Context, sql string, ds types.DataSource, opts ExecOptions) (*types.ResultSet, error)
	Introspect(ctx context.Context, ds types.DataSource) (*types.Schema, error)
	Ping(ctx context.Context, ds types.DataSource) error
	Close() error
}

// Error is an execution failure with a readable cause.
type Error struct {
	Kind  types.SourceKind
	Cause string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s adapter: %s: %v", e.Kind, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s adapter: %s", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Err }

func adapterErr(kind types.SourceKind, cause string, err error) *Error {
	return &Error{Kind: kind, Cause: cause, Err: err}
}
