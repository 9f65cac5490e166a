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

package engine

import "fmt"

// ErrorKind classifies pipeline failures for callers.
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindDataSourceNotFound  ErrorKind = "data_source_not_found"
	KindIntentLowConfidence ErrorKind = "intent_low_confidence"
	KindSQLGenerationFailed ErrorKind = "sql_generation_failed"
	KindUnsafeSQL           ErrorKind = "unsafe_sql"
	KindExecutionFailed     ErrorKind = "execution_failed"
	KindCancelled           ErrorKind = "cancelled"
	KindInternal            ErrorKind = "internal"
)

// Error is the engine's terminal failure type.
type Error struct {
	Kind        ErrorKind
	Message     string
	Suggestions []string // rephrase hints for low-confidence intents
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// AsEngineError extracts an *Error, wrapping foreign errors as
// internal.
func AsEngineError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
