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

// Package pipeline carries staged progress events from the query
// pipeline to one consumer, in order, ending with exactly one terminal
// result or error event.
package pipeline

// EventType tags a pipeline event.
type EventType string

const (
	EventConnection EventType = "connection"
	EventProgress   EventType = "progress"
	EventResult     EventType = "result"
	EventError      EventType = "error"
)

// Pipeline step names used in progress events.
const (
	StepIntentDetection = "intent_detection"
	StepCacheCheck      = "cache_check"
	StepCacheHit        = "cache_hit"
	StepSQLGeneration   = "sql_generation"
	StepSQLExecution    = "sql_execution"
	StepSavingResults   = "saving_results"
	StepCompleted       = "completed"

	// StepExecutionFailed is the step reported on error events for
	// generation, validation, and execution failures alike.
	StepExecutionFailed = "execution_failed"
)

// Event is one pipeline event. Progress is an integer percentage in
// [0,100]; it is zero for connection events.
type Event struct {
	Type     EventType `json:"type"`
	StreamID string    `json:"streamId,omitempty"`
	Step     string    `json:"step,omitempty"`
	Message  string    `json:"message,omitempty"`
	Progress int       `json:"progress,omitempty"`
	Data     any       `json:"data,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventResult || e.Type == EventError
}

// Connection builds the stream-opening event.
func Connection(streamID string) Event {
	return Event{Type: EventConnection, StreamID: streamID}
}

// Progress builds a progress event. data may be nil.
func Progress(step, message string, progress int, data any) Event {
	return Event{Type: EventProgress, Step: step, Message: message, Progress: progress, Data: data}
}

// Result builds the successful terminal event.
func Result(data any) Event {
	return Event{Type: EventResult, Step: StepCompleted, Progress: 100, Data: data}
}

// ErrorEvent builds the failing terminal event.
func ErrorEvent(step, message, errText string) Event {
	return Event{Type: EventError, Step: step, Message: message, Error: errText}
}
