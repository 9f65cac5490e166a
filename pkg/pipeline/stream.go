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

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
)

// DefaultBuffer is the stream's channel capacity.
const DefaultBuffer = 16

// ErrStreamFinished means Emit was called after a terminal event.
var ErrStreamFinished = errors.New("stream already finished")

// Stream is a bounded, ordered event channel for one consumer. Emit
// blocks until the consumer accepts the event or the context is done,
// which gives the producer natural back-pressure and a cancellation
// point at every stage boundary.
type Stream struct {
	ch chan Event

	mu           sync.Mutex
	lastProgress int
	finished     bool
	closed       bool
}

// NewStream creates a stream. buffer <= 0 uses DefaultBuffer.
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Stream{ch: make(chan Event, buffer)}
}

// Events is the consumer side. It is closed after the terminal event.
func (s *Stream) Events() <-chan Event { return s.ch }

// Emit delivers one event. Progress never goes backwards: a lower
// value is raised to the last emitted one. After a terminal event the
// stream closes and further emits fail.
func (s *Stream) Emit(ctx context.Context, event Event) error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrStreamFinished
	}
	if event.Progress > 0 {
		if event.Progress < s.lastProgress {
			event.Progress = s.lastProgress
		}
		s.lastProgress = event.Progress
	}
	terminal := event.Terminal()
	if terminal {
		s.finished = true
	}
	s.mu.Unlock()

	select {
	case s.ch <- event:
		if terminal {
			s.close()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the stream without a terminal event, for abort paths.
// Idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.close()
}

func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// WriteNDJSON drains the stream into w, one JSON object per line,
// flushing after each event when w supports it. Returns when the
// stream closes or ctx is cancelled.
func WriteNDJSON(ctx context.Context, w io.Writer, stream *Stream) error {
	encoder := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	for {
		select {
		case event, ok := <-stream.Events():
			if !ok {
				return nil
			}
			if err := encoder.Encode(event); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
