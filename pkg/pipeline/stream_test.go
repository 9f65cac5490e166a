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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamOrderedDelivery(t *testing.T) {
	s := NewStream(0)
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, Connection("st-1")))
	require.NoError(t, s.Emit(ctx, Progress(StepIntentDetection, "detecting intent", 10, nil)))
	require.NoError(t, s.Emit(ctx, Progress(StepIntentDetection, "intent detected", 20, nil)))
	require.NoError(t, s.Emit(ctx, Result(map[string]any{"rowCount": 3})))

	var events []Event
	for event := range s.Events() {
		events = append(events, event)
	}
	require.Len(t, events, 4)
	assert.Equal(t, EventConnection, events[0].Type)
	assert.Equal(t, "st-1", events[0].StreamID)
	assert.Equal(t, 10, events[1].Progress)
	assert.Equal(t, 20, events[2].Progress)
	assert.Equal(t, EventResult, events[3].Type)
	assert.Equal(t, 100, events[3].Progress)
}

func TestStreamProgressNeverDecreases(t *testing.T) {
	s := NewStream(0)
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, Progress(StepSQLExecution, "executing", 70, nil)))
	require.NoError(t, s.Emit(ctx, Progress(StepSQLExecution, "late callback", 65, nil)))
	require.NoError(t, s.Emit(ctx, Result(nil)))

	var progresses []int
	for event := range s.Events() {
		progresses = append(progresses, event.Progress)
	}
	assert.Equal(t, []int{70, 70, 100}, progresses)
}

func TestStreamSingleTerminal(t *testing.T) {
	s := NewStream(0)
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, ErrorEvent(StepSQLGeneration, "generation failed", "boom")))
	err := s.Emit(ctx, Result(nil))
	assert.ErrorIs(t, err, ErrStreamFinished)

	var terminals int
	for event := range s.Events() {
		if event.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestStreamEmitBlocksUntilCancelled(t *testing.T) {
	s := NewStream(1)
	require.NoError(t, s.Emit(context.Background(), Progress("a", "", 10, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// Buffer is full and nobody is reading.
	err := s.Emit(ctx, Progress("b", "", 20, nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamCloseIdempotent(t *testing.T) {
	s := NewStream(0)
	s.Close()
	s.Close()
	_, ok := <-s.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Emit(context.Background(), Result(nil)), ErrStreamFinished)
}

func TestWriteNDJSON(t *testing.T) {
	s := NewStream(4)
	ctx := context.Background()
	require.NoError(t, s.Emit(ctx, Connection("st-9")))
	require.NoError(t, s.Emit(ctx, Progress(StepCacheCheck, "checking cache", 30, nil)))
	require.NoError(t, s.Emit(ctx, Result(map[string]any{"cached": true})))

	var out strings.Builder
	require.NoError(t, WriteNDJSON(ctx, &out, s))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"type":"connection","streamId":"st-9"}`, lines[0])
	assert.JSONEq(t, `{"type":"progress","step":"cache_check","message":"checking cache","progress":30}`, lines[1])
	assert.JSONEq(t, `{"type":"result","step":"completed","progress":100,"data":{"cached":true}}`, lines[2])
}
