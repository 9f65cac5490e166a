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
package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadN(n int) *Payload {
	return &Payload{
		Data:    []map[string]any{{"n": n}},
		Columns: []string{"n"},
	}
}

func TestGetPutRoundTrip(t *testing.T) {
	c := New(Config{})

	require.NoError(t, c.Put("fp1", payloadN(1), 0))
	got, ok := c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, []string{"n"}, got.Columns)
	assert.Equal(t, float64(1), got.Data[0]["n"]) // numbers round-trip as float64

	_, ok = c.Get("absent")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(Config{})

	require.NoError(t, c.Put("fp", payloadN(1), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("fp")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestEvictionOldestTenPercent(t *testing.T) {
	c := New(Config{MaxEntries: 10})

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Put(fmt.Sprintf("fp%d", i), payloadN(i), 0))
		time.Sleep(time.Millisecond) // distinct CreatedAt ordering
	}
	require.Equal(t, 10, c.Len())

	require.NoError(t, c.Put("fp10", payloadN(10), 0))
	assert.Equal(t, 10, c.Len())
	assert.False(t, c.Contains("fp0"), "oldest entry must be evicted")
	assert.True(t, c.Contains("fp10"))
}

func TestSizeNeverExceedsMax(t *testing.T) {
	c := New(Config{MaxEntries: 5})

	for i := 0; i < 50; i++ {
		require.NoError(t, c.Put(fmt.Sprintf("fp%d", i), payloadN(i), 0))
		assert.LessOrEqual(t, c.Len(), 5)
	}
}

func TestLargePayloadCompression(t *testing.T) {
	c := New(Config{})

	big := &Payload{Columns: []string{"s"}}
	for i := 0; i < 100; i++ {
		big.Data = append(big.Data, map[string]any{"s": strings.Repeat("x", 100)})
	}
	require.NoError(t, c.Put("big", big, 0))

	got, ok := c.Get("big")
	require.True(t, ok)
	assert.Len(t, got.Data, 100)
	assert.Equal(t, strings.Repeat("x", 100), got.Data[0]["s"])
}

func TestPurge(t *testing.T) {
	c := New(Config{})

	require.NoError(t, c.Put("short", payloadN(1), time.Millisecond))
	require.NoError(t, c.Put("long", payloadN(2), time.Hour))
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains("long"))
}

func TestOverwriteDoesNotGrow(t *testing.T) {
	c := New(Config{MaxEntries: 3})

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Put(fmt.Sprintf("fp%d", i), payloadN(i), 0))
	}
	require.NoError(t, c.Put("fp1", payloadN(99), 0))
	assert.Equal(t, 3, c.Len())

	got, ok := c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, float64(99), got.Data[0]["n"])
}
