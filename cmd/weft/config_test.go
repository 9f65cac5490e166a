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
package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("WEFT_DATA_DIR", t.TempDir())

	config, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "default", config.Tenant)

	assert.Equal(t, 3, config.LLM.RetryAttempts)
	assert.Equal(t, 1000, config.LLM.RetryDelayMs)
	assert.Equal(t, 8000, config.LLM.MaxPromptTokens)

	assert.Equal(t, 1000, config.Cache.MaxEntries)
	assert.Equal(t, 3600000, config.Cache.TTLMs)
	assert.InDelta(t, 0.10, config.Cache.EvictionFraction, 1e-9)

	assert.Equal(t, 30000, config.Executor.BatchTimeoutMs)
	assert.Equal(t, 120000, config.Executor.StreamTimeoutMs)
	assert.Equal(t, 16, config.Executor.ProgressBuffer)

	assert.InDelta(t, 0.30, config.Intent.MinConfidence, 1e-9)

	assert.Equal(t, "sqlite", config.History.Backend)
	assert.Equal(t, 90, config.History.RetentionDays)
}

func TestLoadConfigFile(t *testing.T) {
	viper.Reset()
	t.Setenv("WEFT_DATA_DIR", t.TempDir())

	path := filepath.Join(t.TempDir(), "weft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenant: acme
cache:
  ttl_ms: 60000
sources:
  - id: orders-db
    kind: postgres
    display_name: Orders
    connection:
      host: localhost
      database: orders
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "acme", config.Tenant)
	assert.Equal(t, 60000, config.Cache.TTLMs)
	require.Len(t, config.Sources, 1)
	assert.Equal(t, "orders-db", config.Sources[0].ID)
	assert.Equal(t, "postgres", config.Sources[0].Kind)

	resolver, err := newConfigResolver(config)
	require.NoError(t, err)
	ds, err := resolver.Resolve(context.Background(), "acme", "orders-db")
	require.NoError(t, err)
	assert.Equal(t, "Orders", ds.DisplayName)
	_, err = resolver.Resolve(context.Background(), "rival", "orders-db")
	require.Error(t, err)
}
