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

// Package cache is the fingerprint-keyed result cache. Entries are
// bounded by capacity with oldest-first eviction and expire by TTL.
// Payloads above a size threshold are stored zstd-compressed.
package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/teradata-labs/weft/pkg/types"
)

const (
	// DefaultMaxEntries bounds the cache size.
	DefaultMaxEntries = 1000
	// DefaultTTL is the default entry lifetime.
	DefaultTTL = time.Hour
	// DefaultEvictionFraction is the share of oldest entries removed
	// when the cache is full.
	DefaultEvictionFraction = 0.10
	// compressionThreshold is the minimum encoded payload size, in
	// bytes, that triggers zstd compression.
	compressionThreshold = 1024
)

// Payload is the cached result of one query.
type Payload struct {
	Data    []map[string]any `json:"data"`
	Columns []string         `json:"columns"`
}

// Entry is one cache slot. The payload is held encoded (optionally
// compressed); Get decodes a fresh copy so callers cannot alias cached
// rows.
type Entry struct {
	Fingerprint string
	CreatedAt   time.Time
	ExpiresAt   time.Time

	encoded    []byte
	compressed bool
}

// Config configures the cache.
type Config struct {
	MaxEntries       int
	TTL              time.Duration
	EvictionFraction float64
}

// Cache is a bounded TTL result cache. Safe for concurrent use:
// concurrent readers, serialized writers.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	max      int
	ttl      time.Duration
	fraction float64

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New creates a cache. Zero-value config fields take defaults.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.EvictionFraction <= 0 || cfg.EvictionFraction >= 1 {
		cfg.EvictionFraction = DefaultEvictionFraction
	}
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	return &Cache{
		entries:  make(map[string]*Entry),
		max:      cfg.MaxEntries,
		ttl:      cfg.TTL,
		fraction: cfg.EvictionFraction,
		encoder:  enc,
		decoder:  dec,
	}
}

// Get returns the decoded payload for fingerprint, or ok=false when
// absent or expired. Expired entries are removed lazily.
func (c *Cache) Get(fingerprint string) (*Payload, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.ExpiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[fingerprint]; ok && cur == e {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return nil, false
	}
	p, err := c.decode(e)
	if err != nil {
		return nil, false
	}
	return p, true
}

// Put stores payload under fingerprint with the given TTL (zero means
// the cache default). When full, the oldest EvictionFraction of
// entries by CreatedAt is removed first, then expired entries are
// purged.
func (c *Cache) Put(fingerprint string, payload *Payload, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	encoded, compressed, err := c.encode(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fingerprint]; !exists && len(c.entries) >= c.max {
		c.evictOldestLocked()
	}
	c.purgeExpiredLocked(now)

	c.entries[fingerprint] = &Entry{
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		encoded:     encoded,
		compressed:  compressed,
	}
	return nil
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Contains reports whether a non-expired entry exists without decoding it.
func (c *Cache) Contains(fingerprint string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fingerprint]
	return ok && time.Now().Before(e.ExpiresAt)
}

// Purge removes all expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpiredLocked(time.Now())
}

// evictOldestLocked removes the oldest fraction of entries by CreatedAt.
func (c *Cache) evictOldestLocked() {
	n := int(float64(c.max) * c.fraction)
	if n < 1 {
		n = 1
	}
	type aged struct {
		key string
		at  time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
}

func (c *Cache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for k, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) encode(p *Payload) ([]byte, bool, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, false, err
	}
	if len(raw) < compressionThreshold || c.encoder == nil {
		return raw, false, nil
	}
	return c.encoder.EncodeAll(raw, nil), true, nil
}

func (c *Cache) decode(e *Entry) (*Payload, error) {
	raw := e.encoded
	if e.compressed {
		var err error
		raw, err = c.decoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, err
		}
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FromResult builds a payload from an executed result set.
func FromResult(rs *types.ResultSet) *Payload {
	return &Payload{Data: rs.Data, Columns: rs.Columns}
}
