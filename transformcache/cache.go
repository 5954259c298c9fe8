/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package transformcache is the content-addressed Transformer Cache
// (§4.2): keys are derived purely from a module's source bytes, its
// transformer identity, and its transform options, so lookups are pure and
// race-free. An in-memory LRU tier backs every lookup; an optional on-disk
// tier (github.com/peterbourgon/diskv, atomic rename) lets a cache survive
// process restarts.
package transformcache

import (
	"container/list"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// Entry is the value stored against a cache Key.
type Entry struct {
	Code         string
	Map          string
	Dependencies []string
}

// Key is a content-derived cache key, computed with ComputeKey.
type Key string

// ComputeKey derives the cache key sha1(sourceBytes ∥ transformerCacheKey ∥
// canonicalJson(options)) per §3.
func ComputeKey(sourceBytes []byte, transformerCacheKey string, options any) (Key, error) {
	canonical, err := json.Marshal(options)
	if err != nil {
		return "", err
	}
	h := sha1.New()
	h.Write(sourceBytes)
	h.Write([]byte(transformerCacheKey))
	h.Write(canonical)
	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

// Stats reports cache hit/miss/eviction counters and current size (§10.7).
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int64
	MaxSize   int64
}

type lruEntry struct {
	key   Key
	entry Entry
	size  int64
}

// Persistent is the interface the on-disk tier satisfies; implemented by
// *DiskStore.
type Persistent interface {
	Get(key Key) (Entry, bool)
	Put(key Key, entry Entry) error
	Delete(key Key) error
}

// Cache is the in-memory LRU tier, optionally backed by a Persistent
// on-disk tier that is consulted on miss and populated on insert.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*list.Element
	lru     *list.List
	maxSize int64
	curSize int64
	stats   Stats
	disk    Persistent
}

// New creates an in-memory cache bounded by maxSize bytes (approximated by
// summed Entry.Code and Entry.Map lengths). maxSize <= 0 means unbounded.
func New(maxSize int64) *Cache {
	return &Cache{
		entries: make(map[Key]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// WithPersistent attaches an on-disk tier, consulted on every miss.
func (c *Cache) WithPersistent(p Persistent) *Cache {
	c.disk = p
	return c
}

// Get returns the entry for key, promoting it to most-recently-used. On a
// memory miss it consults the persistent tier (if any) and, on a hit
// there, repopulates the in-memory tier.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		c.stats.Hits++
		entry := el.Value.(*lruEntry).entry
		c.mu.Unlock()
		return entry, true
	}
	c.stats.Misses++
	c.mu.Unlock()

	if c.disk != nil {
		if entry, ok := c.disk.Get(key); ok {
			c.Put(key, entry)
			return entry, true
		}
	}
	return Entry{}, false
}

// Put inserts or replaces the entry for key, evicting least-recently-used
// entries under the size budget, and writes through to the persistent
// tier if attached.
func (c *Cache) Put(key Key, entry Entry) {
	size := int64(len(entry.Code) + len(entry.Map))

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.curSize -= el.Value.(*lruEntry).size
		c.lru.Remove(el)
		delete(c.entries, key)
	}
	el := c.lru.PushFront(&lruEntry{key: key, entry: entry, size: size})
	c.entries[key] = el
	c.curSize += size
	c.evictIfNeeded()
	c.mu.Unlock()

	if c.disk != nil {
		_ = c.disk.Put(key, entry)
	}
}

// evictIfNeeded removes least-recently-used entries until curSize fits
// within maxSize. Caller must hold c.mu.
func (c *Cache) evictIfNeeded() {
	if c.maxSize <= 0 {
		return
	}
	for c.curSize > c.maxSize {
		back := c.lru.Back()
		if back == nil {
			return
		}
		le := back.Value.(*lruEntry)
		c.lru.Remove(back)
		delete(c.entries, le.key)
		c.curSize -= le.size
		c.stats.Evictions++
	}
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Size = c.curSize
	s.MaxSize = c.maxSize
	return s
}

// Clear empties the in-memory tier; the persistent tier is untouched.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*list.Element)
	c.lru = list.New()
	c.curSize = 0
}
