// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists vault sessions and messages.
package store

import (
	"sync"
	"time"

	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// HISTORY CACHE
// =============================================================================

// HistoryCache provides bounded LRU caching of per-session message lists
// so switching back to a recently viewed session does not refetch.
// Entries expire after a TTL and are invalidated explicitly on writes;
// the cache never substitutes for the store as a source of truth.
type HistoryCache struct {
	mu          sync.RWMutex
	cache       map[string]*historyEntry
	maxEntries  int
	ttl         time.Duration
	accessOrder []string // For LRU eviction

	// Statistics
	hits   int
	misses int
}

type historyEntry struct {
	messages []model.Message
	cachedAt time.Time
}

// HistoryCacheStats holds cache statistics.
type HistoryCacheStats struct {
	Hits       int
	Misses     int
	EntryCount int
	HitRate    float64
}

// NewHistoryCache creates a cache bounded to maxEntries sessions with
// the given entry TTL.
// maxEntries: maximum number of cached sessions (default: 32)
// ttl: entry lifetime (default: 5 minutes)
func NewHistoryCache(maxEntries int, ttl time.Duration) *HistoryCache {
	if maxEntries <= 0 {
		maxEntries = 32
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HistoryCache{
		cache:       make(map[string]*historyEntry),
		maxEntries:  maxEntries,
		ttl:         ttl,
		accessOrder: make([]string, 0, maxEntries),
	}
}

// Get returns the cached message list for a session, if fresh.
// The returned slice is a copy; callers may mutate it freely.
func (hc *HistoryCache) Get(sessionID string) ([]model.Message, bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	entry, ok := hc.cache[sessionID]
	if !ok {
		hc.misses++
		return nil, false
	}

	if time.Since(entry.cachedAt) > hc.ttl {
		hc.removeEntryLocked(sessionID)
		hc.misses++
		return nil, false
	}

	hc.updateAccessOrderLocked(sessionID)
	hc.hits++

	out := make([]model.Message, len(entry.messages))
	copy(out, entry.messages)
	return out, true
}

// Put stores a session's message list, evicting the least recently used
// entry when full.
func (hc *HistoryCache) Put(sessionID string, messages []model.Message) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	for len(hc.cache) >= hc.maxEntries {
		if len(hc.accessOrder) == 0 {
			break
		}
		if _, exists := hc.cache[sessionID]; exists {
			break // Replacing in place, no eviction needed
		}
		hc.removeEntryLocked(hc.accessOrder[0])
	}

	stored := make([]model.Message, len(messages))
	copy(stored, messages)

	hc.cache[sessionID] = &historyEntry{
		messages: stored,
		cachedAt: time.Now(),
	}
	hc.updateAccessOrderLocked(sessionID)
}

// Invalidate drops a session's cached history. Called after any write
// touching the session so the next read goes to the store.
func (hc *HistoryCache) Invalidate(sessionID string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.removeEntryLocked(sessionID)
}

// Clear removes all entries.
func (hc *HistoryCache) Clear() {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.cache = make(map[string]*historyEntry)
	hc.accessOrder = make([]string, 0, hc.maxEntries)
}

// Stats returns cache statistics.
func (hc *HistoryCache) Stats() HistoryCacheStats {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	hitRate := 0.0
	total := hc.hits + hc.misses
	if total > 0 {
		hitRate = float64(hc.hits) / float64(total)
	}

	return HistoryCacheStats{
		Hits:       hc.hits,
		Misses:     hc.misses,
		EntryCount: len(hc.cache),
		HitRate:    hitRate,
	}
}

// removeEntryLocked removes an entry (must hold lock).
func (hc *HistoryCache) removeEntryLocked(sessionID string) {
	if _, ok := hc.cache[sessionID]; !ok {
		return
	}
	delete(hc.cache, sessionID)

	for i, id := range hc.accessOrder {
		if id == sessionID {
			hc.accessOrder = append(hc.accessOrder[:i], hc.accessOrder[i+1:]...)
			break
		}
	}
}

// updateAccessOrderLocked updates LRU order (must hold lock).
func (hc *HistoryCache) updateAccessOrderLocked(sessionID string) {
	for i, id := range hc.accessOrder {
		if id == sessionID {
			hc.accessOrder = append(hc.accessOrder[:i], hc.accessOrder[i+1:]...)
			break
		}
	}
	hc.accessOrder = append(hc.accessOrder, sessionID)
}
