package client

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	payload  []byte
	storedAt time.Time
}

// requestCache is the in-memory associative store for successful read
// responses. Freshness is decided at read time against the caller-supplied
// ttl, so one entry may be fresh for one caller and stale for another. Stale
// entries are ignored, not deleted; evictOld reclaims them in bulk.
type requestCache struct {
	sync.RWMutex
	entries   map[string]cacheEntry
	ceiling   int
	retention time.Duration
	now       func() time.Time
}

func newRequestCache(ceiling int, retention time.Duration) *requestCache {
	return &requestCache{
		entries:   make(map[string]cacheEntry),
		ceiling:   ceiling,
		retention: retention,
		now:       time.Now,
	}
}

func (rc *requestCache) get(key string, ttl time.Duration) ([]byte, bool) {
	rc.RLock()
	entry, ok := rc.entries[key]
	rc.RUnlock()

	if !ok || rc.now().Sub(entry.storedAt) > ttl {
		return nil, false
	}

	return entry.payload, true
}

func (rc *requestCache) set(key string, payload []byte) {
	rc.Lock()
	rc.entries[key] = cacheEntry{payload: payload, storedAt: rc.now()}
	overCeiling := len(rc.entries) > rc.ceiling
	rc.Unlock()

	if overCeiling {
		rc.evictOld()
	}
}

// invalidate removes every entry whose key matches the pattern. A trailing
// '*' matches any key with the given prefix; anything else matches the exact
// logical path, whatever the method or body variant.
func (rc *requestCache) invalidate(pattern string) int {
	rc.Lock()
	defer rc.Unlock()

	removed := 0
	for key := range rc.entries {
		if matchesPattern(key, pattern) {
			delete(rc.entries, key)
			removed++
		}
	}

	return removed
}

func matchesPattern(key, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}

	return key == pattern || strings.HasPrefix(key, pattern+"|")
}

// evictOld deletes the oldest 30% of entries by storedAt, considering only
// entries older than the long retention bound. Invoked opportunistically when
// the entry count exceeds the ceiling.
func (rc *requestCache) evictOld() {
	rc.Lock()
	defer rc.Unlock()

	cutoff := rc.now().Add(-rc.retention)
	var candidates []string
	for key, entry := range rc.entries {
		if entry.storedAt.Before(cutoff) {
			candidates = append(candidates, key)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return rc.entries[candidates[i]].storedAt.Before(rc.entries[candidates[j]].storedAt)
	})

	toRemove := len(rc.entries) * 30 / 100
	if toRemove > len(candidates) {
		toRemove = len(candidates)
	}

	for _, key := range candidates[:toRemove] {
		delete(rc.entries, key)
	}
}

func (rc *requestCache) clear() {
	rc.Lock()
	rc.entries = make(map[string]cacheEntry)
	rc.Unlock()
}

func (rc *requestCache) size() int {
	rc.RLock()
	defer rc.RUnlock()
	return len(rc.entries)
}
