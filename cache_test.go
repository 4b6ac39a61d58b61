package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ceiling int, retention time.Duration) (*requestCache, *time.Time) {
	cache := newRequestCache(ceiling, retention)
	now := time.Now()
	cache.now = func() time.Time { return now }
	return cache, &now
}

func TestCacheFreshness(t *testing.T) {
	cache, now := newTestCache(10, time.Hour)

	cache.set("/api/profile|GET|0", []byte(`{"name":"x"}`))

	payload, ok := cache.get("/api/profile|GET|0", time.Minute)
	require.True(t, ok)
	assert.Equal(t, `{"name":"x"}`, string(payload))

	*now = now.Add(61 * time.Second)
	_, ok = cache.get("/api/profile|GET|0", time.Minute)
	assert.False(t, ok)

	// The same entry is still fresh for a caller with a longer tolerance.
	_, ok = cache.get("/api/profile|GET|0", 5*time.Minute)
	assert.True(t, ok)
}

func TestCacheGetAbsentKey(t *testing.T) {
	cache, _ := newTestCache(10, time.Hour)

	_, ok := cache.get("/api/missing|GET|0", time.Minute)
	assert.False(t, ok)
}

func TestCacheOverwrite(t *testing.T) {
	cache, now := newTestCache(10, time.Hour)

	cache.set("/api/profile|GET|0", []byte(`old`))
	*now = now.Add(time.Minute)
	cache.set("/api/profile|GET|0", []byte(`new`))

	payload, ok := cache.get("/api/profile|GET|0", 90*time.Second)
	require.True(t, ok)
	assert.Equal(t, `new`, string(payload))
	assert.Equal(t, 1, cache.size())
}

func TestCacheInvalidatePrefixPattern(t *testing.T) {
	cache, _ := newTestCache(10, time.Hour)

	cache.set("/api/blog/posts|GET|0", []byte(`a`))
	cache.set("/api/blog/posts/42|GET|0", []byte(`b`))
	cache.set("/api/projects|GET|0", []byte(`c`))

	removed := cache.invalidate("/api/blog*")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.size())

	_, ok := cache.get("/api/projects|GET|0", time.Minute)
	assert.True(t, ok)
}

func TestCacheInvalidateExactPath(t *testing.T) {
	cache, _ := newTestCache(10, time.Hour)

	cache.set("/api/profile|GET|0", []byte(`a`))
	cache.set("/api/profile|HEAD|0", []byte(`b`))
	cache.set("/api/profile-extended|GET|0", []byte(`c`))

	removed := cache.invalidate("/api/profile")
	assert.Equal(t, 2, removed)

	_, ok := cache.get("/api/profile-extended|GET|0", time.Minute)
	assert.True(t, ok)
}

func TestCacheInvalidateIdempotent(t *testing.T) {
	cache, _ := newTestCache(10, time.Hour)

	cache.set("/api/blog/posts|GET|0", []byte(`a`))

	assert.Equal(t, 1, cache.invalidate("/api/blog*"))
	assert.Equal(t, 0, cache.invalidate("/api/blog*"))
}

func TestCacheEvictOld(t *testing.T) {
	cache, now := newTestCache(20, time.Hour)

	// Ten entries past the retention bound, ten fresh ones.
	for i := 0; i < 10; i++ {
		cache.set(fmt.Sprintf("/api/old/%d|GET|0", i), []byte(`x`))
		*now = now.Add(time.Second)
	}
	*now = now.Add(2 * time.Hour)
	for i := 0; i < 10; i++ {
		cache.set(fmt.Sprintf("/api/fresh/%d|GET|0", i), []byte(`y`))
	}

	cache.evictOld()

	// 30% of twenty entries, all taken from the over-retention batch.
	assert.Equal(t, 14, cache.size())
	for i := 0; i < 10; i++ {
		_, ok := cache.get(fmt.Sprintf("/api/fresh/%d|GET|0", i), time.Minute)
		assert.True(t, ok)
	}
	_, ok := cache.get("/api/old/0|GET|0", 3*time.Hour)
	assert.False(t, ok)
	_, ok = cache.get("/api/old/9|GET|0", 3*time.Hour)
	assert.True(t, ok)
}

func TestCacheEvictOldSparesRecentEntries(t *testing.T) {
	cache, _ := newTestCache(2, time.Hour)

	// Over the ceiling but nothing past retention: set triggers evictOld,
	// which must not remove anything.
	cache.set("/api/a|GET|0", []byte(`a`))
	cache.set("/api/b|GET|0", []byte(`b`))
	cache.set("/api/c|GET|0", []byte(`c`))

	assert.Equal(t, 3, cache.size())
}

func TestCacheClear(t *testing.T) {
	cache, _ := newTestCache(10, time.Hour)

	cache.set("/api/a|GET|0", []byte(`a`))
	cache.set("/api/b|GET|0", []byte(`b`))
	cache.clear()

	assert.Equal(t, 0, cache.size())
}
