package services

import (
	"testing"
	"time"

	"eduassist/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_HitWithinTTL(t *testing.T) {
	cache := NewTTLCache(10, time.Hour)
	quiz := &models.Quiz{ID: 1, SessionID: "abc"}

	cache.Put("abc", quiz)

	got := cache.Get("abc")
	require.NotNil(t, got)
	assert.Equal(t, quiz, got)
}

func TestTTLCache_MissAfterExpiry(t *testing.T) {
	cache := NewTTLCache(10, time.Hour)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Put("abc", &models.Quiz{ID: 1, SessionID: "abc"})

	now = now.Add(59 * time.Minute)
	assert.NotNil(t, cache.Get("abc"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, cache.Get("abc"))
	assert.Equal(t, 0, cache.Len(), "expired entry is dropped on read")
}

func TestTTLCache_MissUnknownKey(t *testing.T) {
	cache := NewTTLCache(10, time.Hour)
	assert.Nil(t, cache.Get("nope"))
}

func TestTTLCache_EvictsOldestWhenFull(t *testing.T) {
	cache := NewTTLCache(2, time.Hour)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Put("first", &models.Quiz{ID: 1})
	now = now.Add(time.Minute)
	cache.Put("second", &models.Quiz{ID: 2})
	now = now.Add(time.Minute)
	cache.Put("third", &models.Quiz{ID: 3})

	assert.Equal(t, 2, cache.Len())
	assert.Nil(t, cache.Get("first"), "oldest entry is evicted")
	assert.NotNil(t, cache.Get("second"))
	assert.NotNil(t, cache.Get("third"))
}

func TestTTLCache_OverwriteDoesNotEvict(t *testing.T) {
	cache := NewTTLCache(2, time.Hour)

	cache.Put("a", &models.Quiz{ID: 1})
	cache.Put("b", &models.Quiz{ID: 2})
	cache.Put("a", &models.Quiz{ID: 3})

	assert.Equal(t, 2, cache.Len())
	require.NotNil(t, cache.Get("a"))
	assert.Equal(t, 3, cache.Get("a").ID)
	assert.NotNil(t, cache.Get("b"))
}
