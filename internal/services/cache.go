package services

import (
	"sync"
	"time"

	"eduassist/internal/models"
)

// TTLCache is a bounded in-process cache for generated quizzes, keyed by
// session identifier. It is an explicit dependency injected into QuizService
// rather than package state, so lifecycle and tests stay under the caller's
// control. Entries expire after ttl; when full, the entry closest to expiry
// is evicted to make room.
type TTLCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type cacheEntry struct {
	quiz     *models.Quiz
	storedAt time.Time
}

// NewTTLCache creates a cache holding at most maxEntries quizzes for ttl each.
func NewTTLCache(maxEntries int, ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached quiz for the session id, or nil on miss or expiry.
func (c *TTLCache) Get(sessionID string) *models.Quiz {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[sessionID]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, sessionID)
		return nil
	}
	return entry.quiz
}

// Put stores a quiz under its session id, evicting the oldest entry if full.
func (c *TTLCache) Put(sessionID string, quiz *models.Quiz) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[sessionID]; !ok && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[sessionID] = cacheEntry{quiz: quiz, storedAt: c.now()}
}

// Len returns the current number of entries, including not-yet-expired ones.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
