package cache

import (
	"time"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/generic"
	"github.com/alanbriolat/video-acquirer/internal/sync_"
)

type Config struct {
	TTL      time.Duration
	Capacity int
}

var DefaultConfig = Config{
	TTL:      10 * time.Minute,
	Capacity: 32,
}

type entry struct {
	artifact video_acquirer.Artifact
	storedAt time.Time
}

type entries = map[string]entry

// ResultCache holds the most recent artifact per source id. Reads do not consume entries; entries expire after
// the TTL, and the oldest entry is evicted when a new source id would exceed the capacity.
type ResultCache struct {
	config  Config
	now     func() time.Time
	entries *sync_.Mutexed[entries]
}

func New(config Config) *ResultCache {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig.TTL
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultConfig.Capacity
	}
	return &ResultCache{
		config:  config,
		now:     time.Now,
		entries: sync_.NewMutexed(make(entries)),
	}
}

// WithClock replaces the time source used for expiry.
func (c *ResultCache) WithClock(now func() time.Time) *ResultCache {
	c.now = now
	return c
}

// Put stores the artifact for its source id, replacing any previous entry.
func (c *ResultCache) Put(sourceID string, artifact video_acquirer.Artifact) {
	now := c.now()
	_ = c.entries.Locked(func(m *entries) error {
		c.expire(*m, now)
		if _, ok := (*m)[sourceID]; !ok {
			for len(*m) >= c.config.Capacity {
				c.evictOldest(*m)
			}
		}
		(*m)[sourceID] = entry{artifact: artifact, storedAt: now}
		return nil
	})
}

// TakeIfReady returns the artifact for sourceID if there is an unexpired one. The entry stays in the cache.
func (c *ResultCache) TakeIfReady(sourceID string) generic.Option[video_acquirer.Artifact] {
	now := c.now()
	result := generic.None[video_acquirer.Artifact]()
	_ = c.entries.Locked(func(m *entries) error {
		e, ok := (*m)[sourceID]
		if !ok {
			return nil
		}
		if now.Sub(e.storedAt) >= c.config.TTL {
			delete(*m, sourceID)
			return nil
		}
		result = generic.Some(e.artifact)
		return nil
	})
	return result
}

// Remove drops any entry for sourceID.
func (c *ResultCache) Remove(sourceID string) {
	_ = c.entries.Locked(func(m *entries) error {
		delete(*m, sourceID)
		return nil
	})
}

// Len counts entries, including any that have expired but not yet been removed.
func (c *ResultCache) Len() int {
	var n int
	_ = c.entries.RLocked(func(m entries) error {
		n = len(m)
		return nil
	})
	return n
}

func (c *ResultCache) expire(m entries, now time.Time) {
	for id, e := range m {
		if now.Sub(e.storedAt) >= c.config.TTL {
			delete(m, id)
		}
	}
}

func (c *ResultCache) evictOldest(m entries) {
	var oldestID string
	var oldest time.Time
	first := true
	for id, e := range m {
		if first || e.storedAt.Before(oldest) {
			oldestID, oldest, first = id, e.storedAt, false
		}
	}
	delete(m, oldestID)
}
