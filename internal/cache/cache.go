package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
)

// MetadataTTL bounds how long a lookup result is served without refetching.
const MetadataTTL = time.Minute

// Cache holds the last saved history of every pair, and recent lookup results
// for the read path.
type Cache struct {
	histories *gocache.Cache
	metadata  *gocache.Cache

	mu        sync.RWMutex
	updatedAt time.Time
}

func New() *Cache {
	return &Cache{
		histories: gocache.New(gocache.NoExpiration, 0),
		metadata:  gocache.New(MetadataTTL, 2*MetadataTTL),
	}
}

// SetHistory stores the history saved under key.
func (c *Cache) SetHistory(key string, rec model.PersistedHistory) {
	rec.Entries = append([]model.VersionEntry(nil), rec.Entries...)
	c.histories.Set(key, rec, gocache.NoExpiration)

	c.mu.Lock()
	c.updatedAt = time.Now()
	c.mu.Unlock()
}

// History returns the cached history for key.
func (c *Cache) History(key string) (model.PersistedHistory, bool) {
	v, ok := c.histories.Get(key)
	if !ok {
		return model.PersistedHistory{}, false
	}
	rec := v.(model.PersistedHistory)
	rec.Entries = append([]model.VersionEntry(nil), rec.Entries...)
	return rec, true
}

// SetMetadata remembers a lookup result for MetadataTTL. A nil record is
// remembered as well so an unavailable lookup is not retried on every read.
func (c *Cache) SetMetadata(key string, rec *model.MetadataRecord) {
	c.metadata.SetDefault(key, rec)
}

// Metadata returns a remembered lookup result.
func (c *Cache) Metadata(key string) (*model.MetadataRecord, bool) {
	v, ok := c.metadata.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*model.MetadataRecord), true
}

// UpdatedAt returns the last time a history was cached.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
