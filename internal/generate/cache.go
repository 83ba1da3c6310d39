package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"dailyvision/internal/domain"
)

type CacheEntry struct {
	Key       string               `json:"key"`
	Data      []domain.DailyAction `json:"data"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Cache memoizes generated action lists. Get must not return entries older
// than the cache TTL.
type Cache interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, entry CacheEntry) error
}

// CacheKey fingerprints one generation request: the identity plus each
// requested vision with its allocation. Vision order does not matter.
func CacheKey(identity string, visionIDs []string, allocations map[string]int) string {
	ids := append([]string(nil), visionIDs...)
	sort.Strings(ids)
	var b strings.Builder
	b.WriteString(identity)
	for _, id := range ids {
		b.WriteByte(0)
		b.WriteString(id)
		if m, ok := allocations[id]; ok {
			b.WriteString("=" + strconv.Itoa(m))
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// MemoryCache is a bounded LRU whose entries expire after TTL. Expiry is also
// checked against Now on lookup so an injected clock is honoured.
type MemoryCache struct {
	TTL time.Duration
	Now func() time.Time
	lru *expirable.LRU[string, CacheEntry]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{
		TTL: ttl,
		Now: time.Now,
		lru: expirable.NewLRU[string, CacheEntry](size, nil, ttl),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return CacheEntry{}, false, nil
	}
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	if now.Sub(entry.CreatedAt) >= c.TTL || now.Before(entry.CreatedAt) {
		c.lru.Remove(key)
		return CacheEntry{}, false, nil
	}
	entry.Data = append([]domain.DailyAction(nil), entry.Data...)
	return entry, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, entry CacheEntry) error {
	entry.Data = append([]domain.DailyAction(nil), entry.Data...)
	c.lru.Add(entry.Key, entry)
	return nil
}
