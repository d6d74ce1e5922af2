package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadmap/listing-ingest/internal/ingest"
)

// DefaultCacheTTL keeps resolved addresses for a month; street addresses
// do not move.
const DefaultCacheTTL = 30 * 24 * time.Hour

// Cache wraps a Geocoder with a Redis lookup cache so repeated imports of
// the same addresses skip the external call. Only positive results are
// cached; a failed lookup is retried on the next import. Cache errors
// fall through to the inner geocoder.
type Cache struct {
	inner ingest.Geocoder
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCache(inner ingest.Geocoder, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *Cache) Lookup(ctx context.Context, address string) *ingest.Coordinates {
	key := cacheKey(address)

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var coords ingest.Coordinates
		if json.Unmarshal(data, &coords) == nil {
			return &coords
		}
	}

	coords := c.inner.Lookup(ctx, address)
	if coords == nil {
		return nil
	}

	if data, err := json.Marshal(coords); err == nil {
		c.rdb.Set(ctx, key, data, c.ttl)
	}
	return coords
}

func cacheKey(address string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(address))))
	return "geocode:" + hex.EncodeToString(h[:16])
}
