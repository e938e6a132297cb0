package universe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "putscan:universe:"

// CachedStore serves a Store through Redis. Redis problems are logged and
// fall through to the underlying store.
type CachedStore struct {
	client *redis.Client
	store  Store
	ttl    time.Duration
}

// NewCachedStore wraps store with a Redis cache holding results for ttl.
func NewCachedStore(client *redis.Client, store Store, ttl time.Duration) *CachedStore {
	return &CachedStore{client: client, store: store, ttl: ttl}
}

func cacheKey(n int) string {
	return fmt.Sprintf("%s%d", keyPrefix, n)
}

// Tickers implements Store
func (c *CachedStore) Tickers(ctx context.Context, n int) ([]string, error) {
	key := cacheKey(n)

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var tickers []string
		if jerr := json.Unmarshal([]byte(raw), &tickers); jerr == nil {
			log.Debug().Str("key", key).Int("tickers", len(tickers)).Msg("universe cache hit")
			return tickers, nil
		}
		log.Warn().Str("key", key).Msg("discarding malformed universe cache entry")
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Str("key", key).Msg("universe cache read failed")
	}

	tickers, err := c.store.Tickers(ctx, n)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(tickers)
	if err != nil {
		return tickers, nil
	}
	if err := c.client.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("universe cache write failed")
	}
	return tickers, nil
}
