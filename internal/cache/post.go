package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkpost/inkpost/internal/model"
)

// Cache key prefixes and TTLs.
const (
	postKeyPrefix     = "post:"
	negCacheKeySuffix = ":neg"
	versionKeySuffix  = ":ver"

	// DefaultPostTTL is the TTL for cached posts when none is configured.
	DefaultPostTTL = 10 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = time.Minute

	// postVersionTTL must outlive any read that started before an invalidation.
	postVersionTTL = 24 * time.Hour
)

// ErrCacheMiss is returned when a key is absent or unreadable.
var ErrCacheMiss = errors.New("cache miss")

// fillIfVersionScript writes KEYS[1] only while the version counter in
// KEYS[2] still equals ARGV[2]. KEYS[3], when given, is deleted on success.
var fillIfVersionScript = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[2]) or '0')
	if current ~= tonumber(ARGV[2]) then
		return 0
	end

	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
	if #KEYS >= 3 then
		redis.call('DEL', KEYS[3])
	end
	return 1
`)

func postKey(id int64) string {
	return postKeyPrefix + strconv.FormatInt(id, 10)
}

// GetPost returns the cached hydrated post or ErrCacheMiss.
func (c *Cache) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	key := postKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var post model.Post
	if err := json.Unmarshal(data, &post); err != nil {
		// Corrupted entry: drop it and treat as a miss.
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	if post.Tags == nil {
		post.Tags = []model.Tag{}
	}

	return &post, nil
}

// PostVersion returns the invalidation counter of a post. Read it before
// loading the post from the database and pass it to SetPost or
// SetPostNegativeCache.
func (c *Cache) PostVersion(ctx context.Context, id int64) (int64, error) {
	v, err := c.client.Get(ctx, postKey(id)+versionKeySuffix).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read post version: %w", err)
	}
	return v, nil
}

// SetPost stores a hydrated post and clears any negative entry for it. Nothing
// is written when the post was invalidated after version was read; the
// boolean reports whether the entry was stored.
func (c *Cache) SetPost(ctx context.Context, post *model.Post, ttl time.Duration, version int64) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultPostTTL
	}

	data, err := json.Marshal(post)
	if err != nil {
		return false, fmt.Errorf("marshal post: %w", err)
	}

	key := postKey(post.ID)
	stored, err := fillIfVersionScript.Run(ctx, c.client,
		[]string{key, key + versionKeySuffix, key + negCacheKeySuffix},
		data, version, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cache post: %w", err)
	}

	return stored == 1, nil
}

// InvalidatePost removes a post and its negative entry from cache and bumps
// its version so that fills started earlier are discarded.
func (c *Cache) InvalidatePost(ctx context.Context, id int64) error {
	key := postKey(id)

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key+versionKeySuffix)
	pipe.Expire(ctx, key+versionKeySuffix, postVersionTTL)
	pipe.Del(ctx, key, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate post: %w", err)
	}

	return nil
}

// IsPostNegativelyCached reports whether id was recently looked up and not found.
func (c *Cache) IsPostNegativelyCached(ctx context.Context, id int64) (bool, error) {
	exists, err := c.client.Exists(ctx, postKey(id)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetPostNegativeCache marks id as not found for NegativeCacheTTL, under the
// same version rule as SetPost.
func (c *Cache) SetPostNegativeCache(ctx context.Context, id int64, version int64) (bool, error) {
	key := postKey(id)
	stored, err := fillIfVersionScript.Run(ctx, c.client,
		[]string{key + negCacheKeySuffix, key + versionKeySuffix},
		"", version, NegativeCacheTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set negative cache: %w", err)
	}

	return stored == 1, nil
}
