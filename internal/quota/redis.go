package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Lua script for atomic daily check-and-increment.
// Returns {count, allowed}. A denied call leaves the count untouched.
// The key expires at the next UTC midnight, so the daily reset and
// stale-key eviction need no reset-on-read branch at all.
const luaConsumeDaily = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local expire_at = tonumber(ARGV[2])

local current = tonumber(redis.call('GET', key) or '0')
if current >= limit then
    return {current, 0}
end

current = redis.call('INCR', key)
if current == 1 then
    redis.call('EXPIREAT', key, expire_at)
end
return {current, 1}
`

// RedisStore is a usage store backed by a shared Redis instance. Unlike
// MemoryStore, its check-and-increment is atomic across processes, so
// the daily cap holds under horizontal scaling and survives restarts
// of the serving process.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a usage store on an existing Redis client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

// Connect opens a Redis connection from a URL and verifies it
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// SetClock overrides the store's clock for tests
func (s *RedisStore) SetClock(now func() time.Time) {
	s.now = now
}

// Consume implements Store using an atomic Lua script
func (s *RedisStore) Consume(ctx context.Context, deviceKey string, limit int) (bool, int, error) {
	now := s.now().UTC()
	today := now.Format("2006-01-02")
	key := fmt.Sprintf("usage:%s:%s", today, deviceKey)

	// Expire at the next UTC midnight
	midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)

	result, err := s.client.Eval(ctx, luaConsumeDaily, []string{key}, limit, midnight.Unix()).Int64Slice()
	if err != nil {
		log.Error().Err(err).Str("device_key", deviceKey).Msg("Failed to consume quota")
		return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if len(result) != 2 {
		return false, 0, fmt.Errorf("%w: unexpected result length %d", ErrStoreUnavailable, len(result))
	}

	return result[1] == 1, int(result[0]), nil
}
