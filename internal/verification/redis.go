package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var shortenScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl < 0 or ttl > tonumber(ARGV[2]) then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
end
return 0
`)

// RedisStore shares pending codes between replicas. Expiry is delegated to
// redis key TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore namespaces keys as "<prefix>:<destination>" so that several
// registries can share one database.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(destination string) string {
	return fmt.Sprintf("%s:%s", s.prefix, destination)
}

func (s *RedisStore) Set(ctx context.Context, destination, code string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(destination), code, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, destination string) (string, bool, error) {
	code, err := s.client.Get(ctx, s.key(destination)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

func (s *RedisStore) Shorten(ctx context.Context, destination, code string, ttl time.Duration) error {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return shortenScript.Run(ctx, s.client, []string{s.key(destination)}, code, ms).Err()
}
