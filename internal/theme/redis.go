package theme

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

// RedisStore keeps the preference at <prefix>darkMode.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix + Key}
}

func (r *RedisStore) Load() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	v, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return decode(v)
}

func (r *RedisStore) Save(dark bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return r.client.Set(ctx, r.key, encode(dark), 0).Err()
}

// RedisProvider scopes keys as <prefix><scope>:darkMode.
type RedisProvider struct {
	client *redis.Client
	prefix string
}

func NewRedisProvider(client *redis.Client, prefix string) *RedisProvider {
	return &RedisProvider{client: client, prefix: prefix}
}

func (p *RedisProvider) For(scope string) Store {
	return NewRedisStore(p.client, p.prefix+scope+":")
}

// Close releases the client.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
