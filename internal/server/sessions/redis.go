package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sess:"

// RedisStore persists sessions as Redis hashes with a rolling TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a store over the given client. Sessions expire in
// Redis after ttl of inactivity; the application-level session age check is
// separate and stricter.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return newBag("", nil), nil
	}
	values, err := s.client.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("session load: %w", err)
	}
	// Missing key: HGETALL returns an empty map, which is a fresh session
	// under the same identifier.
	return newBag(id, values), nil
}

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	b, ok := sess.(*bag)
	if !ok {
		return fmt.Errorf("session save: unexpected session type %T", sess)
	}

	pipe := s.client.TxPipeline()
	for _, old := range b.stale {
		pipe.Del(ctx, keyPrefix+old)
	}
	key := keyPrefix + b.id
	pipe.Del(ctx, key)
	if len(b.values) > 0 {
		flat := make([]any, 0, len(b.values)*2)
		for k, v := range b.values {
			flat = append(flat, k, v)
		}
		pipe.HSet(ctx, key, flat...)
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	b.stale = nil
	return nil
}
