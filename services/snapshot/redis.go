package snapshot

import (
	"context"
	"fmt"

	"boostfix/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one string key per snapshot entry and tracks the written
// keys in a set under rediskey.IndexKey.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	keys, err := r.rdb.SMembers(ctx, rediskey.IndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshot index: %w", err)
	}

	out := Snapshot{}
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = s
	}
	return out, nil
}

func (r *RedisStore) Save(ctx context.Context, s Snapshot) error {
	existing, err := r.rdb.SMembers(ctx, rediskey.IndexKey).Result()
	if err != nil {
		return fmt.Errorf("read snapshot index: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		var stale []string
		for _, k := range existing {
			if _, ok := s[k]; !ok {
				stale = append(stale, k)
			}
		}
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}

		pipe.Del(ctx, rediskey.IndexKey)
		if len(s) == 0 {
			return nil
		}

		members := make([]any, 0, len(s))
		for k, v := range s {
			pipe.Set(ctx, k, v, 0)
			members = append(members, k)
		}
		pipe.SAdd(ctx, rediskey.IndexKey, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	keys, err := r.rdb.SMembers(ctx, rediskey.IndexKey).Result()
	if err != nil {
		return fmt.Errorf("read snapshot index: %w", err)
	}
	keys = append(keys, rediskey.IndexKey)
	return r.rdb.Del(ctx, keys...).Err()
}
