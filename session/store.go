package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpKind identifies a buffered backend command.
type OpKind uint8

const (
	// OpSetField writes one hash field (HSET).
	OpSetField OpKind = iota + 1
	// OpDeleteField removes one hash field (HDEL).
	OpDeleteField
	// OpDeleteKey removes the whole record (DEL).
	OpDeleteKey
	// OpExpire sets the record's expiry in whole seconds (EXPIRE).
	OpExpire
)

func (k OpKind) String() string {
	switch k {
	case OpSetField:
		return "hset"
	case OpDeleteField:
		return "hdel"
	case OpDeleteKey:
		return "del"
	case OpExpire:
		return "expire"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// Op is a single backend command waiting in a Session's pipeline.
type Op struct {
	Kind  OpKind
	Key   string
	Field string
	Value []byte
	TTL   time.Duration
}

// Store is the hash-record capability a Session needs from its backend.
//
// Exec submits ops as one ordered batch. Ordering within the batch is
// preserved but the batch is not a transaction: a failure part way through
// may leave earlier commands applied.
type Store interface {
	GetAll(ctx context.Context, key string) (map[string][]byte, error)
	GetField(ctx context.Context, key, field string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Exec(ctx context.Context, ops []Op) error
}

// RedisStore implements Store over a go-redis client. Every failure it
// returns wraps ErrBackendUnavailable.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore creates a [RedisStore] backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

// GetAll returns every field of the hash at key. A missing key yields an
// empty map.
//
//	Performance: 1 Redis HGETALL.
func (s *RedisStore) GetAll(ctx context.Context, key string) (map[string][]byte, error) {
	vals, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	out := make(map[string][]byte, len(vals))
	for field, val := range vals {
		out[field] = []byte(val)
	}
	return out, nil
}

// GetField returns one hash field. found is false when the field or the
// whole record is absent.
//
//	Performance: 1 Redis HGET.
func (s *RedisStore) GetField(ctx context.Context, key, field string) ([]byte, bool, error) {
	data, err := s.redis.HGet(ctx, key, field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return data, true, nil
}

// Delete removes the record immediately. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Exec pipelines ops in order with a plain (non-MULTI) pipeline.
//
//	Performance: 1 round trip regardless of len(ops).
func (s *RedisStore) Exec(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}

	pipe := s.redis.Pipeline()
	for _, op := range ops {
		switch op.Kind {
		case OpSetField:
			pipe.HSet(ctx, op.Key, op.Field, op.Value)
		case OpDeleteField:
			pipe.HDel(ctx, op.Key, op.Field)
		case OpDeleteKey:
			pipe.Del(ctx, op.Key)
		case OpExpire:
			pipe.Expire(ctx, op.Key, wholeSeconds(op.TTL))
		default:
			pipe.Discard()
			return fmt.Errorf("session: unknown op kind %s", op.Kind)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// TTL reports the remaining lifetime of the record. It returns a negative
// duration when the key is missing or has no expiry.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return ttl, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return time.Since(start), nil
}

// wholeSeconds rounds ttl down to seconds, never below one second, since
// EXPIRE only takes whole seconds and zero would delete the key.
func wholeSeconds(ttl time.Duration) time.Duration {
	ttl = ttl.Truncate(time.Second)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
