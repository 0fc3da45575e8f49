package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

// RedisStore keeps sessions and pending payments as JSON values with a TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "beach"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + ":sess:" + id }
func (s *RedisStore) pendingKey(id string) string { return s.prefix + ":pending:" + id }

func (s *RedisStore) Save(ctx context.Context, sess Session, ttl time.Duration) error {
	return s.set(ctx, s.sessionKey(sess.ID), sess, ttl)
}

func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	var sess Session
	if err := s.get(ctx, s.rdb.Get(ctx, s.sessionKey(id)), &sess, ErrNotFound); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.sessionKey(id), s.pendingKey(id)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (s *RedisStore) PutPending(ctx context.Context, sid string, p model.PendingPayment, ttl time.Duration) error {
	return s.set(ctx, s.pendingKey(sid), p, ttl)
}

func (s *RedisStore) GetPending(ctx context.Context, sid string) (model.PendingPayment, error) {
	var p model.PendingPayment
	if err := s.get(ctx, s.rdb.Get(ctx, s.pendingKey(sid)), &p, ErrNoPending); err != nil {
		return model.PendingPayment{}, err
	}
	return p, nil
}

// TakePending uses GETDEL so two concurrent confirmations cannot both see
// the same draft.
func (s *RedisStore) TakePending(ctx context.Context, sid string) (model.PendingPayment, error) {
	var p model.PendingPayment
	if err := s.get(ctx, s.rdb.GetDel(ctx, s.pendingKey(sid)), &p, ErrNoPending); err != nil {
		return model.PendingPayment{}, err
	}
	return p, nil
}

func (s *RedisStore) DropPending(ctx context.Context, sid string) error {
	if err := s.rdb.Del(ctx, s.pendingKey(sid)).Err(); err != nil {
		return fmt.Errorf("session: drop pending: %w", err)
	}
	return nil
}

func (s *RedisStore) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("session: set: %w", err)
	}
	return nil
}

func (s *RedisStore) get(_ context.Context, cmd *redis.StringCmd, v any, missing error) error {
	b, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return missing
		}
		return fmt.Errorf("session: get: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("session: decode: %w", err)
	}
	return nil
}
