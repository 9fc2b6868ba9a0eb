// Package cursor stores the per-organisation delta cursor: the source system's last-updated
// timestamp in epoch milliseconds.
package cursor

import (
	"context"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]int64{}}
}

// Get returns 0 for an organisation without a cursor.
func (s *MemoryStore) Get(_ context.Context, orgID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[orgID], nil
}

func (s *MemoryStore) Set(_ context.Context, orgID string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[orgID] = value
	return nil
}

type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client, prefix: "personnel_sync:delta_cursor"}
}

func (s *RedisStore) key(orgID string) string {
	return s.prefix + ":" + orgID
}

// Get returns 0 for an organisation without a cursor.
func (s *RedisStore) Get(ctx context.Context, orgID string) (int64, error) {
	raw, err := s.redis.Get(ctx, s.key(orgID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get delta cursor")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse delta cursor %q", raw)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, orgID string, value int64) error {
	if err := s.redis.Set(ctx, s.key(orgID), strconv.FormatInt(value, 10), 0).Err(); err != nil {
		return errors.Wrap(err, "set delta cursor")
	}
	return nil
}
