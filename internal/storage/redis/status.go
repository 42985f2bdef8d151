package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Setter 写键接口（*redis.Client 满足）
type Setter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// StatusStore 将运行状态以 JSON 写入 <prefix>:status，带过期时间，进程退出后自然失效
type StatusStore struct {
	db  Setter
	key string
	ttl time.Duration
}

// NewStatusStore ttl<=0 时取 10s
func NewStatusStore(db Setter, prefix string, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	key := "status"
	if prefix != "" {
		key = prefix + ":status"
	}
	return &StatusStore{db: db, key: key, ttl: ttl}
}

// Key 状态键名
func (s *StatusStore) Key() string { return s.key }

// Save 写入状态快照
func (s *StatusStore) Save(ctx context.Context, status any) error {
	b, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return s.db.Set(ctx, s.key, b, s.ttl).Err()
}
