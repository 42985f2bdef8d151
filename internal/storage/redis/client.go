// Package redis Redis 连接封装：供广播 Pub/Sub 与运行状态快照使用。
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
)

// ErrDisabled 配置未启用 Redis
var ErrDisabled = errors.New("redis is not enabled")

const pingTimeout = 5 * time.Second

// Client 仅暴露模拟器用到的三类操作：发布、写状态键、探活
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient 建立连接池并 PING 一次；失败时释放连接池
func NewClient(ctx context.Context, cfg cfgpkg.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	c := &Client{rdb: rdb, prefix: cfg.ChannelPrefix}
	if err := c.Probe(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// Prefix 频道与键名前缀
func (c *Client) Prefix() string { return c.prefix }

// Publish 实现 broadcast.Publisher
func (c *Client) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	return c.rdb.Publish(ctx, channel, message)
}

// Set 实现 Setter
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	return c.rdb.Set(ctx, key, value, ttl)
}

// Probe 带超时的 PING
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// PoolStats 连接池统计
func (c *Client) PoolStats() *redis.PoolStats {
	return c.rdb.PoolStats()
}

// Close 关闭连接池
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
