package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/broadcast"
	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/health"
	redisstorage "github.com/taoyao-code/marine-sim/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端；未启用时返回 nil, nil
func NewRedisClient(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}
	client, err := redisstorage.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))
	return client, nil
}

// AddRedisChecker 添加Redis检查器到聚合器；breaker 为 nil 时不报告熔断状态
func AddRedisChecker(aggregator *health.Aggregator, client *redisstorage.Client, breaker *broadcast.CircuitBreaker) {
	if client == nil {
		return
	}
	var state health.BreakerState
	if breaker != nil {
		state = func() string { return breaker.State().String() }
	}
	aggregator.AddChecker(health.NewRedisChecker(client, state))
}
