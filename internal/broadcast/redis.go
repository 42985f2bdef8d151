package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/stream"
)

// Publisher Redis 发布接口（*redis.Client 满足）
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Channel 消息发布的频道名：<prefix>:<protocol>
func Channel(prefix string, p stream.Protocol) string {
	if prefix == "" {
		return string(p)
	}
	return prefix + ":" + string(p)
}

// NewRedisSink 以 Pub/Sub 发布原始消息字节；连续失败后熔断，熔断期间消息丢弃
func NewRedisSink(pub Publisher, cfg cfgpkg.RedisConfig, breaker *CircuitBreaker, logger *zap.Logger) *Outlet {
	if logger == nil {
		logger = zap.NewNop()
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(5, 10*time.Second)
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return NewOutlet(OutletOptions{
		Transport: TransportRedis,
		Filter:    stream.NewFilter(cfg.Protocols),
		QueueSize: cfg.QueueSize,
		Write: func(msg stream.Message) error {
			err := breaker.Call(func() error {
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				return pub.Publish(ctx, Channel(cfg.ChannelPrefix, msg.Protocol), msg.Bytes).Err()
			})
			switch {
			case err == nil, errors.Is(err, ErrCircuitOpen):
			default:
				logger.Warn("redis publish failed",
					zap.String("sensor", msg.Sensor),
					zap.String("breaker", breaker.State().String()),
					zap.Error(err))
			}
			// Redis 故障不关闭客户端，由熔断器节流
			return nil
		},
		Logger: logger,
	})
}
