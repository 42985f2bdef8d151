package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProbe Redis 检查所需接口（*storage/redis.Client 满足）
type RedisProbe interface {
	Probe(ctx context.Context) error
	PoolStats() *redis.PoolStats
}

// BreakerState 返回 Pub/Sub 熔断器状态名，如 "closed"、"open"
type BreakerState func() string

// RedisChecker Redis 只影响一个可选输出，任何异常都只降级
type RedisChecker struct {
	probe   RedisProbe
	breaker BreakerState
}

// NewRedisChecker breaker 可为 nil
func NewRedisChecker(probe RedisProbe, breaker BreakerState) *RedisChecker {
	return &RedisChecker{probe: probe, breaker: breaker}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := map[string]any{}
	breaker := ""
	if c.breaker != nil {
		breaker = c.breaker()
		details["breaker"] = breaker
	}

	if err := c.probe.Probe(ctx); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("ping failed: %v", err),
			Details: details,
			Latency: time.Since(start),
		}
	}

	st := c.probe.PoolStats()
	busy := 0.0
	if st.TotalConns > 0 {
		busy = float64(st.TotalConns-st.IdleConns) / float64(st.TotalConns)
	}
	details["total_conns"] = st.TotalConns
	details["idle_conns"] = st.IdleConns
	details["timeouts"] = st.Timeouts
	details["utilization"] = fmt.Sprintf("%.1f%%", busy*100)

	res := CheckResult{Status: StatusHealthy, Message: "ok", Details: details}
	switch {
	case breaker == "open":
		res.Status, res.Message = StatusDegraded, "publishing suspended by circuit breaker"
	case busy > 0.9:
		res.Status, res.Message = StatusDegraded, "connection pool near limit"
	}
	res.Latency = time.Since(start)
	return res
}
