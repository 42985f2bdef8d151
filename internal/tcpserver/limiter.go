package tcpserver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ConnectionLimiter 并发广播连接上限（信号量）
type ConnectionLimiter struct {
	sem      chan struct{}
	timeout  time.Duration
	max      int
	active   atomic.Int64
	rejected atomic.Int64
}

// NewConnectionLimiter maxConn<=0 时取 256，timeout<=0 时取 1s
func NewConnectionLimiter(maxConn int, timeout time.Duration) *ConnectionLimiter {
	if maxConn <= 0 {
		maxConn = 256
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &ConnectionLimiter{sem: make(chan struct{}, maxConn), timeout: timeout, max: maxConn}
}

// Acquire 获取连接许可，超过 timeout 未获取则拒绝
func (l *ConnectionLimiter) Acquire(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		l.rejected.Add(1)
		return fmt.Errorf("connection limit exceeded: max=%d", l.max)
	}
}

// Release 释放连接许可
func (l *ConnectionLimiter) Release() {
	select {
	case <-l.sem:
		l.active.Add(-1)
	default:
	}
}

// Stats 统计信息
func (l *ConnectionLimiter) Stats() LimiterStats {
	active := int(l.active.Load())
	return LimiterStats{
		MaxConnections:    l.max,
		ActiveConnections: active,
		RejectedTotal:     l.rejected.Load(),
		Utilization:       float64(active) / float64(l.max),
	}
}

// LimiterStats 连接限流统计
type LimiterStats struct {
	MaxConnections    int     `json:"max_connections"`
	ActiveConnections int     `json:"active_connections"`
	RejectedTotal     int64   `json:"rejected_total"`
	Utilization       float64 `json:"utilization"` // 0.0 - 1.0
}

// RateLimiter 新连接接入速率（令牌桶）
type RateLimiter struct {
	limiter  *rate.Limiter
	allowed  atomic.Int64
	rejected atomic.Int64
}

// NewRateLimiter ratePerSec<=0 时取 50，burst<=0 时取 2 倍速率
func NewRateLimiter(ratePerSec, burst int) *RateLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 50
	}
	if burst <= 0 {
		burst = ratePerSec * 2
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow 非阻塞判断是否放行
func (l *RateLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowed.Add(1)
		return true
	}
	l.rejected.Add(1)
	return false
}

// Rejected 累计拒绝次数
func (l *RateLimiter) Rejected() int64 { return l.rejected.Load() }
