package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/marine-sim/internal/tcpserver"
)

// LimiterSource 连接限流统计来源
type LimiterSource interface {
	Stats() tcpserver.LimiterStats
}

// TCPChecker TCP 广播监听检查：按连接利用率分级
type TCPChecker struct {
	limiter LimiterSource
}

// NewTCPChecker 创建TCP健康检查器
func NewTCPChecker(limiter LimiterSource) *TCPChecker {
	return &TCPChecker{limiter: limiter}
}

// Name 返回检查器名称
func (c *TCPChecker) Name() string { return "tcp" }

// Check 执行健康检查
func (c *TCPChecker) Check(context.Context) CheckResult {
	start := time.Now()
	st := c.limiter.Stats()

	status, message := StatusHealthy, "ok"
	switch {
	case st.Utilization > 0.95:
		status, message = StatusUnhealthy, "connection limit near exhausted"
	case st.Utilization > 0.8:
		status, message = StatusDegraded, "high connection usage"
	}
	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]any{
			"active_connections": st.ActiveConnections,
			"max_connections":    st.MaxConnections,
			"rejected_total":     st.RejectedTotal,
			"utilization":        fmt.Sprintf("%.1f%%", st.Utilization*100),
		},
		Latency: time.Since(start),
	}
}
