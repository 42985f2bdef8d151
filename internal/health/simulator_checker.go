package health

import (
	"context"
	"time"

	"github.com/taoyao-code/marine-sim/internal/engine"
)

// StatusSource 运行状态来源（*engine.Scheduler 满足）
type StatusSource interface {
	Status() engine.Status
}

// SimulatorChecker 模拟器运行状态检查
type SimulatorChecker struct {
	src StatusSource
}

// NewSimulatorChecker 创建检查器
func NewSimulatorChecker(src StatusSource) *SimulatorChecker {
	return &SimulatorChecker{src: src}
}

// Name 返回检查器名称
func (c *SimulatorChecker) Name() string { return "simulator" }

// Check 运行中为健康；正常结束为降级（不再产生数据）；被停止或未启动为不健康
func (c *SimulatorChecker) Check(context.Context) CheckResult {
	start := time.Now()
	st := c.src.Status()

	res := CheckResult{
		Details: map[string]any{
			"scenario":     st.Scenario,
			"state":        st.State,
			"loop":         st.Loop,
			"virtual_time": st.VirtualTime,
			"failures":     st.Failures,
		},
	}
	switch st.State {
	case engine.RunRunning:
		res.Status, res.Message = StatusHealthy, "running"
	case engine.RunFinished:
		res.Status, res.Message = StatusDegraded, "scenario finished"
	default:
		res.Status, res.Message = StatusUnhealthy, "scheduler "+st.State
	}
	res.Latency = time.Since(start)
	return res
}
