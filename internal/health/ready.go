package health

import "sync/atomic"

// Readiness 启动阶段就绪标记：场景已加载且广播已就绪
type Readiness struct {
	scenarioReady  atomic.Bool
	broadcastReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetScenarioReady(v bool)  { r.scenarioReady.Store(v) }
func (r *Readiness) SetBroadcastReady(v bool) { r.broadcastReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.scenarioReady.Load() && r.broadcastReady.Load()
}
