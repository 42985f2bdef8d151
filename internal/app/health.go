package app

import (
	"github.com/taoyao-code/marine-sim/internal/engine"
	"github.com/taoyao-code/marine-sim/internal/health"
	"github.com/taoyao-code/marine-sim/internal/tcpserver"
)

// NewHealthAggregator 创建健康检查聚合器，初始包含模拟器检查
func NewHealthAggregator(sched *engine.Scheduler) *health.Aggregator {
	return health.NewAggregator(health.NewSimulatorChecker(sched))
}

// AddTCPChecker 添加TCP检查器到聚合器
func AddTCPChecker(aggregator *health.Aggregator, srv *tcpserver.Server) {
	if srv != nil {
		aggregator.AddChecker(health.NewTCPChecker(srv.Limiter()))
	}
}
