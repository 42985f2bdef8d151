package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taoyao-code/marine-sim/internal/metrics"
)

// NewMetrics 初始化注册表与模拟器指标
func NewMetrics() (*prometheus.Registry, *metrics.SimMetrics) {
	reg := metrics.NewRegistry()
	return reg, metrics.NewSimMetrics(reg)
}
