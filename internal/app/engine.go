package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/engine"
	"github.com/taoyao-code/marine-sim/internal/nmea0183"
	"github.com/taoyao-code/marine-sim/internal/nmea2000"
	"github.com/taoyao-code/marine-sim/internal/scenario"
	"github.com/taoyao-code/marine-sim/internal/stream"
)

// NewScheduler 创建两套编码器并装配调度器
func NewScheduler(sc *scenario.Scenario, cfg cfgpkg.SimulatorConfig, sink stream.Sink, obs engine.Observer, log *zap.Logger) (*engine.Scheduler, error) {
	encoders := engine.DefaultEncoders(nmea0183.NewEncoder(log), nmea2000.NewEncoder(log))
	opts := []engine.Option{engine.WithSpeed(cfg.Speed)}
	if obs != nil {
		opts = append(opts, engine.WithObserver(obs))
	}
	return engine.New(sc, encoders, sink, log, opts...)
}
