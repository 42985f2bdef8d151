// Package app 组件装配：由配置构建场景、调度器、广播与 HTTP 服务。
package app

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/scenario"
	"github.com/taoyao-code/marine-sim/internal/simerr"
)

// ErrScenarioInvalid 场景未通过校验
var ErrScenarioInvalid = errors.New("scenario failed validation")

// LoadScenario 先校验再加载场景，并应用配置中的 loop / start_time 覆盖。
// 校验错误（strict 时包括告警）阻止启动。
func LoadScenario(cfg cfgpkg.SimulatorConfig, log *zap.Logger) (*scenario.Scenario, *scenario.Validator, error) {
	v, err := scenario.NewValidator(cfg.SchemaPath, log)
	if err != nil {
		return nil, nil, simerr.Configuration("load schema", cfg.SchemaPath, err)
	}

	report := v.ValidateFile(cfg.Scenario)
	for _, w := range report.Warnings {
		log.Warn("scenario warning", zap.String("path", w.Path), zap.String("message", w.Message))
	}
	for _, e := range report.Errors {
		log.Error("scenario error", zap.String("path", e.Path), zap.String("message", e.Message))
	}
	if !report.Valid || (cfg.Strict && len(report.Warnings) > 0) {
		return nil, v, simerr.Validation("validate scenario", cfg.Scenario,
			fmt.Errorf("%w: %d error(s), %d warning(s)", ErrScenarioInvalid, len(report.Errors), len(report.Warnings)))
	}

	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return nil, v, err
	}
	if err := applyOverrides(sc, cfg); err != nil {
		return nil, v, err
	}
	log.Info("scenario loaded",
		zap.String("scenario", sc.Name),
		zap.String("bridge_mode", string(sc.Mode())),
		zap.Int("sensors", len(sc.Sensors)),
		zap.Int("phases", len(sc.Phases)),
		zap.Bool("loop", sc.Loop))
	return sc, v, nil
}

func applyOverrides(sc *scenario.Scenario, cfg cfgpkg.SimulatorConfig) error {
	if loop, ok := cfg.LoopOverride(); ok {
		sc.Loop = loop
	}
	if cfg.StartTime != "" {
		t, err := time.Parse(time.RFC3339, cfg.StartTime)
		if err != nil {
			return simerr.Configuration("override start time", cfg.StartTime, err)
		}
		sc.StartTime = cfg.StartTime
		sc.Start = t.UTC()
	}
	return nil
}
