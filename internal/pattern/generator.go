package pattern

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Position 位置样本；COG 为真航向(度)，SOG 为对地航速(kn)
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	COG float64 `json:"cog"`
	SOG float64 `json:"sog"`
}

// Sample 单次生成结果：数值或位置
type Sample struct {
	Value    float64
	Position *Position
}

// Generator 模式生成器。调用为 O(1) 或 O(航点数)，不阻塞。
type Generator interface {
	Spec() Spec
	Sample(t time.Duration, st State) (Sample, State, error)
}

type constructor func(spec Spec) Generator

var constructors = map[Type]constructor{
	TypeSineWave:         func(s Spec) Generator { return periodic{spec: s, shape: sineShape} },
	TypeSawtooth:         func(s Spec) Generator { return periodic{spec: s, shape: sawtoothShape} },
	TypeTriangle:         func(s Spec) Generator { return periodic{spec: s, shape: triangleShape} },
	TypeSquare:           func(s Spec) Generator { return periodic{spec: s, shape: squareShape} },
	TypeTidalCycle:       func(s Spec) Generator { return tidal{spec: s} },
	TypeGaussian:         func(s Spec) Generator { return gaussian{spec: s} },
	TypeRandomWalk:       func(s Spec) Generator { return randomWalk{spec: s} },
	TypeLinear:           func(s Spec) Generator { return linear{spec: s, sign: 0} },
	TypeLinearIncrease:   func(s Spec) Generator { return linear{spec: s, sign: 1} },
	TypeLinearDecline:    func(s Spec) Generator { return linear{spec: s, sign: -1} },
	TypeConstant:         func(s Spec) Generator { return constant{spec: s} },
	TypeGreatCircle:      func(s Spec) Generator { return newRoute(s, interpolateGreatCircle) },
	TypeWaypointSequence: func(s Spec) Generator { return newRoute(s, interpolateLinear) },
	TypeGPSTrack:         func(s Spec) Generator { return newRoute(s, interpolateLinear) },
}

// New 根据模式定义创建生成器。
// 未知类型记录告警并返回安全默认值（常量 base），不会返回错误。
func New(spec Spec, logger *zap.Logger) Generator {
	if c, ok := constructors[spec.Type]; ok {
		return c(spec)
	}
	if logger != nil {
		logger.Warn("unknown pattern type, using constant fallback",
			zap.String("pattern", string(spec.Type)),
			zap.Float64("value", spec.Base))
	}
	fallback := spec
	fallback.Type = TypeConstant
	return constant{spec: fallback}
}

// Validate 检查模式参数；未知类型返回 ErrUnknownPattern
func (s Spec) Validate() error {
	if !Known(s.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, s.Type)
	}
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		return fmt.Errorf("%w: min %.4g > max %.4g", ErrInvalidParameter, *s.Min, *s.Max)
	}
	switch s.Type {
	case TypeSineWave, TypeSawtooth, TypeTriangle, TypeSquare:
		if _, err := s.period(); err != nil {
			return err
		}
		if s.Type == TypeSquare && (s.DutyCycle < 0 || s.DutyCycle >= 1) {
			return fmt.Errorf("%w: duty_cycle must be in [0,1)", ErrInvalidParameter)
		}
	case TypeTidalCycle:
		if s.TidalPeriod < 0 || s.Period < 0 {
			return fmt.Errorf("%w: tidal period must be positive", ErrInvalidParameter)
		}
		if s.Floor != nil && s.Ceiling != nil && *s.Floor > *s.Ceiling {
			return fmt.Errorf("%w: floor > ceiling", ErrInvalidParameter)
		}
	case TypeGaussian:
		if s.StdDev < 0 {
			return fmt.Errorf("%w: std_dev must be >= 0", ErrInvalidParameter)
		}
	case TypeRandomWalk:
		if s.Step < 0 {
			return fmt.Errorf("%w: step must be >= 0", ErrInvalidParameter)
		}
	case TypeGreatCircle, TypeWaypointSequence, TypeGPSTrack:
		return validateRoute(s)
	}
	return nil
}

func (s Spec) period() (float64, error) {
	switch {
	case s.Period > 0:
		return s.Period, nil
	case s.Frequency > 0:
		return 1 / s.Frequency, nil
	}
	return 0, fmt.Errorf("%w: %s requires period or frequency > 0", ErrInvalidParameter, s.Type)
}

// clamp 依据 min/max 截断
func (s Spec) clamp(v float64) float64 {
	if s.Min != nil && v < *s.Min {
		v = *s.Min
	}
	if s.Max != nil && v > *s.Max {
		v = *s.Max
	}
	return v
}

func finite(v float64) (Sample, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Sample{}, ErrNumericOverflow
	}
	return Sample{Value: v}, nil
}

func seconds(t time.Duration) float64 { return t.Seconds() }

type constant struct{ spec Spec }

func (g constant) Spec() Spec { return g.spec }

func (g constant) Sample(_ time.Duration, st State) (Sample, State, error) {
	v := g.spec.Base
	if g.spec.Value != nil {
		v = *g.spec.Value
	}
	s, err := finite(g.spec.clamp(v))
	return s, st, err
}
