// Package pattern 传感器数据模式生成器：给定模式定义与虚拟时间，生成数值或位置样本。
package pattern

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type 模式类型
type Type string

const (
	TypeSineWave         Type = "sine_wave"
	TypeGaussian         Type = "gaussian"
	TypeRandomWalk       Type = "random_walk"
	TypeTidalCycle       Type = "tidal_cycle"
	TypeLinear           Type = "linear"
	TypeLinearIncrease   Type = "linear_increase"
	TypeLinearDecline    Type = "linear_decline"
	TypeSawtooth         Type = "sawtooth"
	TypeTriangle         Type = "triangle"
	TypeSquare           Type = "square"
	TypeConstant         Type = "constant"
	TypeGreatCircle      Type = "great_circle"
	TypeWaypointSequence Type = "waypoint_sequence"
	TypeGPSTrack         Type = "gps_track"
)

// DefaultTidalPeriod 半日潮周期（12h25m12s），单位秒
const DefaultTidalPeriod = 44712.0

var (
	// ErrUnknownPattern 未知模式类型
	ErrUnknownPattern = errors.New("unknown pattern type")
	// ErrInvalidParameter 模式参数非法
	ErrInvalidParameter = errors.New("invalid pattern parameter")
	// ErrNumericOverflow 生成结果为 NaN/Inf
	ErrNumericOverflow = errors.New("numeric overflow")
)

// Waypoint 航点
type Waypoint struct {
	Lat   float64  `yaml:"lat" json:"lat"`
	Lon   float64  `yaml:"lon" json:"lon"`
	Speed float64  `yaml:"speed,omitempty" json:"speed,omitempty"` // 本航段航速(kn)，0 表示使用模式级 speed
	Time  *float64 `yaml:"time,omitempty" json:"time,omitempty"`   // gps_track: 到达该点的时间偏移(秒)
}

// Spec 数据生成模式定义（带类型标签 + 参数）
type Spec struct {
	Type Type `yaml:"type" json:"type"`

	Base      float64  `yaml:"base,omitempty" json:"base,omitempty"`
	Amplitude float64  `yaml:"amplitude,omitempty" json:"amplitude,omitempty"`
	Period    float64  `yaml:"period,omitempty" json:"period,omitempty"`       // 秒
	Frequency float64  `yaml:"frequency,omitempty" json:"frequency,omitempty"` // Hz，period 为空时使用
	Phase     float64  `yaml:"phase,omitempty" json:"phase,omitempty"`         // 弧度
	DutyCycle float64  `yaml:"duty_cycle,omitempty" json:"duty_cycle,omitempty"`
	Value     *float64 `yaml:"value,omitempty" json:"value,omitempty"`

	Mean   *float64 `yaml:"mean,omitempty" json:"mean,omitempty"` // 为空时使用 base
	StdDev float64  `yaml:"std_dev,omitempty" json:"std_dev,omitempty"`
	Step   float64  `yaml:"step,omitempty" json:"step,omitempty"` // random_walk 每秒步长尺度
	Seed   *int64   `yaml:"seed,omitempty" json:"seed,omitempty"`

	Rate float64 `yaml:"rate,omitempty" json:"rate,omitempty"` // 每秒变化量

	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	TidalPeriod float64  `yaml:"tidal_period,omitempty" json:"tidal_period,omitempty"`
	TidalRange  float64  `yaml:"tidal_range,omitempty" json:"tidal_range,omitempty"`
	Floor       *float64 `yaml:"floor,omitempty" json:"floor,omitempty"`
	Ceiling     *float64 `yaml:"ceiling,omitempty" json:"ceiling,omitempty"`

	Waypoints []Waypoint `yaml:"waypoints,omitempty" json:"waypoints,omitempty"`
	Speed     float64    `yaml:"speed,omitempty" json:"speed,omitempty"` // kn
	Loop      bool       `yaml:"loop,omitempty" json:"loop,omitempty"`
}

// Key 返回模式的规范化标识；相同定义得到相同 Key
func (s Spec) Key() string {
	b, err := json.Marshal(s)
	if err != nil {
		return string(s.Type)
	}
	return string(b)
}

// Positional 是否为位置类模式
func (s Spec) Positional() bool {
	switch s.Type {
	case TypeGreatCircle, TypeWaypointSequence, TypeGPSTrack:
		return true
	}
	return false
}

// SharesState 是否按模式定义共享状态（相同定义共用同一随机游走）
func (s Spec) SharesState() bool {
	return s.Type == TypeRandomWalk
}

// Known 是否为已支持的模式类型
func Known(t Type) bool {
	_, ok := constructors[t]
	return ok
}

// Types 返回全部支持的模式类型
func Types() []Type {
	return []Type{
		TypeSineWave, TypeGaussian, TypeRandomWalk, TypeTidalCycle,
		TypeLinear, TypeLinearIncrease, TypeLinearDecline,
		TypeSawtooth, TypeTriangle, TypeSquare, TypeConstant,
		TypeGreatCircle, TypeWaypointSequence, TypeGPSTrack,
	}
}

// Merge 以参数表覆盖模式定义（键名与 YAML/JSON 字段一致），返回新定义
func (s Spec) Merge(set map[string]any) (Spec, error) {
	if len(set) == 0 {
		return s, nil
	}
	base, err := json.Marshal(s)
	if err != nil {
		return s, err
	}
	merged := map[string]any{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return s, err
	}
	for k, v := range set {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	var out Spec
	if err := json.Unmarshal(b, &out); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return out, nil
}
