// Package scenario 场景定义：数据模型、YAML 加载、profile 文件与两阶段校验（JSON Schema + 语义规则）。
package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/taoyao-code/marine-sim/internal/pattern"
	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// BridgeMode 输出协议选择
type BridgeMode string

const (
	BridgeNMEA0183 BridgeMode = "nmea0183"
	BridgeNMEA2000 BridgeMode = "nmea2000"
	BridgeHybrid   BridgeMode = "hybrid"
)

// Protocols 桥接模式对应的输出协议
func (m BridgeMode) Protocols() []sensor.Protocol {
	switch m {
	case BridgeNMEA2000:
		return []sensor.Protocol{sensor.ProtocolNMEA2000}
	case BridgeHybrid:
		return []sensor.Protocol{sensor.ProtocolNMEA0183, sensor.ProtocolNMEA2000}
	default:
		return []sensor.Protocol{sensor.ProtocolNMEA0183}
	}
}

// Emits 是否输出指定协议
func (m BridgeMode) Emits(p sensor.Protocol) bool {
	for _, q := range m.Protocols() {
		if q == p {
			return true
		}
	}
	return false
}

// EventType 阶段事件类型
type EventType string

const (
	EventProfileSwitch   EventType = "profile_switch"
	EventConditionChange EventType = "condition_change"
)

// Scenario 场景定义
type Scenario struct {
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Duration    float64            `yaml:"duration,omitempty" json:"duration,omitempty"` // 秒，0 表示不限
	Loop        bool               `yaml:"loop,omitempty" json:"loop,omitempty"`
	BridgeMode  BridgeMode         `yaml:"bridge_mode,omitempty" json:"bridge_mode,omitempty"`
	StartTime   string             `yaml:"start_time,omitempty" json:"start_time,omitempty"` // RFC 3339
	Sensors     []SensorDefinition `yaml:"sensors" json:"sensors"`
	Phases      []Phase            `yaml:"phases,omitempty" json:"phases,omitempty"`
	Parameters  Parameters         `yaml:"parameters,omitempty" json:"parameters,omitempty"`

	// 以下由加载器填充
	Dir      string             `yaml:"-" json:"-"`
	Start    time.Time          `yaml:"-" json:"-"`
	Profiles map[string]Profile `yaml:"-" json:"-"`

	confined bool // profile 引用必须为 Dir 内的相对路径
}

// SensorDefinition 传感器定义
type SensorDefinition struct {
	Type               string                  `yaml:"type" json:"type"`
	Instance           int                     `yaml:"instance" json:"instance"`
	SourceAddress      int                     `yaml:"source_address" json:"source_address"`
	UpdateRate         float64                 `yaml:"update_rate" json:"update_rate"` // Hz
	Talker             string                  `yaml:"talker,omitempty" json:"talker,omitempty"`
	PhysicalProperties map[string]any          `yaml:"physical_properties,omitempty" json:"physical_properties,omitempty"`
	DataGeneration     map[string]pattern.Spec `yaml:"data_generation,omitempty" json:"data_generation,omitempty"`
}

// Kind 规范化的传感器类型
func (d SensorDefinition) Kind() sensor.Kind {
	return sensor.Kind(strings.ToLower(strings.TrimSpace(d.Type)))
}

// ID 传感器标识 "<kind>:<instance>"
func (d SensorDefinition) ID() string {
	return string(d.Kind()) + ":" + strconv.Itoa(d.Instance)
}

// Interval 更新周期
func (d SensorDefinition) Interval() time.Duration {
	if d.UpdateRate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / d.UpdateRate)
}

// Phase 命名时间窗口
type Phase struct {
	Name     string  `yaml:"name" json:"name"`
	Start    float64 `yaml:"start" json:"start"`                           // 秒
	Duration float64 `yaml:"duration,omitempty" json:"duration,omitempty"` // 秒，0 表示持续到场景结束
	Events   []Event `yaml:"events,omitempty" json:"events,omitempty"`
}

// End 阶段结束时间，0 表示不限
func (p Phase) End() float64 {
	if p.Duration <= 0 {
		return 0
	}
	return p.Start + p.Duration
}

// Event 阶段事件
type Event struct {
	At      float64        `yaml:"at" json:"at"` // 相对阶段起点，秒
	Type    EventType      `yaml:"type" json:"type"`
	Profile string         `yaml:"profile,omitempty" json:"profile,omitempty"`
	Target  string         `yaml:"target,omitempty" json:"target,omitempty"` // <kind>:<instance>.<field>
	Set     map[string]any `yaml:"set,omitempty" json:"set,omitempty"`
}

// Parameters 场景参数
type Parameters struct {
	VesselProfile   string         `yaml:"vessel_profile,omitempty" json:"vessel_profile,omitempty"`
	MaxHeel         *float64       `yaml:"max_heel,omitempty" json:"max_heel,omitempty"`                 // 度
	HeelSensitivity *float64       `yaml:"heel_sensitivity,omitempty" json:"heel_sensitivity,omitempty"` // 度/节
	Overrides       Overrides      `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	Extra           map[string]any `yaml:",inline" json:"-"`
}

// Overrides 性能参数覆盖
type Overrides struct {
	Efficiency *float64       `yaml:"efficiency,omitempty" json:"efficiency,omitempty"`
	Extra      map[string]any `yaml:",inline" json:"-"`
}

// Profile 配置档：目标字段到替换模式的映射
type Profile struct {
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description,omitempty" json:"description,omitempty"`
	Targets     map[string]pattern.Spec `yaml:"targets" json:"targets"`
}

// ErrInvalidTarget 目标格式错误
var ErrInvalidTarget = errors.New("invalid target")

// Target 解析后的目标 "<kind>:<instance>.<field>"
type Target struct {
	Sensor string // <kind>:<instance>
	Field  string
}

func (t Target) String() string { return t.Sensor + "." + t.Field }

// ParseTarget 解析目标字符串
func ParseTarget(s string) (Target, error) {
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return Target{}, fmt.Errorf("%w: %q (want <kind>:<instance>.<field>)", ErrInvalidTarget, s)
	}
	id, field := s[:dot], s[dot+1:]
	colon := strings.IndexByte(id, ':')
	if colon <= 0 || colon == len(id)-1 {
		return Target{}, fmt.Errorf("%w: %q (want <kind>:<instance>.<field>)", ErrInvalidTarget, s)
	}
	n, err := strconv.Atoi(id[colon+1:])
	if err != nil || n < 0 || n > 255 {
		return Target{}, fmt.Errorf("%w: %q bad instance", ErrInvalidTarget, s)
	}
	kind := strings.ToLower(id[:colon])
	return Target{Sensor: kind + ":" + strconv.Itoa(n), Field: field}, nil
}

// Sensor 按标识查找传感器
func (s *Scenario) Sensor(id string) (SensorDefinition, bool) {
	for _, d := range s.Sensors {
		if d.ID() == id {
			return d, true
		}
	}
	return SensorDefinition{}, false
}

// Mode 桥接模式（默认 nmea0183）
func (s *Scenario) Mode() BridgeMode {
	if s.BridgeMode == "" {
		return BridgeNMEA0183
	}
	return s.BridgeMode
}

// TotalDuration 场景时长
func (s *Scenario) TotalDuration() time.Duration {
	return time.Duration(s.Duration * float64(time.Second))
}
