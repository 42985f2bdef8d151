package sensor

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/taoyao-code/marine-sim/internal/pattern"
)

// Reading 传感器单次采样结果，与协议无关，由编码器转换为线格式
type Reading struct {
	Kind     Kind
	Instance uint8
	Source   uint8
	Talker   string        // NMEA 0183 talker 覆盖，空则使用注册表默认
	Time     time.Time     // 模拟 UTC 时间
	Elapsed  time.Duration // 虚拟时间
	Values   map[string]float64
	Position *pattern.Position
	Props    map[string]any // 规范化后的物理属性
}

// ID 传感器标识 "<kind>:<instance>"
func ID(kind Kind, instance uint8) string {
	return string(kind) + ":" + strconv.Itoa(int(instance))
}

// ID 传感器标识
func (r Reading) ID() string { return ID(r.Kind, r.Instance) }

// Value 读取数值字段；缺失或 NaN/Inf 视为不可用
func (r Reading) Value(name string) (float64, bool) {
	v, ok := r.Values[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Number 读取数值字段，若缺失则回退到同名物理属性
func (r Reading) Number(name string) (float64, bool) {
	if v, ok := r.Value(name); ok {
		return v, true
	}
	v, ok := toFloat(r.Props[name])
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Text 读取字符串属性（小写）
func (r Reading) Text(name string) string {
	s, _ := r.Props[name].(string)
	return strings.ToLower(s)
}

// CanonicalProps 将别名映射为规范名称；未知属性原样保留
func (e Entry) CanonicalProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if p, alias, ok := e.Property(k); ok && alias {
			if _, exists := props[p.Name]; exists {
				continue
			}
			out[p.Name] = v
			continue
		}
		out[k] = v
	}
	return out
}
