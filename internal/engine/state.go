package engine

import (
	"time"

	"github.com/taoyao-code/marine-sim/internal/nmea2000"
	"github.com/taoyao-code/marine-sim/internal/pattern"
)

// State 调度器拥有的全部可变运行状态。
// 以值的形式快照/恢复；除调度器外无其他组件修改。
type State struct {
	Elapsed  time.Duration // 本轮虚拟时间
	Loop     int
	Seq      uint64 // 下一条消息序号
	Cursor   int    // 下一个待执行的阶段事件
	Ticks    []uint64
	Specs    map[string]pattern.Spec  // "<sensor>.<field>" -> 当前模式
	Fields   map[string]pattern.State // 生成器状态
	Counters nmea2000.Counters
	Finished bool
}

// Clone 深拷贝
func (s State) Clone() State {
	out := s
	out.Ticks = append([]uint64(nil), s.Ticks...)
	out.Specs = make(map[string]pattern.Spec, len(s.Specs))
	for k, v := range s.Specs {
		v.Waypoints = append([]pattern.Waypoint(nil), v.Waypoints...)
		out.Specs[k] = v
	}
	out.Fields = make(map[string]pattern.State, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	out.Counters = s.Counters.Clone()
	return out
}

func fieldKey(sensorID, field string) string { return sensorID + "." + field }

// stateKey 生成器状态键；共享状态的模式（random_walk）按规范化定义共享
func stateKey(sensorID, field string, spec pattern.Spec) string {
	if spec.SharesState() {
		return "walk:" + spec.Key()
	}
	return fieldKey(sensorID, field)
}
