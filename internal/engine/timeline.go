package engine

import (
	"sort"
	"time"

	"github.com/taoyao-code/marine-sim/internal/scenario"
)

// timedEvent 展开到绝对虚拟时间的阶段事件
type timedEvent struct {
	at    time.Duration
	phase string
	event scenario.Event
}

func seconds(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

// buildTimeline 各阶段事件按绝对时间排序；同一时刻保持定义顺序
func buildTimeline(sc *scenario.Scenario) []timedEvent {
	var out []timedEvent
	for _, ph := range sc.Phases {
		for _, ev := range ph.Events {
			out = append(out, timedEvent{
				at:    seconds(ph.Start + ev.At),
				phase: ph.Name,
				event: ev,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at < out[j].at })
	return out
}

// phaseAt 当前所处阶段；窗口重叠时取定义靠后者
func phaseAt(sc *scenario.Scenario, el time.Duration) string {
	name := ""
	for _, ph := range sc.Phases {
		start := seconds(ph.Start)
		if el < start {
			continue
		}
		if end := ph.End(); end > 0 && el >= seconds(end) {
			continue
		}
		name = ph.Name
	}
	return name
}
