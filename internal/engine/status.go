package engine

import (
	"time"
)

// Status 运行状态快照，供 HTTP 状态接口与健康检查读取
type Status struct {
	RunID            string            `json:"run_id"`
	Scenario         string            `json:"scenario"`
	BridgeMode       string            `json:"bridge_mode"`
	State            string            `json:"state"`
	Phase            string            `json:"phase,omitempty"`
	Loop             int               `json:"loop"`
	VirtualTime      float64           `json:"virtual_time"`       // 本轮，秒
	TotalVirtualTime float64           `json:"total_virtual_time"` // 含已完成轮次，秒
	Sensors          int               `json:"sensors"`
	Emitted          map[string]uint64 `json:"emitted"`
	Failures         uint64            `json:"failures"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
}

// Status 返回当前运行状态
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		RunID:            s.runID,
		Scenario:         s.sc.Name,
		BridgeMode:       string(s.sc.Mode()),
		State:            s.run,
		Phase:            phaseAt(s.sc, s.st.Elapsed),
		Loop:             s.st.Loop,
		VirtualTime:      s.st.Elapsed.Seconds(),
		TotalVirtualTime: s.total(s.st.Elapsed).Seconds(),
		Sensors:          len(s.tracks),
		Emitted:          make(map[string]uint64, len(s.emitted)),
		Failures:         s.failures,
	}
	if s.st.Finished && st.State == RunIdle {
		st.State = RunFinished
	}
	for p, n := range s.emitted {
		st.Emitted[string(p)] = n
	}
	if !s.started.IsZero() {
		t := s.started
		st.StartedAt = &t
	}
	return st
}
