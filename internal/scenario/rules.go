package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/taoyao-code/marine-sim/internal/nmea2000"
	"github.com/taoyao-code/marine-sim/internal/pattern"
	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// 性能覆盖合法区间
const (
	minEfficiency = 0.5
	maxEfficiency = 1.0
	// 低于该航速即达到最大横倾视为配置不一致（节）
	minHeelSpeed = 5.0
)

// checkSemantics 第二阶段：与注册表、profile 文件及时间窗口相关的规则
func checkSemantics(s *Scenario, b *issues) {
	if s.StartTime != "" {
		if _, err := time.Parse(time.RFC3339, s.StartTime); err != nil {
			b.err("start_time", "start_time must be RFC 3339", s.StartTime)
		}
	}
	checkSensors(s, b)
	checkParameters(s, b)
	checkPhases(s, b)
}

func checkSensors(s *Scenario, b *issues) {
	n2k := s.Mode().Emits(sensor.ProtocolNMEA2000)
	seen := map[string]int{}
	for i, d := range s.Sensors {
		base := fmt.Sprintf("sensors[%d]", i)
		entry, err := sensor.Lookup(d.Type)
		if err != nil {
			b.err(base+".type", fmt.Sprintf("unknown sensor type %q", d.Type), d.Type)
			continue
		}
		if first, dup := seen[d.ID()]; dup {
			b.err(base+".instance", fmt.Sprintf("duplicate instance %d for %s (first at sensors[%d])", d.Instance, entry.Kind, first), d.Instance)
		} else {
			seen[d.ID()] = i
		}
		if n2k && d.SourceAddress > nmea2000.MaxSourceAddress && d.SourceAddress <= nmea2000.BroadcastAddress {
			b.err(base+".source_address", "source address 253-255 is reserved on NMEA 2000", d.SourceAddress)
		}

		for name, value := range d.PhysicalProperties {
			path := base + ".physical_properties." + name
			canonical, alias, err := entry.CheckProperty(name, value)
			switch {
			case errors.Is(err, sensor.ErrUnknownProperty):
				b.warn(path, fmt.Sprintf("unknown physical property for %s", entry.Kind), scalar(value))
				continue
			case err != nil:
				b.err(path, err.Error(), scalar(value))
			}
			if alias {
				b.warn(path, fmt.Sprintf("deprecated alias, use %q", canonical), scalar(value))
			}
		}

		for field, spec := range d.DataGeneration {
			checkPattern(entry, base+".data_generation."+field, field, spec, b)
		}
		for _, f := range entry.Fields {
			if f.Optional {
				continue
			}
			if _, ok := d.DataGeneration[f.Name]; !ok {
				b.warn(base+".data_generation", fmt.Sprintf("required field %q has no data_generation", f.Name), nil)
			}
		}
	}
}

// checkPattern 单个字段的模式定义
func checkPattern(entry sensor.Entry, path, field string, spec pattern.Spec, b *issues) {
	if !entry.HasField(field) {
		b.warn(path, fmt.Sprintf("%s does not produce field %q", entry.Kind, field), nil)
	}
	if !pattern.Known(spec.Type) {
		b.warn(path+".type", fmt.Sprintf("unknown pattern type %q, constant fallback will be used", spec.Type), string(spec.Type))
		return
	}
	if err := spec.Validate(); err != nil {
		b.err(path, err.Error(), nil)
		return
	}
	wantPosition := field == "position"
	if wantPosition && !spec.Positional() {
		b.err(path+".type", "position requires a route pattern (great_circle, waypoint_sequence or gps_track)", string(spec.Type))
	}
	if !wantPosition && spec.Positional() {
		b.err(path+".type", "route pattern produces a position, not a scalar", string(spec.Type))
	}
}

func checkParameters(s *Scenario, b *issues) {
	p := s.Parameters
	if p.VesselProfile != "" {
		checkProfile(s, "parameters.vessel_profile", p.VesselProfile, b)
	}

	switch {
	case p.HeelSensitivity != nil && p.MaxHeel == nil:
		b.warn("parameters.heel_sensitivity", "heel_sensitivity set without max_heel", *p.HeelSensitivity)
	case p.HeelSensitivity != nil && p.MaxHeel != nil && *p.HeelSensitivity > 0:
		if reach := *p.MaxHeel / *p.HeelSensitivity; reach < minHeelSpeed {
			b.warn("parameters.heel_sensitivity",
				fmt.Sprintf("max_heel reached at %.1f kn, below %.0f kn", reach, minHeelSpeed), *p.HeelSensitivity)
		}
	}

	if e := p.Overrides.Efficiency; e != nil && (*e < minEfficiency || *e > maxEfficiency) {
		b.err("parameters.overrides.efficiency",
			fmt.Sprintf("efficiency must be within [%.1f, %.1f]", minEfficiency, maxEfficiency), *e)
	}
}

// checkProfile profile 文件需存在且可解析；目标未命中任何传感器时告警
// 受限模式下报告不含文件内容与绝对路径
func checkProfile(s *Scenario, path, ref string, b *issues) {
	if s.confined && !withinDir(s.Dir, ref) {
		b.err(path, fmt.Sprintf("profile %q must be a relative path inside the scenario directory", ref), ref)
		return
	}
	file := s.ResolvePath(ref)
	if _, err := os.Stat(file); err != nil {
		b.err(path, fmt.Sprintf("profile %q not found", ref), ref)
		return
	}
	prof, err := LoadProfile(file)
	switch {
	case errors.Is(err, ErrProfileMalformed):
		b.err(path, fmt.Sprintf("profile %q is not valid YAML", ref), ref)
		return
	case err != nil && s.confined:
		b.err(path, fmt.Sprintf("profile %q could not be loaded", ref), ref)
		return
	case err != nil:
		b.err(path, err.Error(), ref)
		return
	}
	keys := make([]string, 0, len(prof.Targets))
	for k := range prof.Targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t, _ := ParseTarget(k)
		if _, ok := s.Sensor(t.Sensor); !ok {
			b.warn(path, fmt.Sprintf("profile %q targets missing sensor %s", ref, t.Sensor), ref)
		}
		if spec := prof.Targets[k]; pattern.Known(spec.Type) {
			if err := spec.Validate(); err != nil {
				b.err(path, fmt.Sprintf("profile %q target %s: %v", ref, k, err), ref)
			}
		}
	}
}

// withinDir ref 为相对路径且清理后不逃出 dir
func withinDir(dir, ref string) bool {
	if ref == "" || filepath.IsAbs(ref) || dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, filepath.Join(dir, ref))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func checkPhases(s *Scenario, b *issues) {
	type window struct {
		idx        int
		start, end float64 // end 为 0 表示持续到场景结束
	}
	windows := make([]window, 0, len(s.Phases))

	for i, ph := range s.Phases {
		base := fmt.Sprintf("phases[%d]", i)
		if s.Duration > 0 {
			if ph.Start >= s.Duration {
				b.warn(base+".start", "phase starts after scenario end", ph.Start)
			} else if ph.End() > s.Duration {
				b.warn(base+".duration", "phase window extends beyond scenario duration", ph.Duration)
			}
		}
		windows = append(windows, window{idx: i, start: ph.Start, end: ph.End()})

		for j, ev := range ph.Events {
			evPath := fmt.Sprintf("%s.events[%d]", base, j)
			if ph.Duration > 0 && ev.At > ph.Duration {
				b.warn(evPath+".at", "event falls outside its phase", ev.At)
			}
			switch ev.Type {
			case EventProfileSwitch:
				if ev.Profile != "" {
					checkProfile(s, evPath+".profile", ev.Profile, b)
				}
			case EventConditionChange:
				checkCondition(s, evPath, ev, b)
			}
		}
	}

	sort.SliceStable(windows, func(i, j int) bool { return windows[i].start < windows[j].start })
	for k := 1; k < len(windows); k++ {
		prev, cur := windows[k-1], windows[k]
		if prev.end == 0 || cur.start < prev.end {
			b.warn(fmt.Sprintf("phases[%d].start", cur.idx),
				fmt.Sprintf("phase overlaps %q", s.Phases[prev.idx].Name), cur.start)
		}
	}
}

// checkCondition condition_change 目标必须指向已定义传感器的字段，且合并后的模式有效
func checkCondition(s *Scenario, path string, ev Event, b *issues) {
	if ev.Target == "" {
		return
	}
	t, err := ParseTarget(ev.Target)
	if err != nil {
		b.err(path+".target", err.Error(), ev.Target)
		return
	}
	d, ok := s.Sensor(t.Sensor)
	if !ok {
		b.err(path+".target", fmt.Sprintf("no sensor %s", t.Sensor), ev.Target)
		return
	}
	entry, err := sensor.Lookup(d.Type)
	if err != nil {
		return
	}
	if !entry.HasField(t.Field) {
		b.err(path+".target", fmt.Sprintf("%s does not produce field %q", entry.Kind, t.Field), ev.Target)
		return
	}
	base, has := d.DataGeneration[t.Field]
	if _, typed := ev.Set["type"]; !has && !typed {
		b.err(path+".set", "target has no data_generation; set must include type", nil)
		return
	}
	merged, err := base.Merge(ev.Set)
	if err != nil {
		b.err(path+".set", err.Error(), nil)
		return
	}
	if pattern.Known(merged.Type) {
		if err := merged.Validate(); err != nil {
			b.err(path+".set", err.Error(), nil)
		}
	}
}
