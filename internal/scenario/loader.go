package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/marine-sim/internal/nmea2000"
	"github.com/taoyao-code/marine-sim/internal/pattern"
	"github.com/taoyao-code/marine-sim/internal/sensor"
	"github.com/taoyao-code/marine-sim/internal/simerr"
)

// ErrProfileNotFound 引用的 profile 文件不存在
var ErrProfileNotFound = errors.New("profile not found")

// ErrProfileMalformed profile 文件不是合法 YAML
var ErrProfileMalformed = errors.New("profile is not valid YAML")

// Load 读取并解析场景文件，加载引用的 profile。
// 返回的错误均为 configuration 类别，场景不得启动。
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.Configuration("read scenario", path, err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse 解析场景内容；dir 为相对 profile 路径的基准目录
func Parse(data []byte, dir string) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, simerr.Configuration("parse scenario", "", fmt.Errorf("unmarshal yaml: %w", err))
	}
	s.Dir = dir
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) prepare() error {
	if s.BridgeMode == "" {
		s.BridgeMode = BridgeNMEA0183
	}
	switch s.BridgeMode {
	case BridgeNMEA0183, BridgeNMEA2000, BridgeHybrid:
	default:
		return simerr.Configuration("parse scenario", "bridge_mode", fmt.Errorf("unknown bridge mode %q", s.BridgeMode))
	}

	s.Start = time.Now().UTC().Truncate(time.Second)
	if s.StartTime != "" {
		t, err := time.Parse(time.RFC3339, s.StartTime)
		if err != nil {
			return simerr.Configuration("parse scenario", "start_time", err)
		}
		s.Start = t.UTC()
	}

	seen := make(map[string]bool, len(s.Sensors))
	for i := range s.Sensors {
		d := &s.Sensors[i]
		entry, err := sensor.Lookup(d.Type)
		if err != nil {
			return simerr.Configuration("load sensor", fmt.Sprintf("sensors[%d]", i), err)
		}
		d.Type = string(entry.Kind)
		if seen[d.ID()] {
			return simerr.Configuration("load sensor", d.ID(), errors.New("duplicate instance"))
		}
		seen[d.ID()] = true
		if s.BridgeMode.Emits(sensor.ProtocolNMEA2000) && d.SourceAddress > nmea2000.MaxSourceAddress {
			return simerr.Configuration("load sensor", d.ID(), nmea2000.ErrInvalidSource)
		}
		if d.PhysicalProperties != nil {
			d.PhysicalProperties = entry.CanonicalProps(d.PhysicalProperties)
		}
	}

	s.Profiles = make(map[string]Profile)
	refs := s.profileRefs()
	for _, ref := range refs {
		p, err := LoadProfile(s.ResolvePath(ref))
		if err != nil {
			return simerr.Configuration("load profile", ref, err)
		}
		s.Profiles[ref] = p
	}
	return nil
}

// profileRefs 场景引用的全部 profile（去重，按出现顺序）
func (s *Scenario) profileRefs() []string {
	var refs []string
	seen := map[string]bool{}
	add := func(ref string) {
		if ref == "" || seen[ref] {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	add(s.Parameters.VesselProfile)
	for _, ph := range s.Phases {
		for _, ev := range ph.Events {
			if ev.Type == EventProfileSwitch {
				add(ev.Profile)
			}
		}
	}
	return refs
}

// ResolvePath 相对路径按场景文件目录解析
func (s *Scenario) ResolvePath(ref string) string {
	if filepath.IsAbs(ref) || s.Dir == "" {
		return ref
	}
	return filepath.Join(s.Dir, ref)
}

// LoadProfile 读取 profile 文件
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, path)
		}
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %s: %v", ErrProfileMalformed, path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.Targets == nil {
		return Profile{}, fmt.Errorf("profile %s has no targets", path)
	}
	targets := make(map[string]pattern.Spec, len(p.Targets))
	for k, spec := range p.Targets {
		t, err := ParseTarget(k)
		if err != nil {
			return Profile{}, fmt.Errorf("profile %s: %w", path, err)
		}
		targets[t.String()] = spec
	}
	p.Targets = targets
	return p, nil
}
