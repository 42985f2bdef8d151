package scenario

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/marine-sim/internal/nmea2000"
	"github.com/taoyao-code/marine-sim/internal/pattern"
	"github.com/taoyao-code/marine-sim/internal/sensor"
	"github.com/taoyao-code/marine-sim/internal/simerr"
)

func TestLoadHarbour(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "harbour.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "harbour approach", s.Name)
	assert.Equal(t, BridgeHybrid, s.Mode())
	assert.Equal(t, 10*time.Minute, s.TotalDuration())
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), s.Start)
	require.Len(t, s.Sensors, 3)

	gps, ok := s.Sensor("gps:0")
	require.True(t, ok, "type is normalized to lower case")
	assert.Equal(t, "gps", gps.Type)
	assert.Equal(t, pattern.TypeGreatCircle, gps.DataGeneration["position"].Type)

	wind, ok := s.Sensor("wind:0")
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, wind.Interval())

	require.Contains(t, s.Profiles, "profiles/calm.yaml")
	calm := s.Profiles["profiles/calm.yaml"]
	assert.Equal(t, "calm", calm.Name)
	assert.Equal(t, pattern.TypeGaussian, calm.Targets["wind:0.speed"].Type)

	require.Len(t, s.Phases, 2)
	assert.Equal(t, 600.0, s.Phases[1].End())
	assert.Equal(t, EventConditionChange, s.Phases[1].Events[0].Type)
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse([]byte(tankScenario), "")
	require.NoError(t, err)
	assert.Equal(t, BridgeNMEA0183, s.BridgeMode)
	assert.False(t, s.Start.IsZero())
	assert.Zero(t, s.TotalDuration())
	assert.Empty(t, s.Profiles)
}

func TestParseCanonicalizesAliases(t *testing.T) {
	s, err := Parse([]byte(`
name: alias
sensors:
  - {type: tank, update_rate: 1, physical_properties: {tank_type: fresh_water}}
`), "")
	require.NoError(t, err)
	props := s.Sensors[0].PhysicalProperties
	assert.Equal(t, "fresh_water", props["fluid_type"])
	assert.NotContains(t, props, "tank_type")
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		target error
	}{
		{
			name:   "未知传感器类型",
			yaml:   "name: x\nsensors:\n  - {type: sonar, update_rate: 1}\n",
			target: sensor.ErrUnknownSensorType,
		},
		{
			name:   "保留源地址",
			yaml:   "name: x\nbridge_mode: hybrid\nsensors:\n  - {type: depth, source_address: 253, update_rate: 1}\n",
			target: nmea2000.ErrInvalidSource,
		},
		{
			name:   "profile缺失",
			yaml:   tankScenario + "parameters:\n  vessel_profile: gone.yaml\n",
			target: ErrProfileNotFound,
		},
		{
			name: "重复实例",
			yaml: tankScenario + "  - {type: tank, instance: 0, update_rate: 1}\n",
		},
		{
			name: "非法桥接模式",
			yaml: "name: x\nbridge_mode: seatalk\nsensors:\n  - {type: depth, update_rate: 1}\n",
		},
		{
			name: "起始时间",
			yaml: tankScenario + "start_time: noon\n",
		},
		{
			name: "YAML格式错误",
			yaml: "name: [",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), t.TempDir())
			require.Error(t, err)
			assert.True(t, simerr.IsCategory(err, simerr.CategoryConfiguration))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestSourceAddressAllowedWithoutNMEA2000(t *testing.T) {
	_, err := Parse([]byte("name: x\nsensors:\n  - {type: depth, source_address: 254, update_rate: 1}\n"), "")
	assert.NoError(t, err)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
		ok   bool
	}{
		{in: "depth:0.depth", want: Target{Sensor: "depth:0", Field: "depth"}, ok: true},
		{in: "Wind:2.speed", want: Target{Sensor: "wind:2", Field: "speed"}, ok: true},
		{in: "depth:007.depth", want: Target{Sensor: "depth:7", Field: "depth"}, ok: true},
		{in: "depth.depth"},
		{in: "depth:0."},
		{in: "depth:x.depth"},
		{in: "depth:300.depth"},
		{in: ":0.depth"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Sensor+"."+tt.want.Field, got.String())
		})
	}
}

func TestBridgeModeProtocols(t *testing.T) {
	assert.True(t, BridgeHybrid.Emits(sensor.ProtocolNMEA0183))
	assert.True(t, BridgeHybrid.Emits(sensor.ProtocolNMEA2000))
	assert.False(t, BridgeNMEA0183.Emits(sensor.ProtocolNMEA2000))
	assert.Equal(t, []sensor.Protocol{sensor.ProtocolNMEA2000}, BridgeNMEA2000.Protocols())
}
