package sensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryKindMapsToBothProtocols(t *testing.T) {
	kinds := Kinds()
	require.GreaterOrEqual(t, len(kinds), 13)
	for _, k := range kinds {
		t.Run(string(k), func(t *testing.T) {
			e, err := Lookup(string(k))
			require.NoError(t, err)
			assert.Equal(t, k, e.Kind)
			assert.NotEmpty(t, e.Sentences(), "缺少 NMEA 0183 语句")
			assert.NotEmpty(t, e.PGNs(), "缺少 NMEA 2000 PGN")
			assert.Len(t, e.PGNs(), len(e.Targets(ProtocolNMEA2000)), "PGN 必须是数字")
			assert.NotEmpty(t, e.Fields)
			assert.Len(t, e.Talker, 2)
		})
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		want    Kind
		wantErr bool
	}{
		{"小写", "depth", KindDepth, false},
		{"大小写混合", "Rate_Of_Turn", KindRateOfTurn, false},
		{"首尾空白", " gps ", KindGPS, false},
		{"未注册", "sonar", "", true},
		{"空字符串", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Lookup(tt.kind)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownSensorType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Kind)
		})
	}
}

func TestKindsStableOrder(t *testing.T) {
	a := Kinds()
	a[0] = "mutated"
	b := Kinds()
	assert.Equal(t, KindDepth, b[0], "返回副本")
	assert.Equal(t, KindPitchRoll, b[len(b)-1])
}

func TestPropertyCheck(t *testing.T) {
	tank, err := Lookup("tank")
	require.NoError(t, err)

	name, alias, err := tank.CheckProperty("tank_type", "fuel")
	require.NoError(t, err)
	assert.Equal(t, "fluid_type", name)
	assert.True(t, alias)

	_, _, err = tank.CheckProperty("fluid_type", "lemonade")
	assert.ErrorIs(t, err, ErrPropertyValue)

	_, _, err = tank.CheckProperty("capacity", -1.0)
	assert.ErrorIs(t, err, ErrPropertyValue)

	_, _, err = tank.CheckProperty("capacity", "big")
	assert.ErrorIs(t, err, ErrPropertyValue)

	_, _, err = tank.CheckProperty("colour", "red")
	assert.ErrorIs(t, err, ErrUnknownProperty)

	props := tank.CanonicalProps(map[string]any{"tank_type": "oil", "capacity": 200.0})
	assert.Equal(t, map[string]any{"fluid_type": "oil", "capacity": 200.0}, props)

	props = tank.CanonicalProps(map[string]any{"tank_type": "oil", "fluid_type": "fuel"})
	assert.Equal(t, "fuel", props["fluid_type"], "规范名称优先")
}

func TestReadingAccessors(t *testing.T) {
	r := Reading{
		Kind:     KindHeading,
		Instance: 2,
		Values:   map[string]float64{"heading": 45, "deviation": math.NaN()},
		Props:    map[string]any{"variation": -3.5, "reference": "TRUE"},
	}
	assert.Equal(t, "heading:2", r.ID())

	v, ok := r.Value("heading")
	assert.True(t, ok)
	assert.Equal(t, 45.0, v)

	_, ok = r.Value("deviation")
	assert.False(t, ok, "NaN 视为不可用")

	v, ok = r.Number("variation")
	assert.True(t, ok, "回退到物理属性")
	assert.Equal(t, -3.5, v)

	assert.Equal(t, "true", r.Text("reference"))
	assert.Equal(t, "", r.Text("missing"))
}
