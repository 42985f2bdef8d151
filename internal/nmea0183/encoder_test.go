package nmea0183

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/marine-sim/internal/pattern"
	"github.com/taoyao-code/marine-sim/internal/sensor"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		body string
		want byte
	}{
		{"GGA经典样例", "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,", 0x47},
		{"空", "", 0x00},
		{"单字节", "A", 0x41},
		{"成对抵消", "AA", 0x00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.body))
		})
	}
}

func TestBuildAndVerify(t *testing.T) {
	s := Build('$', "GP", "GGA", "123519", "4807.038", "N", "01131.000", "E", "1", "08", "0.9", "545.4", "M", "46.9", "M", "", "")
	assert.Equal(t, Sentence("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n"), s)
	assert.Equal(t, "GGA", s.Tag())
	require.NoError(t, Verify(s))

	tampered := Sentence(strings.Replace(string(s), "4807", "4808", 1))
	assert.ErrorIs(t, Verify(tampered), ErrChecksumMismatch)

	assert.ErrorIs(t, Verify("GPGGA,1*00"), ErrMalformedSentence)
	assert.ErrorIs(t, Verify("$GPGGA,1"), ErrMalformedSentence)

	bang := Build('!', "AI", "VDM", "1")
	assert.True(t, strings.HasPrefix(string(bang), "!AIVDM,1*"))
	require.NoError(t, Verify(bang))
}

func fieldsOf(t *testing.T, s Sentence) []string {
	t.Helper()
	require.NoError(t, Verify(s))
	f, err := Fields(s)
	require.NoError(t, err)
	return f
}

func fixedTime() time.Time {
	return time.Date(2024, 6, 1, 12, 35, 19, 0, time.UTC)
}

func TestDepthSentences(t *testing.T) {
	enc := NewEncoder(zaptest.NewLogger(t))
	r := sensor.Reading{
		Kind:   sensor.KindDepth,
		Values: map[string]float64{"depth": 10},
		Props:  map[string]any{"offset": 0.5, "keel_offset": 1.5},
	}

	ss, err := enc.Sentences("DBT", r)
	require.NoError(t, err)
	require.Len(t, ss, 1)
	assert.Equal(t, []string{"SDDBT", "32.8", "f", "10.0", "M", "5.5", "F"}, fieldsOf(t, ss[0]))

	ss, err = enc.Sentences("DPT", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"SDDPT", "10.0", "0.5", ""}, fieldsOf(t, ss[0]))

	ss, err = enc.Sentences("DBK", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"SDDBK", "27.9", "f", "8.5", "M", "4.6", "F"}, fieldsOf(t, ss[0]))

	t.Run("NaN退化为空字段", func(t *testing.T) {
		bad := r
		bad.Values = map[string]float64{"depth": math.NaN()}
		ss, err := enc.Sentences("DBT", bad)
		require.NoError(t, err)
		assert.Equal(t, []string{"SDDBT", "", "f", "", "M", "", "F"}, fieldsOf(t, ss[0]))
	})

	t.Run("负水深视为不可用", func(t *testing.T) {
		bad := r
		bad.Values = map[string]float64{"depth": -3}
		ss, err := enc.Sentences("DPT", bad)
		require.NoError(t, err)
		assert.Equal(t, "", fieldsOf(t, ss[0])[1])
	})
}

func TestHeadingTrue(t *testing.T) {
	enc := NewEncoder(nil)
	tests := []struct {
		name      string
		heading   float64
		variation any
		want      []string
	}{
		{"东磁差跨越360", 358, 5.0, []string{"HCHDT", "3.0", "T"}},
		{"西磁差跨越0", 5, -10.0, []string{"HCHDT", "355.0", "T"}},
		{"恰好360归零", 350, 10.0, []string{"HCHDT", "0.0", "T"}},
		{"舍入后为360归零", 359.97, 0.0, []string{"HCHDT", "0.0", "T"}},
		{"无磁差不发送", 100, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sensor.Reading{Kind: sensor.KindHeading, Values: map[string]float64{"heading": tt.heading}, Props: map[string]any{}}
			if tt.variation != nil {
				r.Props["variation"] = tt.variation
			}
			ss, err := enc.Sentences("HDT", r)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, ss)
				return
			}
			require.Len(t, ss, 1)
			assert.Equal(t, tt.want, fieldsOf(t, ss[0]))
		})
	}

	r := sensor.Reading{Kind: sensor.KindHeading, Values: map[string]float64{"heading": 90, "variation": -2.5}}
	ss, err := enc.Sentences("HDG", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"HCHDG", "90.0", "", "", "2.5", "W"}, fieldsOf(t, ss[0]))

	r = sensor.Reading{Kind: sensor.KindHeading, Values: map[string]float64{"heading": 359.97}}
	ss, err = enc.Sentences("HDG", r)
	require.NoError(t, err)
	assert.Equal(t, "0.0", fieldsOf(t, ss[0])[1])
}

func TestAngleRounding(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		dec  int
		want string
	}{
		{"一位小数进位到360", 359.96, 1, "0.0"},
		{"一位小数不进位", 359.94, 1, "359.9"},
		{"负角度进位", -0.01, 1, "0.0"},
		{"负整圈不输出负零", -360, 1, "0.0"},
		{"整数精度", 359.6, 0, "0"},
		{"NaN不可用", math.NaN(), 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, angle(tt.in, true, tt.dec))
		})
	}
}

func TestEngineXDRSplit(t *testing.T) {
	enc := NewEncoder(nil)
	r := sensor.Reading{Kind: sensor.KindEngine, Values: map[string]float64{
		"rpm": 2200, "oil_pressure": 421, "oil_temperature": 95.2, "coolant_temperature": 82.4,
		"alternator_voltage": 14.12, "boost_pressure": 110,
	}}
	ss, err := enc.Sentences("XDR", r)
	require.NoError(t, err)
	require.Greater(t, len(ss), 1)

	var names []string
	for _, s := range ss {
		assert.LessOrEqual(t, len(s), MaxSentenceLength, string(s))
		require.NoError(t, Verify(s))
		f := fieldsOf(t, s)[1:]
		require.Zero(t, len(f)%4)
		for i := 3; i < len(f); i += 4 {
			names = append(names, f[i])
		}
	}
	assert.Equal(t, []string{"ENGOILP0", "ENGOILT0", "ENGTEMP0", "ALTVOLT0", "ENGBOOST0"}, names)
}

func TestGPSSentences(t *testing.T) {
	enc := NewEncoder(nil)
	r := sensor.Reading{
		Kind:     sensor.KindGPS,
		Time:     fixedTime(),
		Position: &pattern.Position{Lat: 48.1173, Lon: 11.516666667, COG: 84.4, SOG: 22.4},
		Values:   map[string]float64{"satellites": 8, "hdop": 0.9, "altitude": 545.4},
		Props:    map[string]any{"geoidal_separation": 46.9},
	}

	ss, err := enc.Sentences("GGA", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"GPGGA", "123519.00", "4807.0380", "N", "01131.0000", "E", "1", "08", "0.9", "545.4", "M", "46.9", "M", "", ""}, fieldsOf(t, ss[0]))

	ss, err = enc.Sentences("RMC", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"GPRMC", "123519.00", "A", "4807.0380", "N", "01131.0000", "E", "22.4", "84.4", "010624", "", "", "A"}, fieldsOf(t, ss[0]))

	ss, err = enc.Sentences("VTG", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"GPVTG", "84.4", "T", "", "M", "22.4", "N", "41.5", "K", "A"}, fieldsOf(t, ss[0]))

	south := r
	south.Position = &pattern.Position{Lat: -33.5, Lon: -70.25}
	ss, err = enc.Sentences("GLL", south)
	require.NoError(t, err)
	assert.Equal(t, []string{"GPGLL", "3330.0000", "S", "07015.0000", "W", "123519.00", "A", "A"}, fieldsOf(t, ss[0]))

	t.Run("无定位", func(t *testing.T) {
		none := r
		none.Position = nil
		ss, err := enc.Sentences("RMC", none)
		require.NoError(t, err)
		f := fieldsOf(t, ss[0])
		assert.Equal(t, "V", f[2])
		assert.Equal(t, "", f[3])
		assert.Equal(t, "N", f[12])
	})
}

func TestWindStatus(t *testing.T) {
	enc := NewEncoder(nil)
	r := sensor.Reading{Kind: sensor.KindWind, Values: map[string]float64{"speed": 12.34, "angle": -30}, Props: map[string]any{"reference": "true"}}
	ss, err := enc.Sentences("MWV", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"WIMWV", "330.0", "T", "12.3", "N", "A"}, fieldsOf(t, ss[0]))

	r.Values["speed"] = math.Inf(1)
	ss, err = enc.Sentences("MWV", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"WIMWV", "330.0", "T", "", "N", "V"}, fieldsOf(t, ss[0]))
}

func TestTransducerSentences(t *testing.T) {
	enc := NewEncoder(nil)
	tests := []struct {
		name string
		tag  string
		r    sensor.Reading
		want []string
	}{
		{
			"空气温度",
			"XDR",
			sensor.Reading{Kind: sensor.KindTemperature, Values: map[string]float64{"temperature": 21.26}, Props: map[string]any{"location": "air"}},
			[]string{"YXXDR", "C", "21.3", "C", "AIR0"},
		},
		{
			"气压转bar",
			"XDR",
			sensor.Reading{Kind: sensor.KindPressure, Instance: 1, Values: map[string]float64{"pressure": 1020}},
			[]string{"YXXDR", "P", "1.0200", "B", "BARO1"},
		},
		{
			"电池可选字段",
			"XDR",
			sensor.Reading{Kind: sensor.KindBattery, Values: map[string]float64{"voltage": 12.6, "current": -4.2}},
			[]string{"YXXDR", "U", "12.60", "V", "BATV0", "I", "-4.2", "A", "BATI0"},
		},
		{
			"油箱别名已规范化",
			"XDR",
			sensor.Reading{Kind: sensor.KindTank, Instance: 2, Values: map[string]float64{"level": 75}, Props: map[string]any{"fluid_type": "fuel"}},
			[]string{"YXXDR", "V", "75.0", "P", "FUEL2"},
		},
		{
			"纵横摇",
			"XDR",
			sensor.Reading{Kind: sensor.KindPitchRoll, Values: map[string]float64{"pitch": 2, "roll": -12.5}},
			[]string{"YXXDR", "A", "2.0", "D", "PTCH", "A", "-12.5", "D", "ROLL"},
		},
		{
			"主机转速",
			"RPM",
			sensor.Reading{Kind: sensor.KindEngine, Instance: 1, Values: map[string]float64{"rpm": 1850}},
			[]string{"ERRPM", "E", "1", "1850.0", "", "A"},
		},
		{
			"舵角",
			"RSA",
			sensor.Reading{Kind: sensor.KindRudder, Values: map[string]float64{"angle": -5.0}},
			[]string{"AGRSA", "-5.0", "A", "", "V"},
		},
		{
			"转向率",
			"ROT",
			sensor.Reading{Kind: sensor.KindRateOfTurn, Values: map[string]float64{"rate": 35}},
			[]string{"TIROT", "35.0", "A"},
		},
		{
			"水温",
			"MTW",
			sensor.Reading{Kind: sensor.KindTemperature, Values: map[string]float64{"temperature": 18}, Props: map[string]any{"location": "water"}},
			[]string{"YXMTW", "18.0", "C"},
		},
		{
			"对水航速",
			"VHW",
			sensor.Reading{Kind: sensor.KindSpeed, Values: map[string]float64{"stw": 6.5}},
			[]string{"VWVHW", "", "T", "", "M", "6.5", "N", "12.0", "K"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss, err := enc.Sentences(tt.tag, tt.r)
			require.NoError(t, err)
			require.Len(t, ss, 1)
			assert.Equal(t, tt.want, fieldsOf(t, ss[0]))
		})
	}

	ss, err := enc.Sentences("MTW", sensor.Reading{Kind: sensor.KindTemperature, Values: map[string]float64{"temperature": 18}, Props: map[string]any{"location": "air"}})
	require.NoError(t, err)
	assert.Empty(t, ss, "非水温不发送 MTW")
}

func TestTalkerOverrideAndUnsupported(t *testing.T) {
	enc := NewEncoder(nil)
	r := sensor.Reading{Kind: sensor.KindDepth, Talker: "II", Values: map[string]float64{"depth": 1}}
	ss, err := enc.Sentences("dbt", r)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(ss[0]), "$IIDBT,"))

	_, err = enc.Sentences("ZZZ", r)
	assert.ErrorIs(t, err, ErrUnsupportedSentence)
	assert.False(t, enc.Supports("ZZZ"))
	assert.True(t, enc.Supports("hdg"))
}

// 每个注册类型的全部语句都能通过校验和回算
func TestChecksumRoundTripAllKinds(t *testing.T) {
	enc := NewEncoder(nil)
	values := map[string]float64{
		"depth": 12.3, "stw": 5, "sog": 5.2, "heading": 181, "speed": 14, "angle": 45,
		"altitude": 10, "satellites": 9, "hdop": 1.1, "deviation": 1, "variation": -3,
		"temperature": 15, "pressure": 1009, "rpm": 2200, "oil_pressure": 350, "coolant_temperature": 82,
		"oil_temperature": 95.2, "alternator_voltage": 14.12, "boost_pressure": 110, "tilt": 10,
		"fuel_rate": 12.5, "hours": 1234.5,
		"voltage": 12.7, "current": 3, "level": 40, "rate": -12, "pitch": 1, "roll": 3, "yaw": 0.4,
	}
	for _, k := range sensor.Kinds() {
		entry, err := sensor.Lookup(string(k))
		require.NoError(t, err)
		r := sensor.Reading{
			Kind:     k,
			Time:     fixedTime(),
			Values:   values,
			Position: &pattern.Position{Lat: 50.1, Lon: -4.2, COG: 270, SOG: 6},
		}
		for _, tag := range entry.Sentences() {
			t.Run(string(k)+"/"+tag, func(t *testing.T) {
				out, err := enc.Encode(tag, r)
				require.NoError(t, err)
				require.NotEmpty(t, out)
				for _, b := range out {
					assert.True(t, strings.HasSuffix(string(b), "\r\n"))
					assert.LessOrEqual(t, len(b), MaxSentenceLength, string(b))
					s := Sentence(b)
					assert.Equal(t, tag, s.Tag())
					require.NoError(t, Verify(s))
				}
			})
		}
	}
}

func TestCoordRounding(t *testing.T) {
	lat, dir := coord(10.99999999, true)
	assert.Equal(t, "1100.0000", lat)
	assert.Equal(t, "N", dir)

	lon, _ := coord(200, false)
	assert.Equal(t, "", lon, "越界视为不可用")
}
