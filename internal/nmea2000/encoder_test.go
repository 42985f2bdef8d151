package nmea2000

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/marine-sim/internal/pattern"
	"github.com/taoyao-code/marine-sim/internal/sensor"
)

func TestBuildID(t *testing.T) {
	tests := []struct {
		name   string
		header Header
		want   uint32
	}{
		{"PDU2 水深", Header{Priority: 3, PGN: PGNWaterDepth, Source: 0x23, Destination: BroadcastAddress}, 0x0DF50B23},
		{"PDU1 请求", Header{Priority: 6, PGN: 59904, Source: 0x01, Destination: 0x20}, 0x18EA2001},
		{"最低优先级", Header{Priority: 7, PGN: PGNGNSSPosition, Source: 0}, 0x1DF80500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := BuildID(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.LessOrEqual(t, id, uint32(0x1FFFFFFF))

			back, err := ParseID(id)
			require.NoError(t, err)
			assert.Equal(t, tt.header.PGN, back.PGN)
			assert.Equal(t, tt.header.Priority, back.Priority)
			assert.Equal(t, tt.header.Source, back.Source)
		})
	}

	_, err := BuildID(Header{Priority: 8, PGN: PGNWaterDepth})
	assert.ErrorIs(t, err, ErrInvalidPriority)
	for _, src := range []uint8{253, 254, 255} {
		_, err = BuildID(Header{Priority: 2, PGN: PGNWaterDepth, Source: src})
		assert.ErrorIs(t, err, ErrInvalidSource)
	}
	_, err = BuildID(Header{PGN: 0x40000})
	assert.ErrorIs(t, err, ErrInvalidPGN)
	_, err = ParseID(0x20000000)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestFrameMarshal(t *testing.T) {
	f := Frame{ID: 0x0DF50B23, Data: []byte{1, 2, 3}}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0D, 0xF5, 0x0B, 0x23, 3, 1, 2, 3}, b)

	back, n, err := UnmarshalFrame(append(b, 0xAA))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, f, back)

	_, err = Frame{ID: 1, Data: make([]byte, 9)}.MarshalBinary()
	assert.ErrorIs(t, err, ErrFrameTooLong)

	_, _, err = UnmarshalFrame([]byte{0, 0, 0, 1, 4, 1})
	assert.ErrorIs(t, err, ErrFrameTooShort)
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1}, {8, 1}, {9, 2}, {13, 2}, {14, 3}, {26, 4}, {51, 8}, {223, 32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FrameCount(tt.n), "n=%d", tt.n)
	}
}

func TestSegmentLayout(t *testing.T) {
	for n := 9; n <= MaxFastPacketPayload; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		seq := uint8(n % SequenceModulo)
		frames, err := Segment(payload, seq)
		require.NoError(t, err)

		want := int(math.Ceil(float64(n-6)/7)) + 1
		require.Len(t, frames, want, "n=%d", n)
		assert.Equal(t, byte(n), frames[0][1], "首帧携带总长度")

		for i, fr := range frames {
			require.Len(t, fr, 8)
			assert.Equal(t, byte(i%8), fr[0]&0x07, "低 3 位为帧计数")
			assert.Equal(t, seq, fr[0]>>3, "高 5 位为序列号")
		}
		used := 6 + 7*(len(frames)-1) - n
		last := frames[len(frames)-1]
		for i := 8 - used; i < 8; i++ {
			assert.Equal(t, byte(0xFF), last[i], "末帧填充 0xFF")
		}

		back, gotSeq, err := Reassemble(frames)
		require.NoError(t, err)
		assert.Equal(t, payload, back)
		assert.Equal(t, seq, gotSeq)
	}

	_, err := Segment(make([]byte, 8), 0)
	assert.ErrorIs(t, err, ErrPayloadSize)
	_, err = Segment(make([]byte, 224), 0)
	assert.ErrorIs(t, err, ErrPayloadSize)
	_, err = Segment(make([]byte, 20), 32)
	assert.ErrorIs(t, err, ErrSequenceRange)
}

func TestReassembleRejectsDisorder(t *testing.T) {
	frames, err := Segment(make([]byte, 30), 5)
	require.NoError(t, err)
	frames[1], frames[2] = frames[2], frames[1]
	_, _, err = Reassemble(frames)
	assert.ErrorIs(t, err, ErrFastPacket)
}

func gpsReading() sensor.Reading {
	return sensor.Reading{
		Kind:     sensor.KindGPS,
		Source:   10,
		Time:     time.Date(2024, 6, 1, 12, 35, 19, 0, time.UTC),
		Position: &pattern.Position{Lat: 50.123456789, Lon: -4.987654321, COG: 270, SOG: 6},
		Values:   map[string]float64{"altitude": 12.5, "satellites": 9, "hdop": 0.8},
	}
}

func TestGNSSPositionFastPacket(t *testing.T) {
	enc := NewEncoder(zaptest.NewLogger(t))
	seq := NewCounters()

	out, err := enc.Encode(PGNGNSSPosition, gpsReading(), seq)
	require.NoError(t, err)
	multi, ok := out.(Multi)
	require.True(t, ok, "51 字节载荷应为快速包")
	require.Len(t, multi.Frames, 8)
	assert.Equal(t, byte(51), multi.Frames[0].Data[1])

	raw := make([][]byte, len(multi.Frames))
	for i, f := range multi.Frames {
		raw[i] = f.Data
		h, err := ParseID(f.ID)
		require.NoError(t, err)
		assert.Equal(t, PGNGNSSPosition, h.PGN)
		assert.Equal(t, uint8(10), h.Source)
		assert.Equal(t, uint8(3), h.Priority)
	}
	payload, _, err := Reassemble(raw)
	require.NoError(t, err)
	require.Len(t, payload, 51)

	assert.Equal(t, uint16(19875), binary.LittleEndian.Uint16(payload[1:3]), "1970 年起的天数")
	assert.Equal(t, uint32(453190000), binary.LittleEndian.Uint32(payload[3:7]), "午夜起 0.0001 s")
	lat := float64(int64(binary.LittleEndian.Uint64(payload[7:15]))) * 1e-16
	lon := float64(int64(binary.LittleEndian.Uint64(payload[15:23]))) * 1e-16
	alt := float64(int64(binary.LittleEndian.Uint64(payload[23:31]))) * 1e-6
	assert.InDelta(t, 50.123456789, lat, 1e-9)
	assert.InDelta(t, -4.987654321, lon, 1e-9)
	assert.InDelta(t, 12.5, alt, 1e-6)
	assert.Equal(t, byte(0x10), payload[31], "GPS + GNSS fix")
	assert.Equal(t, byte(9), payload[33])
	assert.Equal(t, uint16(80), binary.LittleEndian.Uint16(payload[34:36]))
	assert.Equal(t, byte(2), payload[42], "两个参考站槽位")

	bytes, err := Marshal(out)
	require.NoError(t, err)
	require.Len(t, bytes, 8)
	assert.Len(t, bytes[0], 13)
}

func TestSequencePerPGN(t *testing.T) {
	enc := NewEncoder(nil)
	seq := NewCounters()
	r := gpsReading()

	for i := 0; i < 33; i++ {
		out, err := enc.Encode(PGNGNSSPosition, r, seq)
		require.NoError(t, err)
		assert.Equal(t, uint8(i%32), out.(Multi).Sequence)
	}

	eng := sensor.Reading{Kind: sensor.KindEngine, Values: map[string]float64{"rpm": 1500}}
	out, err := enc.Encode(PGNEngineDynamic, eng, seq)
	require.NoError(t, err)
	multi := out.(Multi)
	assert.Equal(t, uint8(0), multi.Sequence, "不同 PGN 独立计数")
	assert.Len(t, multi.Frames, 4)

	snap := seq.Clone()
	seq.Next(PGNEngineDynamic, 0)
	assert.NotEqual(t, snap[PGNEngineDynamic<<8], seq[PGNEngineDynamic<<8])
}

func TestSingleFramePGNs(t *testing.T) {
	enc := NewEncoder(nil)
	r := sensor.Reading{
		Position: &pattern.Position{Lat: 1, Lon: 2, COG: 10, SOG: 3},
		Values: map[string]float64{
			"depth": 5, "stw": 4, "speed": 10, "angle": 30, "heading": 10, "temperature": 20,
			"pressure": 1013, "rpm": 900, "voltage": 12, "level": 50, "rate": 10, "pitch": 1, "roll": 2,
		},
	}
	for _, pgn := range Supported() {
		if pgn == PGNGNSSPosition || pgn == PGNEngineDynamic {
			continue
		}
		t.Run(Name(pgn), func(t *testing.T) {
			data, err := enc.Payload(pgn, r, 0)
			require.NoError(t, err)
			assert.Len(t, data, 8)

			out, err := enc.Encode(pgn, r, nil)
			require.NoError(t, err)
			single, ok := out.(Single)
			require.True(t, ok)
			assert.Len(t, single.Frame.Data, 8)
			assert.Len(t, out.List(), 1)
		})
	}
}

func TestFieldLayouts(t *testing.T) {
	enc := NewEncoder(nil)
	tests := []struct {
		name string
		pgn  uint32
		r    sensor.Reading
		want []byte
	}{
		{
			"水深 0.01 m",
			PGNWaterDepth,
			sensor.Reading{Kind: sensor.KindDepth, Values: map[string]float64{"depth": 12.34}, Props: map[string]any{"offset": 0.5}},
			[]byte{0x00, 0xD2, 0x04, 0x00, 0x00, 0xF4, 0x01, 0xFF},
		},
		{
			"水深不可用",
			PGNWaterDepth,
			sensor.Reading{Kind: sensor.KindDepth, Values: map[string]float64{"depth": math.NaN()}},
			[]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0xFF},
		},
		{
			"航向与磁差",
			PGNVesselHeading,
			sensor.Reading{Kind: sensor.KindHeading, Values: map[string]float64{"heading": 90, "variation": -3}},
			[]byte{0x00, 0x5C, 0x3D, 0xFF, 0x7F, 0xF4, 0xFD, 0xFD},
		},
		{
			"油箱液位",
			PGNFluidLevel,
			sensor.Reading{Kind: sensor.KindTank, Instance: 1, Values: map[string]float64{"level": 50}, Props: map[string]any{"fluid_type": "oil", "capacity": 200.0}},
			[]byte{0x41, 0xD4, 0x30, 0xD0, 0x07, 0x00, 0x00, 0xFF},
		},
		{
			"电池",
			PGNBatteryStatus,
			sensor.Reading{Kind: sensor.KindBattery, Instance: 2, Values: map[string]float64{"voltage": 12.5, "current": -1.5}},
			[]byte{0x02, 0xE2, 0x04, 0xF1, 0xFF, 0xFF, 0xFF, 0x00},
		},
		{
			"主机快速参数",
			PGNEngineRapid,
			sensor.Reading{Kind: sensor.KindEngine, Values: map[string]float64{"rpm": 1000}},
			[]byte{0x00, 0xA0, 0x0F, 0xFF, 0xFF, 0x7F, 0xFF, 0xFF},
		},
		{
			"视风",
			PGNWindData,
			sensor.Reading{Kind: sensor.KindWind, Values: map[string]float64{"speed": math.Inf(1), "angle": 360}},
			[]byte{0x00, 0xFF, 0xFF, 0x00, 0x00, 0xFA, 0xFF, 0xFF},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := enc.Encode(tt.pgn, tt.r, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.List()[0].Data)
		})
	}
}

func TestUnsupportedPGN(t *testing.T) {
	enc := NewEncoder(nil)
	_, err := enc.Encode(12345, sensor.Reading{}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedPGN)
	assert.False(t, enc.Supports(12345))

	_, err = enc.Encode(PGNWaterDepth, sensor.Reading{Source: 254}, nil)
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestPriorityOverride(t *testing.T) {
	enc := NewEncoder(nil, WithPriority(PGNWaterDepth, 6))
	out, err := enc.Encode(PGNWaterDepth, sensor.Reading{Values: map[string]float64{"depth": 1}}, nil)
	require.NoError(t, err)
	h, err := ParseID(out.List()[0].ID)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), h.Priority)
}

func TestRegistryPGNsAreSupported(t *testing.T) {
	enc := NewEncoder(nil)
	for _, k := range sensor.Kinds() {
		e, err := sensor.Lookup(string(k))
		require.NoError(t, err)
		for _, pgn := range e.PGNs() {
			assert.True(t, enc.Supports(pgn), "%s -> %d", k, pgn)
		}
	}
}
