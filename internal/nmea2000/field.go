package nmea2000

import (
	"encoding/binary"
	"math"
)

// 不可用哨兵值
const (
	NAUint8  = 0xFF
	NAUint16 = 0xFFFF
	NAUint32 = 0xFFFFFFFF
	NAInt8   = 0x7F
	NAInt16  = 0x7FFF
	NAInt32  = 0x7FFFFFFF
	NAInt64  = 0x7FFFFFFFFFFFFFFF
)

// 单位换算
const (
	radPerDeg    = math.Pi / 180
	msPerKnot    = 1852.0 / 3600.0
	kelvinOffset = 273.15
	paPerHPa     = 100.0
	paPerKPa     = 1000.0
)

// value 可能不可用的物理量
type value struct {
	v  float64
	ok bool
}

func val(v float64, ok bool) value { return value{v: v, ok: ok} }

func some(v float64) value { return value{v: v, ok: true} }

var none = value{}

func (x value) scale(f float64) value { return value{v: x.v * f, ok: x.ok} }

func (x value) offset(d float64) value { return value{v: x.v + d, ok: x.ok} }

func (x value) nonNegative() value { return value{v: x.v, ok: x.ok && x.v >= 0} }

func (x value) within(lo, hi float64) value {
	return value{v: x.v, ok: x.ok && x.v >= lo && x.v <= hi}
}

func (x value) orZero() value {
	if !x.ok {
		return some(0)
	}
	return x
}

// payload 小端字段写入器。
// 数值先按分辨率量化；不可用、NaN 或超出有效范围时写入对应宽度的哨兵值。
type payload struct {
	b []byte
}

func newPayload(size int) *payload {
	return &payload{b: make([]byte, 0, size)}
}

func (p *payload) bytes() []byte { return p.b }

func (p *payload) raw(b ...byte) { p.b = append(p.b, b...) }

func (p *payload) reserved(n int) {
	for i := 0; i < n; i++ {
		p.b = append(p.b, 0xFF)
	}
}

// quantize 返回 round(v/res)，并检查是否落在 [lo, hi]
func quantize(x value, res float64, lo, hi float64) (float64, bool) {
	if !x.ok || math.IsNaN(x.v) || math.IsInf(x.v, 0) {
		return 0, false
	}
	q := math.Round(x.v / res)
	if q < lo || q > hi {
		return 0, false
	}
	return q, true
}

// 无符号字段保留最高两个码值（错误/不可用）
func (p *payload) u8(x value, res float64) {
	q, ok := quantize(x, res, 0, NAUint8-2)
	if !ok {
		p.b = append(p.b, NAUint8)
		return
	}
	p.b = append(p.b, uint8(q))
}

func (p *payload) u16(x value, res float64) {
	q, ok := quantize(x, res, 0, NAUint16-2)
	if !ok {
		p.b = binary.LittleEndian.AppendUint16(p.b, NAUint16)
		return
	}
	p.b = binary.LittleEndian.AppendUint16(p.b, uint16(q))
}

func (p *payload) u32(x value, res float64) {
	q, ok := quantize(x, res, 0, NAUint32-2)
	if !ok {
		p.b = binary.LittleEndian.AppendUint32(p.b, NAUint32)
		return
	}
	p.b = binary.LittleEndian.AppendUint32(p.b, uint32(q))
}

func (p *payload) i8(x value, res float64) {
	q, ok := quantize(x, res, math.MinInt8, NAInt8-2)
	if !ok {
		p.b = append(p.b, NAInt8)
		return
	}
	p.b = append(p.b, byte(int8(q)))
}

func (p *payload) i16(x value, res float64) {
	q, ok := quantize(x, res, math.MinInt16, NAInt16-2)
	if !ok {
		p.b = binary.LittleEndian.AppendUint16(p.b, NAInt16)
		return
	}
	p.b = binary.LittleEndian.AppendUint16(p.b, uint16(int16(q)))
}

func (p *payload) i32(x value, res float64) {
	q, ok := quantize(x, res, math.MinInt32, NAInt32-2)
	if !ok {
		p.b = binary.LittleEndian.AppendUint32(p.b, NAInt32)
		return
	}
	p.b = binary.LittleEndian.AppendUint32(p.b, uint32(int32(q)))
}

// i64 以 float64 量化会损失低位精度，纬度 1e-16° 下误差远小于 1e-9°
func (p *payload) i64(x value, res float64) {
	q, ok := quantize(x, res, math.MinInt64, math.MaxInt64/2)
	if !ok {
		p.b = binary.LittleEndian.AppendUint64(p.b, NAInt64)
		return
	}
	p.b = binary.LittleEndian.AppendUint64(p.b, uint64(int64(q)))
}

func (p *payload) rawU16(v uint16) { p.b = binary.LittleEndian.AppendUint16(p.b, v) }

func (p *payload) rawU32(v uint32) { p.b = binary.LittleEndian.AppendUint32(p.b, v) }
