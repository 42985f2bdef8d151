package nmea2000

import (
	"math"
	"time"

	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// 已支持的 PGN
const (
	PGNRudder              uint32 = 127245
	PGNVesselHeading       uint32 = 127250
	PGNRateOfTurn          uint32 = 127251
	PGNAttitude            uint32 = 127257
	PGNEngineRapid         uint32 = 127488
	PGNEngineDynamic       uint32 = 127489
	PGNFluidLevel          uint32 = 127505
	PGNBatteryStatus       uint32 = 127508
	PGNSpeed               uint32 = 128259
	PGNWaterDepth          uint32 = 128267
	PGNPositionRapid       uint32 = 129025
	PGNCOGSOGRapid         uint32 = 129026
	PGNGNSSPosition        uint32 = 129029
	PGNWindData            uint32 = 130306
	PGNEnvironmental       uint32 = 130310
	PGNEnvironmentalParams uint32 = 130311
	PGNTemperature         uint32 = 130312
	PGNActualPressure      uint32 = 130314
)

// layout 单个 PGN 的默认优先级、名称与载荷构造
type layout struct {
	name     string
	priority uint8
	build    func(r sensor.Reading, sid uint8) []byte
}

var layouts = map[uint32]layout{
	PGNRudder:              {"Rudder", 2, buildRudder},
	PGNVesselHeading:       {"Vessel Heading", 2, buildVesselHeading},
	PGNRateOfTurn:          {"Rate of Turn", 2, buildRateOfTurn},
	PGNAttitude:            {"Attitude", 3, buildAttitude},
	PGNEngineRapid:         {"Engine Parameters, Rapid Update", 2, buildEngineRapid},
	PGNEngineDynamic:       {"Engine Parameters, Dynamic", 2, buildEngineDynamic},
	PGNFluidLevel:          {"Fluid Level", 6, buildFluidLevel},
	PGNBatteryStatus:       {"Battery Status", 6, buildBatteryStatus},
	PGNSpeed:               {"Speed", 2, buildSpeed},
	PGNWaterDepth:          {"Water Depth", 3, buildWaterDepth},
	PGNPositionRapid:       {"Position, Rapid Update", 2, buildPositionRapid},
	PGNCOGSOGRapid:         {"COG & SOG, Rapid Update", 2, buildCOGSOGRapid},
	PGNGNSSPosition:        {"GNSS Position Data", 3, buildGNSSPosition},
	PGNWindData:            {"Wind Data", 2, buildWindData},
	PGNEnvironmental:       {"Environmental Parameters (obsolete)", 5, buildEnvironmental},
	PGNEnvironmentalParams: {"Environmental Parameters", 5, buildEnvironmentalParams},
	PGNTemperature:         {"Temperature", 5, buildTemperature},
	PGNActualPressure:      {"Actual Pressure", 5, buildActualPressure},
}

// Name PGN 名称
func Name(pgn uint32) string {
	if l, ok := layouts[pgn]; ok {
		return l.name
	}
	return ""
}

// 温度来源（PGN 130311 / 130312）
var temperatureSource = map[string]uint8{
	"water":         0,
	"air":           1,
	"cabin":         4,
	"engine_room":   3,
	"refrigeration": 7,
	"exhaust":       14,
}

// 压力来源（PGN 130314）
var pressureSource = map[string]uint8{
	"atmospheric":    0,
	"water":          1,
	"steam":          2,
	"compressed_air": 3,
	"hydraulic":      4,
}

// 液体类型（PGN 127505）
var fluidType = map[string]uint8{
	"fuel":        0,
	"fresh_water": 1,
	"waste_water": 2,
	"live_well":   3,
	"oil":         4,
	"black_water": 5,
	"gasoline":    6,
}

// 对水航速传感器类型（PGN 128259）
var speedReference = map[string]uint8{
	"paddle_wheel":    0,
	"pitot":           1,
	"doppler":         2,
	"correlation":     3,
	"electromagnetic": 4,
}

func lookupCode(m map[string]uint8, key string, na uint8) uint8 {
	if v, ok := m[key]; ok {
		return v
	}
	return na
}

// angle0To2Pi 无符号角度先归一化到 [0,360) 再转弧度
func angle0To2Pi(x value) value {
	if !x.ok {
		return none
	}
	return some(normalize360(x.v) * radPerDeg)
}

func normalize360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// signedAngle 有符号角度 [-180,180] 转弧度
func signedAngle(x value) value {
	return x.within(-180, 180).scale(radPerDeg)
}

func knots(x value) value { return x.scale(msPerKnot) }

func kelvin(x value) value { return x.offset(kelvinOffset) }

// 128267 Water Depth：SID, depth u32 0.01 m, offset i16 0.001 m, range u8 10 m
func buildWaterDepth(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	p.u32(val(r.Value("depth")).nonNegative(), 0.01)
	p.i16(val(r.Number("offset")).orZero(), 0.001)
	p.u8(val(r.Number("max_range")), 10)
	return p.bytes()
}

// 128259 Speed：SID, STW u16 0.01 m/s, SOG u16 0.01 m/s, reference u8, direction 4 bits, reserved
func buildSpeed(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	p.u16(knots(val(r.Value("stw"))).nonNegative(), 0.01)
	p.u16(knots(val(r.Value("sog"))).nonNegative(), 0.01)
	p.raw(lookupCode(speedReference, r.Text("sensor_type"), 0))
	p.raw(0xF0) // 航速方向：前进
	p.reserved(1)
	return p.bytes()
}

// 130306 Wind Data：SID, speed u16 0.01 m/s, angle u16 1e-4 rad, reference 3 bits
func buildWindData(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	p.u16(knots(val(r.Value("speed"))).nonNegative(), 0.01)
	p.u16(angle0To2Pi(val(r.Value("angle"))), 1e-4)
	ref := byte(2) // apparent
	if r.Text("reference") == "true" {
		ref = 3 // true, boat referenced
	}
	p.raw(0xF8 | ref)
	p.reserved(2)
	return p.bytes()
}

// 129025 Position, Rapid Update：lat/lon i32 1e-7°
func buildPositionRapid(r sensor.Reading, _ uint8) []byte {
	p := newPayload(8)
	lat, lon := latLon(r)
	p.i32(lat, 1e-7)
	p.i32(lon, 1e-7)
	return p.bytes()
}

// 129026 COG & SOG, Rapid Update：SID, reference 2 bits (true), COG u16 1e-4 rad, SOG u16 0.01 m/s
func buildCOGSOGRapid(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	p.raw(0xFC) // true
	cog, sog := none, none
	if r.Position != nil {
		cog, sog = some(r.Position.COG), some(r.Position.SOG)
	}
	p.u16(angle0To2Pi(cog), 1e-4)
	p.u16(knots(sog).nonNegative(), 0.01)
	p.reserved(2)
	return p.bytes()
}

// 129029 GNSS Position Data。
// 基础字段 43 字节，另附两个参考站槽位（不可用填充），共 51 字节，以快速包发送。
func buildGNSSPosition(r sensor.Reading, sid uint8) []byte {
	p := newPayload(51)
	p.raw(sid)
	if r.Time.IsZero() {
		p.rawU16(NAUint16)
		p.rawU32(NAUint32)
	} else {
		t := r.Time.UTC()
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		p.rawU16(uint16(midnight.Unix() / 86400))
		p.rawU32(uint32(t.Sub(midnight) / (100 * time.Microsecond)))
	}
	lat, lon := latLon(r)
	p.i64(lat, 1e-16)
	p.i64(lon, 1e-16)
	p.i64(val(r.Value("altitude")), 1e-6)

	method := byte(0) // no GNSS
	if lat.ok {
		method = 1 // GNSS fix
		if q, ok := r.Number("fix_quality"); ok && q >= 0 && q <= 8 {
			method = byte(q)
		}
	}
	p.raw(method << 4) // 低 4 位类型：GPS
	p.raw(0xFC)        // integrity: no checking
	p.u8(val(r.Value("satellites")).nonNegative(), 1)
	p.i16(val(r.Value("hdop")), 0.01)
	p.i16(none, 0.01) // PDOP
	p.i32(val(r.Number("geoidal_separation")), 0.01)

	const stations = 2
	p.raw(stations)
	for i := 0; i < stations; i++ {
		p.rawU16(NAUint16) // type 4 bits + id 12 bits
		p.rawU16(NAUint16) // age of DGNSS corrections
	}
	return p.bytes()
}

// 127250 Vessel Heading：SID, heading u16, deviation i16, variation i16（1e-4 rad），reference 磁
func buildVesselHeading(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	p.u16(angle0To2Pi(val(r.Value("heading"))), 1e-4)
	p.i16(signedAngle(val(r.Number("deviation"))), 1e-4)
	p.i16(signedAngle(val(r.Number("variation"))), 1e-4)
	p.raw(0xFC | 1)
	return p.bytes()
}

// 127251 Rate of Turn：SID, rate i32 3.125e-8 rad/s（输入为 °/min）
func buildRateOfTurn(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	p.i32(val(r.Value("rate")).scale(radPerDeg/60), 3.125e-8)
	p.reserved(3)
	return p.bytes()
}

// 127257 Attitude：SID, yaw/pitch/roll i16 1e-4 rad
func buildAttitude(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	p.i16(signedAngle(val(r.Value("yaw"))), 1e-4)
	p.i16(signedAngle(val(r.Value("pitch"))), 1e-4)
	p.i16(signedAngle(val(r.Value("roll"))), 1e-4)
	p.reserved(1)
	return p.bytes()
}

// 130310 Environmental Parameters (obsolete)：SID, water temp, outside air temp u16 0.01 K, pressure u16 hPa
func buildEnvironmental(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	water, air := none, none
	if r.Kind == sensor.KindTemperature {
		switch r.Text("location") {
		case "", "water":
			water = val(r.Value("temperature"))
		case "air":
			air = val(r.Value("temperature"))
		}
	}
	p.u16(kelvin(water), 0.01)
	p.u16(kelvin(air), 0.01)
	p.u16(atmospheric(r), 1)
	p.reserved(1)
	return p.bytes()
}

// 130311 Environmental Parameters：SID, source 6 bits + humidity source 2 bits, temp, humidity, pressure
func buildEnvironmentalParams(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid)
	src, temp := byte(0x3F), none
	if r.Kind == sensor.KindTemperature {
		src = lookupCode(temperatureSource, r.Text("location"), 0)
		temp = val(r.Value("temperature"))
	}
	p.raw(0xC0 | src&0x3F) // 湿度来源不可用
	p.u16(kelvin(temp), 0.01)
	p.i16(none, 0.004)
	p.u16(atmospheric(r), 1)
	return p.bytes()
}

// 130312 Temperature：SID, instance, source, actual u16 0.01 K, set u16 0.01 K
func buildTemperature(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid, r.Instance, lookupCode(temperatureSource, r.Text("location"), 0))
	p.u16(kelvin(val(r.Value("temperature"))), 0.01)
	p.rawU16(NAUint16)
	p.reserved(1)
	return p.bytes()
}

// 130314 Actual Pressure：SID, instance, source, pressure i32 0.1 Pa
func buildActualPressure(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(sid, r.Instance, lookupCode(pressureSource, r.Text("location"), 0))
	p.i32(val(r.Value("pressure")).scale(paPerHPa), 0.1)
	p.reserved(1)
	return p.bytes()
}

// 127488 Engine Parameters, Rapid Update：instance, speed u16 0.25 rpm, boost u16 100 Pa, tilt i8 1%
func buildEngineRapid(r sensor.Reading, _ uint8) []byte {
	p := newPayload(8)
	p.raw(r.Instance)
	p.u16(val(r.Value("rpm")).nonNegative(), 0.25)
	p.u16(val(r.Value("boost_pressure")).scale(paPerKPa), 100)
	p.i8(val(r.Value("tilt")), 1)
	p.reserved(2)
	return p.bytes()
}

// 127489 Engine Parameters, Dynamic（26 字节，快速包）
func buildEngineDynamic(r sensor.Reading, _ uint8) []byte {
	p := newPayload(26)
	p.raw(r.Instance)
	p.u16(val(r.Value("oil_pressure")).scale(paPerKPa), 100)
	p.u16(kelvin(val(r.Value("oil_temperature"))), 0.1)
	p.u16(kelvin(val(r.Value("coolant_temperature"))), 0.01)
	p.i16(val(r.Value("alternator_voltage")), 0.01)
	p.i16(val(r.Value("fuel_rate")), 0.1)
	p.u32(val(r.Value("hours")).scale(3600), 1)
	p.u16(none, 100)  // coolant pressure
	p.u16(none, 1000) // fuel pressure
	p.reserved(1)
	p.rawU16(0)   // discrete status 1
	p.rawU16(0)   // discrete status 2
	p.i8(none, 1) // load
	p.i8(none, 1) // torque
	return p.bytes()
}

// 127508 Battery Status：instance, voltage u16 0.01 V, current i16 0.1 A, temp u16 0.01 K, SID
func buildBatteryStatus(r sensor.Reading, sid uint8) []byte {
	p := newPayload(8)
	p.raw(r.Instance)
	p.u16(val(r.Value("voltage")), 0.01)
	p.i16(val(r.Value("current")), 0.1)
	p.u16(kelvin(val(r.Value("temperature"))), 0.01)
	p.raw(sid)
	return p.bytes()
}

// 127505 Fluid Level：instance 4 bits + type 4 bits, level i16 0.004 %, capacity u32 0.1 L
func buildFluidLevel(r sensor.Reading, _ uint8) []byte {
	p := newPayload(8)
	typ := lookupCode(fluidType, r.Text("fluid_type"), 0)
	p.raw(r.Instance&0x0F | typ<<4)
	p.i16(val(r.Value("level")).within(0, 100), 0.004)
	p.u32(val(r.Number("capacity")), 0.1)
	p.reserved(1)
	return p.bytes()
}

// 127245 Rudder：instance, direction order, angle order i16 1e-4 rad, position i16 1e-4 rad（右舷为正）
func buildRudder(r sensor.Reading, _ uint8) []byte {
	p := newPayload(8)
	p.raw(r.Instance, 0xFF)
	p.i16(signedAngle(val(r.Value("order"))), 1e-4)
	p.i16(signedAngle(val(r.Value("angle"))), 1e-4)
	p.reserved(2)
	return p.bytes()
}

func latLon(r sensor.Reading) (lat, lon value) {
	if r.Position == nil {
		return none, none
	}
	ok := r.Position.Lat >= -90 && r.Position.Lat <= 90 && r.Position.Lon >= -180 && r.Position.Lon <= 180
	return val(r.Position.Lat, ok), val(r.Position.Lon, ok)
}

// atmospheric 气压（hPa），仅气压类传感器且位置为大气
func atmospheric(r sensor.Reading) value {
	if r.Kind != sensor.KindPressure {
		return none
	}
	if loc := r.Text("location"); loc != "" && loc != "atmospheric" {
		return none
	}
	return val(r.Value("pressure"))
}
