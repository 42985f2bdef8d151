// Package sensor 传感器类型注册表：抽象传感器类型到各线协议目标（语句/PGN）及物理属性定义的映射。
//
// 协议映射以数据表形式维护，新增协议只需在 Entry.Protocols 中增加一列。
package sensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind 抽象传感器类型
type Kind string

const (
	KindDepth       Kind = "depth"
	KindSpeed       Kind = "speed"
	KindWind        Kind = "wind"
	KindGPS         Kind = "gps"
	KindHeading     Kind = "heading"
	KindTemperature Kind = "temperature"
	KindPressure    Kind = "pressure"
	KindEngine      Kind = "engine"
	KindBattery     Kind = "battery"
	KindTank        Kind = "tank"
	KindRudder      Kind = "rudder"
	KindRateOfTurn  Kind = "rate_of_turn"
	KindPitchRoll   Kind = "pitch_roll"
)

// Protocol 线协议
type Protocol string

const (
	ProtocolNMEA0183 Protocol = "nmea0183"
	ProtocolNMEA2000 Protocol = "nmea2000"
)

var (
	// ErrUnknownSensorType 注册表中不存在的传感器类型
	ErrUnknownSensorType = errors.New("unknown sensor type")
	// ErrUnknownProperty 该类型未定义的物理属性
	ErrUnknownProperty = errors.New("unknown physical property")
	// ErrPropertyValue 物理属性取值非法
	ErrPropertyValue = errors.New("invalid physical property value")
)

// Field 传感器输出的数据字段
type Field struct {
	Name     string
	Unit     string
	Optional bool
}

// PropertyType 物理属性取值类型
type PropertyType string

const (
	PropertyNumber PropertyType = "number"
	PropertyString PropertyType = "string"
	PropertyEnum   PropertyType = "enum"
)

// Property 物理属性定义
type Property struct {
	Name    string
	Type    PropertyType
	Values  []string // enum 可选值
	Min     *float64
	Max     *float64
	Aliases []string // 历史别名，读取时映射到 Name
}

// Entry 注册表条目
type Entry struct {
	Kind       Kind
	Talker     string                // NMEA 0183 默认 talker ID
	Protocols  map[Protocol][]string // 协议 -> 目标列表（语句标识或 PGN）
	Fields     []Field
	Properties []Property
}

func bound(v float64) *float64 { return &v }

var registry = map[Kind]Entry{
	KindDepth: {
		Kind:   KindDepth,
		Talker: "SD",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"DBT", "DPT", "DBK"},
			ProtocolNMEA2000: {"128267"},
		},
		Fields: []Field{{Name: "depth", Unit: "m"}},
		Properties: []Property{
			{Name: "offset", Type: PropertyNumber, Min: bound(-100), Max: bound(100)},
			{Name: "keel_offset", Type: PropertyNumber, Min: bound(0), Max: bound(30)},
			{Name: "max_range", Type: PropertyNumber, Min: bound(0), Max: bound(10000)},
		},
	},
	KindSpeed: {
		Kind:   KindSpeed,
		Talker: "VW",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"VHW"},
			ProtocolNMEA2000: {"128259"},
		},
		Fields: []Field{
			{Name: "stw", Unit: "kn"},
			{Name: "sog", Unit: "kn", Optional: true},
			{Name: "heading", Unit: "deg", Optional: true},
		},
		Properties: []Property{
			{Name: "sensor_type", Type: PropertyEnum, Values: []string{"paddle_wheel", "pitot", "doppler", "correlation", "electromagnetic"}},
		},
	},
	KindWind: {
		Kind:   KindWind,
		Talker: "WI",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"MWV"},
			ProtocolNMEA2000: {"130306"},
		},
		Fields: []Field{{Name: "speed", Unit: "kn"}, {Name: "angle", Unit: "deg"}},
		Properties: []Property{
			{Name: "reference", Type: PropertyEnum, Values: []string{"apparent", "true"}},
			{Name: "mast_height", Type: PropertyNumber, Min: bound(0), Max: bound(100)},
		},
	},
	KindGPS: {
		Kind:   KindGPS,
		Talker: "GP",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"GGA", "RMC", "VTG", "GLL"},
			ProtocolNMEA2000: {"129029", "129025", "129026"},
		},
		Fields: []Field{
			{Name: "position", Unit: "deg"},
			{Name: "altitude", Unit: "m", Optional: true},
			{Name: "satellites", Unit: "count", Optional: true},
			{Name: "hdop", Unit: "", Optional: true},
		},
		Properties: []Property{
			{Name: "fix_quality", Type: PropertyNumber, Min: bound(0), Max: bound(8)},
			{Name: "geoidal_separation", Type: PropertyNumber, Min: bound(-200), Max: bound(200)},
			{Name: "magnetic_variation", Type: PropertyNumber, Min: bound(-180), Max: bound(180)},
		},
	},
	KindHeading: {
		Kind:   KindHeading,
		Talker: "HC",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"HDG", "HDT"},
			ProtocolNMEA2000: {"127250"},
		},
		Fields: []Field{
			{Name: "heading", Unit: "deg"},
			{Name: "deviation", Unit: "deg", Optional: true},
			{Name: "variation", Unit: "deg", Optional: true},
		},
		Properties: []Property{
			{Name: "variation", Type: PropertyNumber, Min: bound(-180), Max: bound(180)},
			{Name: "deviation", Type: PropertyNumber, Min: bound(-180), Max: bound(180)},
		},
	},
	KindTemperature: {
		Kind:   KindTemperature,
		Talker: "YX",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"MTW", "XDR"},
			ProtocolNMEA2000: {"130310", "130311", "130312"},
		},
		Fields: []Field{{Name: "temperature", Unit: "C"}},
		Properties: []Property{
			{Name: "location", Type: PropertyEnum, Values: []string{"water", "air", "engine_room", "cabin", "refrigeration", "exhaust"}},
		},
	},
	KindPressure: {
		Kind:   KindPressure,
		Talker: "YX",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"XDR"},
			ProtocolNMEA2000: {"130311", "130314"},
		},
		Fields: []Field{{Name: "pressure", Unit: "hPa"}},
		Properties: []Property{
			{Name: "location", Type: PropertyEnum, Values: []string{"atmospheric", "water", "steam", "compressed_air", "hydraulic"}},
		},
	},
	KindEngine: {
		Kind:   KindEngine,
		Talker: "ER",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"RPM", "XDR"},
			ProtocolNMEA2000: {"127488", "127489"},
		},
		Fields: []Field{
			{Name: "rpm", Unit: "rpm"},
			{Name: "boost_pressure", Unit: "kPa", Optional: true},
			{Name: "tilt", Unit: "%", Optional: true},
			{Name: "oil_pressure", Unit: "kPa", Optional: true},
			{Name: "oil_temperature", Unit: "C", Optional: true},
			{Name: "coolant_temperature", Unit: "C", Optional: true},
			{Name: "alternator_voltage", Unit: "V", Optional: true},
			{Name: "fuel_rate", Unit: "L/h", Optional: true},
			{Name: "hours", Unit: "h", Optional: true},
		},
		Properties: []Property{
			{Name: "max_rpm", Type: PropertyNumber, Min: bound(0), Max: bound(20000)},
			{Name: "pitch", Type: PropertyNumber, Min: bound(-100), Max: bound(100)},
		},
	},
	KindBattery: {
		Kind:   KindBattery,
		Talker: "YX",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"XDR"},
			ProtocolNMEA2000: {"127508"},
		},
		Fields: []Field{
			{Name: "voltage", Unit: "V"},
			{Name: "current", Unit: "A", Optional: true},
			{Name: "temperature", Unit: "C", Optional: true},
		},
		Properties: []Property{
			{Name: "chemistry", Type: PropertyEnum, Values: []string{"lead_acid", "agm", "gel", "lithium", "nimh"}},
			{Name: "capacity_ah", Type: PropertyNumber, Min: bound(0), Max: bound(100000)},
			{Name: "nominal_voltage", Type: PropertyNumber, Min: bound(0), Max: bound(1000)},
		},
	},
	KindTank: {
		Kind:   KindTank,
		Talker: "YX",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"XDR"},
			ProtocolNMEA2000: {"127505"},
		},
		Fields: []Field{{Name: "level", Unit: "%"}},
		Properties: []Property{
			{
				Name:    "fluid_type",
				Type:    PropertyEnum,
				Values:  []string{"fuel", "fresh_water", "waste_water", "live_well", "oil", "black_water", "gasoline"},
				Aliases: []string{"tank_type"},
			},
			{Name: "capacity", Type: PropertyNumber, Min: bound(0), Max: bound(1000000)},
		},
	},
	KindRudder: {
		Kind:   KindRudder,
		Talker: "AG",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"RSA"},
			ProtocolNMEA2000: {"127245"},
		},
		Fields: []Field{{Name: "angle", Unit: "deg"}, {Name: "order", Unit: "deg", Optional: true}},
		Properties: []Property{
			{Name: "max_angle", Type: PropertyNumber, Min: bound(0), Max: bound(90)},
		},
	},
	KindRateOfTurn: {
		Kind:   KindRateOfTurn,
		Talker: "TI",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"ROT"},
			ProtocolNMEA2000: {"127251"},
		},
		Fields: []Field{{Name: "rate", Unit: "deg/min"}},
	},
	KindPitchRoll: {
		Kind:   KindPitchRoll,
		Talker: "YX",
		Protocols: map[Protocol][]string{
			ProtocolNMEA0183: {"XDR"},
			ProtocolNMEA2000: {"127257"},
		},
		Fields: []Field{
			{Name: "pitch", Unit: "deg"},
			{Name: "roll", Unit: "deg"},
			{Name: "yaw", Unit: "deg", Optional: true},
		},
	},
}

var kindOrder = []Kind{
	KindDepth, KindSpeed, KindWind, KindGPS, KindHeading, KindTemperature, KindPressure,
	KindEngine, KindBattery, KindTank, KindRudder, KindRateOfTurn, KindPitchRoll,
}

// Lookup 按类型查找注册表条目（忽略大小写），不存在时返回 ErrUnknownSensorType
func Lookup(kind string) (Entry, error) {
	e, ok := registry[Kind(strings.ToLower(strings.TrimSpace(kind)))]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownSensorType, kind)
	}
	return e, nil
}

// Kinds 返回全部已注册类型（顺序稳定）
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// Targets 返回指定协议的目标列表
func (e Entry) Targets(p Protocol) []string {
	return e.Protocols[p]
}

// Sentences NMEA 0183 语句标识
func (e Entry) Sentences() []string {
	return e.Protocols[ProtocolNMEA0183]
}

// PGNs NMEA 2000 参数组编号
func (e Entry) PGNs() []uint32 {
	targets := e.Protocols[ProtocolNMEA2000]
	out := make([]uint32, 0, len(targets))
	for _, t := range targets {
		n, err := strconv.ParseUint(t, 10, 32)
		if err != nil {
			continue
		}
		out = append(out, uint32(n))
	}
	return out
}

// HasField 该类型是否产生指定数据字段
func (e Entry) HasField(name string) bool {
	for _, f := range e.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// FieldNames 数据字段名列表
func (e Entry) FieldNames() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Property 按名称或别名查找属性；alias 为 true 表示通过别名匹配
func (e Entry) Property(name string) (p Property, alias bool, ok bool) {
	for _, prop := range e.Properties {
		if prop.Name == name {
			return prop, false, true
		}
		for _, a := range prop.Aliases {
			if a == name {
				return prop, true, true
			}
		}
	}
	return Property{}, false, false
}

// CheckProperty 校验单个物理属性，返回规范名称
func (e Entry) CheckProperty(name string, value any) (canonical string, alias bool, err error) {
	p, alias, ok := e.Property(name)
	if !ok {
		return name, false, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, e.Kind, name)
	}
	return p.Name, alias, p.Check(value)
}

// Check 校验属性取值
func (p Property) Check(value any) error {
	switch p.Type {
	case PropertyNumber:
		v, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%w: %s must be a number", ErrPropertyValue, p.Name)
		}
		if p.Min != nil && v < *p.Min || p.Max != nil && v > *p.Max {
			return fmt.Errorf("%w: %s out of range [%g, %g]", ErrPropertyValue, p.Name, deref(p.Min), deref(p.Max))
		}
	case PropertyEnum:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s must be one of %s", ErrPropertyValue, p.Name, strings.Join(p.Values, "|"))
		}
		for _, allowed := range p.Values {
			if strings.EqualFold(allowed, s) {
				return nil
			}
		}
		return fmt.Errorf("%w: %s must be one of %s", ErrPropertyValue, p.Name, strings.Join(p.Values, "|"))
	case PropertyString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: %s must be a string", ErrPropertyValue, p.Name)
		}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
