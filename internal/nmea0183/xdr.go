package nmea0183

import (
	"strconv"
	"strings"

	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// measurement XDR 四元组：类型,数值,单位,名称
type measurement struct {
	typ   string
	unit  string
	name  string
	field string
	scale float64
	dec   int
}

// buildXDR 通用换能器语句；可选字段仅在采样中出现时输出
func buildXDR(r sensor.Reading) [][]string {
	n := strconv.Itoa(int(r.Instance))
	var required, optional []measurement

	switch r.Kind {
	case sensor.KindTemperature:
		name := strings.ToUpper(r.Text("location"))
		if name == "" {
			name = "TEMP"
		}
		required = []measurement{{typ: "C", unit: "C", name: name + n, field: "temperature", scale: 1, dec: 1}}
	case sensor.KindPressure:
		name := "BARO"
		if loc := r.Text("location"); loc != "" && loc != "atmospheric" {
			name = strings.ToUpper(loc)
		}
		required = []measurement{{typ: "P", unit: "B", name: name + n, field: "pressure", scale: barPerHPa, dec: 4}}
	case sensor.KindEngine:
		optional = []measurement{
			{typ: "P", unit: "B", name: "ENGOILP" + n, field: "oil_pressure", scale: barPerKPa, dec: 2},
			{typ: "C", unit: "C", name: "ENGOILT" + n, field: "oil_temperature", scale: 1, dec: 1},
			{typ: "C", unit: "C", name: "ENGTEMP" + n, field: "coolant_temperature", scale: 1, dec: 1},
			{typ: "U", unit: "V", name: "ALTVOLT" + n, field: "alternator_voltage", scale: 1, dec: 2},
			{typ: "P", unit: "B", name: "ENGBOOST" + n, field: "boost_pressure", scale: barPerKPa, dec: 2},
		}
	case sensor.KindBattery:
		required = []measurement{{typ: "U", unit: "V", name: "BATV" + n, field: "voltage", scale: 1, dec: 2}}
		optional = []measurement{
			{typ: "I", unit: "A", name: "BATI" + n, field: "current", scale: 1, dec: 1},
			{typ: "C", unit: "C", name: "BATT" + n, field: "temperature", scale: 1, dec: 1},
		}
	case sensor.KindTank:
		name := strings.ToUpper(r.Text("fluid_type"))
		if name == "" {
			name = "TANK"
		}
		required = []measurement{{typ: "V", unit: "P", name: name + n, field: "level", scale: 1, dec: 1}}
	case sensor.KindPitchRoll:
		required = []measurement{
			{typ: "A", unit: "D", name: "PTCH", field: "pitch", scale: 1, dec: 1},
			{typ: "A", unit: "D", name: "ROLL", field: "roll", scale: 1, dec: 1},
		}
		optional = []measurement{{typ: "A", unit: "D", name: "YAW", field: "yaw", scale: 1, dec: 1}}
	default:
		return nil
	}

	var quads [][]string
	emit := func(m measurement) {
		v, ok := r.Value(m.field)
		quads = append(quads, []string{m.typ, num(v*m.scale, ok, m.dec), m.unit, m.name})
	}
	for _, m := range required {
		emit(m)
	}
	for _, m := range optional {
		if _, present := r.Values[m.field]; present {
			emit(m)
		}
	}
	return packXDR(quads)
}

// xdrOverhead "$ttXDR" 与 "*HH\r\n"
const xdrOverhead = 1 + 2 + 3 + 5

// packXDR 按 MaxSentenceLength 将四元组分装到多条语句
func packXDR(quads [][]string) [][]string {
	var rows [][]string
	var cur []string
	size := xdrOverhead
	for _, q := range quads {
		n := 0
		for _, f := range q {
			n += 1 + len(f)
		}
		if len(cur) > 0 && size+n > MaxSentenceLength {
			rows = append(rows, cur)
			cur, size = nil, xdrOverhead
		}
		cur = append(cur, q...)
		size += n
	}
	if len(cur) > 0 {
		rows = append(rows, cur)
	}
	return rows
}
