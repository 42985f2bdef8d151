package nmea0183

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// builder 将采样转换为一条或多条语句的字段列表；返回 nil 表示本次不发送
type builder func(r sensor.Reading) [][]string

// Encoder NMEA 0183 编码器
type Encoder struct {
	logger   *zap.Logger
	builders map[string]builder
}

// NewEncoder 创建编码器
func NewEncoder(logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{
		logger: logger,
		builders: map[string]builder{
			"DBT": buildDBT,
			"DPT": buildDPT,
			"DBK": buildDBK,
			"VHW": buildVHW,
			"MWV": buildMWV,
			"GGA": buildGGA,
			"RMC": buildRMC,
			"VTG": buildVTG,
			"GLL": buildGLL,
			"HDG": buildHDG,
			"HDT": buildHDT,
			"MTW": buildMTW,
			"XDR": buildXDR,
			"RPM": buildRPM,
			"RSA": buildRSA,
			"ROT": buildROT,
		},
	}
}

// Supports 是否支持该语句
func (e *Encoder) Supports(tag string) bool {
	_, ok := e.builders[strings.ToUpper(tag)]
	return ok
}

// Sentences 按语句类型编码；一次采样可能产生 0..N 条语句
func (e *Encoder) Sentences(tag string, r sensor.Reading) ([]Sentence, error) {
	tag = strings.ToUpper(tag)
	b, ok := e.builders[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSentence, tag)
	}
	talker := r.Talker
	if talker == "" {
		if entry, err := sensor.Lookup(string(r.Kind)); err == nil {
			talker = entry.Talker
		}
	}
	if len(talker) != 2 {
		talker = "II"
	}
	rows := b(r)
	out := make([]Sentence, 0, len(rows))
	for _, fields := range rows {
		out = append(out, Build('$', talker, tag, fields...))
	}
	return out, nil
}

// Encode 编码为线格式字节
func (e *Encoder) Encode(tag string, r sensor.Reading) ([][]byte, error) {
	ss, err := e.Sentences(tag, r)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = s.Bytes()
	}
	return out, nil
}

func one(fields ...string) [][]string { return [][]string{fields} }

func depthTriple(m float64, ok bool) []string {
	return []string{
		num(m*feetPerMeter, ok, 1), "f",
		num(m, ok, 1), "M",
		num(m*fathomsPerMeter, ok, 1), "F",
	}
}

func validDepth(r sensor.Reading) (float64, bool) {
	d, ok := r.Value("depth")
	return d, ok && d >= 0
}

// DBT 换能器下水深
func buildDBT(r sensor.Reading) [][]string {
	d, ok := validDepth(r)
	return [][]string{depthTriple(d, ok)}
}

// DPT 水深 + 换能器偏移 + 量程
func buildDPT(r sensor.Reading) [][]string {
	d, ok := validDepth(r)
	off, offOK := r.Number("offset")
	if !offOK {
		off, offOK = 0, ok
	}
	rng, rngOK := r.Number("max_range")
	return one(num(d, ok, 1), num(off, offOK, 1), num(rng, rngOK, 0))
}

// DBK 龙骨下水深
func buildDBK(r sensor.Reading) [][]string {
	d, ok := validDepth(r)
	keel, _ := r.Number("keel_offset")
	d -= keel
	return [][]string{depthTriple(d, ok && d >= 0)}
}

func buildVHW(r sensor.Reading) [][]string {
	stw, ok := r.Value("stw")
	hdg, hdgOK := r.Value("heading")
	return one(
		angle(hdg, hdgOK, 1), "T",
		"", "M",
		num(stw, ok, 1), "N",
		num(stw*kmhPerKnot, ok, 1), "K",
	)
}

func buildMWV(r sensor.Reading) [][]string {
	ang, angOK := r.Value("angle")
	spd, spdOK := r.Value("speed")
	ref := "R"
	if r.Text("reference") == "true" {
		ref = "T"
	}
	spdOK = spdOK && spd >= 0
	return one(angle(ang, angOK, 1), ref, num(spd, spdOK, 1), "N", status(angOK && spdOK))
}

func position(r sensor.Reading) (lat, latDir, lon, lonDir string, ok bool) {
	if r.Position == nil {
		return "", "", "", "", false
	}
	lat, latDir = coord(r.Position.Lat, true)
	lon, lonDir = coord(r.Position.Lon, false)
	return lat, latDir, lon, lonDir, lat != "" && lon != ""
}

func courseSpeed(r sensor.Reading) (cog, sog float64, ok bool) {
	if r.Position == nil {
		return 0, 0, false
	}
	return r.Position.COG, r.Position.SOG, r.Position.SOG >= 0
}

func buildGGA(r sensor.Reading) [][]string {
	lat, latDir, lon, lonDir, ok := position(r)
	quality := "0"
	if ok {
		quality = "1"
		if q, qOK := r.Number("fix_quality"); qOK {
			quality = strconv.Itoa(int(q))
		}
	}
	sats := ""
	if n, nOK := r.Value("satellites"); nOK && n >= 0 {
		sats = fmt.Sprintf("%02d", int(n))
	}
	hdop, hdopOK := r.Value("hdop")
	alt, altOK := r.Value("altitude")
	geoid, geoidOK := r.Number("geoidal_separation")
	return one(
		utcTime(r.Time), lat, latDir, lon, lonDir, quality, sats,
		num(hdop, hdopOK, 1),
		num(alt, altOK, 1), "M",
		num(geoid, geoidOK, 1), "M",
		"", "",
	)
}

func buildRMC(r sensor.Reading) [][]string {
	lat, latDir, lon, lonDir, ok := position(r)
	cog, sog, csOK := courseSpeed(r)
	csOK = csOK && ok
	variation, vDir := eastWest(r.Number("magnetic_variation"))
	mode := "N"
	if ok {
		mode = "A"
	}
	return one(
		utcTime(r.Time), status(ok), lat, latDir, lon, lonDir,
		num(sog, csOK, 1), angle(cog, csOK, 1),
		utcDate(r.Time), variation, vDir, mode,
	)
}

func buildVTG(r sensor.Reading) [][]string {
	cog, sog, ok := courseSpeed(r)
	mode := "N"
	if ok {
		mode = "A"
	}
	return one(
		angle(cog, ok, 1), "T",
		"", "M",
		num(sog, ok, 1), "N",
		num(sog*kmhPerKnot, ok, 1), "K",
		mode,
	)
}

func buildGLL(r sensor.Reading) [][]string {
	lat, latDir, lon, lonDir, ok := position(r)
	mode := "N"
	if ok {
		mode = "A"
	}
	return one(lat, latDir, lon, lonDir, utcTime(r.Time), status(ok), mode)
}

func buildHDG(r sensor.Reading) [][]string {
	hdg, ok := r.Value("heading")
	dev, devDir := eastWest(r.Number("deviation"))
	variation, vDir := eastWest(r.Number("variation"))
	return one(angle(hdg, ok, 1), dev, devDir, variation, vDir)
}

// HDT 真航向 = 磁航向 + 磁差；磁差未知时不发送
func buildHDT(r sensor.Reading) [][]string {
	variation, ok := r.Number("variation")
	if !ok {
		return nil
	}
	hdg, hdgOK := r.Value("heading")
	return one(angle(hdg+variation, hdgOK, 1), "T")
}

// MTW 仅用于水温
func buildMTW(r sensor.Reading) [][]string {
	if loc := r.Text("location"); loc != "" && loc != "water" {
		return nil
	}
	t, ok := r.Value("temperature")
	return one(num(t, ok, 1), "C")
}

func buildRPM(r sensor.Reading) [][]string {
	rpm, ok := r.Value("rpm")
	pitch, pitchOK := r.Number("pitch")
	return one("E", strconv.Itoa(int(r.Instance)), num(rpm, ok, 1), num(pitch, pitchOK, 1), status(ok))
}

// RSA 单舵：右舷传感器字段有效，左舷字段置空
func buildRSA(r sensor.Reading) [][]string {
	a, ok := r.Value("angle")
	ok = ok && a >= -90 && a <= 90
	return one(num(a, ok, 1), status(ok), "", "V")
}

func buildROT(r sensor.Reading) [][]string {
	rate, ok := r.Value("rate")
	return one(num(rate, ok, 1), status(ok))
}
