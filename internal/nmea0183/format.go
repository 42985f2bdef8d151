package nmea0183

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	feetPerMeter    = 3.280839895
	fathomsPerMeter = 0.546806649
	kmhPerKnot      = 1.852
	barPerHPa       = 0.001
	barPerKPa       = 0.01
)

// num 定点小数；不可用时返回空字段
func num(v float64, ok bool, decimals int) string {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// angle 角度取值 [0,360)
func angle(v float64, ok bool, decimals int) string {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	// 先按字段精度舍入再归一化，359.97 输出 0.0 而不是 360.0
	scale := math.Pow(10, float64(decimals))
	return num(Normalize360(math.Round(Normalize360(v)*scale)/scale), true, decimals)
}

// Normalize360 将角度归一化到 [0,360)
func Normalize360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 || d == 0 {
		d = 0 // 同时消除 -0
	}
	return d
}

// eastWest 带符号角度转为数值+E/W（东为正），保留 1 位小数
func eastWest(v float64, ok bool) (string, string) {
	if !ok || math.IsNaN(v) {
		return "", ""
	}
	if v < 0 {
		return num(-v, true, 1), "W"
	}
	return num(v, true, 1), "E"
}

// coord 十进制度转 ddmm.mmmm / dddmm.mmmm 与半球字母；越界视为不可用
func coord(dec float64, isLat bool) (string, string) {
	limit := 180.0
	if isLat {
		limit = 90
	}
	if math.IsNaN(dec) || math.Abs(dec) > limit {
		return "", ""
	}
	dir := "N"
	if !isLat {
		dir = "E"
	}
	if dec < 0 {
		dec = -dec
		if isLat {
			dir = "S"
		} else {
			dir = "W"
		}
	}
	deg := int(dec)
	minutes := (dec - float64(deg)) * 60
	// 四舍五入到 4 位后可能进位到 60'
	if math.Round(minutes*1e4) >= 60*1e4 {
		deg++
		minutes = 0
	}
	if isLat {
		return fmt.Sprintf("%02d%07.4f", deg, minutes), dir
	}
	return fmt.Sprintf("%03d%07.4f", deg, minutes), dir
}

// utcTime hhmmss.ss
func utcTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	return fmt.Sprintf("%02d%02d%02d.%02d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1e7)
}

// utcDate ddmmyy
func utcDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("020106")
}

func status(ok bool) string {
	if ok {
		return "A"
	}
	return "V"
}
