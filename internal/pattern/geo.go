package pattern

import "math"

// EarthRadiusNM 地球平均半径（海里）
const EarthRadiusNM = 3440.065

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }

func normalizeLon(lon float64) float64 {
	for lon >= 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func normalize360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// DistanceNM 两点大圆距离（haversine，海里）
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dPhi := phi2 - phi1
	dLam := toRad(lon2 - lon1)
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLam/2)*math.Sin(dLam/2)
	return 2 * EarthRadiusNM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// InitialBearing 初始真方位角（度，[0,360)）
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dLam := toRad(lon2 - lon1)
	y := math.Sin(dLam) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLam)
	return normalize360(toDeg(math.Atan2(y, x)))
}

type interpolator func(a, b Waypoint, f float64) (lat, lon float64)

// interpolateGreatCircle 大圆插值
func interpolateGreatCircle(a, b Waypoint, f float64) (float64, float64) {
	phi1, lam1 := toRad(a.Lat), toRad(a.Lon)
	phi2, lam2 := toRad(b.Lat), toRad(b.Lon)
	d := DistanceNM(a.Lat, a.Lon, b.Lat, b.Lon) / EarthRadiusNM
	if d < 1e-12 {
		return a.Lat, a.Lon
	}
	A := math.Sin((1-f)*d) / math.Sin(d)
	B := math.Sin(f*d) / math.Sin(d)
	x := A*math.Cos(phi1)*math.Cos(lam1) + B*math.Cos(phi2)*math.Cos(lam2)
	y := A*math.Cos(phi1)*math.Sin(lam1) + B*math.Cos(phi2)*math.Sin(lam2)
	z := A*math.Sin(phi1) + B*math.Sin(phi2)
	return toDeg(math.Atan2(z, math.Sqrt(x*x+y*y))), normalizeLon(toDeg(math.Atan2(y, x)))
}

// interpolateLinear 经纬度线性插值（短航段近似），处理跨越180°经线
func interpolateLinear(a, b Waypoint, f float64) (float64, float64) {
	dLon := b.Lon - a.Lon
	if dLon > 180 {
		dLon -= 360
	} else if dLon < -180 {
		dLon += 360
	}
	return a.Lat + (b.Lat-a.Lat)*f, normalizeLon(a.Lon + dLon*f)
}
