package pattern

import (
	"fmt"
	"math"
	"time"
)

type leg struct {
	from, to Waypoint
	start    float64 // 秒
	dur      float64 // 秒
	speed    float64 // kn
}

// route great_circle / waypoint_sequence / gps_track：沿有序航点按时间插值位置，
// 由相邻两次定位推导 COG/SOG。
type route struct {
	spec   Spec
	legs   []leg
	begin  float64
	end    float64
	interp interpolator
	err    error
}

func newRoute(s Spec, interp interpolator) Generator {
	r := route{spec: s, interp: interp}
	r.legs, r.err = buildLegs(s)
	if len(r.legs) > 0 {
		r.begin = r.legs[0].start
		last := r.legs[len(r.legs)-1]
		r.end = last.start + last.dur
	}
	return r
}

func validateRoute(s Spec) error {
	_, err := buildLegs(s)
	return err
}

func buildLegs(s Spec) ([]leg, error) {
	wps := s.Waypoints
	if len(wps) == 0 {
		return nil, fmt.Errorf("%w: %s requires at least one waypoint", ErrInvalidParameter, s.Type)
	}
	for i, w := range wps {
		if w.Lat < -90 || w.Lat > 90 || w.Lon < -180 || w.Lon > 180 {
			return nil, fmt.Errorf("%w: waypoint %d out of range (%.6f, %.6f)", ErrInvalidParameter, i, w.Lat, w.Lon)
		}
	}
	if len(wps) == 1 {
		return nil, nil
	}
	if s.Type == TypeGPSTrack {
		return trackLegs(wps)
	}
	points := wps
	if s.Loop {
		points = append(append([]Waypoint{}, wps...), wps[0])
	}
	legs := make([]leg, 0, len(points)-1)
	start := 0.0
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		speed := a.Speed
		if speed <= 0 {
			speed = s.Speed
		}
		if speed <= 0 {
			return nil, fmt.Errorf("%w: leg %d has no positive speed", ErrInvalidParameter, i)
		}
		dist := DistanceNM(a.Lat, a.Lon, b.Lat, b.Lon)
		dur := dist / speed * 3600
		legs = append(legs, leg{from: a, to: b, start: start, dur: dur, speed: speed})
		start += dur
	}
	return legs, nil
}

func trackLegs(wps []Waypoint) ([]leg, error) {
	legs := make([]leg, 0, len(wps)-1)
	for i := 0; i+1 < len(wps); i++ {
		a, b := wps[i], wps[i+1]
		if a.Time == nil || b.Time == nil {
			return nil, fmt.Errorf("%w: gps_track waypoint %d missing time", ErrInvalidParameter, i)
		}
		dur := *b.Time - *a.Time
		if dur <= 0 {
			return nil, fmt.Errorf("%w: gps_track times must increase (waypoint %d)", ErrInvalidParameter, i+1)
		}
		dist := DistanceNM(a.Lat, a.Lon, b.Lat, b.Lon)
		legs = append(legs, leg{from: a, to: b, start: *a.Time, dur: dur, speed: dist / dur * 3600})
	}
	return legs, nil
}

func (g route) Spec() Spec { return g.spec }

func (g route) Sample(t time.Duration, st State) (Sample, State, error) {
	if g.err != nil {
		return Sample{}, st, g.err
	}
	if st.HasPrev && t == st.PrevAt {
		p := st.Prev
		return Sample{Position: &p}, st, nil
	}

	cur, l, moving := g.locate(t.Seconds(), &st)
	if math.IsNaN(cur.Lat) || math.IsNaN(cur.Lon) {
		return Sample{}, st, ErrNumericOverflow
	}

	switch {
	case st.HasPrev && t > st.PrevAt:
		dt := (t - st.PrevAt).Hours()
		dist := DistanceNM(st.Prev.Lat, st.Prev.Lon, cur.Lat, cur.Lon)
		cur.SOG = dist / dt
		if dist > 1e-9 {
			cur.COG = InitialBearing(st.Prev.Lat, st.Prev.Lon, cur.Lat, cur.Lon)
		} else {
			cur.COG = st.Prev.COG
		}
	case l != nil && moving:
		cur.SOG = l.speed
		cur.COG = InitialBearing(cur.Lat, cur.Lon, l.to.Lat, l.to.Lon)
	}

	st.Prev, st.PrevAt, st.HasPrev = cur, t, true
	p := cur
	return Sample{Position: &p}, st, nil
}

// locate 返回 tt 时刻位置、所在航段以及是否仍在航行
func (g route) locate(tt float64, st *State) (Position, *leg, bool) {
	if len(g.legs) == 0 {
		w := g.spec.Waypoints[0]
		return Position{Lat: w.Lat, Lon: w.Lon}, nil, false
	}
	total := g.end - g.begin
	if g.spec.Loop && total > 0 && tt >= g.begin {
		tt = g.begin + math.Mod(tt-g.begin, total)
	}
	if tt <= g.begin {
		l := &g.legs[0]
		return Position{Lat: l.from.Lat, Lon: l.from.Lon}, l, tt == g.begin
	}
	if tt >= g.end {
		l := &g.legs[len(g.legs)-1]
		return Position{Lat: l.to.Lat, Lon: l.to.Lon}, l, false
	}

	i := st.Leg
	if i < 0 || i >= len(g.legs) || g.legs[i].start > tt {
		i = 0
	}
	for i < len(g.legs)-1 && tt >= g.legs[i].start+g.legs[i].dur {
		i++
	}
	st.Leg = i
	l := &g.legs[i]
	f := 0.0
	if l.dur > 0 {
		f = (tt - l.start) / l.dur
	}
	lat, lon := g.interp(l.from, l.to, math.Max(0, math.Min(1, f)))
	return Position{Lat: lat, Lon: lon}, l, true
}
