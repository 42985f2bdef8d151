package pattern

import (
	"math"
	"time"
)

// gaussian 正态噪声：mean + std_dev·N(0,1)（Box–Muller）
type gaussian struct{ spec Spec }

func (g gaussian) Spec() Spec { return g.spec }

func (g gaussian) Sample(_ time.Duration, st State) (Sample, State, error) {
	st.ensureSeed(g.spec)
	mean := g.spec.Base
	if g.spec.Mean != nil {
		mean = *g.spec.Mean
	}
	v := mean + g.spec.StdDev*st.normal()
	s, err := finite(g.spec.clamp(v))
	return s, st, err
}

// randomWalk 有界扩散：每次推进 step·√dt·N(0,1)，在 [min,max] 内反射。
// 同一时刻重复调用不会再次推进，因此同一定义可被多个传感器共享。
type randomWalk struct{ spec Spec }

func (g randomWalk) Spec() Spec { return g.spec }

func (g randomWalk) Sample(t time.Duration, st State) (Sample, State, error) {
	st.ensureSeed(g.spec)
	if !st.Walking || t < st.At {
		st.Walking = true
		st.Value = g.start()
		st.At = t
		s, err := finite(st.Value)
		return s, st, err
	}
	if t > st.At {
		dt := (t - st.At).Seconds()
		st.Value = g.reflect(st.Value + g.step()*math.Sqrt(dt)*st.normal())
		st.At = t
	}
	s, err := finite(st.Value)
	return s, st, err
}

func (g randomWalk) start() float64 {
	v := g.spec.Base
	if g.spec.Min != nil && g.spec.Max != nil && (v < *g.spec.Min || v > *g.spec.Max) {
		v = (*g.spec.Min + *g.spec.Max) / 2
	}
	return g.spec.clamp(v)
}

func (g randomWalk) step() float64 {
	if g.spec.Step > 0 {
		return g.spec.Step
	}
	if g.spec.Min != nil && g.spec.Max != nil {
		return (*g.spec.Max - *g.spec.Min) / 100
	}
	return 0.1
}

func (g randomWalk) reflect(v float64) float64 {
	lo, hi := g.spec.Min, g.spec.Max
	for i := 0; i < 4; i++ {
		switch {
		case lo != nil && v < *lo:
			v = 2*(*lo) - v
		case hi != nil && v > *hi:
			v = 2*(*hi) - v
		default:
			return v
		}
	}
	return g.spec.clamp(v)
}
