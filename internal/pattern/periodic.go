package pattern

import (
	"math"
	"time"
)

// shape 将周期内相位 frac ∈ [0,1) 映射为 [-1,1]
type shape func(frac, duty float64) float64

func sineShape(frac, _ float64) float64 { return math.Sin(2 * math.Pi * frac) }

func sawtoothShape(frac, _ float64) float64 { return 2*frac - 1 }

func triangleShape(frac, _ float64) float64 { return 1 - 4*math.Abs(frac-0.5) }

func squareShape(frac, duty float64) float64 {
	if duty <= 0 {
		duty = 0.5
	}
	if frac < duty {
		return 1
	}
	return -1
}

// periodic sine_wave / sawtooth / triangle / square：base + amplitude·shape(t/period)
type periodic struct {
	spec  Spec
	shape shape
}

func (g periodic) Spec() Spec { return g.spec }

func (g periodic) Sample(t time.Duration, st State) (Sample, State, error) {
	p, err := g.spec.period()
	if err != nil {
		return Sample{}, st, err
	}
	var v float64
	if g.spec.Type == TypeSineWave {
		// 直接计算，避免取模带来的精度损失
		v = g.spec.Base + g.spec.Amplitude*math.Sin(2*math.Pi*seconds(t)/p+g.spec.Phase)
	} else {
		frac := seconds(t)/p + g.spec.Phase/(2*math.Pi)
		frac -= math.Floor(frac)
		v = g.spec.Base + g.spec.Amplitude*g.shape(frac, g.spec.DutyCycle)
	}
	s, err := finite(g.spec.clamp(v))
	return s, st, err
}

// tidal 潮汐：以潮汐周期/潮差为包络的正弦，受 floor/ceiling 约束
type tidal struct{ spec Spec }

func (g tidal) Spec() Spec { return g.spec }

func (g tidal) Sample(t time.Duration, st State) (Sample, State, error) {
	p := g.spec.TidalPeriod
	if p <= 0 {
		p = g.spec.Period
	}
	if p <= 0 {
		p = DefaultTidalPeriod
	}
	rng := g.spec.TidalRange
	if rng == 0 {
		rng = 2 * g.spec.Amplitude
	}
	v := g.spec.Base + rng/2*math.Sin(2*math.Pi*seconds(t)/p+g.spec.Phase)
	if g.spec.Floor != nil && v < *g.spec.Floor {
		v = *g.spec.Floor
	}
	if g.spec.Ceiling != nil && v > *g.spec.Ceiling {
		v = *g.spec.Ceiling
	}
	s, err := finite(g.spec.clamp(v))
	return s, st, err
}

// linear linear / linear_increase / linear_decline：base + rate·t，可选上下界
type linear struct {
	spec Spec
	sign int
}

func (g linear) Spec() Spec { return g.spec }

func (g linear) Sample(t time.Duration, st State) (Sample, State, error) {
	rate := g.spec.Rate
	switch g.sign {
	case 1:
		rate = math.Abs(rate)
	case -1:
		rate = -math.Abs(rate)
	}
	s, err := finite(g.spec.clamp(g.spec.Base + rate*seconds(t)))
	return s, st, err
}
