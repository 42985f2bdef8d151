package pattern

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

// State 生成器的可变运行状态。
// 由调度器持有并按值传入/返回，便于快照与恢复。
type State struct {
	rng    rand.PCG
	seeded bool

	// random_walk
	Walking bool
	Value   float64
	At      time.Duration

	// 航线类
	Leg     int
	HasPrev bool
	Prev    Position
	PrevAt  time.Duration
}

// NewState 以给定种子创建状态
func NewState(seed uint64) State {
	st := State{}
	st.reseed(seed)
	return st
}

// SeedFor 根据字符串键派生稳定种子
func SeedFor(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func (st *State) reseed(seed uint64) {
	st.rng = *rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)
	st.seeded = true
}

// ensureSeed 模式定义了 seed 时优先使用；否则沿用调度器给定的种子
func (st *State) ensureSeed(spec Spec) {
	if spec.Seed != nil && !st.seeded {
		st.reseed(uint64(*spec.Seed))
		return
	}
	if !st.seeded {
		st.reseed(SeedFor(spec.Key()))
	}
}

// uniform 返回 (0,1] 区间均匀分布
func (st *State) uniform() float64 {
	return (float64(st.rng.Uint64()>>11) + 1) / (1 << 53)
}

// normal Box–Muller 变换得到标准正态分布
func (st *State) normal() float64 {
	u1 := st.uniform()
	u2 := st.uniform()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
