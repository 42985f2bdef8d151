package engine

import (
	"time"

	"github.com/taoyao-code/marine-sim/internal/stream"
)

// 节拍失败阶段
const (
	StageGeneration = "generation"
	StageEncoding   = "encoding"
	StagePanic      = "panic"
)

// Observer 运行指标回调，由 metrics 包实现
type Observer interface {
	MessageEmitted(p stream.Protocol)
	TickFailed(stage string)
	VirtualTime(total time.Duration)
	Looped()
}

type nopObserver struct{}

func (nopObserver) MessageEmitted(stream.Protocol) {}
func (nopObserver) TickFailed(string)              {}
func (nopObserver) VirtualTime(time.Duration)      {}
func (nopObserver) Looped()                        {}
