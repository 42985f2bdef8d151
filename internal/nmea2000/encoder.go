package nmea2000

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// ErrUnsupportedPGN 不支持的 PGN
var ErrUnsupportedPGN = errors.New("unsupported pgn")

// Encoder NMEA 2000 编码器。
// 本身无状态，快速包序列号由调用方传入的 Sequencer 分配。
type Encoder struct {
	logger     *zap.Logger
	priorities map[uint32]uint8
}

// Option 编码器选项
type Option func(*Encoder)

// WithPriority 覆盖 PGN 默认优先级
func WithPriority(pgn uint32, prio uint8) Option {
	return func(e *Encoder) { e.priorities[pgn] = prio }
}

// NewEncoder 创建编码器
func NewEncoder(logger *zap.Logger, opts ...Option) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Encoder{logger: logger, priorities: make(map[uint32]uint8)}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Supported 已支持的 PGN（升序）
func Supported() []uint32 {
	out := make([]uint32, 0, len(layouts))
	for pgn := range layouts {
		out = append(out, pgn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supports 是否支持该 PGN
func (e *Encoder) Supports(pgn uint32) bool {
	_, ok := layouts[pgn]
	return ok
}

// Payload 仅构造载荷（不分帧）
func (e *Encoder) Payload(pgn uint32, r sensor.Reading, sid uint8) ([]byte, error) {
	l, ok := layouts[pgn]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPGN, pgn)
	}
	return l.build(r, sid), nil
}

// Encode 将采样编码为单帧或快速包多帧。
// 载荷 ≤ 8 字节返回 Single，9..223 字节返回 Multi。
func (e *Encoder) Encode(pgn uint32, r sensor.Reading, seq Sequencer) (Frames, error) {
	l, ok := layouts[pgn]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPGN, pgn)
	}
	prio := l.priority
	if p, ok := e.priorities[pgn]; ok {
		prio = p
	}
	id, err := BuildID(Header{Priority: prio, PGN: pgn, Source: r.Source, Destination: BroadcastAddress})
	if err != nil {
		return nil, fmt.Errorf("pgn %d: %w", pgn, err)
	}

	data := l.build(r, sid(r))
	if len(data) <= MaxFrameData {
		return Single{Frame: Frame{ID: id, Data: data}}, nil
	}
	var s uint8
	if seq != nil {
		s = seq.Next(pgn, r.Source)
	}
	chunks, err := Segment(data, s)
	if err != nil {
		return nil, fmt.Errorf("pgn %d: %w", pgn, err)
	}
	frames := make([]Frame, len(chunks))
	for i, c := range chunks {
		frames[i] = Frame{ID: id, Data: c}
	}
	e.logger.Debug("fast packet encoded",
		zap.Uint32("pgn", pgn),
		zap.Uint8("sequence", s),
		zap.Int("payload", len(data)),
		zap.Int("frames", len(frames)))
	return Multi{Sequence: s, Frames: frames}, nil
}

// sid 由虚拟时间派生（0.1 s 粒度，模 250），同一时刻的各 PGN 取值一致
func sid(r sensor.Reading) uint8 {
	return uint8((r.Elapsed.Milliseconds() / 100) % 250)
}
