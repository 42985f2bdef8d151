package nmea2000

import (
	"errors"
	"fmt"
)

const (
	// MaxFastPacketPayload 快速包最大载荷
	MaxFastPacketPayload = 223
	// SequenceModulo 快速包序列号取值 0..31
	SequenceModulo = 32

	firstFrameData = 6
	nextFrameData  = 7
	padByte        = 0xFF
)

var (
	ErrPayloadSize   = errors.New("fast packet payload size out of range")
	ErrSequenceRange = errors.New("fast packet sequence out of range")
	ErrFastPacket    = errors.New("malformed fast packet")
)

// FrameCount 载荷 n 字节所需帧数；n ≤ 8 为单帧
func FrameCount(n int) int {
	if n <= MaxFrameData {
		return 1
	}
	return (n-firstFrameData+nextFrameData-1)/nextFrameData + 1
}

// Segment 快速包分段。
// 首帧：[seq<<3|0, 总长度, 载荷 0..5]；后续帧：[seq<<3|counter, 7 字节载荷]；末帧不足部分填 0xFF。
func Segment(payload []byte, seq uint8) ([][]byte, error) {
	n := len(payload)
	if n <= MaxFrameData || n > MaxFastPacketPayload {
		return nil, fmt.Errorf("%w: %d", ErrPayloadSize, n)
	}
	if seq >= SequenceModulo {
		return nil, fmt.Errorf("%w: %d", ErrSequenceRange, seq)
	}
	out := make([][]byte, 0, FrameCount(n))

	first := make([]byte, MaxFrameData)
	first[0] = seq << 3
	first[1] = byte(n)
	copy(first[2:], payload[:firstFrameData])
	out = append(out, first)

	for off, counter := firstFrameData, 1; off < n; off, counter = off+nextFrameData, counter+1 {
		fr := make([]byte, MaxFrameData)
		fr[0] = seq<<3 | byte(counter&0x07)
		m := copy(fr[1:], payload[off:min(off+nextFrameData, n)])
		for i := 1 + m; i < MaxFrameData; i++ {
			fr[i] = padByte
		}
		out = append(out, fr)
	}
	return out, nil
}

// Reassemble 按顺序重组快速包，返回载荷与序列号
func Reassemble(frames [][]byte) ([]byte, uint8, error) {
	if len(frames) < 2 {
		return nil, 0, fmt.Errorf("%w: need at least 2 frames", ErrFastPacket)
	}
	first := frames[0]
	if len(first) != MaxFrameData || first[0]&0x07 != 0 {
		return nil, 0, fmt.Errorf("%w: bad first frame", ErrFastPacket)
	}
	seq := first[0] >> 3
	n := int(first[1])
	if FrameCount(n) != len(frames) {
		return nil, 0, fmt.Errorf("%w: length %d does not match %d frames", ErrFastPacket, n, len(frames))
	}
	payload := make([]byte, 0, n)
	payload = append(payload, first[2:]...)
	for i, fr := range frames[1:] {
		if len(fr) != MaxFrameData || fr[0]>>3 != seq || int(fr[0]&0x07) != (i+1)&0x07 {
			return nil, 0, fmt.Errorf("%w: frame %d out of sequence", ErrFastPacket, i+1)
		}
		payload = append(payload, fr[1:]...)
	}
	return payload[:n], seq, nil
}

// Sequencer 按 (PGN, 源地址) 分配快速包序列号
type Sequencer interface {
	Next(pgn uint32, source uint8) uint8
}

// Counters Sequencer 的 map 实现；零值不可用，使用 make 或 NewCounters
type Counters map[uint32]uint8

// NewCounters 创建序列号计数器
func NewCounters() Counters { return make(Counters) }

// Next 返回当前序列号并递增（模 32）
func (c Counters) Next(pgn uint32, source uint8) uint8 {
	key := pgn<<8 | uint32(source)
	seq := c[key]
	c[key] = (seq + 1) % SequenceModulo
	return seq
}

// Clone 复制计数器
func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
