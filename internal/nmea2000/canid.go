// Package nmea2000 NMEA 2000 二进制编码：29 位 CAN 标识、帧序列化、快速包分段与各 PGN 字段布局。
package nmea2000

import (
	"errors"
	"fmt"
)

const (
	// MaxSourceAddress 可用源地址上限；253 保留，254 为空地址，255 为全局地址
	MaxSourceAddress = 252
	// BroadcastAddress 全局目的地址
	BroadcastAddress = 255
	// MaxPriority 优先级上限（0 最高）
	MaxPriority = 7

	maxPGN = 0x3FFFF
	maxID  = 0x1FFFFFFF
)

var (
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidSource   = errors.New("invalid source address")
	ErrInvalidPGN      = errors.New("invalid pgn")
	ErrInvalidID       = errors.New("invalid can identifier")
)

// Header CAN 标识字段
type Header struct {
	Priority    uint8
	PGN         uint32
	Source      uint8
	Destination uint8 // 仅 PDU1（PF < 240）有效
}

// PDU1 PF < 240 时 PS 字节为目的地址
func PDU1(pgn uint32) bool {
	return (pgn>>8)&0xFF < 240
}

// BuildID 组装 29 位标识：prio(3) | reserved(1) | DP(1) | PF(8) | PS(8) | SA(8)
func BuildID(h Header) (uint32, error) {
	if h.Priority > MaxPriority {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPriority, h.Priority)
	}
	if h.Source > MaxSourceAddress {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSource, h.Source)
	}
	if h.PGN > maxPGN {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPGN, h.PGN)
	}
	reserved := (h.PGN >> 17) & 0x01
	dp := (h.PGN >> 16) & 0x01
	pf := (h.PGN >> 8) & 0xFF
	ps := h.PGN & 0xFF
	if PDU1(h.PGN) {
		ps = uint32(h.Destination)
	}
	id := uint32(h.Priority)<<26 | reserved<<25 | dp<<24 | pf<<16 | ps<<8 | uint32(h.Source)
	return id, nil
}

// ParseID 解析标识
func ParseID(id uint32) (Header, error) {
	if id > maxID {
		return Header{}, fmt.Errorf("%w: 0x%X", ErrInvalidID, id)
	}
	h := Header{
		Priority:    uint8((id >> 26) & 0x07),
		Source:      uint8(id & 0xFF),
		Destination: BroadcastAddress,
	}
	pf := (id >> 16) & 0xFF
	ps := (id >> 8) & 0xFF
	h.PGN = (id>>24)&0x03<<16 | pf<<8
	if pf < 240 {
		h.Destination = uint8(ps)
	} else {
		h.PGN |= ps
	}
	return h, nil
}
