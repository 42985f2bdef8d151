package nmea2000

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxFrameData 单帧数据上限
	MaxFrameData = 8
	// FrameHeaderSize 序列化头长度：4 字节标识 + 1 字节长度
	FrameHeaderSize = 5
)

var (
	ErrFrameTooLong  = errors.New("frame data exceeds 8 bytes")
	ErrFrameTooShort = errors.New("frame buffer too short")
)

// Frame 单个 CAN 帧
type Frame struct {
	ID   uint32
	Data []byte
}

// MarshalBinary [4 字节大端标识][1 字节长度][0..8 字节数据]
func (f Frame) MarshalBinary() ([]byte, error) {
	if len(f.Data) > MaxFrameData {
		return nil, ErrFrameTooLong
	}
	if f.ID > maxID {
		return nil, fmt.Errorf("%w: 0x%X", ErrInvalidID, f.ID)
	}
	buf := make([]byte, FrameHeaderSize+len(f.Data))
	binary.BigEndian.PutUint32(buf[0:4], f.ID)
	buf[4] = byte(len(f.Data))
	copy(buf[FrameHeaderSize:], f.Data)
	return buf, nil
}

// UnmarshalFrame 解析序列化帧，返回帧及消耗字节数
func UnmarshalFrame(buf []byte) (Frame, int, error) {
	if len(buf) < FrameHeaderSize {
		return Frame{}, 0, ErrFrameTooShort
	}
	n := int(buf[4])
	if n > MaxFrameData {
		return Frame{}, 0, ErrFrameTooLong
	}
	if len(buf) < FrameHeaderSize+n {
		return Frame{}, 0, ErrFrameTooShort
	}
	data := make([]byte, n)
	copy(data, buf[FrameHeaderSize:FrameHeaderSize+n])
	return Frame{ID: binary.BigEndian.Uint32(buf[0:4]), Data: data}, FrameHeaderSize + n, nil
}

// Frames 单帧或快速包多帧
type Frames interface {
	List() []Frame
	isFrames()
}

// Single 单帧消息（载荷 ≤ 8 字节）
type Single struct {
	Frame Frame
}

// Multi 快速包消息
type Multi struct {
	Sequence uint8 // 0..31
	Frames   []Frame
}

func (s Single) List() []Frame { return []Frame{s.Frame} }

func (Single) isFrames() {}

func (m Multi) List() []Frame { return m.Frames }

func (Multi) isFrames() {}

// Marshal 逐帧序列化
func Marshal(f Frames) ([][]byte, error) {
	list := f.List()
	out := make([][]byte, 0, len(list))
	for _, fr := range list {
		b, err := fr.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
