package engine

import (
	"fmt"
	"strconv"

	"github.com/taoyao-code/marine-sim/internal/nmea0183"
	"github.com/taoyao-code/marine-sim/internal/nmea2000"
	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// Encoder 单一线协议编码器。target 为注册表中的目标标识（语句或 PGN 字符串）。
// 返回的每个元素是一条完整的线格式消息。
type Encoder interface {
	Encode(target string, r sensor.Reading, seq nmea2000.Sequencer) ([][]byte, error)
}

// EncoderFunc 函数适配，便于测试替换
type EncoderFunc func(target string, r sensor.Reading, seq nmea2000.Sequencer) ([][]byte, error)

// Encode 实现 Encoder
func (f EncoderFunc) Encode(target string, r sensor.Reading, seq nmea2000.Sequencer) ([][]byte, error) {
	return f(target, r, seq)
}

// Encoders 协议到编码器的映射
type Encoders map[sensor.Protocol]Encoder

// Checker 可选接口：编码器声明是否支持某目标，用于加载期检查
type Checker interface {
	Supports(target string) bool
}

type sentenceEncoder struct{ enc *nmea0183.Encoder }

// SentenceEncoder 适配 NMEA 0183 编码器（忽略序列号分配器）
func SentenceEncoder(enc *nmea0183.Encoder) Encoder { return sentenceEncoder{enc: enc} }

func (e sentenceEncoder) Encode(target string, r sensor.Reading, _ nmea2000.Sequencer) ([][]byte, error) {
	return e.enc.Encode(target, r)
}

func (e sentenceEncoder) Supports(target string) bool { return e.enc.Supports(target) }

type frameEncoder struct{ enc *nmea2000.Encoder }

// FrameEncoder 适配 NMEA 2000 编码器：PGN 字符串 -> 帧序列化
func FrameEncoder(enc *nmea2000.Encoder) Encoder { return frameEncoder{enc: enc} }

func (e frameEncoder) Encode(target string, r sensor.Reading, seq nmea2000.Sequencer) ([][]byte, error) {
	pgn, err := parsePGN(target)
	if err != nil {
		return nil, err
	}
	frames, err := e.enc.Encode(pgn, r, seq)
	if err != nil {
		return nil, err
	}
	return nmea2000.Marshal(frames)
}

func (e frameEncoder) Supports(target string) bool {
	pgn, err := parsePGN(target)
	return err == nil && e.enc.Supports(pgn)
}

func parsePGN(target string) (uint32, error) {
	pgn, err := strconv.ParseUint(target, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", nmea2000.ErrUnsupportedPGN, target)
	}
	return uint32(pgn), nil
}

// DefaultEncoders 两种协议的标准编码器
func DefaultEncoders(e0183 *nmea0183.Encoder, e2000 *nmea2000.Encoder) Encoders {
	return Encoders{
		sensor.ProtocolNMEA0183: SentenceEncoder(e0183),
		sensor.ProtocolNMEA2000: FrameEncoder(e2000),
	}
}
