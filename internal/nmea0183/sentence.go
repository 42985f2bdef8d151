// Package nmea0183 NMEA 0183 ASCII 语句编码。
//
// 语句格式：$<talker><tag>,<field>,...*HH\r\n，HH 为 '$'/'!' 与 '*' 之间所有字节的异或值。
package nmea0183

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedSentence 不支持的语句类型
	ErrUnsupportedSentence = errors.New("unsupported sentence")
	// ErrMalformedSentence 语句结构不完整
	ErrMalformedSentence = errors.New("malformed sentence")
	// ErrChecksumMismatch 校验和不符
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

const hexDigits = "0123456789ABCDEF"

// MaxSentenceLength 单条语句上限，含起始符与 CRLF
const MaxSentenceLength = 82

// Sentence 一条完整语句（包含校验和与 CRLF）
type Sentence string

// Bytes 线格式字节
func (s Sentence) Bytes() []byte { return []byte(s) }

// Tag 语句类型（去掉起始符与 talker）
func (s Sentence) Tag() string {
	body := string(s)
	if len(body) < 6 {
		return ""
	}
	return body[3:6]
}

// Checksum 计算 body（不含起始符和 '*'）的异或校验
func Checksum(body string) byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return cs
}

// Build 组装语句：start 为 '$' 或 '!'
func Build(start byte, talker, tag string, fields ...string) Sentence {
	var b strings.Builder
	b.Grow(16 + len(fields)*8)
	b.WriteString(talker)
	b.WriteString(tag)
	for _, f := range fields {
		b.WriteByte(',')
		b.WriteString(f)
	}
	body := b.String()
	cs := Checksum(body)
	return Sentence(string(start) + body + "*" + string(hexDigits[cs>>4]) + string(hexDigits[cs&0x0F]) + "\r\n")
}

// Verify 重新计算校验并与语句尾部比较
func Verify(s Sentence) error {
	body, want, err := split(string(s))
	if err != nil {
		return err
	}
	got := Checksum(body)
	if fmt.Sprintf("%02X", got) != want {
		return fmt.Errorf("%w: want %s got %02X", ErrChecksumMismatch, want, got)
	}
	return nil
}

// Fields 拆分语句字段，第一个元素为 talker+tag
func Fields(s Sentence) ([]string, error) {
	body, _, err := split(string(s))
	if err != nil {
		return nil, err
	}
	return strings.Split(body, ","), nil
}

func split(raw string) (body, checksum string, err error) {
	raw = strings.TrimRight(raw, "\r\n")
	if len(raw) < 4 || (raw[0] != '$' && raw[0] != '!') {
		return "", "", ErrMalformedSentence
	}
	star := strings.LastIndexByte(raw, '*')
	if star < 1 || len(raw)-star != 3 {
		return "", "", ErrMalformedSentence
	}
	return raw[1:star], raw[star+1:], nil
}
