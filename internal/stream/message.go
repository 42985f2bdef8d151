// Package stream 模拟器输出流：协议无关的带标签消息与下游接收端接口。
package stream

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// ErrUnknownProtocol 无法识别的协议名称
var ErrUnknownProtocol = errors.New("unknown protocol")

// Protocol 消息线格式标签
type Protocol string

const (
	// ProtocolSentence NMEA 0183 ASCII 语句（含 CRLF）
	ProtocolSentence Protocol = "ascii-sentence"
	// ProtocolFrame NMEA 2000 CAN 帧 [4B id][1B len][data]
	ProtocolFrame Protocol = "can-frame"
)

// ProtocolFor 线协议到消息标签的映射
func ProtocolFor(p sensor.Protocol) Protocol {
	if p == sensor.ProtocolNMEA2000 {
		return ProtocolFrame
	}
	return ProtocolSentence
}

// ParseProtocol 解析配置中的协议名称，接受标签与线协议两种写法
func ParseProtocol(s string) (Protocol, bool) {
	switch s {
	case string(ProtocolSentence), string(sensor.ProtocolNMEA0183), "0183", "sentence":
		return ProtocolSentence, true
	case string(ProtocolFrame), string(sensor.ProtocolNMEA2000), "2000", "frame":
		return ProtocolFrame, true
	}
	return "", false
}

// Message 输出流中的一条消息。Bytes 由发送方独占，接收方不得修改。
type Message struct {
	Protocol    Protocol      `json:"protocol"`
	Bytes       []byte        `json:"bytes"`
	Sensor      string        `json:"sensor"` // <kind>:<instance>
	Target      string        `json:"target"` // 语句标识或 PGN
	VirtualTime time.Duration `json:"virtual_time"`
	Loop        int           `json:"loop"`
	Seq         uint64        `json:"seq"`
}

// Sink 消息接收端。Publish 不得阻塞调用方，失败由接收端自行处理。
type Sink interface {
	Publish(msg Message)
}

// SinkFunc 函数适配
type SinkFunc func(Message)

// Publish 实现 Sink
func (f SinkFunc) Publish(msg Message) { f(msg) }

// Discard 丢弃全部消息
var Discard Sink = SinkFunc(func(Message) {})

// Filter 按协议集合过滤；集合为空时全部放行
type Filter map[Protocol]bool

// NewFilter 由协议名称列表创建过滤器，无法识别的名称忽略
func NewFilter(names []string) Filter {
	f := Filter{}
	for _, n := range names {
		if p, ok := ParseProtocol(n); ok {
			f[p] = true
		}
	}
	return f
}

// ParseFilter 与 NewFilter 相同，但任一名称无法识别即返回错误；
// 用于客户端请求，避免拼写错误退化为全部放行
func ParseFilter(names []string) (Filter, error) {
	f := Filter{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		p, ok := ParseProtocol(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, n)
		}
		f[p] = true
	}
	if len(f) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrUnknownProtocol)
	}
	return f, nil
}

// Allows 是否放行
func (f Filter) Allows(p Protocol) bool {
	return len(f) == 0 || f[p]
}

// Recorder 内存接收端，记录全部消息
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

// Publish 实现 Sink
func (r *Recorder) Publish(msg Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

// Messages 已记録消息的副本
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Reset 清空
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}
