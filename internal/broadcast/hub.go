// Package broadcast 将模拟器输出流扇出到 TCP、UDP、WebSocket、串口与 Redis 客户端。
//
// Hub 是调度器唯一可见的接收端：Publish 只做非阻塞入队，慢客户端丢消息并计数，
// 出错的客户端自行关闭并从 Hub 移除，不会反压调度器。
package broadcast

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/stream"
)

// 传输类型
const (
	TransportTCP       = "tcp"
	TransportUDP       = "udp"
	TransportWebSocket = "websocket"
	TransportSerial    = "serial"
	TransportRedis     = "redis"
)

// Client 一个下游客户端
type Client interface {
	ID() string
	Transport() string
	// Accepts 是否接收该协议的消息
	Accepts(p stream.Protocol) bool
	// Offer 非阻塞投递；队列已满或已关闭返回 false
	Offer(msg stream.Message) bool
	// Done 客户端关闭后关闭
	Done() <-chan struct{}
	Close() error
}

// Metrics 广播指标回调
type Metrics interface {
	ClientsChanged(transport string, n int)
	Sent(transport string)
	Dropped(transport string)
}

type nopMetrics struct{}

func (nopMetrics) ClientsChanged(string, int) {}
func (nopMetrics) Sent(string)                {}
func (nopMetrics) Dropped(string)             {}

// Hub 客户端注册表，实现 stream.Sink
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client
	closed  bool
	metrics Metrics
	logger  *zap.Logger
}

// NewHub 创建 Hub；metrics 可为 nil
func NewHub(logger *zap.Logger, metrics Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Hub{
		clients: make(map[string]Client),
		metrics: metrics,
		logger:  logger.With(zap.String("component", "broadcast")),
	}
}

// Add 注册客户端；客户端关闭后自动移除。Hub 已关闭时直接关闭客户端。
func (h *Hub) Add(c Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = c.Close()
		return
	}
	h.clients[c.ID()] = c
	n := h.countLocked(c.Transport())
	h.mu.Unlock()

	h.metrics.ClientsChanged(c.Transport(), n)
	h.logger.Info("client connected", zap.String("client", c.ID()), zap.String("transport", c.Transport()))

	go func() {
		<-c.Done()
		h.Remove(c.ID())
	}()
}

// Remove 注销并关闭客户端
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	var n int
	if ok {
		n = h.countLocked(c.Transport())
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	_ = c.Close()
	h.metrics.ClientsChanged(c.Transport(), n)
	h.logger.Info("client disconnected", zap.String("client", id), zap.String("transport", c.Transport()))
}

// Publish 实现 stream.Sink：按客户端快照逐个非阻塞投递
func (h *Hub) Publish(msg stream.Message) {
	for _, c := range h.snapshot() {
		if !c.Accepts(msg.Protocol) {
			continue
		}
		if c.Offer(msg) {
			h.metrics.Sent(c.Transport())
			continue
		}
		h.metrics.Dropped(c.Transport())
	}
}

func (h *Hub) snapshot() []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) countLocked(transport string) int {
	n := 0
	for _, c := range h.clients {
		if c.Transport() == transport {
			n++
		}
	}
	return n
}

// Counts 各传输类型的客户端数
func (h *Hub) Counts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int)
	for _, c := range h.clients {
		out[c.Transport()]++
	}
	return out
}

// Clients 已注册客户端 ID（排序）
func (h *Hub) Clients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close 关闭全部客户端，之后注册的客户端立即关闭
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]Client)
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
	for t := range countByTransport(clients) {
		h.metrics.ClientsChanged(t, 0)
	}
}

func countByTransport(clients map[string]Client) map[string]int {
	out := make(map[string]int)
	for _, c := range clients {
		out[c.Transport()]++
	}
	return out
}
