package broadcast

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/stream"
)

// WebSocketHandler 升级连接并注册为 Hub 客户端。
// 语句以文本帧发送，CAN 帧以二进制帧发送；?protocols=nmea0183,nmea2000 覆盖配置的过滤器。
type WebSocketHandler struct {
	hub      *Hub
	cfg      cfgpkg.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建处理器
func NewWebSocketHandler(hub *Hub, cfg cfgpkg.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 只读数据流，不限制来源
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP 阻塞直至连接关闭
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := stream.NewFilter(h.cfg.Protocols)
	if q, set := r.URL.Query()["protocols"]; set {
		f, err := stream.ParseFilter(strings.Split(strings.Join(q, ","), ","))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = f
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	// 清除 http.Server 遗留的读超时，只读客户端可能长时间不发数据
	_ = conn.SetReadDeadline(time.Time{})

	timeout := h.cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	out := NewOutlet(OutletOptions{
		Transport: TransportWebSocket,
		Filter:    filter,
		QueueSize: h.cfg.QueueSize,
		Write: func(msg stream.Message) error {
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
			kind := websocket.TextMessage
			if msg.Protocol == stream.ProtocolFrame {
				kind = websocket.BinaryMessage
			}
			return conn.WriteMessage(kind, msg.Bytes)
		},
		Closer: conn.Close,
		Logger: h.logger,
	})
	h.hub.Add(out)

	// 读循环仅处理控制帧并感知对端关闭
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				_ = out.Close()
				return
			}
		}
	}()
	<-out.Done()
}
