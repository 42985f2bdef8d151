package broadcast

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/stream"
)

// NewUDPSink 向固定目标（单播或广播地址）推送数据报，每条消息一个数据报
func NewUDPSink(cfg cfgpkg.UDPConfig, logger *zap.Logger) (*Outlet, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("udp: no targets configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	addrs := make([]*net.UDPAddr, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		a, err := net.ResolveUDPAddr("udp", t)
		if err != nil {
			return nil, fmt.Errorf("udp: resolve %s: %w", t, err)
		}
		addrs = append(addrs, a)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("udp: listen: %w", err)
	}
	return NewOutlet(OutletOptions{
		Transport: TransportUDP,
		Filter:    stream.NewFilter(cfg.Protocols),
		QueueSize: cfg.QueueSize,
		Write: func(msg stream.Message) error {
			for _, a := range addrs {
				// 目标不可达不关闭客户端，仅记录
				if _, err := conn.WriteToUDP(msg.Bytes, a); err != nil {
					logger.Debug("udp send failed", zap.String("target", a.String()), zap.Error(err))
				}
			}
			return nil
		},
		Closer: conn.Close,
		Logger: logger,
	}), nil
}
