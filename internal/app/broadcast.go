package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/broadcast"
	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/metrics"
	"github.com/taoyao-code/marine-sim/internal/stream"
	"github.com/taoyao-code/marine-sim/internal/tcpserver"
)

// Broadcast 已启动的广播传输
type Broadcast struct {
	Hub     *broadcast.Hub
	TCP     *tcpserver.Server         // 未启用时为 nil
	Breaker *broadcast.CircuitBreaker // 未接入 Redis 时为 nil
}

// StartBroadcast 启动 TCP 监听并注册 UDP、串口与 Redis 客户端。
// 串口打开失败只记录告警，其余传输启动失败返回错误。
func StartBroadcast(cfg *cfgpkg.Config, m *metrics.SimMetrics, pub broadcast.Publisher, log *zap.Logger) (*Broadcast, error) {
	var hubMetrics broadcast.Metrics
	if m != nil {
		hubMetrics = m
	}
	b := &Broadcast{Hub: broadcast.NewHub(log, hubMetrics)}

	if cfg.TCP.Enable {
		srv := tcpserver.New(cfg.TCP, log)
		if m != nil {
			srv.SetMetricsCallbacks(m.TCPAccept, m.TCPReject)
		}
		broadcast.AttachTCP(b.Hub, srv, stream.NewFilter(cfg.TCP.Protocols))
		if err := srv.Start(); err != nil {
			b.Hub.Close()
			return nil, err
		}
		b.TCP = srv
	}

	if cfg.UDP.Enable {
		out, err := broadcast.NewUDPSink(cfg.UDP, log)
		if err != nil {
			_ = b.Shutdown(context.Background())
			return nil, err
		}
		b.Hub.Add(out)
		log.Info("udp output started", zap.Strings("targets", cfg.UDP.Targets))
	}

	if cfg.Serial.Enable {
		out, err := broadcast.OpenSerial(cfg.Serial, log)
		if err != nil {
			log.Warn("serial output unavailable", zap.String("port", cfg.Serial.Port), zap.Error(err))
		} else {
			b.Hub.Add(out)
		}
	}

	if pub != nil {
		b.Breaker = broadcast.NewCircuitBreaker(5, 10*time.Second)
		b.Hub.Add(broadcast.NewRedisSink(pub, cfg.Redis, b.Breaker, log))
		log.Info("redis pub/sub output started", zap.String("prefix", cfg.Redis.ChannelPrefix))
	}
	return b, nil
}

// Shutdown 关闭 TCP 监听与全部客户端
func (b *Broadcast) Shutdown(ctx context.Context) error {
	var err error
	if b.TCP != nil {
		err = b.TCP.Shutdown(ctx)
	}
	b.Hub.Close()
	return err
}
