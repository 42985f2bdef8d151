package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taoyao-code/marine-sim/internal/stream"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// SimMetrics 模拟器与广播指标；同时实现 engine.Observer 与 broadcast.Metrics
type SimMetrics struct {
	MessagesEmitted  *prometheus.CounterVec // labels: protocol
	TickFailures     *prometheus.CounterVec // labels: stage=generation|encoding|panic
	VirtualSeconds   prometheus.Gauge
	Loops            prometheus.Counter
	Clients          *prometheus.GaugeVec   // labels: transport
	BroadcastSent    *prometheus.CounterVec // labels: transport
	BroadcastDropped *prometheus.CounterVec // labels: transport
	TCPAccepted      prometheus.Counter
	TCPRejected      *prometheus.CounterVec // labels: reason=rate|limit
}

// NewSimMetrics 注册并返回指标
func NewSimMetrics(reg prometheus.Registerer) *SimMetrics {
	m := &SimMetrics{
		MessagesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sim_messages_emitted_total",
			Help: "Messages emitted by the simulator, by protocol.",
		}, []string{"protocol"}),
		TickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sim_tick_failures_total",
			Help: "Sensor tick failures, by stage.",
		}, []string{"stage"}),
		VirtualSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_virtual_time_seconds",
			Help: "Total virtual time simulated, including completed loops.",
		}),
		Loops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_loops_total",
			Help: "Completed scenario loops.",
		}),
		Clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "broadcast_clients",
			Help: "Connected broadcast clients, by transport.",
		}, []string{"transport"}),
		BroadcastSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_sent_total",
			Help: "Messages queued to broadcast clients, by transport.",
		}, []string{"transport"}),
		BroadcastDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Messages dropped because a client queue was full, by transport.",
		}, []string{"transport"}),
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_accept_total",
			Help: "Total accepted TCP connections.",
		}),
		TCPRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcp_reject_total",
			Help: "Rejected TCP connections, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.MessagesEmitted, m.TickFailures, m.VirtualSeconds, m.Loops,
		m.Clients, m.BroadcastSent, m.BroadcastDropped, m.TCPAccepted, m.TCPRejected)
	return m
}

// MessageEmitted 实现 engine.Observer
func (m *SimMetrics) MessageEmitted(p stream.Protocol) {
	m.MessagesEmitted.WithLabelValues(string(p)).Inc()
}

// TickFailed 实现 engine.Observer
func (m *SimMetrics) TickFailed(stage string) { m.TickFailures.WithLabelValues(stage).Inc() }

// VirtualTime 实现 engine.Observer
func (m *SimMetrics) VirtualTime(total time.Duration) { m.VirtualSeconds.Set(total.Seconds()) }

// Looped 实现 engine.Observer
func (m *SimMetrics) Looped() { m.Loops.Inc() }

// ClientsChanged 实现 broadcast.Metrics
func (m *SimMetrics) ClientsChanged(transport string, n int) {
	m.Clients.WithLabelValues(transport).Set(float64(n))
}

// Sent 实现 broadcast.Metrics
func (m *SimMetrics) Sent(transport string) { m.BroadcastSent.WithLabelValues(transport).Inc() }

// Dropped 实现 broadcast.Metrics
func (m *SimMetrics) Dropped(transport string) { m.BroadcastDropped.WithLabelValues(transport).Inc() }

// TCPAccept TCP 接入回调
func (m *SimMetrics) TCPAccept() { m.TCPAccepted.Inc() }

// TCPReject TCP 拒绝回调
func (m *SimMetrics) TCPReject(reason string) { m.TCPRejected.WithLabelValues(reason).Inc() }
