package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/marine-sim/internal/stream"
)

func TestSimMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewSimMetrics(reg)

	m.MessageEmitted(stream.ProtocolSentence)
	m.MessageEmitted(stream.ProtocolSentence)
	m.MessageEmitted(stream.ProtocolFrame)
	m.TickFailed("encoding")
	m.VirtualTime(90 * time.Second)
	m.Looped()
	m.ClientsChanged("tcp", 3)
	m.Sent("tcp")
	m.Dropped("websocket")
	m.TCPAccept()
	m.TCPReject("rate")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	raw, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	body := string(raw)

	for _, line := range []string{
		`sim_messages_emitted_total{protocol="ascii-sentence"} 2`,
		`sim_messages_emitted_total{protocol="can-frame"} 1`,
		`sim_tick_failures_total{stage="encoding"} 1`,
		`sim_virtual_time_seconds 90`,
		`sim_loops_total 1`,
		`broadcast_clients{transport="tcp"} 3`,
		`broadcast_sent_total{transport="tcp"} 1`,
		`broadcast_dropped_total{transport="websocket"} 1`,
		`tcp_accept_total 1`,
		`tcp_reject_total{reason="rate"} 1`,
		`go_goroutines`,
	} {
		assert.Contains(t, body, line)
	}
}
