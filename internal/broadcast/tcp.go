package broadcast

import (
	"strconv"

	"github.com/taoyao-code/marine-sim/internal/stream"
	"github.com/taoyao-code/marine-sim/internal/tcpserver"
)

// tcpClient 将 TCP 连接适配为 Client；队列由连接自身的写队列承担
type tcpClient struct {
	cc     *tcpserver.ConnContext
	id     string
	filter stream.Filter
}

func newTCPClient(cc *tcpserver.ConnContext, filter stream.Filter) *tcpClient {
	return &tcpClient{cc: cc, id: TransportTCP + "-" + strconv.FormatUint(cc.ID(), 10), filter: filter}
}

func (c *tcpClient) ID() string                     { return c.id }
func (c *tcpClient) Transport() string              { return TransportTCP }
func (c *tcpClient) Accepts(p stream.Protocol) bool { return c.filter.Allows(p) }
func (c *tcpClient) Done() <-chan struct{}          { return c.cc.Done() }
func (c *tcpClient) Close() error                   { return c.cc.Close() }

func (c *tcpClient) Offer(msg stream.Message) bool {
	ok, err := c.cc.TryWrite(msg.Bytes)
	return ok && err == nil
}

// AttachTCP 将 TCP 监听的新连接注册到 Hub
func AttachTCP(h *Hub, srv *tcpserver.Server, filter stream.Filter) {
	srv.SetConnHandler(func(cc *tcpserver.ConnContext) {
		h.Add(newTCPClient(cc, filter))
	})
}
