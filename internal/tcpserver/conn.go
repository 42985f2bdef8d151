package tcpserver

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrConnClosed 连接已关闭
var ErrConnClosed = errors.New("connection closed")

// ConnContext 单个广播连接：写队列 + 写循环，读循环仅用于感知对端关闭
type ConnContext struct {
	s      *Server
	c      net.Conn
	id     uint64
	writeC chan []byte
	closed atomic.Bool
	mu     sync.RWMutex // 保护 writeC 关闭与写入的竞争
	doneC  chan struct{}
	once   sync.Once
}

func newConnContext(s *Server, c net.Conn) *ConnContext {
	size := s.cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	return &ConnContext{
		s:      s,
		c:      c,
		id:     atomic.AddUint64(&s.nextConnID, 1),
		writeC: make(chan []byte, size),
		doneC:  make(chan struct{}),
	}
}

// ID 返回连接ID（单进程唯一递增）
func (cc *ConnContext) ID() uint64 { return cc.id }

// RemoteAddr 返回远端地址
func (cc *ConnContext) RemoteAddr() net.Addr { return cc.c.RemoteAddr() }

// TryWrite 非阻塞入队；队列已满返回 false。b 由调用方保证不再修改。
func (cc *ConnContext) TryWrite(b []byte) (bool, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	if cc.closed.Load() {
		return false, ErrConnClosed
	}
	select {
	case cc.writeC <- b:
		return true, nil
	default:
		return false, nil
	}
}

// Close 关闭连接与写队列
func (cc *ConnContext) Close() error {
	cc.mu.Lock()
	if !cc.closed.CompareAndSwap(false, true) {
		cc.mu.Unlock()
		return nil
	}
	close(cc.writeC)
	cc.mu.Unlock()
	return cc.c.Close()
}

// run 启动读/写循环，阻塞直至连接结束
func (cc *ConnContext) run() {
	defer cc.finish()

	doneW := make(chan struct{})
	go func() {
		defer close(doneW)
		for msg := range cc.writeC {
			if cc.s.cfg.WriteTimeout > 0 {
				_ = cc.c.SetWriteDeadline(time.Now().Add(cc.s.cfg.WriteTimeout))
			}
			if _, err := cc.c.Write(msg); err != nil {
				cc.s.logger.Debug("tcp write failed", zap.Uint64("conn", cc.id), zap.Error(err))
				_ = cc.Close()
				// 排空剩余消息，写循环随通道关闭退出
				for range cc.writeC {
				}
				return
			}
		}
	}()

	// 读循环：丢弃上行数据，出错即视为断开
	buf := make([]byte, 512)
	for {
		if cc.s.cfg.ReadTimeout > 0 {
			_ = cc.c.SetReadDeadline(time.Now().Add(cc.s.cfg.ReadTimeout))
		}
		_, err := cc.c.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() && !cc.closed.Load() {
				continue
			}
			break
		}
	}
	_ = cc.Close()
	<-doneW
}

func (cc *ConnContext) finish() {
	cc.once.Do(func() { close(cc.doneC) })
}

// Done 返回连接关闭通知通道
func (cc *ConnContext) Done() <-chan struct{} { return cc.doneC }
