// Package tcpserver 广播用 TCP 监听：接入限速、并发连接上限、每连接异步写队列。
package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
)

// ErrServerClosed 服务已关闭
var ErrServerClosed = errors.New("tcp server closed")

// Server TCP 广播监听
type Server struct {
	cfg     cfgpkg.TCPConfig
	logger  *zap.Logger
	ln      net.Listener
	wg      sync.WaitGroup
	stopC   chan struct{}
	stopped atomic.Bool

	limiter     *ConnectionLimiter
	rateLimiter *RateLimiter
	nextConnID  uint64

	mu    sync.Mutex
	conns map[uint64]*ConnContext

	// onConn 新连接就绪回调（在读写循环启动前调用）
	onConn func(*ConnContext)
	// 可选指标回调
	onAccept func()
	onReject func(reason string)
}

// New 创建 TCP 监听
func New(cfg cfgpkg.TCPConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:         cfg,
		logger:      logger.With(zap.String("component", "tcpserver")),
		stopC:       make(chan struct{}),
		conns:       make(map[uint64]*ConnContext),
		limiter:     NewConnectionLimiter(cfg.MaxConnections, cfg.AcquireTimeout),
		rateLimiter: NewRateLimiter(cfg.AcceptRate, cfg.AcceptBurst),
	}
}

// SetConnHandler 设置新连接回调
func (s *Server) SetConnHandler(h func(*ConnContext)) { s.onConn = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onReject func(reason string)) {
	s.onAccept, s.onReject = onAccept, onReject
}

// Limiter 连接限流器
func (s *Server) Limiter() *ConnectionLimiter { return s.limiter }

// RateLimiter 接入速率限流器
func (s *Server) RateLimiter() *RateLimiter { return s.rateLimiter }

// Addr 实际监听地址；未启动时为 nil
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	if s.stopped.Load() {
		return ErrServerClosed
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("tcp broadcast listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			// 短暂错误等待后重试
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !s.rateLimiter.Allow() {
			s.reject(conn, "rate")
			continue
		}
		if err := s.limiter.Acquire(context.Background()); err != nil {
			s.reject(conn, "limit")
			continue
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		cc := newConnContext(s, conn)
		s.mu.Lock()
		s.conns[cc.id] = cc
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.limiter.Release()
			defer s.forget(cc)
			if s.onConn != nil {
				s.onConn(cc)
			}
			cc.run()
		}()
	}
}

func (s *Server) forget(cc *ConnContext) {
	s.mu.Lock()
	delete(s.conns, cc.id)
	s.mu.Unlock()
}

func (s *Server) reject(c net.Conn, reason string) {
	s.logger.Warn("tcp connection rejected",
		zap.String("remote", c.RemoteAddr().String()),
		zap.String("reason", reason))
	if s.onReject != nil {
		s.onReject(reason)
	}
	_ = c.Close()
}

// Shutdown 优雅关闭监听并等待连接退出
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopC)
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Lock()
	for _, cc := range s.conns {
		_ = cc.Close()
	}
	s.mu.Unlock()
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
