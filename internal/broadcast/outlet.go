package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/stream"
)

// WriteFunc 将一条消息写到底层传输；返回错误时客户端关闭
type WriteFunc func(msg stream.Message) error

// Outlet 带发送队列的通用客户端：独立 goroutine 顺序写出
type Outlet struct {
	id        string
	transport string
	filter    stream.Filter
	queue     chan stream.Message
	write     WriteFunc
	closer    func() error
	logger    *zap.Logger

	once  sync.Once
	stopC chan struct{}
	doneC chan struct{}
}

// OutletOptions Outlet 构造参数
type OutletOptions struct {
	Transport string
	Filter    stream.Filter
	QueueSize int
	Write     WriteFunc
	// Closer 关闭底层传输，可为 nil
	Closer func() error
	Logger *zap.Logger
}

// NewOutlet 创建并启动写循环
func NewOutlet(opts OutletOptions) *Outlet {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	o := &Outlet{
		id:        opts.Transport + "-" + uuid.NewString(),
		transport: opts.Transport,
		filter:    opts.Filter,
		queue:     make(chan stream.Message, opts.QueueSize),
		write:     opts.Write,
		closer:    opts.Closer,
		stopC:     make(chan struct{}),
		doneC:     make(chan struct{}),
	}
	o.logger = opts.Logger.With(zap.String("client", o.id))
	go o.run()
	return o
}

// ID 实现 Client
func (o *Outlet) ID() string { return o.id }

// Transport 实现 Client
func (o *Outlet) Transport() string { return o.transport }

// Accepts 实现 Client
func (o *Outlet) Accepts(p stream.Protocol) bool { return o.filter.Allows(p) }

// Offer 实现 Client
func (o *Outlet) Offer(msg stream.Message) bool {
	select {
	case <-o.stopC:
		return false
	default:
	}
	select {
	case o.queue <- msg:
		return true
	default:
		return false
	}
}

// Done 实现 Client
func (o *Outlet) Done() <-chan struct{} { return o.doneC }

// Close 停止写循环并关闭底层传输，可重复调用
func (o *Outlet) Close() error {
	var err error
	o.once.Do(func() {
		close(o.stopC)
		if o.closer != nil {
			err = o.closer()
		}
	})
	return err
}

func (o *Outlet) run() {
	defer close(o.doneC)
	for {
		select {
		case <-o.stopC:
			return
		case msg := <-o.queue:
			if err := o.write(msg); err != nil {
				o.logger.Warn("client write failed, closing", zap.String("transport", o.transport), zap.Error(err))
				_ = o.Close()
				return
			}
		}
	}
}
