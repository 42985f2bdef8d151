package broadcast

import (
	"fmt"
	"io"

	serial "go.bug.st/serial"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/stream"
)

// DefaultBaudRate NMEA 0183 标准波特率
const DefaultBaudRate = 4800

// OpenSerial 打开串口并返回只输出 NMEA 0183 语句的客户端
func OpenSerial(cfg cfgpkg.SerialConfig, logger *zap.Logger) (*Outlet, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Port, err)
	}
	if logger != nil {
		logger.Info("serial output opened", zap.String("port", cfg.Port), zap.Int("baud", baud))
	}
	return NewSerialSink(port, cfg.QueueSize, logger), nil
}

// NewSerialSink 基于任意写端创建串口客户端；CAN 帧不会写入
func NewSerialSink(w io.WriteCloser, queueSize int, logger *zap.Logger) *Outlet {
	return NewOutlet(OutletOptions{
		Transport: TransportSerial,
		Filter:    stream.Filter{stream.ProtocolSentence: true},
		QueueSize: queueSize,
		Write: func(msg stream.Message) error {
			_, err := w.Write(msg.Bytes)
			return err
		},
		Closer: w.Close,
		Logger: logger,
	})
}
