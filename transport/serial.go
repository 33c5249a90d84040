package transport

import (
	"context"
	"fmt"
	"log/slog"

	"go.bug.st/serial"
)

// SerialConfig configures the serial/USB-CDC adapter.
type SerialConfig struct {
	Port string `help:"Serial port device (e.g. /dev/ttyACM0)" default:"/dev/ttyACM0" env:"RELAYKVM_SERIAL_PORT"`
	Baud int    `help:"Baud rate" default:"115200" env:"RELAYKVM_SERIAL_BAUD"`
}

// Serial carries the protocol over a serial or USB CDC byte stream. The port
// is treated as one permanent session: connect on open, disconnect on close
// or read failure. CDC imposes no small MTU, so writes go out unchunked.
type Serial struct {
	cfg    SerialConfig
	queue  *Queue
	logger *slog.Logger
}

// NewSerial creates a serial transport.
func NewSerial(cfg SerialConfig, logger *slog.Logger) *Serial {
	return &Serial{
		cfg:    cfg,
		queue:  NewQueue(DefaultQueueSize),
		logger: logger,
	}
}

// Run opens the port and pumps bytes until ctx is cancelled or the port dies.
func (s *Serial) Run(ctx context.Context, h Handler) error {
	mode := &serial.Mode{BaudRate: s.cfg.Baud}
	port, err := serial.Open(s.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.cfg.Port, err)
	}
	s.logger.Info("serial port open", "port", s.cfg.Port, "baud", s.cfg.Baud)

	// Closing the port is the only way to unblock a pending Read.
	go func() {
		<-ctx.Done()
		_ = port.Close()
	}()

	drainCtx, stopDrain := context.WithCancel(ctx)
	defer stopDrain()
	go s.queue.Drain(drainCtx, func(b []byte) error {
		_, err := port.Write(b)
		return err
	})

	h.HandleConnect(s.cfg.Port)
	defer h.HandleDisconnect()

	buf := make([]byte, 512)
	for {
		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", s.cfg.Port, err)
		}
		if n == 0 {
			s.logger.Info("serial port EOF", "port", s.cfg.Port)
			return nil
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		h.HandleData(data)
	}
}

// Send queues data for ordered transmission on the port.
func (s *Serial) Send(ctx context.Context, data []byte) error {
	return s.queue.Send(ctx, data)
}
