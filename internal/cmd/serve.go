// Package cmd implements the CLI subcommands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaykvm/bridge/bridge"
	"github.com/relaykvm/bridge/device"
	"github.com/relaykvm/bridge/internal/log"
	"github.com/relaykvm/bridge/sink/gadget"
	"github.com/relaykvm/bridge/sink/uhid"
	"github.com/relaykvm/bridge/transport"
)

// Serve runs the bridge: one transport, one sink, one session.
type Serve struct {
	Transport string `help:"Transport substrate" enum:"websocket,serial,ble" default:"websocket" env:"RELAYKVM_TRANSPORT"`
	Sink      string `help:"HID output sink" enum:"uhid,gadget" default:"uhid" env:"RELAYKVM_SINK"`

	DeviceName           string        `help:"Name presented by the virtual HID device" default:"RelayKVM" env:"RELAYKVM_DEVICE_NAME"`
	QueueSize            int           `help:"Inbound packet queue size" default:"64" env:"RELAYKVM_QUEUE_SIZE"`
	ConsumerReleaseDelay time.Duration `help:"Delay before auto-releasing a consumer key" default:"50ms" env:"RELAYKVM_CONSUMER_RELEASE_DELAY"`

	Serial    transport.SerialConfig    `embed:"" prefix:"serial."`
	WebSocket transport.WebSocketConfig `embed:"" prefix:"ws."`
	BLE       transport.BLEConfig       `embed:"" prefix:"ble."`
	Gadget    gadget.Config             `embed:"" prefix:"gadget."`
}

// Run is called by kong when the serve command is executed.
func (s *Serve) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartBridge(ctx, logger, rawLogger)
}

// StartBridge wires the configured sink and transport into a session and
// runs until ctx is cancelled or the transport dies.
func (s *Serve) StartBridge(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	snk, closeSink, err := s.buildSink(logger)
	if err != nil {
		return fmt.Errorf("sink %s: %w", s.Sink, err)
	}
	defer closeSink()

	tr, err := s.buildTransport(logger)
	if err != nil {
		return fmt.Errorf("transport %s: %w", s.Transport, err)
	}

	sess := bridge.NewSession(
		bridge.Config{
			QueueSize:            s.QueueSize,
			ConsumerReleaseDelay: s.ConsumerReleaseDelay,
		},
		snk, tr, logger, rawLogger,
		bridge.WithResetter(processResetter{logger: logger, close: closeSink}),
	)

	logger.Info("bridge starting",
		"transport", s.Transport,
		"sink", s.Sink,
		"device_name", s.DeviceName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchReleaseCapture(ctx, sess, logger)

	sessDone := make(chan error, 1)
	go func() {
		sessDone <- sess.Run(ctx)
	}()

	err = tr.Run(ctx, sess)
	cancel()
	<-sessDone

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("transport %s: %w", s.Transport, err)
	}
	return nil
}

func (s *Serve) buildSink(logger *slog.Logger) (device.Sink, func(), error) {
	switch s.Sink {
	case "uhid":
		snk, err := uhid.New(s.DeviceName, logger)
		if err != nil {
			return nil, nil, err
		}
		return snk, func() { _ = snk.Close() }, nil
	case "gadget":
		snk, err := gadget.New(s.Gadget, logger)
		if err != nil {
			return nil, nil, err
		}
		return snk, func() { _ = snk.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", s.Sink)
	}
}

func (s *Serve) buildTransport(logger *slog.Logger) (transport.Transport, error) {
	switch s.Transport {
	case "websocket":
		return transport.NewWebSocket(s.WebSocket, logger), nil
	case "serial":
		return transport.NewSerial(s.Serial, logger), nil
	case "ble":
		return transport.NewBLE(s.BLE, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", s.Transport)
	}
}

// processResetter implements the device-reset command by exiting the process.
// The service supervisor restarts the bridge with fresh all-zero state.
type processResetter struct {
	logger *slog.Logger
	close  func()
}

func (r processResetter) Reset() error {
	r.logger.Warn("device reset: exiting for supervisor restart")
	r.close()
	os.Exit(0)
	return nil
}
