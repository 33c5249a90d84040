// Package uhid backs the HID sink with the kernel's /dev/uhid interface.
// The bridge shows up as a local virtual device on the machine running it,
// which makes it the sink of choice for development and for setups where the
// bridge host is the target.
package uhid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/psanford/uhid"

	"github.com/relaykvm/bridge/device"
)

const (
	busUSB    = 0x03
	vendorID  = 0x1D6B // Linux Foundation
	productID = 0x0104 // Multifunction Composite Gadget
)

// Sink is a device.Sink writing HID reports to a uhid virtual device carrying
// the combined report descriptor (report IDs 1-4 on one interface).
type Sink struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	dev    *uhid.Device
	cancel context.CancelFunc
}

// New creates the virtual device and starts consuming its kernel events.
func New(name string, logger *slog.Logger) (*Sink, error) {
	s := &Sink{name: name, logger: logger}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) open() error {
	dev, err := uhid.NewDevice(s.name, device.CombinedReportDescriptor())
	if err != nil {
		return fmt.Errorf("create uhid device: %w", err)
	}
	dev.Data.Bus = busUSB
	dev.Data.VendorID = vendorID
	dev.Data.ProductID = productID

	ctx, cancel := context.WithCancel(context.Background())
	events, err := dev.Open(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("open uhid device: %w", err)
	}
	go s.drain(events)

	s.mu.Lock()
	s.dev = dev
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

// drain consumes kernel-to-device events. Output reports (keyboard LED
// state) arrive here; the bridge has nowhere to display them, so they are
// only traced.
func (s *Sink) drain(events chan uhid.Event) {
	for evt := range events {
		if evt.Err != nil {
			s.logger.Warn("uhid event error", "error", evt.Err)
			continue
		}
		s.logger.Debug("uhid event", "type", evt.Type)
	}
}

// Close destroys the virtual device.
func (s *Sink) Close() error {
	s.mu.Lock()
	dev, cancel := s.dev, s.cancel
	s.dev, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if dev == nil {
		return nil
	}
	return dev.Close()
}

// Recover tears the virtual device down and recreates it, forcing the host
// to re-enumerate.
func (s *Sink) Recover() error {
	if err := s.Close(); err != nil {
		s.logger.Warn("uhid teardown failed, recreating anyway", "error", err)
	}
	return s.open()
}

func (s *Sink) writeReport(data []byte) error {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("uhid device closed")
	}

	evt := uhid.Input2Request{RequestType: uhid.Input2}
	n := copy(evt.Data[:], data)
	evt.DataSize = uint16(n)
	if err := dev.WriteEvent(evt); err != nil {
		return fmt.Errorf("uhid write: %w", err)
	}
	return nil
}

func (s *Sink) SendKeyboardReport(modifiers uint8, keys [6]uint8) error {
	report := []byte{device.ReportIDKeyboard, modifiers, 0x00}
	report = append(report, keys[:]...)
	return s.writeReport(report)
}

func (s *Sink) SendMouseReport(buttons uint8, dx, dy, scroll int8) error {
	return s.writeReport([]byte{
		device.ReportIDMouse, buttons, byte(dx), byte(dy), byte(scroll),
	})
}

func (s *Sink) SendAbsMouseReport(buttons uint8, x, y uint16, scroll int8) error {
	err := s.writeReport([]byte{
		device.ReportIDAbsMouse,
		device.DigitizerButtons(buttons),
		byte(x), byte(x >> 8),
		byte(y), byte(y >> 8),
	})
	if err != nil {
		return err
	}
	if scroll != 0 {
		// The digitizer report has no wheel; fall back to a wheel-only
		// relative report.
		return s.writeReport([]byte{device.ReportIDMouse, 0, 0, 0, byte(scroll)})
	}
	return nil
}

func (s *Sink) SendConsumerReport(usage uint16) error {
	return s.writeReport([]byte{
		device.ReportIDConsumer, byte(usage), byte(usage >> 8),
	})
}
