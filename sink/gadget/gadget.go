// Package gadget backs the HID sink with Linux USB gadget HID functions.
// Each report type writes to its own /dev/hidg* endpoint, so reports carry
// no report ID prefix; the gadget configuration assigns one descriptor per
// function.
package gadget

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/relaykvm/bridge/device"
)

// Config names the gadget function character devices. The defaults match a
// configfs gadget declaring keyboard, mouse, consumer and digitizer
// functions in that order.
type Config struct {
	Keyboard string `help:"Keyboard HID gadget device" default:"/dev/hidg0" env:"RELAYKVM_HIDG_KEYBOARD"`
	Mouse    string `help:"Relative mouse HID gadget device" default:"/dev/hidg1" env:"RELAYKVM_HIDG_MOUSE"`
	Consumer string `help:"Consumer control HID gadget device" default:"/dev/hidg2" env:"RELAYKVM_HIDG_CONSUMER"`
	AbsMouse string `help:"Digitizer HID gadget device" default:"/dev/hidg3" env:"RELAYKVM_HIDG_ABSMOUSE"`
}

// Sink is a device.Sink writing raw reports to the gadget endpoints.
//
// A write to a hidg device blocks or fails while the USB host side is
// suspended or detached; such failures surface to the session, which logs
// them and relies on Resync once the host is back.
type Sink struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	keyboard *os.File
	mouse    *os.File
	consumer *os.File
	absMouse *os.File
}

// New opens all four gadget endpoints.
func New(cfg Config, logger *slog.Logger) (*Sink, error) {
	s := &Sink{cfg: cfg, logger: logger}
	if err := s.open(); err != nil {
		s.closeAll()
		return nil, err
	}
	return s, nil
}

func (s *Sink) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.keyboard, err = os.OpenFile(s.cfg.Keyboard, os.O_WRONLY, 0); err != nil {
		return fmt.Errorf("open keyboard gadget: %w", err)
	}
	if s.mouse, err = os.OpenFile(s.cfg.Mouse, os.O_WRONLY, 0); err != nil {
		return fmt.Errorf("open mouse gadget: %w", err)
	}
	if s.consumer, err = os.OpenFile(s.cfg.Consumer, os.O_WRONLY, 0); err != nil {
		return fmt.Errorf("open consumer gadget: %w", err)
	}
	if s.absMouse, err = os.OpenFile(s.cfg.AbsMouse, os.O_WRONLY, 0); err != nil {
		return fmt.Errorf("open digitizer gadget: %w", err)
	}
	return nil
}

// Close releases all endpoints.
func (s *Sink) Close() error {
	s.closeAll()
	return nil
}

func (s *Sink) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range []**os.File{&s.keyboard, &s.mouse, &s.consumer, &s.absMouse} {
		if *f != nil {
			_ = (*f).Close()
			*f = nil
		}
	}
}

// Recover reopens every endpoint. A hidg file descriptor goes permanently
// bad after some host-side resets; a fresh open is the documented fix.
func (s *Sink) Recover() error {
	s.logger.Warn("reopening gadget endpoints")
	s.closeAll()
	return s.open()
}

func (s *Sink) write(f *os.File, label string, report []byte) error {
	if f == nil {
		return fmt.Errorf("%s gadget closed", label)
	}
	if _, err := f.Write(report); err != nil {
		return fmt.Errorf("%s gadget write: %w", label, err)
	}
	return nil
}

func (s *Sink) SendKeyboardReport(modifiers uint8, keys [6]uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report := make([]byte, 8)
	report[0] = modifiers
	copy(report[2:], keys[:])
	return s.write(s.keyboard, "keyboard", report)
}

func (s *Sink) SendMouseReport(buttons uint8, dx, dy, scroll int8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.mouse, "mouse", []byte{buttons, byte(dx), byte(dy), byte(scroll)})
}

func (s *Sink) SendAbsMouseReport(buttons uint8, x, y uint16, scroll int8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.write(s.absMouse, "digitizer", []byte{
		device.DigitizerButtons(buttons),
		byte(x), byte(x >> 8),
		byte(y), byte(y >> 8),
	})
	if err != nil {
		return err
	}
	if scroll != 0 {
		// No wheel in the digitizer report; emit it through the relative
		// mouse endpoint.
		return s.write(s.mouse, "mouse", []byte{0, 0, 0, byte(scroll)})
	}
	return nil
}

func (s *Sink) SendConsumerReport(usage uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.consumer, "consumer", []byte{byte(usage), byte(usage >> 8)})
}
