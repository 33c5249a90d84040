//go:build !linux

package uhid

import (
	"errors"
	"log/slog"
)

// ErrUnsupported is returned on platforms without /dev/uhid.
var ErrUnsupported = errors.New("uhid sink requires linux")

// Sink is unavailable on this platform.
type Sink struct{}

func New(name string, logger *slog.Logger) (*Sink, error) { return nil, ErrUnsupported }

func (s *Sink) Close() error   { return ErrUnsupported }
func (s *Sink) Recover() error { return ErrUnsupported }

func (s *Sink) SendKeyboardReport(modifiers uint8, keys [6]uint8) error { return ErrUnsupported }
func (s *Sink) SendMouseReport(buttons uint8, dx, dy, scroll int8) error {
	return ErrUnsupported
}
func (s *Sink) SendAbsMouseReport(buttons uint8, x, y uint16, scroll int8) error {
	return ErrUnsupported
}
func (s *Sink) SendConsumerReport(usage uint16) error { return ErrUnsupported }
