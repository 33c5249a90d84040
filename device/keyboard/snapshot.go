// Package keyboard decodes full-state keyboard snapshots and diffs them into
// minimal press/release transitions against the held-key model.
package keyboard

import "io"

// WireSize is the fixed snapshot payload length: modifier byte, reserved
// byte, six key slots.
const WireSize = 8

// Snapshot is one full-state keyboard frame. It mirrors the boot-protocol
// HID keyboard report: a modifier bitmask and up to six held usage codes.
// Slot order carries no meaning; two snapshots holding the same key set are
// equivalent.
type Snapshot struct {
	Modifiers uint8
	Keys      [Slots]uint8
}

// UnmarshalBinary parses the 8-byte wire payload. The second byte is
// reserved and ignored.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	if len(data) < WireSize {
		return io.ErrUnexpectedEOF
	}
	s.Modifiers = data[0]
	copy(s.Keys[:], data[2:WireSize])
	return nil
}

// MarshalBinary renders the 8-byte wire payload.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	data := make([]byte, WireSize)
	data[0] = s.Modifiers
	copy(data[2:], s.Keys[:])
	return data, nil
}

// Held reports whether the snapshot contains the given non-modifier usage
// code.
func (s *Snapshot) Held(key uint8) bool {
	if key == 0 {
		return false
	}
	for _, k := range s.Keys {
		if k == key {
			return true
		}
	}
	return false
}
