package protocol

import (
	"errors"
	"fmt"
)

// Decode failure modes. All of them are transport-corruption signals: the
// caller discards the malformed unit and keeps listening. None of them may
// terminate a session.
var (
	ErrTooShort         = errors.New("frame too short")
	ErrBadHeader        = errors.New("bad frame header")
	ErrLengthMismatch   = errors.New("frame shorter than declared length")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrPayloadTooLarge  = errors.New("payload exceeds 255 bytes")
)

// Encode serializes a command and payload into a wire frame.
func Encode(command uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	buf := make([]byte, Overhead+len(payload))
	buf[0] = Head1
	buf[1] = Head2
	buf[2] = 0x00 // address, reserved
	buf[3] = command
	buf[4] = uint8(len(payload))
	copy(buf[5:], payload)
	buf[len(buf)-1] = Checksum(buf[:len(buf)-1])
	return buf, nil
}

// Decode deserializes one frame from the start of data. Trailing bytes beyond
// the declared frame are ignored; the stream scanner owns framing.
func Decode(data []byte) (*Packet, error) {
	if len(data) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes (need at least %d)", ErrTooShort, len(data), Overhead)
	}
	if data[0] != Head1 || data[1] != Head2 {
		return nil, fmt.Errorf("%w: %02x %02x", ErrBadHeader, data[0], data[1])
	}
	length := int(data[4])
	if len(data) < Overhead+length {
		return nil, fmt.Errorf("%w: declared %d, have %d payload bytes", ErrLengthMismatch, length, len(data)-Overhead)
	}
	end := 5 + length
	if Checksum(data[:end]) != data[end] {
		return nil, fmt.Errorf("%w: computed %02x, frame carries %02x", ErrChecksumMismatch, Checksum(data[:end]), data[end])
	}
	pkt := &Packet{Command: data[3]}
	if length > 0 {
		pkt.Payload = make([]byte, length)
		copy(pkt.Payload, data[5:end])
	}
	return pkt, nil
}

// Checksum sums all bytes mod 256. A single-byte sum is a corruption hint,
// not a CRC-strength integrity check.
func Checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}
