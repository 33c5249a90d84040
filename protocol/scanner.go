package protocol

import "errors"

// Scanner reassembles whole frames from an arbitrarily chunked byte stream.
// Transports deliver whatever the link hands them (a BLE notification, a
// serial read, a WebSocket message); the scanner buffers across chunk
// boundaries and resynchronizes on the two-byte header after corruption,
// discarding one byte at a time like the firmware receive loop does.
//
// Not safe for concurrent use; each session owns exactly one scanner.
type Scanner struct {
	buf     []byte
	dropped uint64
}

// Feed appends data to the internal buffer and returns every complete,
// checksum-valid frame now available, in stream order. Corrupt bytes are
// silently skipped (counted via Dropped).
func (s *Scanner) Feed(data []byte) []*Packet {
	s.buf = append(s.buf, data...)

	var pkts []*Packet
	for {
		if len(s.buf) == 0 {
			break
		}
		if s.buf[0] != Head1 {
			s.skip(1)
			continue
		}
		if len(s.buf) < 2 {
			break
		}
		if s.buf[1] != Head2 {
			s.skip(1)
			continue
		}
		if len(s.buf) < 5 {
			break
		}
		need := Overhead + int(s.buf[4])
		if len(s.buf) < need {
			break
		}
		pkt, err := Decode(s.buf[:need])
		if err != nil {
			// Checksum failure inside a plausible frame: the header match may
			// itself be corrupt payload, so resync one byte at a time.
			s.skip(1)
			continue
		}
		pkts = append(pkts, pkt)
		s.buf = s.buf[need:]
	}
	return pkts
}

// Reset discards any partially buffered frame. Called on disconnect so a new
// session never starts mid-frame.
func (s *Scanner) Reset() {
	s.buf = nil
}

// Dropped returns the number of bytes discarded during resynchronization.
func (s *Scanner) Dropped() uint64 { return s.dropped }

// Pending returns the number of buffered bytes awaiting a complete frame.
func (s *Scanner) Pending() int { return len(s.buf) }

func (s *Scanner) skip(n int) {
	s.buf = s.buf[n:]
	s.dropped += uint64(n)
}

// IsCorruption reports whether err is one of the decode failures that should
// be dropped silently rather than logged as a protocol error.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrTooShort) ||
		errors.Is(err, ErrBadHeader) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrChecksumMismatch)
}
