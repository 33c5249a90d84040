// Package mouse decodes dual-mode pointer updates and tracks held-button
// state independently of motion.
package mouse

import (
	"errors"
	"fmt"
	"io"
)

// Mode indicator byte, first payload byte of every mouse frame. The protocol
// does not fix a mode per session; every frame declares its own.
const (
	ModeRelative = 0x01
	ModeAbsolute = 0x02
)

// Button bits shared by both modes.
const (
	ButtonLeft   = 0x01
	ButtonRight  = 0x02
	ButtonMiddle = 0x04
	ButtonMask   = ButtonLeft | ButtonRight | ButtonMiddle
)

// ButtonName maps a single button bit to a name for logging.
var ButtonName = map[uint8]string{
	ButtonLeft:   "left",
	ButtonRight:  "right",
	ButtonMiddle: "middle",
}

// Wire payload minimums per mode: mode byte, buttons, then either
// dx/dy/scroll or x(2)/y(2)/scroll.
const (
	RelativeWireSize = 5
	AbsoluteWireSize = 7
)

// ErrUnknownMode reports a mode indicator byte that is neither relative nor
// absolute. Treated as a protocol-logic error: logged and dropped.
var ErrUnknownMode = errors.New("unknown mouse mode")

// Update is either a Relative or an Absolute pointer update. The union is
// resolved once at the decode boundary; nothing downstream branches on the
// raw mode byte.
type Update interface {
	// Buttons returns the desired held-button bitmask, masked to the three
	// supported buttons.
	Buttons() uint8

	isUpdate()
}

// Relative is a delta-based pointer update.
type Relative struct {
	ButtonState uint8
	DX, DY      int8
	Scroll      int8
}

func (r Relative) Buttons() uint8 { return r.ButtonState & ButtonMask }
func (Relative) isUpdate()        {}

// Motion reports whether the update carries any movement or scroll.
func (r Relative) Motion() bool { return r.DX != 0 || r.DY != 0 || r.Scroll != 0 }

// Absolute is a self-contained pointer position on the 0-32767 digitizer
// scale. The sender maps screen pixels into that range; the bridge forwards
// the coordinates untouched.
type Absolute struct {
	ButtonState uint8
	X, Y        uint16
	Scroll      int8
}

func (a Absolute) Buttons() uint8 { return a.ButtonState & ButtonMask }
func (Absolute) isUpdate()        {}

// DecodeUpdate parses a mouse frame payload into the matching update type.
func DecodeUpdate(payload []byte) (Update, error) {
	if len(payload) < 1 {
		return nil, io.ErrUnexpectedEOF
	}
	switch payload[0] {
	case ModeRelative:
		if len(payload) < RelativeWireSize {
			return nil, io.ErrUnexpectedEOF
		}
		return Relative{
			ButtonState: payload[1],
			DX:          clampSigned(payload[2]),
			DY:          clampSigned(payload[3]),
			Scroll:      clampSigned(payload[4]),
		}, nil
	case ModeAbsolute:
		if len(payload) < AbsoluteWireSize {
			return nil, io.ErrUnexpectedEOF
		}
		return Absolute{
			ButtonState: payload[1],
			X:           uint16(payload[2]) | uint16(payload[3])<<8,
			Y:           uint16(payload[4]) | uint16(payload[5])<<8,
			Scroll:      clampSigned(payload[6]),
		}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownMode, payload[0])
	}
}

// clampSigned interprets a wire byte as a signed delta in -127..127.
// Senders are supposed to clamp before transmission, but not all
// implementations agree, so -128 is re-clamped here instead of rejected.
func clampSigned(b byte) int8 {
	v := int8(b)
	if v == -128 {
		return -127
	}
	return v
}
