package mouse_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykvm/bridge/device/mouse"
)

func TestDecodeRelative(t *testing.T) {
	// Left button held, move right 10 and up 5.
	u, err := mouse.DecodeUpdate([]byte{0x01, 0x01, 10, 0xFB, 0})
	require.NoError(t, err)

	rel, ok := u.(mouse.Relative)
	require.True(t, ok)
	assert.Equal(t, uint8(mouse.ButtonLeft), rel.Buttons())
	assert.Equal(t, int8(10), rel.DX)
	assert.Equal(t, int8(-5), rel.DY)
	assert.Equal(t, int8(0), rel.Scroll)
	assert.True(t, rel.Motion())
}

func TestDecodeAbsolute(t *testing.T) {
	// Mid-scale position, no buttons: maps to screen center on the sender's
	// scale; the bridge forwards the 16-bit values untouched.
	u, err := mouse.DecodeUpdate([]byte{0x02, 0x00, 0xFF, 0x3F, 0xFF, 0x3F, 0})
	require.NoError(t, err)

	abs, ok := u.(mouse.Absolute)
	require.True(t, ok)
	assert.Equal(t, uint16(16383), abs.X)
	assert.Equal(t, uint16(16383), abs.Y)
	assert.Zero(t, abs.Buttons())
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"empty", nil, io.ErrUnexpectedEOF},
		{"relative too short", []byte{0x01, 0x00, 1, 1}, io.ErrUnexpectedEOF},
		{"absolute too short", []byte{0x02, 0x00, 1, 0, 1, 0}, io.ErrUnexpectedEOF},
		{"unknown mode", []byte{0x03, 0x00, 0, 0, 0}, mouse.ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mouse.DecodeUpdate(tt.payload)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// -128 on the wire is reserved; the receiver re-clamps it to -127 instead of
// rejecting the frame, since senders disagree about pre-clamping.
func TestDefensiveClamp(t *testing.T) {
	u, err := mouse.DecodeUpdate([]byte{0x01, 0x00, 0x80, 0x80, 0x80})
	require.NoError(t, err)
	rel := u.(mouse.Relative)
	assert.Equal(t, int8(-127), rel.DX)
	assert.Equal(t, int8(-127), rel.DY)
	assert.Equal(t, int8(-127), rel.Scroll)
}

func TestButtonDiff(t *testing.T) {
	var st mouse.State

	events := st.ApplyButtons(mouse.ButtonLeft)
	require.Len(t, events, 1)
	assert.Equal(t, mouse.ButtonEvent{Button: mouse.ButtonLeft, Press: true}, events[0])

	// Unchanged mask: no events, regardless of motion in the same frame.
	assert.Empty(t, st.ApplyButtons(mouse.ButtonLeft))

	// Swap left for right+middle: one release, two presses, bit order.
	events = st.ApplyButtons(mouse.ButtonRight | mouse.ButtonMiddle)
	require.Len(t, events, 3)
	assert.Equal(t, mouse.ButtonEvent{Button: mouse.ButtonLeft, Press: false}, events[0])
	assert.Equal(t, mouse.ButtonEvent{Button: mouse.ButtonRight, Press: true}, events[1])
	assert.Equal(t, mouse.ButtonEvent{Button: mouse.ButtonMiddle, Press: true}, events[2])
}

// Bits above the three supported buttons are masked off, not diffed.
func TestButtonMasking(t *testing.T) {
	var st mouse.State
	events := st.ApplyButtons(0xF8)
	assert.Empty(t, events)
	assert.Zero(t, st.Buttons())
}

func TestButtonReset(t *testing.T) {
	var st mouse.State
	st.ApplyButtons(mouse.ButtonLeft | mouse.ButtonMiddle)

	events := st.Reset()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.False(t, ev.Press)
	}
	assert.Empty(t, st.Reset())
}
