// Package protocol implements the framed binary protocol spoken between the
// controller (browser) and the bridge device.
//
// Every frame has the same shape regardless of direction:
//
//	byte 0: HEAD1 (0x57)
//	byte 1: HEAD2 (0xAB)
//	byte 2: address (reserved, always 0x00)
//	byte 3: command
//	byte 4: payload length (0-255)
//	byte 5..: payload
//	last byte: checksum (sum of all preceding bytes mod 256)
package protocol

// Frame header constants.
const (
	Head1 = 0x57
	Head2 = 0xAB
)

// Overhead is the number of non-payload bytes in a frame:
// two header bytes, address, command, length and checksum.
const Overhead = 6

// MaxPayload is the largest payload a single frame can carry.
const MaxPayload = 255

// Command codes. 0x0x are input commands, 0x8x are control-plane commands.
const (
	CmdGetInfo       uint8 = 0x01 // answered with an info notification
	CmdKeyboard      uint8 = 0x02 // full keyboard snapshot: modifier, reserved, 6 key slots
	CmdConsumer      uint8 = 0x03 // consumer/media usage, little-endian u16
	CmdMouseAbsolute uint8 = 0x04 // mode, buttons, x u16 LE, y u16 LE, scroll
	CmdMouseRelative uint8 = 0x05 // mode, buttons, dx, dy, scroll

	CmdReleaseCapture    uint8 = 0x80 // outbound only: bridge asks controller to release input capture
	CmdDisplayBrightness uint8 = 0x81
	CmdDisplayTimeout    uint8 = 0x82
	CmdUSBWake           uint8 = 0x83
	CmdUSBRecovery       uint8 = 0x84
	CmdDeviceReset       uint8 = 0x85
)

// CommandName maps command codes to names for logging.
var CommandName = map[uint8]string{
	CmdGetInfo:           "get-info",
	CmdKeyboard:          "keyboard",
	CmdConsumer:          "consumer",
	CmdMouseAbsolute:     "mouse-absolute",
	CmdMouseRelative:     "mouse-relative",
	CmdReleaseCapture:    "release-capture",
	CmdDisplayBrightness: "display-brightness",
	CmdDisplayTimeout:    "display-timeout",
	CmdUSBWake:           "usb-wake",
	CmdUSBRecovery:       "usb-recovery",
	CmdDeviceReset:       "device-reset",
}

// Packet is one decoded frame. It is constructed per logical event and
// discarded right after dispatch; nothing retains it.
type Packet struct {
	Command uint8
	Payload []byte
}

// Size returns the encoded frame size of the packet.
func (p *Packet) Size() int { return Overhead + len(p.Payload) }
