package keyboard

// Modifier key bitmasks, matching both the wire snapshot's modifier byte and
// the HID keyboard report's first byte.
const (
	ModLeftCtrl   = 0x01
	ModLeftShift  = 0x02
	ModLeftAlt    = 0x04
	ModLeftGUI    = 0x08
	ModRightCtrl  = 0x10
	ModRightShift = 0x20
	ModRightAlt   = 0x40
	ModRightGUI   = 0x80
)

// ModifierUsageBase is the HID usage code of Left Control; modifier bit N
// corresponds to usage ModifierUsageBase+N (0xE0-0xE7).
const ModifierUsageBase = 0xE0

// Slots is the number of simultaneously held non-modifier keys a snapshot
// (and the HID report) can carry.
const Slots = 6

// Common HID usage codes (Keyboard/Keypad usage page), for tests and logs.
const (
	KeyA         = 0x04
	KeyB         = 0x05
	KeyC         = 0x06
	KeyD         = 0x07
	KeyEnter     = 0x28
	KeyEscape    = 0x29
	KeyBackspace = 0x2A
	KeyTab       = 0x2B
	KeySpace     = 0x2C
	KeyCapsLock  = 0x39
	KeyF1        = 0x3A
	KeyDelete    = 0x4C
	KeyRight     = 0x4F
	KeyLeft      = 0x50
	KeyDown      = 0x51
	KeyUp        = 0x52
)

// ModifierName maps modifier bit index (0-7) to a name for logging.
var ModifierName = [8]string{
	"LeftCtrl", "LeftShift", "LeftAlt", "LeftGUI",
	"RightCtrl", "RightShift", "RightAlt", "RightGUI",
}
