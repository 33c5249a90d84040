// Package bridge contains the session core: it turns the inbound frame
// stream into HID sink calls and control-plane side effects, and owns the
// keyboard/mouse state machines for the one active connection.
package bridge

// Brightness is the coarse display level carried by the brightness command.
type Brightness uint8

const (
	BrightnessOff Brightness = iota
	BrightnessDim
	BrightnessOn
)

func (b Brightness) String() string {
	switch b {
	case BrightnessOff:
		return "off"
	case BrightnessDim:
		return "dim"
	case BrightnessOn:
		return "on"
	default:
		return "unknown"
	}
}

// Display is the bridge's local status display, if it has one. Implementations
// translate the coarse level into a device-specific intensity.
type Display interface {
	SetBrightness(level Brightness) error
}

// Resetter performs the unconditional device restart behind the device-reset
// command. Nothing is preserved; the connection drops and the controller is
// expected to reconnect against fresh all-zero state.
type Resetter interface {
	Reset() error
}

// StatusLED is an optional connection indicator on the bridge hardware.
type StatusLED interface {
	Set(on bool)
}
