// Package device defines the HID output contract shared by all sink
// implementations and the report descriptors the bridge presents to the host.
package device

// Sink asserts input-device state to the target computer. Implementations
// wrap a native HID stack (uhid, USB gadget, Bluetooth HID profile).
//
// Every send is fallible. Callers log failures but do not retry: re-sending a
// stale report can double key events on the host. The state machines advance
// their internal model regardless of send outcome so the next diff is
// computed against the intended state; Resync on the session re-asserts the
// full current state when a desync is suspected.
type Sink interface {
	// SendKeyboardReport asserts the full keyboard state: modifier bitmask
	// plus up to six held key usage codes (zero = empty slot).
	SendKeyboardReport(modifiers uint8, keys [6]uint8) error

	// SendMouseReport asserts relative mouse state: held buttons plus deltas.
	SendMouseReport(buttons uint8, dx, dy, scroll int8) error

	// SendAbsMouseReport asserts absolute pointer state on the 0-32767
	// digitizer scale. Requires a digitizer report type on the host side;
	// it is not emulable through a relative-mouse descriptor. The digitizer
	// report carries no wheel, so sinks forward a nonzero scroll as a
	// wheel-only relative report after the absolute one.
	SendAbsMouseReport(buttons uint8, x, y uint16, scroll int8) error

	// SendConsumerReport asserts a consumer/media usage. Zero releases.
	SendConsumerReport(usage uint16) error
}

// Recoverer is optionally implemented by sinks that can rebuild their
// underlying HID channel, for the USB soft-recovery command. Recover may
// reset the bridge process as a side effect of unsticking a dead USB stack;
// that is an accepted outcome, not a failure.
type Recoverer interface {
	Recover() error
}
