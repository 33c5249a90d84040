package mouse

// ButtonEvent is one discrete button transition.
type ButtonEvent struct {
	Button uint8 // single bit: ButtonLeft, ButtonRight or ButtonMiddle
	Press  bool
}

// State tracks the held-button bitmask for one session. Buttons are diffed
// bit-by-bit against it, independent of whatever motion the same frame
// carries; motion is stateless and never stored (absolute frames are
// self-contained, relative frames are pure deltas).
//
// Not safe for concurrent use; the session run loop is the only writer.
type State struct {
	buttons uint8
}

// ApplyButtons diffs the desired bitmask against the held one, replaces it,
// and returns the per-button transitions in bit order. An unchanged bitmask
// returns no events.
func (st *State) ApplyButtons(buttons uint8) []ButtonEvent {
	buttons &= ButtonMask
	changed := st.buttons ^ buttons
	if changed == 0 {
		return nil
	}

	var events []ButtonEvent
	for _, bit := range []uint8{ButtonLeft, ButtonRight, ButtonMiddle} {
		if changed&bit != 0 {
			events = append(events, ButtonEvent{Button: bit, Press: buttons&bit != 0})
		}
	}
	st.buttons = buttons
	return events
}

// Reset releases all held buttons and returns the release events. The caller
// forwards them as a zero-button report so the host does not keep a phantom
// drag after disconnect.
func (st *State) Reset() []ButtonEvent {
	return st.ApplyButtons(0)
}

// Buttons returns the currently held bitmask.
func (st *State) Buttons() uint8 { return st.buttons }
