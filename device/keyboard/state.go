package keyboard

// Event is one discrete key transition derived from a snapshot diff.
// Modifier events carry the modifier's usage code (0xE0-0xE7), not its
// bitmask position.
type Event struct {
	Key      uint8
	Press    bool
	Modifier bool
}

// State is the held-key model for one session. Snapshots are diffed against
// it to produce minimal transitions: a key present in consecutive snapshots
// generates nothing, regardless of which slot it occupies.
//
// Not safe for concurrent use; the session run loop is the only writer.
type State struct {
	modifiers uint8
	held      [Slots]uint8
}

// Apply diffs the snapshot against the current model, advances the model and
// returns the transitions in a stable order: modifier changes in bit order,
// then key releases, then key presses.
//
// A key that stays held keeps its slot in the model, so the host never sees
// a spurious release/press pair for it. Newly pressed keys fill the lowest
// free slot. The snapshot's own slot assignment is ignored; only set
// membership matters.
func (st *State) Apply(snap Snapshot) []Event {
	var events []Event

	if changed := st.modifiers ^ snap.Modifiers; changed != 0 {
		for bit := 0; bit < 8; bit++ {
			mask := uint8(1) << bit
			if changed&mask == 0 {
				continue
			}
			events = append(events, Event{
				Key:      ModifierUsageBase + uint8(bit),
				Press:    snap.Modifiers&mask != 0,
				Modifier: true,
			})
		}
		st.modifiers = snap.Modifiers
	}

	// Releases first so a swap within a full report frees the slot before
	// the new key claims one.
	for i, key := range st.held {
		if key != 0 && !snap.Held(key) {
			events = append(events, Event{Key: key, Press: false})
			st.held[i] = 0
		}
	}

	for _, key := range snap.Keys {
		if key == 0 || st.heldKey(key) {
			continue
		}
		for i := range st.held {
			if st.held[i] == 0 {
				st.held[i] = key
				events = append(events, Event{Key: key, Press: true})
				break
			}
		}
	}

	return events
}

// Reset releases everything held and returns the release events. The caller
// forwards them as an all-zero report so the host drops its phantom state.
func (st *State) Reset() []Event {
	return st.Apply(Snapshot{})
}

// Modifiers returns the current modifier bitmask for the outgoing report.
func (st *State) Modifiers() uint8 { return st.modifiers }

// Keys returns the current slot assignment for the outgoing report.
func (st *State) Keys() [Slots]uint8 { return st.held }

// HeldCount returns the number of occupied key slots.
func (st *State) HeldCount() int {
	n := 0
	for _, k := range st.held {
		if k != 0 {
			n++
		}
	}
	return n
}

func (st *State) heldKey(key uint8) bool {
	for _, k := range st.held {
		if k == key {
			return true
		}
	}
	return false
}
