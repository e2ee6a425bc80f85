// Package modifiers tracks the handful of modifier keys the replayer
// must attach to replayed keystrokes. Per spec.md §1, full XKB
// context/keymap bookkeeping is an out-of-scope external collaborator;
// this is the trivial bitmask subset the scheduler actually needs.
package modifiers

import "github.com/bnema/keyveil/internal/keycodes"

// Tracker holds live modifier key state, keyed by evdev key code.
type Tracker struct {
	depressed uint32
}

// New returns a Tracker with no modifiers held.
func New() *Tracker {
	return &Tracker{}
}

// Update applies a single key press/release to the tracker and returns
// the resulting snapshot. It must be called, and its result captured,
// before the owning keypress packet is constructed — per spec.md §4.5 a
// replayed key carries the modifier state *after* this update.
func (t *Tracker) Update(code int, pressed bool) uint32 {
	bit, ok := bitFor(code)
	if ok {
		if pressed {
			t.depressed |= bit
		} else {
			t.depressed &^= bit
		}
	}
	return t.depressed
}

// Snapshot returns the current modifier bitmask without mutating it.
func (t *Tracker) Snapshot() uint32 {
	return t.depressed
}

func bitFor(code int) (uint32, bool) {
	switch code {
	case mustLookup("KEY_LEFTSHIFT"), mustLookup("KEY_RIGHTSHIFT"):
		return keycodes.ModShift, true
	case mustLookup("KEY_LEFTCTRL"), mustLookup("KEY_RIGHTCTRL"):
		return keycodes.ModCtrl, true
	case mustLookup("KEY_LEFTALT"), mustLookup("KEY_RIGHTALT"):
		return keycodes.ModAlt, true
	case mustLookup("KEY_LEFTMETA"), mustLookup("KEY_RIGHTMETA"):
		return keycodes.ModMeta, true
	default:
		return 0, false
	}
}

func mustLookup(name string) int {
	code, err := keycodes.Lookup(name)
	if err != nil {
		panic(err)
	}
	return code
}
