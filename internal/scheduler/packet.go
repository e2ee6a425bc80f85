// Package scheduler implements the delay scheduler and its FIFO event
// queue: spec.md §4.7, the component that picks a random release time
// per event while preserving original arrival order.
package scheduler

// Kind tags the payload carried by a Packet.
type Kind int

const (
	// KindMotion carries a coalesced pointer position in global space.
	KindMotion Kind = iota
	// KindButton carries a pointer button press/release.
	KindButton
	// KindScroll carries a pointer axis event (wheel/finger/continuous).
	KindScroll
	// KindKey carries a keyboard key press/release plus its recorded
	// modifier snapshot.
	KindKey
)

// Motion is the payload for KindMotion.
type Motion struct {
	X, Y int32
}

// Button is the payload for KindButton.
type Button struct {
	Code    int
	Pressed bool
}

// ScrollSource identifies the origin of an axis event, mirroring the
// virtual-pointer protocol's axis-source enum.
type ScrollSource int

const (
	ScrollWheel ScrollSource = iota
	ScrollFinger
	ScrollContinuous
)

// Axis identifies which scroll axis an event applies to.
type Axis int

const (
	AxisVertical Axis = iota
	AxisHorizontal
)

// Scroll is the payload for KindScroll.
type Scroll struct {
	Axis   Axis
	Value  float64
	Source ScrollSource
}

// Key is the payload for KindKey. Modifiers is the snapshot taken
// *after* the keypress updated modifier state (spec.md §4.5) — replay
// emits this recorded value, not live state at replay time.
type Key struct {
	Code      int
	Pressed   bool
	Modifiers uint32
}

// Packet is the tagged union queued between arrival and replay.
// SchedTime is the monotonic millisecond deadline at which it may be
// released; packets in a Queue always carry non-decreasing SchedTime.
type Packet struct {
	Kind      Kind
	SchedTime int64

	Motion Motion
	Button Button
	Scroll Scroll
	Key    Key
}
