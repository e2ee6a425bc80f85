// Package translator converts device events into either a pointer-motion
// engine update or a replay-ready scheduler packet, per spec.md §4.5.
package translator

import (
	"github.com/bnema/keyveil/internal/modifiers"
	"github.com/bnema/keyveil/internal/motion"
	"github.com/bnema/keyveil/internal/scheduler"
)

// Translator holds the mutable state a stream of device events is
// dispatched against: the motion engine (for relative/absolute pointer
// moves) and the modifier tracker (for keyboard events).
type Translator struct {
	motion *motion.Engine
	mods   *modifiers.Tracker
	sched  *scheduler.Scheduler

	tapCapable []string
}

// New returns a Translator wired to the given motion engine and
// scheduler.
func New(m *motion.Engine, s *scheduler.Scheduler) *Translator {
	return &Translator{motion: m, mods: modifiers.New(), sched: s}
}

// DeviceAdded is the "device added" dispatch case of spec.md §4.5: a
// newly attached device reporting tap-to-click capability is recorded
// here. kloak.c's equivalent calls
// libinput_device_config_tap_set_enabled directly because libinput owns
// gesture recognition; keyveil grabs raw evdev nodes instead of going
// through libinput, so there is no config call left to make — tap
// gestures on a capable touchpad arrive as ordinary BTN_LEFT events
// from the kernel whether or not anything "enables" them. This only
// keeps a record for diagnostics.
func (t *Translator) DeviceAdded(path string, tapCapable bool) {
	if tapCapable {
		t.tapCapable = append(t.tapCapable, path)
	}
}

// TapCapableDevices returns the paths recorded by DeviceAdded.
func (t *Translator) TapCapableDevices() []string {
	return t.tapCapable
}

// RelativeMotion handles a relative pointer-motion event: adds (dx, dy)
// to the cursor via the motion engine, then hands the result to the
// scheduler's coalescing enqueue.
func (t *Translator) RelativeMotion(dx, dy int32, now int64) error {
	if err := t.motion.ApplyRelative(dx, dy); err != nil {
		return err
	}
	cur := t.motion.Cursor().Cur
	_, err := t.sched.EnqueueMotion(cur.X, cur.Y, now)
	return err
}

// AbsoluteMotion handles an absolute (device-normalized) pointer-motion
// event.
func (t *Translator) AbsoluteMotion(nx, ny float64, now int64) error {
	if err := t.motion.ApplyAbsolute(nx, ny); err != nil {
		return err
	}
	cur := t.motion.Cursor().Cur
	_, err := t.sched.EnqueueMotion(cur.X, cur.Y, now)
	return err
}

// Button handles a pointer button event: always an opaque packet.
func (t *Translator) Button(code int, pressed bool, now int64) error {
	_, err := t.sched.Enqueue(scheduler.Packet{
		Kind:   scheduler.KindButton,
		Button: scheduler.Button{Code: code, Pressed: pressed},
	}, now)
	return err
}

// Scroll handles a pointer axis event.
func (t *Translator) Scroll(axis scheduler.Axis, value float64, source scheduler.ScrollSource, now int64) error {
	_, err := t.sched.Enqueue(scheduler.Packet{
		Kind:   scheduler.KindScroll,
		Scroll: scheduler.Scroll{Axis: axis, Value: value, Source: source},
	}, now)
	return err
}

// Key handles a keyboard key event: updates modifier state first, then
// emits an opaque packet carrying the post-update modifier snapshot
// (spec.md §4.5 last bullet).
func (t *Translator) Key(code int, pressed bool, now int64) error {
	snapshot := t.mods.Update(code, pressed)
	_, err := t.sched.Enqueue(scheduler.Packet{
		Kind: scheduler.KindKey,
		Key:  scheduler.Key{Code: code, Pressed: pressed, Modifiers: snapshot},
	}, now)
	return err
}

// Modifiers exposes the live modifier tracker.
func (t *Translator) Modifiers() *modifiers.Tracker {
	return t.mods
}
