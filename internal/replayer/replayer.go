// Package replayer emits scheduled packets into the compositor's
// virtual-pointer and virtual-keyboard protocols (spec.md §4.8).
package replayer

import (
	"fmt"
	"math"

	"github.com/bnema/wlturbo/wl"

	"github.com/bnema/keyveil/internal/geometry"
	"github.com/bnema/keyveil/internal/scheduler"
	"github.com/bnema/keyveil/internal/wlproto"
)

// maxWireTime is the virtual-pointer/-keyboard protocols' 32-bit
// millisecond timestamp ceiling.
const maxWireTime = math.MaxUint32

// TimestampOverflowError is returned once a packet's deadline would not
// fit the wire protocol's 32-bit timestamp — a clean-exit condition per
// spec.md §4.8, not a crash.
type TimestampOverflowError struct {
	SchedTime int64
}

func (e *TimestampOverflowError) Error() string {
	return fmt.Sprintf("replayer: sched_time %d exceeds the 32-bit protocol timestamp range", e.SchedTime)
}

// Replayer drains ready packets and re-dispatches them onto the
// compositor's synthetic input devices.
type Replayer struct {
	pointer  *wlproto.VirtualPointer
	keyboard *wlproto.VirtualKeyboard
	geo      *geometry.Engine
}

// New returns a Replayer bound to an already-created virtual pointer
// and (possibly nil) virtual keyboard. A nil keyboard means the
// compositor refused zwp_virtual_keyboard_manager_v1's create request
// (spec.md §6's "unauthorized" sentinel); Key packets are then dropped.
func New(pointer *wlproto.VirtualPointer, keyboard *wlproto.VirtualKeyboard, geo *geometry.Engine) *Replayer {
	return &Replayer{pointer: pointer, keyboard: keyboard, geo: geo}
}

// Drain pops and emits every packet in q whose deadline is <= now.
// It stops and returns a *TimestampOverflowError at the first packet
// whose scheduled time no longer fits the wire format — callers should
// treat that as a request for clean shutdown, not retry.
func (r *Replayer) Drain(q *scheduler.Queue, now int64) error {
	for _, p := range q.PopReady(now) {
		if p.SchedTime < 0 || p.SchedTime > maxWireTime {
			return &TimestampOverflowError{SchedTime: p.SchedTime}
		}
		if err := r.emit(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replayer) emit(p scheduler.Packet) error {
	ts := uint32(p.SchedTime)
	switch p.Kind {
	case scheduler.KindMotion:
		return r.emitMotion(ts, p.Motion)
	case scheduler.KindButton:
		return r.emitButton(ts, p.Button)
	case scheduler.KindScroll:
		return r.emitScroll(ts, p.Scroll)
	case scheduler.KindKey:
		return r.emitKey(ts, p.Key)
	default:
		return fmt.Errorf("replayer: unknown packet kind %d", p.Kind)
	}
}

// emitMotion sends motion_absolute against the full global-space
// extent (spec.md §4.8: "motion_absolute(ts, x-origin.x, y-origin.y,
// extent.x-origin.x, extent.y-origin.y)") followed by a frame.
func (r *Replayer) emitMotion(ts uint32, m scheduler.Motion) error {
	origin := r.geo.Origin()
	extent := r.geo.Extent()
	x := uint32(m.X - origin.X)
	y := uint32(m.Y - origin.Y)
	xExtent := uint32(extent.X - origin.X)
	yExtent := uint32(extent.Y - origin.Y)
	if err := r.pointer.MotionAbsolute(ts, x, y, xExtent, yExtent); err != nil {
		return err
	}
	return r.pointer.Frame()
}

func (r *Replayer) emitButton(ts uint32, b scheduler.Button) error {
	state := wlproto.ButtonStateReleased
	if b.Pressed {
		state = wlproto.ButtonStatePressed
	}
	if err := r.pointer.Button(ts, uint32(b.Code), state); err != nil {
		return err
	}
	return r.pointer.Frame()
}

func (r *Replayer) emitScroll(ts uint32, s scheduler.Scroll) error {
	axis := wlproto.AxisVerticalScroll
	if s.Axis == scheduler.AxisHorizontal {
		axis = wlproto.AxisHorizontalScroll
	}
	source := wireAxisSource(s.Source)
	if err := r.pointer.WireAxisSource(source); err != nil {
		return err
	}
	if err := r.pointer.WireAxis(ts, axis, wl.Fixed(s.Value*256)); err != nil {
		return err
	}
	return r.pointer.Frame()
}

func wireAxisSource(s scheduler.ScrollSource) wlproto.AxisSource {
	switch s {
	case scheduler.ScrollFinger:
		return wlproto.AxisSourceFinger
	case scheduler.ScrollContinuous:
		return wlproto.AxisSourceContinuous
	default:
		return wlproto.AxisSourceWheel
	}
}

// emitKey emits the recorded modifier snapshot before the key event
// itself (spec.md §4.8's "modifiers ... followed by the key event"),
// so the compositor sees the post-update modifier state attached to
// the keypress that caused it.
func (r *Replayer) emitKey(ts uint32, k scheduler.Key) error {
	if r.keyboard == nil {
		return nil
	}
	if err := r.keyboard.Modifiers(k.Modifiers, 0, 0, 0); err != nil {
		return err
	}
	state := uint32(0)
	if k.Pressed {
		state = 1
	}
	return r.keyboard.Key(ts, uint32(k.Code), state)
}
