package wlproto

import "github.com/bnema/wlturbo/wl"

// Protocol interface names for xdg-output-unstable-v1.
const (
	XDGOutputManagerInterface = "zxdg_output_manager_v1"
	XDGOutputInterface        = "zxdg_output_v1"
)

// XDGOutputManager hands out per-output logical geometry objects.
type XDGOutputManager struct {
	wl.BaseProxy
}

func newXDGOutputManager(ctx *wl.Context) *XDGOutputManager {
	m := &XDGOutputManager{}
	m.SetContext(ctx)
	return m
}

// GetXDGOutput requests the logical-coordinate companion object for a
// bound wl_output.
func (m *XDGOutputManager) GetXDGOutput(output *wl.Output) (*XDGOutput, error) {
	id := m.Context().AllocateID()
	xo := &XDGOutput{}
	xo.SetContext(m.Context())
	xo.SetID(id)
	m.Context().Register(xo)

	const opcode = 1
	if err := m.Context().SendRequest(m, opcode, xo, output); err != nil {
		m.Context().Unregister(xo)
		return nil, err
	}
	return xo, nil
}

// Destroy destroys the manager binding.
func (m *XDGOutputManager) Destroy() error {
	const opcode = 0
	err := m.Context().SendRequest(m, opcode)
	m.Context().Unregister(m)
	return err
}

// Dispatch handles incoming events (the manager has none).
func (m *XDGOutputManager) Dispatch(_ *wl.Event) {}

// XDGOutput carries an output's logical position and size — the values
// geometry.Engine.Update installs, per spec.md §6's requirement to use
// logical rather than physical-pixel geometry.
type XDGOutput struct {
	wl.BaseProxy

	x, y, width, height int32
	gotPosition         bool
	gotSize             bool

	doneHandler func(x, y, width, height int32)
}

// SetDoneHandler registers the callback invoked once both
// logical_position and logical_size have arrived and the compositor
// sends done — spec.md §7 category 3 treats a callback firing before
// all fields arrived as a silently-dropped benign transient.
func (o *XDGOutput) SetDoneHandler(fn func(x, y, width, height int32)) {
	o.doneHandler = fn
}

// Destroy destroys this logical-output object.
func (o *XDGOutput) Destroy() error {
	const opcode = 0
	err := o.Context().SendRequest(o, opcode)
	o.Context().Unregister(o)
	return err
}

// Dispatch routes logical_position/logical_size/done events.
func (o *XDGOutput) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // logical_position
		o.x = event.Int32()
		o.y = event.Int32()
		o.gotPosition = true
	case 1: // logical_size
		o.width = event.Int32()
		o.height = event.Int32()
		o.gotSize = true
	case 2: // done
		if !o.gotPosition || !o.gotSize {
			// Benign transient: done arrived before both fields did.
			return
		}
		if o.doneHandler != nil {
			o.doneHandler(o.x, o.y, o.width, o.height)
		}
	}
}
