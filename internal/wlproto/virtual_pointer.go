package wlproto

import "github.com/bnema/wlturbo/wl"

// Protocol interface names for zwlr-virtual-pointer-unstable-v1.
const (
	VirtualPointerManagerInterface = "zwlr_virtual_pointer_manager_v1"
	VirtualPointerInterface        = "zwlr_virtual_pointer_v1"
)

// Button codes the replayer's button packets carry (matches evdev BTN_*).
const (
	BtnLeft   = 0x110
	BtnRight  = 0x111
	BtnMiddle = 0x112
)

// ButtonState mirrors the protocol's pointer button state enum.
type ButtonState uint32

const (
	ButtonStateReleased ButtonState = 0
	ButtonStatePressed  ButtonState = 1
)

// AxisSource mirrors the protocol's scroll axis source enum.
type AxisSource uint32

const (
	AxisSourceWheel      AxisSource = 0
	AxisSourceFinger     AxisSource = 1
	AxisSourceContinuous AxisSource = 2
)

// Axis identifies vertical vs horizontal scroll.
type Axis uint32

const (
	AxisVerticalScroll   Axis = 0
	AxisHorizontalScroll Axis = 1
)

// VirtualPointerManager creates VirtualPointer objects.
type VirtualPointerManager struct {
	wl.BaseProxy
}

// CreateVirtualPointer requests a new virtual pointer bound to seat.
func (m *VirtualPointerManager) CreateVirtualPointer(seat *wl.Seat) (*VirtualPointer, error) {
	pointerID := m.Context().AllocateID()
	pointer := &VirtualPointer{}
	pointer.SetContext(m.Context())
	pointer.SetID(pointerID)
	m.Context().Register(pointer)

	const opcode = 0
	if err := m.Context().SendRequest(m, opcode, seat, pointer); err != nil {
		m.Context().Unregister(pointer)
		return nil, err
	}
	return pointer, nil
}

// CreateVirtualPointerWithOutput requests a new virtual pointer scoped
// to a specific output.
func (m *VirtualPointerManager) CreateVirtualPointerWithOutput(seat *wl.Seat, output *wl.Output) (*VirtualPointer, error) {
	pointerID := m.Context().AllocateID()
	pointer := &VirtualPointer{}
	pointer.SetContext(m.Context())
	pointer.SetID(pointerID)
	m.Context().Register(pointer)

	const opcode = 2
	if err := m.Context().SendRequest(m, opcode, seat, output, pointer); err != nil {
		m.Context().Unregister(pointer)
		return nil, err
	}
	return pointer, nil
}

// Destroy destroys the manager.
func (m *VirtualPointerManager) Destroy() error {
	const opcode = 1
	err := m.Context().SendRequest(m, opcode)
	m.Context().Unregister(m)
	return err
}

// Dispatch handles incoming events (the manager has none).
func (m *VirtualPointerManager) Dispatch(_ *wl.Event) {}

// VirtualPointer is a single synthetic pointer device.
type VirtualPointer struct {
	wl.BaseProxy
}

// Motion sends a relative pointer motion.
func (p *VirtualPointer) Motion(time uint32, dx, dy wl.Fixed) error {
	const opcode = 0
	return p.Context().SendRequest(p, opcode, time, dx, dy)
}

// MotionAbsolute sends an absolute pointer motion in a caller-chosen
// extent (x_extent, y_extent), per spec.md §4.8.
func (p *VirtualPointer) MotionAbsolute(time, x, y, xExtent, yExtent uint32) error {
	const opcode = 1
	return p.Context().SendRequest(p, opcode, time, x, y, xExtent, yExtent)
}

// Button sends a pointer button press/release.
func (p *VirtualPointer) Button(time, button uint32, state ButtonState) error {
	const opcode = 2
	return p.Context().SendRequest(p, opcode, time, button, uint32(state))
}

// WireAxis sends a scroll axis value.
func (p *VirtualPointer) WireAxis(time uint32, axis Axis, value wl.Fixed) error {
	const opcode = 3
	return p.Context().SendRequest(p, opcode, time, uint32(axis), value)
}

// Frame terminates a group of pointer events that logically belong
// together (motion/button/axis followed by frame).
func (p *VirtualPointer) Frame() error {
	const opcode = 4
	return p.Context().SendRequest(p, opcode)
}

// WireAxisSource announces the source of subsequent axis events.
func (p *VirtualPointer) WireAxisSource(source AxisSource) error {
	const opcode = 5
	return p.Context().SendRequest(p, opcode, uint32(source))
}

// Destroy destroys the virtual pointer.
func (p *VirtualPointer) Destroy() error {
	const opcode = 8
	err := p.Context().SendRequest(p, opcode)
	p.Context().Unregister(p)
	return err
}

// Dispatch handles incoming events (the virtual pointer has none).
func (p *VirtualPointer) Dispatch(_ *wl.Event) {}
