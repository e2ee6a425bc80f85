// Package wlproto is keyveil's Wayland wire layer: one connection,
// bound against wl_compositor, wl_seat, wl_shm, wl_output (repeated per
// output), zxdg_output_manager_v1, zwlr_layer_shell_v1,
// zwlr_virtual_pointer_manager_v1 and zwp_virtual_keyboard_manager_v1.
// It is built directly on github.com/bnema/wlturbo/wl's low-level wire
// primitives (BaseProxy, Context, Registry, Seat, Output, Compositor),
// the same primitives the teacher's own internal/protocols package and
// third_party/libwldevices-go/internal/client bootstrap use — there is
// deliberately only one Wayland client connection in this daemon.
package wlproto

import (
	"fmt"
	"slices"
	"sync"

	"github.com/bnema/wlturbo/wl"
)

// Conn owns the single Wayland connection and every global this daemon
// binds against.
type Conn struct {
	display  *wl.Display
	registry *wl.Registry
	context  *wl.Context

	mu sync.Mutex

	seat       *wl.Seat
	compositor *wl.Compositor
	shm        *wl.Shm

	outputManagerName, outputManagerVersion uint32
	xdgOutputManagerName                    uint32
	layerShellName                          uint32
	virtualPointerManagerName                uint32
	virtualKeyboardManagerName               uint32

	outputs map[uint32]*wl.Output

	onOutput func(name uint32, out *wl.Output)
}

// Connect dials the compositor named by WAYLAND_DISPLAY (or the default
// socket if unset) and performs the registry round-trip that discovers
// every global this daemon depends on.
func Connect() (*Conn, error) {
	display, err := wl.Connect("")
	if err != nil {
		return nil, fmt.Errorf("wlproto: connect: %w", err)
	}
	c := &Conn{
		display: display,
		context: display.Context(),
		outputs: make(map[uint32]*wl.Output),
	}
	registry := display.GetRegistry()
	c.registry = registry
	registry.AddGlobalHandler(c)
	registry.AddGlobalRemoveHandler(c)

	if err := display.Roundtrip(); err != nil {
		return nil, fmt.Errorf("wlproto: initial roundtrip: %w", err)
	}
	return c, nil
}

// OnOutputAdded registers a callback invoked whenever a new wl_output
// global is bound. Outputs already bound during Connect's round trip
// are reported to fn immediately, in ascending global-name order. The
// callback is expected to drive xdg-output negotiation (internal/daemon
// wiring).
func (c *Conn) OnOutputAdded(fn func(name uint32, out *wl.Output)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOutput = fn
	names := make([]uint32, 0, len(c.outputs))
	for name := range c.outputs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fn(name, c.outputs[name])
	}
}

// HandleRegistryGlobal implements wl.RegistryGlobalHandler.
func (c *Conn) HandleRegistryGlobal(event wl.RegistryGlobalEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Interface {
	case "wl_seat":
		id, err := c.registry.BindID(event.Name, event.Interface, 9)
		if err != nil {
			return
		}
		seat := wl.NewSeat(c.context)
		seat.SetID(id)
		c.context.Register(seat)
		c.seat = seat
	case "wl_compositor":
		id, err := c.registry.BindID(event.Name, event.Interface, 5)
		if err != nil {
			return
		}
		comp := wl.NewCompositor(c.context)
		comp.SetID(id)
		c.context.Register(comp)
		c.compositor = comp
	case "wl_shm":
		id, err := c.registry.BindID(event.Name, event.Interface, 2)
		if err != nil {
			return
		}
		shm := wl.NewShm(c.context)
		shm.SetID(id)
		c.context.Register(shm)
		c.shm = shm
	case "wl_output":
		id, err := c.registry.BindID(event.Name, event.Interface, 4)
		if err != nil {
			return
		}
		out := wl.NewOutput(c.context)
		out.SetID(id)
		c.context.Register(out)
		c.outputs[event.Name] = out
		if c.onOutput != nil {
			c.onOutput(event.Name, out)
		}
	case "zxdg_output_manager_v1":
		c.xdgOutputManagerName = event.Name
	case "zwlr_layer_shell_v1":
		c.layerShellName = event.Name
	case "zwlr_virtual_pointer_manager_v1":
		c.virtualPointerManagerName = event.Name
	case "zwp_virtual_keyboard_manager_v1":
		c.virtualKeyboardManagerName = event.Name
	}
}

// HandleRegistryGlobalRemove implements wl.RegistryGlobalRemoveHandler.
func (c *Conn) HandleRegistryGlobalRemove(event wl.RegistryGlobalRemoveEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.outputs, event.Name)
}

// Display returns the underlying display connection, for the event
// loop's dispatch pump.
func (c *Conn) Display() *wl.Display { return c.display }

// Context returns the wire context new protocol objects register
// against.
func (c *Conn) Context() *wl.Context { return c.context }

// Seat returns the bound wl_seat, or nil if none was advertised yet.
func (c *Conn) Seat() *wl.Seat { return c.seat }

// Compositor returns the bound wl_compositor.
func (c *Conn) Compositor() *wl.Compositor { return c.compositor }

// Shm returns the bound wl_shm.
func (c *Conn) Shm() *wl.Shm { return c.shm }

// HasLayerShell reports whether the compositor advertised
// zwlr_layer_shell_v1 — a fatal-init requirement per spec.md §6.
func (c *Conn) HasLayerShell() bool { return c.layerShellName != 0 }

// HasVirtualPointerManager reports whether zwlr_virtual_pointer_manager_v1
// was advertised.
func (c *Conn) HasVirtualPointerManager() bool { return c.virtualPointerManagerName != 0 }

// HasVirtualKeyboardManager reports whether zwp_virtual_keyboard_manager_v1
// was advertised.
func (c *Conn) HasVirtualKeyboardManager() bool { return c.virtualKeyboardManagerName != 0 }

// HasXDGOutputManager reports whether zxdg_output_manager_v1 was
// advertised.
func (c *Conn) HasXDGOutputManager() bool { return c.xdgOutputManagerName != 0 }

// BindLayerShell binds zwlr_layer_shell_v1 at version 4.
func (c *Conn) BindLayerShell() (*LayerShell, error) {
	if c.layerShellName == 0 {
		return nil, fmt.Errorf("wlproto: compositor did not advertise zwlr_layer_shell_v1")
	}
	id, err := c.registry.BindID(c.layerShellName, LayerShellInterface, 4)
	if err != nil {
		return nil, err
	}
	ls := newLayerShell(c.context)
	ls.SetID(id)
	c.context.Register(ls)
	return ls, nil
}

// BindXDGOutputManager binds zxdg_output_manager_v1 at version 3.
func (c *Conn) BindXDGOutputManager() (*XDGOutputManager, error) {
	if c.xdgOutputManagerName == 0 {
		return nil, fmt.Errorf("wlproto: compositor did not advertise zxdg_output_manager_v1")
	}
	id, err := c.registry.BindID(c.xdgOutputManagerName, XDGOutputManagerInterface, 3)
	if err != nil {
		return nil, err
	}
	m := newXDGOutputManager(c.context)
	m.SetID(id)
	c.context.Register(m)
	return m, nil
}

// BindVirtualPointerManager binds zwlr_virtual_pointer_manager_v1 at
// version 2.
func (c *Conn) BindVirtualPointerManager() (*VirtualPointerManager, error) {
	if c.virtualPointerManagerName == 0 {
		return nil, fmt.Errorf("wlproto: compositor did not advertise zwlr_virtual_pointer_manager_v1")
	}
	id, err := c.registry.BindID(c.virtualPointerManagerName, VirtualPointerManagerInterface, 2)
	if err != nil {
		return nil, err
	}
	m := &VirtualPointerManager{}
	m.SetContext(c.context)
	m.SetID(id)
	c.context.Register(m)
	return m, nil
}

// BindVirtualKeyboardManager binds zwp_virtual_keyboard_manager_v1 at
// version 1.
func (c *Conn) BindVirtualKeyboardManager() (*VirtualKeyboardManager, error) {
	if c.virtualKeyboardManagerName == 0 {
		return nil, fmt.Errorf("wlproto: compositor did not advertise zwp_virtual_keyboard_manager_v1")
	}
	id, err := c.registry.BindID(c.virtualKeyboardManagerName, VirtualKeyboardManagerInterface, 1)
	if err != nil {
		return nil, err
	}
	m := &VirtualKeyboardManager{}
	m.SetContext(c.context)
	m.SetID(id)
	c.context.Register(m)
	return m, nil
}

// Close tears down the connection.
func (c *Conn) Close() error {
	if c.context != nil {
		return c.context.Close()
	}
	return nil
}
