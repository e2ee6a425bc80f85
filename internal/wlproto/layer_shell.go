package wlproto

import "github.com/bnema/wlturbo/wl"

// Protocol interface names and constants for
// wlr-layer-shell-unstable-v1.
const (
	LayerShellInterface        = "zwlr_layer_shell_v1"
	LayerSurfaceInterface      = "zwlr_layer_surface_v1"
	LayerOverlay           int = 3
)

// Anchor bits for set_anchor, per the protocol's anchor enum.
const (
	AnchorTop    uint32 = 1
	AnchorBottom uint32 = 2
	AnchorLeft   uint32 = 4
	AnchorRight  uint32 = 8

	AnchorAllEdges = AnchorTop | AnchorBottom | AnchorLeft | AnchorRight
)

// LayerShell creates per-output overlay layer surfaces.
type LayerShell struct {
	wl.BaseProxy
}

func newLayerShell(ctx *wl.Context) *LayerShell {
	ls := &LayerShell{}
	ls.SetContext(ctx)
	return ls
}

// GetLayerSurface requests a layer surface for surface, anchored to
// output (nil picks a compositor-chosen output), at the given layer,
// with the given debug namespace.
func (ls *LayerShell) GetLayerSurface(surface *wl.Surface, output *wl.Output, layer uint32, namespace string) (*LayerSurface, error) {
	id := ls.Context().AllocateID()
	lsurf := &LayerSurface{}
	lsurf.SetContext(ls.Context())
	lsurf.SetID(id)
	ls.Context().Register(lsurf)

	const opcode = 0
	if err := ls.Context().SendRequest(ls, opcode, lsurf, surface, output, layer, namespace); err != nil {
		ls.Context().Unregister(lsurf)
		return nil, err
	}
	return lsurf, nil
}

// Destroy destroys the layer shell global binding.
func (ls *LayerShell) Destroy() error {
	const opcode = 1
	err := ls.Context().SendRequest(ls, opcode)
	ls.Context().Unregister(ls)
	return err
}

// Dispatch handles incoming events (the layer shell global has none).
func (ls *LayerShell) Dispatch(_ *wl.Event) {}

// LayerSurface is one output's overlay surface: spec.md §4.9 requires it
// anchored to all four edges with an exclusive zone of -1 and an empty
// input region so it never steals events or reflows other clients.
type LayerSurface struct {
	wl.BaseProxy

	configureHandler func(serial, width, height uint32)
	closedHandler    func()
}

// SetConfigureHandler registers the callback invoked when the
// compositor sends a configure event (the surface must reply with
// AckConfigure before committing its first buffer).
func (s *LayerSurface) SetConfigureHandler(fn func(serial, width, height uint32)) {
	s.configureHandler = fn
}

// SetClosedHandler registers the callback invoked when the compositor
// requests this layer surface be destroyed.
func (s *LayerSurface) SetClosedHandler(fn func()) {
	s.closedHandler = fn
}

// SetSize requests a layer surface size; 0 lets the compositor choose
// based on anchor/exclusive-zone.
func (s *LayerSurface) SetSize(width, height uint32) error {
	const opcode = 0
	return s.Context().SendRequest(s, opcode, width, height)
}

// SetAnchor sets which edges the surface is anchored to.
func (s *LayerSurface) SetAnchor(anchor uint32) error {
	const opcode = 1
	return s.Context().SendRequest(s, opcode, anchor)
}

// SetExclusiveZone sets the exclusive zone; -1 means "do not reserve
// space and do not let other surfaces' exclusive zones apply to this
// one" — the overlay sits above everything without reflowing it.
func (s *LayerSurface) SetExclusiveZone(zone int32) error {
	const opcode = 2
	return s.Context().SendRequest(s, opcode, uint32(zone))
}

// SetKeyboardInteractivity controls whether this layer surface can
// receive keyboard focus; the overlay never does.
func (s *LayerSurface) SetKeyboardInteractivity(v uint32) error {
	const opcode = 4
	return s.Context().SendRequest(s, opcode, v)
}

// AckConfigure acknowledges a configure event by serial.
func (s *LayerSurface) AckConfigure(serial uint32) error {
	const opcode = 6
	return s.Context().SendRequest(s, opcode, serial)
}

// Destroy destroys the layer surface.
func (s *LayerSurface) Destroy() error {
	const opcode = 7
	err := s.Context().SendRequest(s, opcode)
	s.Context().Unregister(s)
	return err
}

// Dispatch routes configure/closed events to their handlers.
func (s *LayerSurface) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // configure
		serial := event.Uint32()
		width := event.Uint32()
		height := event.Uint32()
		if s.configureHandler != nil {
			s.configureHandler(serial, width, height)
		}
	case 1: // closed
		if s.closedHandler != nil {
			s.closedHandler()
		}
	}
}
