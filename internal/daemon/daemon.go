// Package daemon wires every keyveil subsystem together: the Wayland
// connection, the device manager, the geometry/motion/scheduler/replayer
// pipeline, the overlay layers, and the single event loop. It owns the
// root-privilege check and defines the typed fatal errors that
// cmd/keyveild's main turns into a "FATAL ERROR:" log line and exit
// status 1; this package itself never calls os.Exit (spec.md §7).
package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bnema/wlturbo/wl"

	"github.com/bnema/keyveil/internal/clock"
	"github.com/bnema/keyveil/internal/devices"
	"github.com/bnema/keyveil/internal/escapecombo"
	"github.com/bnema/keyveil/internal/eventloop"
	"github.com/bnema/keyveil/internal/geometry"
	"github.com/bnema/keyveil/internal/keycodes"
	"github.com/bnema/keyveil/internal/logger"
	"github.com/bnema/keyveil/internal/motion"
	"github.com/bnema/keyveil/internal/overlay"
	"github.com/bnema/keyveil/internal/replayer"
	"github.com/bnema/keyveil/internal/scheduler"
	"github.com/bnema/keyveil/internal/translator"
	"github.com/bnema/keyveil/internal/wlproto"
)

// FatalInitError reports that a fatal precondition failed during
// startup — a missing compositor protocol, a failed device grab, a
// non-root invocation — or while an output's geometry is installed (a
// gap between outputs). Per spec.md §7 category 1, this terminates the
// daemon.
type FatalInitError struct {
	Reason string
}

func (e *FatalInitError) Error() string { return "fatal init: " + e.Reason }

// FatalInvariantError reports that a runtime invariant the daemon
// depends on no longer holds (spec.md §7 category 2) — e.g. the motion
// engine's glide-clamp found no adjacent on-screen pixel.
type FatalInvariantError struct {
	Reason string
}

func (e *FatalInvariantError) Error() string { return "fatal invariant: " + e.Reason }

// Options are the operator-facing knobs, parsed by internal/cliopts.
type Options struct {
	MaxDelayMS   int64
	StartDelayMS int64
	OverlayColor uint32
	ComboSpec    string
}

// Daemon owns every subsystem for the lifetime of one run.
type Daemon struct {
	opts Options

	conn    *wlproto.Conn
	devices *devices.Manager

	layerShell *wlproto.LayerShell
	pointer    *wlproto.VirtualPointer
	keyboard   *wlproto.VirtualKeyboard

	geo    *geometry.Engine
	motion *motion.Engine
	sched  *scheduler.Scheduler
	trans  *translator.Translator
	combo  *escapecombo.Combo

	loop *eventloop.Loop

	outputIndex  map[*wl.Output]int
	nextOutputIx int
}

// New performs every fatal-if-it-fails startup step: root check, the
// -s/--start-delay sleep, LC_ALL=C, the Wayland connect-and-negotiate
// round trip, virtual pointer/keyboard creation, and device enumeration,
// which exclusively grabs every device present. Per-output overlay
// layers are not created here; Run builds the event loop that receives
// the protocol callbacks creating them.
func New(opts Options) (*Daemon, error) {
	if os.Geteuid() != 0 {
		return nil, &FatalInitError{Reason: "keyveild requires root privileges (for exclusive evdev access and compositor virtual-input protocols)"}
	}
	if opts.StartDelayMS > 0 {
		time.Sleep(time.Duration(opts.StartDelayMS) * time.Millisecond)
	}
	// kloak.c's keycode tables and this daemon's own combo/keycodes
	// lookups assume the "C" locale's un-remapped key names.
	if err := os.Setenv("LC_ALL", "C"); err != nil {
		return nil, &FatalInitError{Reason: fmt.Sprintf("setenv LC_ALL=C: %v", err)}
	}

	combo, err := escapecombo.Parse(opts.ComboSpec)
	if err != nil {
		return nil, &FatalInitError{Reason: err.Error()}
	}

	conn, err := wlproto.Connect()
	if err != nil {
		return nil, &FatalInitError{Reason: fmt.Sprintf("wayland connect: %v", err)}
	}
	if !conn.HasLayerShell() {
		return nil, &FatalInitError{Reason: "compositor does not advertise zwlr_layer_shell_v1"}
	}
	if !conn.HasVirtualPointerManager() {
		return nil, &FatalInitError{Reason: "compositor does not advertise zwlr_virtual_pointer_manager_v1"}
	}
	if !conn.HasXDGOutputManager() {
		return nil, &FatalInitError{Reason: "compositor does not advertise zxdg_output_manager_v1"}
	}

	layerShell, err := conn.BindLayerShell()
	if err != nil {
		return nil, &FatalInitError{Reason: err.Error()}
	}
	pointerMgr, err := conn.BindVirtualPointerManager()
	if err != nil {
		return nil, &FatalInitError{Reason: err.Error()}
	}
	xdgOutputMgr, err := conn.BindXDGOutputManager()
	if err != nil {
		return nil, &FatalInitError{Reason: err.Error()}
	}

	seat := conn.Seat()
	if seat == nil {
		return nil, &FatalInitError{Reason: "compositor does not advertise wl_seat"}
	}
	pointer, err := pointerMgr.CreateVirtualPointer(seat)
	if err != nil {
		return nil, &FatalInitError{Reason: fmt.Sprintf("create_virtual_pointer: %v", err)}
	}

	// zwp_virtual_keyboard_manager_v1 is optional at the protocol level:
	// a compositor may advertise it yet refuse create_virtual_keyboard
	// for an "unauthorized" client (spec.md §6). A missing global, or a
	// refused create request, is simply "no keyboard replay" rather
	// than fatal.
	var keyboard *wlproto.VirtualKeyboard
	if conn.HasVirtualKeyboardManager() {
		keyboardMgr, bindErr := conn.BindVirtualKeyboardManager()
		if bindErr != nil {
			logger.Warnf("daemon: zwp_virtual_keyboard_manager_v1 bind failed, key replay disabled: %v", bindErr)
		} else if keyboard, err = keyboardMgr.CreateVirtualKeyboard(seat); err != nil {
			logger.Warnf("daemon: create_virtual_keyboard refused (unauthorized client?), key replay disabled: %v", err)
			keyboard = nil
		} else if err := uploadDefaultKeymap(keyboard); err != nil {
			logger.Warnf("daemon: keymap upload failed, key replay disabled: %v", err)
			keyboard = nil
		}
	}

	devMgr, err := devices.New()
	if err != nil {
		return nil, &FatalInitError{Reason: fmt.Sprintf("device manager: %v", err)}
	}

	geo := geometry.NewEngine()
	sched := scheduler.New(opts.MaxDelayMS)
	mo := motion.NewEngine(geo)

	d := &Daemon{
		opts:        opts,
		conn:        conn,
		devices:     devMgr,
		layerShell:  layerShell,
		pointer:     pointer,
		keyboard:    keyboard,
		geo:         geo,
		motion:      mo,
		sched:       sched,
		trans:       translator.New(mo, sched),
		combo:       combo,
		outputIndex: make(map[*wl.Output]int),
	}

	conn.OnOutputAdded(func(name uint32, out *wl.Output) {
		d.negotiateOutput(xdgOutputMgr, out)
	})

	devMgr.OnDeviceAdded = func(path string, tapCapable bool) {
		d.trans.DeviceAdded(path, tapCapable)
		if tapCapable {
			logger.Infof("daemon: %s reports tap-to-click capability (recorded, not configurable without libinput)", path)
		}
	}

	if err := devMgr.Scan(); err != nil {
		return nil, &FatalInitError{Reason: fmt.Sprintf("device scan: %v", err)}
	}

	return d, nil
}

// negotiateOutput requests xdg-output's logical geometry for a newly
// bound wl_output and installs it into the geometry engine once
// complete, then (re)builds that output's overlay layer. Runs on the
// Wayland dispatch pump goroutine; it only ever touches loop state via
// ProtocolEvents, per internal/eventloop's single-owner invariant.
func (d *Daemon) negotiateOutput(mgr *wlproto.XDGOutputManager, out *wl.Output) {
	idx, ok := d.outputIndex[out]
	if !ok {
		idx = d.nextOutputIx
		d.nextOutputIx++
		d.outputIndex[out] = idx
	}

	xo, err := mgr.GetXDGOutput(out)
	if err != nil {
		logger.Errorf("daemon: xdg-output negotiation failed: %v", err)
		return
	}
	xo.SetDoneHandler(func(x, y, width, height int32) {
		d.queueProtocolEvent(func(l *eventloop.Loop) error {
			if err := d.geo.Update(idx, geometry.Rect{X: x, Y: y, Width: width, Height: height}); err != nil {
				return &FatalInitError{Reason: err.Error()}
			}
			if err := d.ensureLayer(l, idx, out, width, height); err != nil {
				return err
			}
			return nil
		})
	})
}

func (d *Daemon) ensureLayer(l *eventloop.Loop, idx int, out *wl.Output, width, height int32) error {
	if _, ok := l.Layers[idx]; ok {
		return nil
	}
	layer, err := overlay.NewLayer(d.conn, d.layerShell, out, idx, width, height, d.opts.OverlayColor)
	if err != nil {
		return fmt.Errorf("daemon: overlay layer for output %d: %w", idx, err)
	}
	layer.SetOnSlotReleased(func() {
		d.queueProtocolEvent(func(*eventloop.Loop) error { return nil })
	})
	l.Layers[idx] = layer
	return nil
}

// queueProtocolEvent hands fn to the running loop, or drops it with a
// warning if the loop has not started yet (a protocol handler that
// fires before Run has built the loop).
func (d *Daemon) queueProtocolEvent(fn func(*eventloop.Loop) error) {
	if d.loop == nil || d.loop.ProtocolEvents == nil {
		logger.Warnf("daemon: protocol event dropped, event loop not yet running")
		return
	}
	d.loop.ProtocolEvents <- fn
}

// Run blocks until ctx is cancelled or a fatal/clean-exit condition is
// reached. The operator's -s/--start-delay grace period has already
// elapsed in New.
func (d *Daemon) Run(ctx context.Context) error {
	replay := replayer.New(d.pointer, d.keyboard, d.geo)

	d.loop = &eventloop.Loop{
		Conn:              d.conn,
		Devices:           d.devices,
		Clock:             clock.New(),
		Geo:               d.geo,
		Motion:            d.motion,
		Scheduler:         d.sched,
		Translator:        d.trans,
		Combo:             d.combo,
		Replayer:          replay,
		Layers:            make(map[int]*overlay.Layer),
		WaylandDispatch:   d.conn.Display().Dispatch,
		ProtocolEvents:    make(chan func(*eventloop.Loop) error, 16),
		HandleDeviceEvent: handleDeviceEvent,
	}

	err := d.loop.Run(ctx)
	if exit, ok := err.(*eventloop.ExitRequested); ok {
		logger.Infof("keyveil: exiting cleanly: %s", exit.Reason)
		return nil
	}
	return err
}

// Close tears down every per-output layer and the Wayland connection.
func (d *Daemon) Close() error {
	if d.loop != nil {
		for _, layer := range d.loop.Layers {
			layer.Destroy()
		}
	}
	if err := d.devices.Close(); err != nil {
		logger.Warnf("daemon: device manager close: %v", err)
	}
	return d.conn.Close()
}

// keymapFormatXKBV1 is zwp_virtual_keyboard_v1's keymap_format enum
// value 1 ("xkb_v1"), the only format the protocol currently defines.
const keymapFormatXKBV1 = 1

func uploadDefaultKeymap(k *wlproto.VirtualKeyboard) error {
	fd, size, err := wlproto.CreateDefaultKeymap()
	if err != nil {
		return err
	}
	return k.Keymap(keymapFormatXKBV1, fd, size)
}

// handleDeviceEvent is injected into eventloop.Loop.HandleDeviceEvent.
// It classifies a raw evdev event and drives the translator, the
// escape combo watcher, or both (every keyboard key event feeds the
// combo watcher regardless of whether it is also scheduled for replay;
// pointer button codes BTN_LEFT..BTN_TASK go to the translator only).
func handleDeviceEvent(l *eventloop.Loop, ev devices.Event) error {
	now := l.Clock.Now()
	switch ev.Type {
	case keycodes.EvKey:
		code := int(ev.Code)
		pressed := ev.Value != 0
		if code >= keycodes.BtnLeft && code <= keycodes.BtnTask {
			return l.Translator.Button(code, pressed, now)
		}
		if l.Combo.Feed(code, pressed) {
			return &eventloop.ExitRequested{Reason: "escape combo"}
		}
		return l.Translator.Key(code, pressed, now)
	case keycodes.EvRel:
		switch int(ev.Code) {
		case keycodes.RelX:
			return asFatalInvariant(l.Translator.RelativeMotion(ev.Value, 0, now))
		case keycodes.RelY:
			return asFatalInvariant(l.Translator.RelativeMotion(0, ev.Value, now))
		case keycodes.RelWheel:
			return l.Translator.Scroll(scheduler.AxisVertical, float64(ev.Value), scheduler.ScrollWheel, now)
		case keycodes.RelHWheel:
			return l.Translator.Scroll(scheduler.AxisHorizontal, float64(ev.Value), scheduler.ScrollWheel, now)
		}
	}
	return nil
}

// asFatalInvariant promotes a motion.GlideError — the clamp engine
// finding no adjacent on-screen pixel — into the category-2 fatal error
// spec.md §7 calls for; every other error (including nil) passes through.
func asFatalInvariant(err error) error {
	if glide, ok := err.(*motion.GlideError); ok {
		return &FatalInvariantError{Reason: glide.Error()}
	}
	return err
}
