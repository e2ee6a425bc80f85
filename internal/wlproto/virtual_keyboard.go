package wlproto

import (
	"fmt"
	"syscall"

	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names for zwp-virtual-keyboard-unstable-v1.
const (
	VirtualKeyboardManagerInterface = "zwp_virtual_keyboard_manager_v1"
	VirtualKeyboardInterface        = "zwp_virtual_keyboard_v1"
)

// VirtualKeyboardManager creates VirtualKeyboard objects. Some
// compositors refuse creation with an "unauthorized" protocol error —
// callers must check CreateVirtualKeyboard's error for that sentinel
// per spec.md §6.
type VirtualKeyboardManager struct {
	wl.BaseProxy
}

// CreateVirtualKeyboard requests a new virtual keyboard bound to seat.
func (m *VirtualKeyboardManager) CreateVirtualKeyboard(seat *wl.Seat) (*VirtualKeyboard, error) {
	keyboard := newVirtualKeyboard(m.Context())

	const opcode = 0
	if err := m.Context().SendRequest(m, opcode, seat, keyboard); err != nil {
		m.Context().Unregister(keyboard)
		return nil, fmt.Errorf("wlproto: create_virtual_keyboard: %w", err)
	}
	return keyboard, nil
}

// Destroy destroys the manager (the protocol defines no destructor
// request, so this only unregisters the local proxy).
func (m *VirtualKeyboardManager) Destroy() error {
	m.Context().Unregister(m)
	return nil
}

// Dispatch handles incoming events (the manager has none).
func (m *VirtualKeyboardManager) Dispatch(_ *wl.Event) {}

// VirtualKeyboard is a single synthetic keyboard device.
type VirtualKeyboard struct {
	wl.BaseProxy
}

func newVirtualKeyboard(ctx *wl.Context) *VirtualKeyboard {
	keyboard := &VirtualKeyboard{}
	keyboard.SetContext(ctx)
	id := ctx.AllocateID()
	keyboard.SetID(id)
	ctx.Register(keyboard)
	return keyboard
}

// Keymap uploads the keymap file descriptor the compositor should use
// to interpret this keyboard's raw key codes.
func (k *VirtualKeyboard) Keymap(format uint32, fd int, size uint32) error {
	const opcode = 0
	if fd < 0 {
		return fmt.Errorf("wlproto: invalid keymap fd %d", fd)
	}
	return k.Context().SendRequestWithFDs(k, opcode, []int{fd}, format, uintptr(fd), size)
}

// Key sends a raw evdev key code press/release. The virtual-keyboard
// protocol expects raw evdev codes, not XKB keysyms.
func (k *VirtualKeyboard) Key(time, key, state uint32) error {
	const opcode = 1
	return k.Context().SendRequest(k, opcode, time, key, state)
}

// Modifiers updates the compositor's view of this keyboard's modifier
// state. Replay emits the recorded snapshot from scheduler.Key, not
// live state (spec.md §4.8).
func (k *VirtualKeyboard) Modifiers(modsDepressed, modsLatched, modsLocked, group uint32) error {
	const opcode = 2
	return k.Context().SendRequest(k, opcode, modsDepressed, modsLatched, modsLocked, group)
}

// Destroy destroys the virtual keyboard.
func (k *VirtualKeyboard) Destroy() error {
	const opcode = 3
	err := k.Context().SendRequest(k, opcode)
	k.Context().Unregister(k)
	return err
}

// Dispatch handles incoming events (the virtual keyboard has none).
func (k *VirtualKeyboard) Dispatch(_ *wl.Event) {}

// defaultKeymap is a minimal evdev/xkb keymap: enough for the compositor
// to decode the raw key codes we send, without depending on the user's
// host layout (the daemon does not conceal which keys were pressed —
// only their timing — so the exact symbol mapping is not load-bearing).
const defaultKeymap = `xkb_keymap {
	xkb_keycodes  { include "evdev+aliases(qwerty)"	};
	xkb_types     { include "complete"	};
	xkb_compat    { include "complete"	};
	xkb_symbols   { include "pc+us+inet(evdev)"	};
	xkb_geometry  { include "pc(pc105)"	};
};`

// CreateDefaultKeymap writes defaultKeymap into an anonymous shared
// memory file and returns its descriptor and size, ready to hand to
// VirtualKeyboard.Keymap.
func CreateDefaultKeymap() (fd int, size uint32, err error) {
	n := len(defaultKeymap) + 1
	f, err := wl.CreateAnonymousFile(int64(n))
	if err != nil {
		return -1, 0, fmt.Errorf("wlproto: create keymap file: %w", err)
	}

	data, err := wl.MapMemory(f, n)
	if err != nil {
		_ = syscall.Close(f)
		return -1, 0, fmt.Errorf("wlproto: map keymap file: %w", err)
	}
	defer func() { _ = wl.UnmapMemory(data) }()

	copy(data, defaultKeymap)
	data[len(defaultKeymap)] = 0

	if _, err := syscall.Seek(f, 0, 0); err != nil {
		_ = syscall.Close(f)
		return -1, 0, fmt.Errorf("wlproto: seek keymap file: %w", err)
	}
	if n < 0 || n > 0x7FFFFFFF {
		_ = syscall.Close(f)
		return -1, 0, fmt.Errorf("wlproto: invalid keymap size %d", n)
	}
	return f, uint32(n), nil
}
