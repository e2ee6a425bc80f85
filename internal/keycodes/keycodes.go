// Package keycodes maps evdev key/button names to their numeric codes,
// the table the CLI's escape-combo flag and default combo are parsed
// against. The set below mirrors the constants kloak.h enumerates plus
// the mouse-button range device_detection.go already hand-declares.
package keycodes

import "fmt"

// Evdev event types (linux/input-event-codes.h).
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03
)

// Relative axes.
const (
	RelX      = 0x00
	RelY      = 0x01
	RelWheel  = 0x08
	RelHWheel = 0x06
)

// Mouse buttons.
const (
	BtnLeft   = 0x110
	BtnRight  = 0x111
	BtnMiddle = 0x112
	BtnSide   = 0x113
	BtnExtra  = 0x114
	BtnTask   = 0x117
)

// byName is the subset of KEY_*/BTN_* names the daemon needs to resolve:
// escape-combo flags and its own default combo. It is deliberately not
// exhaustive — an unrecognized name is a fatal CLI error per spec.md §7.
var byName = map[string]int{
	"KEY_ESC":        1,
	"KEY_1":          2,
	"KEY_2":          3,
	"KEY_TAB":        15,
	"KEY_LEFTCTRL":   29,
	"KEY_LEFTSHIFT":  42,
	"KEY_RIGHTSHIFT": 54,
	"KEY_LEFTALT":    56,
	"KEY_SPACE":      57,
	"KEY_CAPSLOCK":   58,
	"KEY_RIGHTCTRL":  97,
	"KEY_RIGHTALT":   100,
	"KEY_LEFTMETA":   125,
	"KEY_RIGHTMETA":  126,
	"KEY_DELETE":     111,

	"BTN_LEFT":   BtnLeft,
	"BTN_RIGHT":  BtnRight,
	"BTN_MIDDLE": BtnMiddle,
	"BTN_SIDE":   BtnSide,
	"BTN_EXTRA":  BtnExtra,
	"BTN_TASK":   BtnTask,
}

// Lookup resolves a KEY_*/BTN_* name to its evdev code. An unknown name
// is reported as an error so callers can treat it as a fatal CLI error.
func Lookup(name string) (int, error) {
	code, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("keycodes: unknown key name %q", name)
	}
	return code, nil
}

// Modifier bits, laid out to match the low bits of the virtual-keyboard
// wire protocol's mods_depressed field ordering this daemon produces.
const (
	ModShift = 1 << 0
	ModCtrl  = 1 << 2
	ModAlt   = 1 << 3
	ModMeta  = 1 << 6
)
