// Package devices is keyveil's device manager (spec.md §4.4): it
// enumerates /dev/input/event* nodes, exclusively grabs each one with
// golang-evdev (EVIOCGRAB), watches the directory for hot-plug, and
// aggregates every grabbed descriptor into a single epollable fd so the
// event loop has one thing to poll instead of one per device — mirroring
// libinput's single-fd model. Grounded on the teacher's
// internal/input/evdev_capture.go and device_detection.go.
package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// InputDir is the kernel's evdev character-device directory.
const InputDir = "/dev/input"

// Event is a raw evdev event normalized to the three axes keyveil
// cares about: key state, relative motion, and wheel scroll.
type Event struct {
	DeviceName string
	Type       uint16
	Code       uint16
	Value      int32
}

// GrabError reports that exclusive attachment to a device node failed
// — fatal per spec.md §4.4 ("failure to grab is fatal").
type GrabError struct {
	Path string
	Err  error
}

func (e *GrabError) Error() string {
	return fmt.Sprintf("devices: failed to grab %s: %v", e.Path, e.Err)
}

func (e *GrabError) Unwrap() error { return e.Err }

type device struct {
	path string
	dev  *evdev.InputDevice
}

// Manager owns every exclusively-grabbed device and the epoll instance
// multiplexing their descriptors.
type Manager struct {
	mu      sync.Mutex
	devices map[string]*device // keyed by path
	epfd    int
	watcher *fsnotify.Watcher

	// OnDeviceAdded fires after a device is successfully attached,
	// reporting whether it looks like a touchpad (EV_KEY carries
	// BTN_TOOL_FINGER). Set by internal/daemon; nil is a no-op.
	OnDeviceAdded func(path string, tapCapable bool)
}

// New creates the epoll instance and the /dev/input directory watcher
// but grabs no devices yet; call Scan to attach what's already present.
func New() (*Manager, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("devices: epoll_create1: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("devices: fsnotify watcher: %w", err)
	}
	if err := watcher.Add(InputDir); err != nil {
		_ = unix.Close(epfd)
		_ = watcher.Close()
		return nil, fmt.Errorf("devices: watch %s: %w", InputDir, err)
	}
	return &Manager{
		devices: make(map[string]*device),
		epfd:    epfd,
		watcher: watcher,
	}, nil
}

// EpollFD returns the descriptor the event loop polls for input
// readiness alongside the Wayland display fd.
func (m *Manager) EpollFD() int { return m.epfd }

// WatcherEvents exposes the fsnotify event channel so the event loop
// can select on directory changes directly, without an extra pump
// goroutine per watched directory.
func (m *Manager) WatcherEvents() chan fsnotify.Event { return m.watcher.Events }

// WatcherErrors exposes the fsnotify error channel.
func (m *Manager) WatcherErrors() chan error { return m.watcher.Errors }

func isEventNode(name string) bool {
	return strings.HasPrefix(name, "event")
}

// Scan attaches every event* node currently present under /dev/input.
// A grab failure on any node aborts the whole scan: spec.md §4.4 treats
// grab failure as fatal, not per-device best-effort.
func (m *Manager) Scan() error {
	entries, err := os.ReadDir(InputDir)
	if err != nil {
		return fmt.Errorf("devices: read %s: %w", InputDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isEventNode(entry.Name()) {
			continue
		}
		if err := m.attach(filepath.Join(InputDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// attach opens and exclusively grabs one device node, registers its fd
// with the epoll instance, and sets close-on-exec (spec.md §4.4's last
// sentence). Re-attaching an already-present path detaches first, so a
// quick unplug/replug on the same node starts clean.
func (m *Manager) attach(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.devices[path]; ok {
		m.detachLocked(path, existing)
	}

	dev, err := evdev.Open(path)
	if err != nil {
		return &GrabError{Path: path, Err: err}
	}
	if err := dev.Grab(); err != nil {
		_ = dev.File.Close()
		return &GrabError{Path: path, Err: err}
	}
	fd := int(dev.File.Fd())
	if _, _, errno := unix.Syscall(unix.SYS_FCNTL, uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); errno != 0 {
		dev.Release()
		_ = dev.File.Close()
		return &GrabError{Path: path, Err: errno}
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		dev.Release()
		_ = dev.File.Close()
		return &GrabError{Path: path, Err: err}
	}

	m.devices[path] = &device{path: path, dev: dev}

	if m.OnDeviceAdded != nil {
		m.OnDeviceAdded(path, isTapCapable(dev))
	}
	return nil
}

// isTapCapable reports whether dev's key capabilities include
// BTN_TOOL_FINGER, the kernel's touchpad marker — the same signal
// libinput's own device_config_tap_get_finger_count() is ultimately
// backed by.
func isTapCapable(dev *evdev.InputDevice) bool {
	keys, ok := dev.CapabilitiesFlat[evdev.EV_KEY]
	if !ok {
		return false
	}
	for _, code := range keys {
		if code == evdev.BTN_TOOL_FINGER {
			return true
		}
	}
	return false
}

// Detach releases and forgets the device at path — the hot-plug delete
// half of spec.md §4.4.
func (m *Manager) Detach(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[path]
	if !ok {
		return
	}
	m.detachLocked(path, d)
}

func (m *Manager) detachLocked(path string, d *device) {
	fd := int(d.dev.File.Fd())
	_ = unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	d.dev.Release()
	_ = d.dev.File.Close()
	delete(m.devices, path)
}

// HandleFSEvent applies one fsnotify event to the device table: create
// attaches (or re-attaches), remove/rename detaches.
func (m *Manager) HandleFSEvent(ev fsnotify.Event) error {
	if !isEventNode(filepath.Base(ev.Name)) {
		return nil
	}
	switch {
	case ev.Op&(fsnotify.Create) != 0:
		return m.attach(ev.Name)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		m.Detach(ev.Name)
	}
	return nil
}

// ReadReady drains and normalizes pending events from the device whose
// fd the epoll wait reported ready.
func (m *Manager) ReadReady(fd int32) ([]Event, error) {
	m.mu.Lock()
	var d *device
	for _, cand := range m.devices {
		if int32(cand.dev.File.Fd()) == fd {
			d = cand
			break
		}
	}
	m.mu.Unlock()
	if d == nil {
		return nil, nil
	}

	raw, err := d.dev.Read()
	if err != nil {
		if strings.Contains(err.Error(), "resource temporarily unavailable") {
			return nil, nil
		}
		return nil, fmt.Errorf("devices: read %s: %w", d.path, err)
	}

	out := make([]Event, 0, len(raw))
	for _, e := range raw {
		out = append(out, Event{DeviceName: d.path, Type: e.Type, Code: e.Code, Value: e.Value})
	}
	return out, nil
}

// Close releases every grabbed device and tears down epoll/fsnotify.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, d := range m.devices {
		m.detachLocked(path, d)
	}
	_ = m.watcher.Close()
	return unix.Close(m.epfd)
}
