// Package eventloop is keyveil's single decision loop (spec.md §4.10):
// one goroutine owns every piece of mutable state (scheduler queue,
// motion cursor, modifier tracker, overlay layers) and no locking is
// needed because nothing else touches it. A small fixed set of pump
// goroutines — the Wayland dispatch read loop and the epoll wait — feed
// it readiness signals and protocol-event closures over channels, since
// Go's select cannot wait on a raw fd or on a blocking library read
// loop directly; all decisions and state mutation still happen on the
// one loop goroutine, preserving the spec's "no internal locking, no
// atomics" invariant where it matters.
package eventloop

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/bnema/keyveil/internal/clock"
	"github.com/bnema/keyveil/internal/devices"
	"github.com/bnema/keyveil/internal/escapecombo"
	"github.com/bnema/keyveil/internal/geometry"
	"github.com/bnema/keyveil/internal/logger"
	"github.com/bnema/keyveil/internal/motion"
	"github.com/bnema/keyveil/internal/overlay"
	"github.com/bnema/keyveil/internal/replayer"
	"github.com/bnema/keyveil/internal/scheduler"
	"github.com/bnema/keyveil/internal/translator"
	"github.com/bnema/keyveil/internal/wlproto"
)

// ExitRequested is returned by Run when the escape combo fired or the
// replayer hit the 32-bit timestamp ceiling — both are clean-exit
// conditions, not failures.
type ExitRequested struct {
	Reason string
}

func (e *ExitRequested) Error() string { return "eventloop: exit requested: " + e.Reason }

const maxEpollEvents = 32

// epollResult is what the epoll-wait pump goroutine hands back to the
// main loop after each wait call.
type epollResult struct {
	ready []unix.EpollEvent
	err   error
}

// Loop owns every subsystem and drives them from one goroutine.
type Loop struct {
	Conn       *wlproto.Conn
	Devices    *devices.Manager
	Clock      *clock.Clock
	Geo        *geometry.Engine
	Motion     *motion.Engine
	Scheduler  *scheduler.Scheduler
	Translator *translator.Translator
	Combo      *escapecombo.Combo
	Replayer   *replayer.Replayer
	Layers     map[int]*overlay.Layer

	// WaylandDispatch is the compositor connection's blocking
	// read-and-handle-one-batch call (github.com/bnema/wlturbo/wl's
	// Display.Dispatch, the same call the teacher's own output-manager
	// bootstrap runs in a dedicated goroutine). It returns once it has
	// invoked whatever protocol handlers fired, or once the connection
	// is gone. Supplied by internal/daemon; nil disables the pump
	// (unit tests run without a live connection).
	WaylandDispatch func() error

	// ProtocolEvents carries closures queued by Wayland protocol
	// handlers running on the dispatch pump goroutine (geometry
	// updates from xdg-output, layer-surface configure acks, buffer
	// release notifications). Run exclusively drains it on the loop
	// goroutine, so the closures are the only place those handlers are
	// allowed to touch Geo/Motion/Layers/Scheduler — preserving the
	// single-owner invariant despite the dispatch pump being a second
	// goroutine.
	ProtocolEvents chan func(*Loop) error

	// HandleDeviceEvent maps a raw devices.Event into the appropriate
	// Translator/Combo calls; supplied by internal/daemon so eventloop
	// itself stays protocol-agnostic and testable without hardware.
	HandleDeviceEvent func(l *Loop, ev devices.Event) error
}

// Run drives the loop until ctx is cancelled, a fatal error occurs, or
// a clean-exit condition (escape combo, timestamp overflow) is hit.
func (l *Loop) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	results := make(chan epollResult, 1)
	timeoutReq := make(chan int, 1)

	g.Go(func() error { return l.pumpEpoll(gctx, results, timeoutReq) })
	if l.WaylandDispatch != nil {
		g.Go(func() error { return l.pumpWaylandDispatch(gctx) })
	}

	fsEvents := l.Devices.WatcherEvents()
	fsErrors := l.Devices.WatcherErrors()

	timeoutReq <- 0 // first turn: drain whatever's already pending, don't block
	var pendingReady []unix.EpollEvent

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case res := <-results:
			if res.err != nil {
				return fmt.Errorf("eventloop: %w", res.err)
			}
			pendingReady = res.ready
		case fsev := <-fsEvents:
			if err := l.Devices.HandleFSEvent(fsev); err != nil {
				logger.Warnf("eventloop: hot-plug handling failed: %v", err)
			}
		case err := <-fsErrors:
			logger.Warnf("eventloop: directory watch error: %v", err)
		case fn := <-l.ProtocolEvents:
			if err := fn(l); err != nil {
				return fmt.Errorf("eventloop: protocol event: %w", err)
			}
		}

		ready, timeoutMs, err := l.turn(pendingReady)
		pendingReady = nil
		if err != nil {
			var exit *ExitRequested
			if asExitRequested(err, &exit) {
				return exit
			}
			return err
		}
		_ = ready

		select {
		case timeoutReq <- timeoutMs:
		case <-ctx.Done():
			return g.Wait()
		}
	}
}

func asExitRequested(err error, target **ExitRequested) bool {
	e, ok := err.(*ExitRequested)
	if ok {
		*target = e
	}
	return ok
}

// pumpEpoll performs the actual blocking unix.EpollWait call — the one
// syscall in this daemon that genuinely cannot be expressed as a Go
// channel select, hence the single dedicated goroutine.
func (l *Loop) pumpEpoll(ctx context.Context, results chan<- epollResult, timeoutReq <-chan int) error {
	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		select {
		case <-ctx.Done():
			return nil
		case timeoutMs := <-timeoutReq:
			n, err := unix.EpollWait(l.Devices.EpollFD(), events, timeoutMs)
			if err != nil && err != unix.EINTR {
				select {
				case results <- epollResult{err: err}:
				case <-ctx.Done():
				}
				return fmt.Errorf("epoll_wait: %w", err)
			}
			ready := append([]unix.EpollEvent(nil), events[:max(n, 0)]...)
			select {
			case results <- epollResult{ready: ready}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// pumpWaylandDispatch runs the compositor connection's blocking
// Dispatch() call in a loop, the same pattern the teacher's own
// output-manager bootstrap uses for its background event processing.
// Every protocol handler it triggers must hand its effect to the loop
// goroutine via ProtocolEvents rather than touching shared state here.
func (l *Loop) pumpWaylandDispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := l.WaylandDispatch(); err != nil {
			return fmt.Errorf("wayland dispatch: %w", err)
		}
	}
}

// turn executes one iteration of spec.md §4.10's numbered steps and
// returns the fds found ready (unused by the caller today, kept for
// diagnosability) plus the next poll timeout in milliseconds.
func (l *Loop) turn(ready []unix.EpollEvent) ([]unix.EpollEvent, int, error) {
	// Step 1: drain whatever evdev fds the epoll wait reported ready.
	for _, ev := range ready {
		events, err := l.Devices.ReadReady(ev.Fd)
		if err != nil {
			return nil, 0, fmt.Errorf("eventloop: device read: %w", err)
		}
		for _, de := range events {
			if l.HandleDeviceEvent != nil {
				if err := l.HandleDeviceEvent(l, de); err != nil {
					var exit *ExitRequested
					if e, ok := err.(*ExitRequested); ok {
						exit = e
						return nil, 0, exit
					}
					return nil, 0, err
				}
			}
		}
	}

	now := l.Clock.Now()

	// Step 2: replayer drains every due packet.
	if err := l.Replayer.Drain(l.Scheduler.Queue(), now); err != nil {
		var overflow *replayer.TimestampOverflowError
		if e, ok := err.(*replayer.TimestampOverflowError); ok {
			overflow = e
			return nil, 0, &ExitRequested{Reason: overflow.Error()}
		}
		return nil, 0, fmt.Errorf("eventloop: replay: %w", err)
	}

	// Step 3: redraw every output the motion engine flagged dirty, plus
	// any layer that self-deferred in a previous turn for lack of a free
	// slot and has since had one freed by a buffer-release (spec.md
	// §4.9: "buffer-release eventually re-arms the layer").
	cur := l.Motion.Cursor().Cur
	redrawn := make(map[int]bool, len(l.Layers))
	for _, idx := range l.Motion.DirtyOutputs() {
		if layer, ok := l.Layers[idx]; ok {
			if err := layer.DrawFrame(l.Geo, cur); err != nil {
				return nil, 0, fmt.Errorf("eventloop: draw_frame output %d: %w", idx, err)
			}
			redrawn[idx] = true
		}
	}
	for idx, layer := range l.Layers {
		if redrawn[idx] || !layer.Pending() {
			continue
		}
		if err := layer.DrawFrame(l.Geo, cur); err != nil {
			return nil, 0, fmt.Errorf("eventloop: draw_frame output %d: %w", idx, err)
		}
	}

	// Step 4: compute next poll timeout from the scheduler head deadline.
	timeoutMs := 0
	if deadline, ok := l.Scheduler.HeadDeadline(); ok {
		timeoutMs = int(max(0, deadline-now))
	} else {
		timeoutMs = -1 // infinite: unix.EpollWait treats negative as block-forever
	}
	return ready, timeoutMs, nil
}
