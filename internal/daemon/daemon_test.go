package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/keyveil/internal/clock"
	"github.com/bnema/keyveil/internal/devices"
	"github.com/bnema/keyveil/internal/escapecombo"
	"github.com/bnema/keyveil/internal/eventloop"
	"github.com/bnema/keyveil/internal/geometry"
	"github.com/bnema/keyveil/internal/keycodes"
	"github.com/bnema/keyveil/internal/motion"
	"github.com/bnema/keyveil/internal/scheduler"
	"github.com/bnema/keyveil/internal/translator"
)

const keyA = 30 // KEY_A, not worth a keycodes.byName entry just for this test

func newTestLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	geo := geometry.NewEngine()
	require.NoError(t, geo.Update(0, geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}))
	mo := motion.NewEngine(geo)
	sched := scheduler.New(100)
	combo, err := escapecombo.Parse(escapecombo.DefaultSpec)
	require.NoError(t, err)
	return &eventloop.Loop{
		Clock:      clock.New(),
		Geo:        geo,
		Motion:     mo,
		Scheduler:  sched,
		Translator: translator.New(mo, sched),
		Combo:      combo,
	}
}

func TestHandleDeviceEventButtonCodeGoesToTranslatorButton(t *testing.T) {
	l := newTestLoop(t)
	err := handleDeviceEvent(l, devices.Event{Type: keycodes.EvKey, Code: keycodes.BtnLeft, Value: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Scheduler.Queue().Len())
}

func TestHandleDeviceEventOrdinaryKeyGoesToTranslatorKey(t *testing.T) {
	l := newTestLoop(t)
	err := handleDeviceEvent(l, devices.Event{Type: keycodes.EvKey, Code: keyA, Value: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Scheduler.Queue().Len())
}

func TestHandleDeviceEventEscapeComboFiresExitRequested(t *testing.T) {
	l := newTestLoop(t)
	leftShift, err := keycodes.Lookup("KEY_LEFTSHIFT")
	require.NoError(t, err)
	rightShift, err := keycodes.Lookup("KEY_RIGHTSHIFT")
	require.NoError(t, err)
	esc, err := keycodes.Lookup("KEY_ESC")
	require.NoError(t, err)

	require.NoError(t, handleDeviceEvent(l, devices.Event{Type: keycodes.EvKey, Code: uint16(leftShift), Value: 1}))
	require.NoError(t, handleDeviceEvent(l, devices.Event{Type: keycodes.EvKey, Code: uint16(rightShift), Value: 1}))

	err = handleDeviceEvent(l, devices.Event{Type: keycodes.EvKey, Code: uint16(esc), Value: 1})
	require.Error(t, err)
	var exit *eventloop.ExitRequested
	assert.ErrorAs(t, err, &exit)
	assert.Equal(t, "escape combo", exit.Reason)
}

func TestHandleDeviceEventRelativeMotionGoesToTranslator(t *testing.T) {
	l := newTestLoop(t)
	require.NoError(t, handleDeviceEvent(l, devices.Event{Type: keycodes.EvRel, Code: keycodes.RelX, Value: 5}))
	require.NoError(t, handleDeviceEvent(l, devices.Event{Type: keycodes.EvRel, Code: keycodes.RelY, Value: -3}))
	cur := l.Motion.Cursor().Cur
	assert.Equal(t, int32(5), cur.X)
	// Y -3 from the top edge is clamped back onto the output.
	assert.Equal(t, int32(0), cur.Y)
}

func TestHandleDeviceEventScrollGoesToTranslatorScroll(t *testing.T) {
	l := newTestLoop(t)
	require.NoError(t, handleDeviceEvent(l, devices.Event{Type: keycodes.EvRel, Code: keycodes.RelWheel, Value: 1}))
	assert.Equal(t, 1, l.Scheduler.Queue().Len())
}

func TestHandleDeviceEventUnknownEventTypeIsIgnored(t *testing.T) {
	l := newTestLoop(t)
	err := handleDeviceEvent(l, devices.Event{Type: keycodes.EvAbs, Code: 0, Value: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, l.Scheduler.Queue().Len())
}

func TestAsFatalInvariantWrapsGlideError(t *testing.T) {
	err := asFatalInvariant(&motion.GlideError{At: geometry.Point{X: -1, Y: -1}})
	var fatal *FatalInvariantError
	require.ErrorAs(t, err, &fatal)
}

func TestAsFatalInvariantPassesThroughOtherErrors(t *testing.T) {
	other := assert.AnError
	assert.Equal(t, other, asFatalInvariant(other))
	assert.Nil(t, asFatalInvariant(nil))
}

func TestFatalErrorMessagesIncludeReason(t *testing.T) {
	init := &FatalInitError{Reason: "no root"}
	assert.Contains(t, init.Error(), "no root")

	invariant := &FatalInvariantError{Reason: "no adjacent pixel"}
	assert.Contains(t, invariant.Error(), "no adjacent pixel")
}
