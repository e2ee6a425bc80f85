package eventloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/keyveil/internal/clock"
	"github.com/bnema/keyveil/internal/geometry"
	"github.com/bnema/keyveil/internal/motion"
	"github.com/bnema/keyveil/internal/overlay"
	"github.com/bnema/keyveil/internal/replayer"
	"github.com/bnema/keyveil/internal/scheduler"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	geo := geometry.NewEngine()
	require.NoError(t, geo.Update(0, geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}))
	return &Loop{
		Clock:     clock.New(),
		Geo:       geo,
		Motion:    motion.NewEngine(geo),
		Scheduler: scheduler.New(100),
		Replayer:  replayer.New(nil, nil, geo),
		Layers:    map[int]*overlay.Layer{},
	}
}

func TestTurnWithNoReadyFDsAndEmptyQueueBlocksForever(t *testing.T) {
	l := newTestLoop(t)
	ready, timeoutMs, err := l.turn(nil)
	require.NoError(t, err)
	assert.Empty(t, ready)
	assert.Equal(t, -1, timeoutMs)
}

func TestTurnTimeoutMatchesScheduledDeadline(t *testing.T) {
	l := newTestLoop(t)
	now := l.Clock.Now()
	_, err := l.Scheduler.Enqueue(scheduler.Packet{Kind: scheduler.KindButton, SchedTime: now + 50}, now)
	require.NoError(t, err)

	_, timeoutMs, err := l.turn(nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, timeoutMs, 0)
	assert.LessOrEqual(t, timeoutMs, 50)
}

func TestTurnConvertsTimestampOverflowIntoExitRequested(t *testing.T) {
	l := newTestLoop(t)
	// A negative SchedTime is always <= Clock.Now() (ready immediately)
	// and fails the replayer's wire-timestamp range check, exercising
	// the same overflow path a SchedTime past math.MaxUint32 would
	// without needing the real clock to run for 49 days of wall time.
	l.Scheduler.Queue().PushBack(scheduler.Packet{Kind: scheduler.KindButton, SchedTime: -1})

	_, _, err := l.turn(nil)
	require.Error(t, err)

	var exit *ExitRequested
	assert.ErrorAs(t, err, &exit)
}

func TestAsExitRequestedRecognizesExitType(t *testing.T) {
	var target *ExitRequested
	ok := asExitRequested(&ExitRequested{Reason: "escape combo"}, &target)
	assert.True(t, ok)
	require.NotNil(t, target)
	assert.Equal(t, "escape combo", target.Reason)
}

func TestAsExitRequestedRejectsOtherErrors(t *testing.T) {
	var target *ExitRequested
	ok := asExitRequested(assert.AnError, &target)
	assert.False(t, ok)
	assert.Nil(t, target)
}
