package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDelayBound is the delay-bound testable property from spec.md §8.
func TestDelayBound(t *testing.T) {
	s := New(100)
	for i := 0; i < 1000; i++ {
		p, err := s.Enqueue(Packet{Kind: KindKey, Key: Key{Code: 30, Pressed: true}}, 1000)
		require.NoError(t, err)
		assert.LessOrEqual(t, p.SchedTime-1000, int64(100))
		assert.GreaterOrEqual(t, p.SchedTime, int64(1000))
	}
}

// TestMonotonicRelease is the monotonic-release property: packets
// enqueued in sequence never get an earlier deadline than their
// predecessor.
func TestMonotonicRelease(t *testing.T) {
	s := New(100)
	p1, err := s.Enqueue(Packet{Kind: KindKey}, 1000)
	require.NoError(t, err)
	p2, err := s.Enqueue(Packet{Kind: KindKey}, 1001)
	require.NoError(t, err)
	assert.LessOrEqual(t, p1.SchedTime, p2.SchedTime)
}

// TestScenarioSingleOutputKeystrokeDelay is scenario 1 from spec.md §8.
func TestScenarioSingleOutputKeystrokeDelay(t *testing.T) {
	s := New(100)
	press, err := s.Enqueue(Packet{Kind: KindKey, Key: Key{Code: 30, Pressed: true}}, 1000)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, press.SchedTime, int64(1000))
	assert.LessOrEqual(t, press.SchedTime, int64(1100))

	release, err := s.Enqueue(Packet{Kind: KindKey, Key: Key{Code: 30, Pressed: false}}, 1200)
	require.NoError(t, err)
	expectedLower := press.SchedTime
	if expectedLower < 1200 {
		expectedLower = 1200
	}
	assert.GreaterOrEqual(t, release.SchedTime, expectedLower)
	assert.LessOrEqual(t, release.SchedTime, int64(1300))
}

// TestCoalescing is the coalescing property from spec.md §8 / scenario 2.
func TestCoalescing(t *testing.T) {
	s := New(100)
	now := int64(2000)
	x, y := int32(0), int32(0)
	for i := 0; i < 10; i++ {
		x += 5
		y += 5
		enqueued, err := s.EnqueueMotion(x, y, now+int64(i))
		require.NoError(t, err)
		if i == 0 {
			assert.True(t, enqueued)
		} else {
			assert.False(t, enqueued, "subsequent motions should coalesce")
		}
	}
	assert.Equal(t, 1, s.Queue().Len())
	head, ok := s.Queue().Front()
	require.True(t, ok)
	assert.Equal(t, int32(50), head.Motion.X)
	assert.Equal(t, int32(50), head.Motion.Y)
}

func TestCoalescingBreaksOnInterveningNonMotion(t *testing.T) {
	s := New(100)
	_, err := s.EnqueueMotion(5, 5, 0)
	require.NoError(t, err)
	_, err = s.Enqueue(Packet{Kind: KindButton}, 1)
	require.NoError(t, err)
	_, err = s.EnqueueMotion(10, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Queue().Len())
}

func TestPopReady(t *testing.T) {
	q := NewQueue()
	q.PushBack(Packet{SchedTime: 10})
	q.PushBack(Packet{SchedTime: 20})
	q.PushBack(Packet{SchedTime: 30})

	ready := q.PopReady(20)
	assert.Len(t, ready, 2)
	assert.Equal(t, 1, q.Len())
}
