package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeSingleOutput(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Update(0, Rect{X: 0, Y: 0, Width: 1920, Height: 1080}))
	assert.Equal(t, Point{0, 0}, e.Origin())
	assert.Equal(t, Point{1920, 1080}, e.Extent())
}

func TestRecomputeTwoAdjacentOutputs(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Update(0, Rect{X: 0, Y: 0, Width: 1280, Height: 720}))
	require.NoError(t, e.Update(1, Rect{X: 1280, Y: 0, Width: 1280, Height: 720}))
	assert.Equal(t, Point{0, 0}, e.Origin())
	assert.Equal(t, Point{2560, 720}, e.Extent())
}

// TestGapDetection is scenario 4 / the gap-detection testable property
// from spec.md §8: outputs (0,0,800,600) and (1000,0,800,600) do not
// touch even when each is grown by one pixel, so Recompute must fail.
func TestGapDetection(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Update(0, Rect{X: 0, Y: 0, Width: 800, Height: 600}))
	err := e.Update(1, Rect{X: 1000, Y: 0, Width: 800, Height: 600})
	require.Error(t, err)
	var gapErr *GapError
	require.ErrorAs(t, err, &gapErr)
	assert.Equal(t, 2, gapErr.Total)
	assert.Equal(t, 1, gapErr.Reachable)
}

func TestAbsToLocal(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Update(0, Rect{X: 0, Y: 0, Width: 1280, Height: 720}))
	require.NoError(t, e.Update(1, Rect{X: 1280, Y: 0, Width: 1280, Height: 720}))

	lp := e.AbsToLocal(Point{X: 1300, Y: 50})
	require.True(t, lp.Valid)
	assert.Equal(t, 1, lp.OutputIdx)
	assert.Equal(t, int32(20), lp.X)
	assert.Equal(t, int32(50), lp.Y)

	invalid := e.AbsToLocal(Point{X: -5, Y: -5})
	assert.False(t, invalid.Valid)
}

func TestLocalToAbsEmptySlot(t *testing.T) {
	e := NewEngine()
	p := e.LocalToAbs(5, 5, 3)
	assert.Equal(t, Point{-1, -1}, p)
}

func TestTraverseLineReachesEndExactly(t *testing.T) {
	start := Point{X: 0, Y: 0}
	end := Point{X: 10, Y: 3}
	n := Steps(start, end)
	last := TraverseLine(start, end, n-1)
	assert.Equal(t, end, last)
	assert.Equal(t, start, TraverseLine(start, end, 0))
}

func TestTraverseLineVertical(t *testing.T) {
	start := Point{X: 5, Y: 0}
	end := Point{X: 5, Y: 9}
	n := Steps(start, end)
	assert.Equal(t, 10, n)
	assert.Equal(t, end, TraverseLine(start, end, n-1))
}
