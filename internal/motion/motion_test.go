package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/keyveil/internal/geometry"
)

func singleOutput(t *testing.T) *geometry.Engine {
	t.Helper()
	geo := geometry.NewEngine()
	require.NoError(t, geo.Update(0, geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}))
	return geo
}

func twoOutputs(t *testing.T) *geometry.Engine {
	t.Helper()
	geo := geometry.NewEngine()
	require.NoError(t, geo.Update(0, geometry.Rect{X: 0, Y: 0, Width: 1280, Height: 720}))
	require.NoError(t, geo.Update(1, geometry.Rect{X: 1280, Y: 0, Width: 1280, Height: 720}))
	return geo
}

func TestResetPlacesCursorAtFirstOutputOrigin(t *testing.T) {
	geo := singleOutput(t)
	m := NewEngine(geo)
	require.NoError(t, m.Reset())
	assert.Equal(t, geometry.Point{0, 0}, m.Cursor().Cur)
	assert.Equal(t, geometry.Point{0, 0}, m.Cursor().Prev)
}

func TestApplyRelativeClampsToExtent(t *testing.T) {
	geo := singleOutput(t)
	m := NewEngine(geo)
	require.NoError(t, m.Reset())

	require.NoError(t, m.ApplyRelative(-5, -5))
	assert.Equal(t, geometry.Point{0, 0}, m.Cursor().Cur)

	require.NoError(t, m.ApplyRelative(10000, 10000))
	assert.Equal(t, geometry.Point{1919, 1079}, m.Cursor().Cur)
}

// TestWallGlideTwoOutputs is scenario 3 from spec.md §8: cursor at
// (1279, 700) on a gap-free two-output setup, fed (+5, +100); both
// outputs end at y=719 so the commit clamps to (1284, 719) without any
// off-screen traversal being necessary.
func TestWallGlideTwoOutputs(t *testing.T) {
	geo := twoOutputs(t)
	m := NewEngine(geo)
	m.cursor = Cursor{Cur: geometry.Point{1279, 700}, Prev: geometry.Point{1279, 700}}

	require.NoError(t, m.ApplyRelative(5, 100))
	assert.Equal(t, geometry.Point{1284, 719}, m.Cursor().Cur)
}

// TestGlideClosedness is the glide-closedness property: after the
// motion engine completes, AbsToLocal(cur) is always valid whenever at
// least one output has positive area.
func TestGlideClosedness(t *testing.T) {
	geo := twoOutputs(t)
	m := NewEngine(geo)
	require.NoError(t, m.Reset())

	moves := [][2]int32{{100, 0}, {0, 100}, {-50, -50}, {2000, 2000}, {-3000, -3000}}
	for _, mv := range moves {
		require.NoError(t, m.ApplyRelative(mv[0], mv[1]))
		lp := geo.AbsToLocal(m.Cursor().Cur)
		assert.True(t, lp.Valid)
	}
}

func TestApplyRelativeResetsOnCorruptedPrev(t *testing.T) {
	geo := singleOutput(t)
	m := NewEngine(geo)
	m.cursor = Cursor{Cur: geometry.Point{-500, -500}, Prev: geometry.Point{-500, -500}}

	require.NoError(t, m.ApplyRelative(1, 1))
	lp := geo.AbsToLocal(m.Cursor().Cur)
	assert.True(t, lp.Valid)
}
