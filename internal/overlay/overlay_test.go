package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/keyveil/internal/geometry"
)

func TestSquareBounds(t *testing.T) {
	x0, y0, x1, y1 := squareBounds(100, 100, 1)
	assert.Equal(t, int32(100-CursorRadius-1), x0)
	assert.Equal(t, int32(100-CursorRadius-1), y0)
	assert.Equal(t, int32(100+CursorRadius+1), x1)
	assert.Equal(t, int32(100+CursorRadius+1), y1)
}

func TestDamageRectFirstPaint(t *testing.T) {
	l := &Layer{width: 1920, height: 1080}
	x, y, w, h := l.damageRect(true, localAt(50, 60))
	want := int32(2*(CursorRadius+1))
	assert.Equal(t, want, w)
	assert.Equal(t, want, h)
	assert.Equal(t, int32(50-CursorRadius-1), x)
	assert.Equal(t, int32(60-CursorRadius-1), y)
}

func TestDamageRectNoPaintNoPrevious(t *testing.T) {
	l := &Layer{width: 1920, height: 1080}
	_, _, w, h := l.damageRect(false, localAt(0, 0))
	assert.Equal(t, int32(0), w)
	assert.Equal(t, int32(0), h)
}

func TestDamageRectUnionOfMoveAndPrevious(t *testing.T) {
	l := &Layer{width: 1920, height: 1080, lastPaintedValid: true, lastPaintedX: 10, lastPaintedY: 10}
	x, y, w, h := l.damageRect(true, localAt(200, 10))
	require.True(t, w > 0 && h > 0)
	// The union must cover both the old square (around 10,10) and the
	// new square (around 200,10): left edge comes from the old point,
	// right edge from the new point.
	assert.Equal(t, int32(10-CursorRadius-1), x)
	assert.Equal(t, int32(10-CursorRadius-1), y)
	assert.Equal(t, int32(200+CursorRadius+1)-x, w)
	assert.Equal(t, int32(10+CursorRadius+1)-y, h)
}

func TestPaintCrosshairDrawsCenterRowAndColumnOnly(t *testing.T) {
	l := &Layer{width: 40, height: 40, color: 0xffaabbcc}
	pix := make([]byte, frameSize(l.width, l.height))

	l.paintCrosshair(pix, 20, 20)

	// Center pixel must carry the color.
	assertPixel(t, pix, l.width, 20, 20, 0xffaabbcc)
	// On the center row but off-center column: also colored.
	assertPixel(t, pix, l.width, 25, 20, 0xffaabbcc)
	// Off both center row and column, inside the square: transparent.
	assertPixel(t, pix, l.width, 25, 25, 0)
}

func TestBlankSquareClearsPreviouslyPaintedPixels(t *testing.T) {
	l := &Layer{width: 40, height: 40, color: 0xffffffff}
	pix := make([]byte, frameSize(l.width, l.height))
	l.paintCrosshair(pix, 20, 20)
	assertPixel(t, pix, l.width, 20, 20, 0xffffffff)

	l.blankSquare(pix, 20, 20)
	assertPixel(t, pix, l.width, 20, 20, 0)
	assertPixel(t, pix, l.width, 25, 20, 0)
}

func TestPutPixelIgnoresOutOfBoundsOffsets(t *testing.T) {
	pix := make([]byte, 16)
	// Should not panic despite being out of range.
	putPixel(pix, 4, -1, 0, 0xffffffff)
	putPixel(pix, 4, 100, 100, 0xffffffff)
}

func TestDrawFrameDefersWhenEverySlotIsInUse(t *testing.T) {
	l := &Layer{width: 1920, height: 1080}
	for i := range l.slots {
		l.slots[i].inUse = true
	}
	geo := geometry.NewEngine()
	require.NoError(t, geo.Update(0, geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}))

	err := l.DrawFrame(geo, geometry.Point{X: 100, Y: 100})
	require.NoError(t, err)
	assert.True(t, l.Pending(), "starved layer must record the deferred frame")
}

func TestHandleSlotReleasedFiresReArmHookOnlyWhenFrameIsOwed(t *testing.T) {
	l := &Layer{width: 1920, height: 1080}
	l.slots[0].inUse = true

	fired := 0
	l.SetOnSlotReleased(func() { fired++ })

	// No frame owed yet: releasing a slot is routine bookkeeping, not a
	// re-arm trigger.
	l.handleSlotReleased(0)
	assert.False(t, l.slots[0].inUse)
	assert.Equal(t, 0, fired)

	// Starve every slot, defer a frame, then release one: the re-arm
	// hook must fire so the event loop redraws it (spec.md §4.9:
	// "buffer-release eventually re-arms the layer").
	for i := range l.slots {
		l.slots[i].inUse = true
	}
	l.pendingRedraw = true
	l.handleSlotReleased(1)
	assert.False(t, l.slots[1].inUse)
	assert.Equal(t, 1, fired)
}

func localAt(x, y int32) geometry.LocalPoint {
	return geometry.LocalPoint{X: x, Y: y, Valid: true}
}

func assertPixel(t *testing.T, pix []byte, stride, x, y int32, want uint32) {
	t.Helper()
	off := (y*stride + x) * bytesPerPixel
	got := uint32(pix[off]) | uint32(pix[off+1])<<8 | uint32(pix[off+2])<<16 | uint32(pix[off+3])<<24
	assert.Equal(t, want, got, "pixel at (%d,%d)", x, y)
}
