// Package motion maintains the synthetic cursor's position in global
// space and performs wall-glide clamping when a straight-line move would
// cross an unpopulated region. Grounded in kloak.c's update_virtual_cursor.
package motion

import (
	"fmt"

	"github.com/bnema/keyveil/internal/geometry"
)

// Cursor holds the current and previous accepted positions, both in
// global space.
type Cursor struct {
	Cur, Prev geometry.Point
}

// GlideError reports that the motion engine could not find any adjacent
// on-screen pixel while gliding — a fatal invariant violation per
// spec.md §7 category 2.
type GlideError struct {
	At geometry.Point
}

func (e *GlideError) Error() string {
	return fmt.Sprintf("motion: no adjacent on-screen pixel near %v during glide", e.At)
}

// Engine applies device motion deltas to a Cursor, clamping to the
// union of outputs and gliding along boundaries instead of crossing
// gaps.
type Engine struct {
	geo    *geometry.Engine
	cursor Cursor
	dirty  map[int]bool
}

// NewEngine returns a motion Engine bound to geo. The cursor starts at
// the zero point. ApplyRelative calls Reset itself when the previous
// position is on no output; ApplyAbsolute does not, so it needs a cursor
// already on an output.
func NewEngine(geo *geometry.Engine) *Engine {
	return &Engine{geo: geo, dirty: make(map[int]bool)}
}

// Cursor returns the current cursor state.
func (e *Engine) Cursor() Cursor {
	return e.cursor
}

// Reset places cur and prev at the local-origin of the first populated
// output, used both at startup and whenever corrupted state is detected
// (spec.md §4.6 final paragraph).
func (e *Engine) Reset() error {
	for i := 0; i < geometry.MaxOutputs; i++ {
		if r, ok := e.geo.RectAt(i); ok {
			p := geometry.Point{X: r.X, Y: r.Y}
			e.cursor = Cursor{Cur: p, Prev: p}
			return nil
		}
	}
	return fmt.Errorf("motion: no output available to reset cursor onto")
}

// DirtyOutputs returns, and clears, the set of output indices with a
// pending redraw since the last call.
func (e *Engine) DirtyOutputs() []int {
	out := make([]int, 0, len(e.dirty))
	for idx := range e.dirty {
		out = append(out, idx)
	}
	e.dirty = make(map[int]bool)
	return out
}

func (e *Engine) markDirty(p geometry.Point) {
	if lp := e.geo.AbsToLocal(p); lp.Valid {
		e.dirty[lp.OutputIdx] = true
	}
}

// ApplyRelative adds (dx, dy) to the current cursor, clamps it into
// [origin, extent-1] componentwise, then runs the glide clamp (spec.md
// §4.5 "Pointer motion (relative)", §4.6). Coalescing into the queue is
// left to the caller (translator via scheduler.EnqueueMotion).
func (e *Engine) ApplyRelative(dx, dy int32) error {
	if !e.geo.HasSpace() {
		return fmt.Errorf("motion: no global space published yet")
	}
	if lp := e.geo.AbsToLocal(e.cursor.Prev); !lp.Valid {
		if err := e.Reset(); err != nil {
			return err
		}
	}

	origin, extent := e.geo.Origin(), e.geo.Extent()
	target := geometry.Point{X: e.cursor.Cur.X + dx, Y: e.cursor.Cur.Y + dy}
	target = clamp(target, origin, extent)
	return e.glide(target)
}

// ApplyAbsolute transforms device-normalized coordinates (in [0,1])
// into global space using extent as the span, then glides to them
// (spec.md §4.5 "Pointer motion (absolute)").
func (e *Engine) ApplyAbsolute(nx, ny float64) error {
	if !e.geo.HasSpace() {
		return fmt.Errorf("motion: no global space published yet")
	}
	origin, extent := e.geo.Origin(), e.geo.Extent()
	target := geometry.Point{
		X: origin.X + int32(nx*float64(extent.X-origin.X)),
		Y: origin.Y + int32(ny*float64(extent.Y-origin.Y)),
	}
	target = clamp(target, origin, extent)
	return e.glide(target)
}

func clamp(p, origin, extent geometry.Point) geometry.Point {
	if p.X < origin.X {
		p.X = origin.X
	}
	if p.Y < origin.Y {
		p.Y = origin.Y
	}
	if p.X > extent.X-1 {
		p.X = extent.X - 1
	}
	if p.Y > extent.Y-1 {
		p.Y = extent.Y - 1
	}
	return p
}

// glide implements spec.md §4.6 steps 2-5: walk the Bresenham line from
// prev toward target, retry one axis back on first off-screen step, and
// collapse the remaining path to the other axis if the retry lands
// on-screen.
func (e *Engine) glide(target geometry.Point) error {
	start, end := e.cursor.Prev, target
	prevPoint := start

	for i := 0; ; i++ {
		p := geometry.TraverseLine(start, end, i)
		lp := e.geo.AbsToLocal(p)
		if lp.Valid {
			prevPoint = p
			if p == end {
				e.markDirty(e.cursor.Cur)
				e.cursor.Prev = e.cursor.Cur
				e.cursor.Cur = end
				e.markDirty(end)
				return nil
			}
			continue
		}

		retried, ok := retryOneAxisBack(p, prevPoint, e.geo)
		if !ok {
			return &GlideError{At: p}
		}
		start = retried
		end = collapseToOtherAxis(retried, end, p, prevPoint)
		i = -1
		prevPoint = retried
	}
}

// retryOneAxisBack steps p back by one pixel along whichever axis moved
// relative to prev, returning the retried point and whether it is
// on-screen.
func retryOneAxisBack(p, prev geometry.Point, geo *geometry.Engine) (geometry.Point, bool) {
	candidates := make([]geometry.Point, 0, 1)
	switch {
	case p.X > prev.X:
		candidates = append(candidates, geometry.Point{X: p.X - 1, Y: p.Y})
	case p.X < prev.X:
		candidates = append(candidates, geometry.Point{X: p.X + 1, Y: p.Y})
	}
	switch {
	case p.Y > prev.Y:
		candidates = append(candidates, geometry.Point{X: p.X, Y: p.Y - 1})
	case p.Y < prev.Y:
		candidates = append(candidates, geometry.Point{X: p.X, Y: p.Y + 1})
	}
	for _, c := range candidates {
		if geo.AbsToLocal(c).Valid {
			return c, true
		}
	}
	return geometry.Point{}, false
}

// collapseToOtherAxis sets the moving axis of end equal to retried's
// value, leaving the other axis free to keep progressing — "collapse
// the remaining path to a straight line along the other axis".
func collapseToOtherAxis(retried, end, offscreen, prev geometry.Point) geometry.Point {
	if offscreen.X != prev.X {
		return geometry.Point{X: retried.X, Y: end.Y}
	}
	return geometry.Point{X: end.X, Y: retried.Y}
}
