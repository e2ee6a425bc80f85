// Package geometry maintains the global, gap-free coordinate space
// spanning every connected output, and the conversions between it and
// per-output local coordinates.
package geometry

import "fmt"

// MaxOutputs bounds the stable-index output table (spec.md §9 REDESIGN
// FLAGS: a fixed-size array of optional slots replaces pointer-identity
// lookup of opaque compositor object handles).
const MaxOutputs = 128

// Point is an integer coordinate, global or local depending on context.
type Point struct {
	X, Y int32
}

// Rect is an output's geometry in compositor-global integer pixels.
// Width and Height must be > 0 for any geometry published to consumers.
type Rect struct {
	X, Y, Width, Height int32
}

func (r Rect) right() int32  { return r.X + r.Width }
func (r Rect) bottom() int32 { return r.Y + r.Height }

func (r Rect) contains(p Point) bool {
	return p.X >= r.X && p.X < r.right() && p.Y >= r.Y && p.Y < r.bottom()
}

// grownTouches reports whether r and o overlap once each is grown by one
// pixel in every direction — the "touching" relation recalcGlobalSpace
// builds its connectivity graph from.
func grownTouches(r, o Rect) bool {
	rx0, ry0, rx1, ry1 := r.X-1, r.Y-1, r.right()+1, r.bottom()+1
	ox0, oy0, ox1, oy1 := o.X-1, o.Y-1, o.right()+1, o.bottom()+1
	if rx1 <= ox0 || ox1 <= rx0 {
		return false
	}
	if ry1 <= oy0 || oy1 <= ry0 {
		return false
	}
	return true
}

// GapError reports that the advertised outputs do not form a single
// connected, gap-free region.
type GapError struct {
	Total, Reachable int
}

func (e *GapError) Error() string {
	return fmt.Sprintf("geometry: gap between outputs (reachable %d of %d)", e.Reachable, e.Total)
}

// Engine owns the per-output rectangle table and the derived global
// space. It is not safe for concurrent use; callers (the event loop) own
// exclusive access.
type Engine struct {
	slots         [MaxOutputs]*Rect
	origin        Point
	extent        Point
	spacePublished bool
}

// NewEngine returns an Engine with no outputs installed.
func NewEngine() *Engine {
	return &Engine{}
}

// Update installs or replaces the geometry at index, then recomputes the
// global space. index must be in [0, MaxOutputs).
func (e *Engine) Update(index int, geom Rect) error {
	if index < 0 || index >= MaxOutputs {
		return fmt.Errorf("geometry: output index %d out of range", index)
	}
	if geom.Width <= 0 || geom.Height <= 0 {
		return fmt.Errorf("geometry: output %d has non-positive size %dx%d", index, geom.Width, geom.Height)
	}
	r := geom
	e.slots[index] = &r
	return e.Recompute()
}

// Remove tears down the geometry at index (the output was disconnected)
// and recomputes the global space over what remains.
func (e *Engine) Remove(index int) error {
	if index < 0 || index >= MaxOutputs {
		return fmt.Errorf("geometry: output index %d out of range", index)
	}
	e.slots[index] = nil
	if e.firstPopulated() < 0 {
		e.spacePublished = false
		return nil
	}
	return e.Recompute()
}

func (e *Engine) firstPopulated() int {
	for i, s := range e.slots {
		if s != nil {
			return i
		}
	}
	return -1
}

// Recompute rebuilds origin/extent from the installed rectangles and
// verifies connectivity. It returns a *GapError (without mutating
// published state) if the grown-by-one touching graph over all
// installed outputs is disconnected.
func (e *Engine) Recompute() error {
	first := e.firstPopulated()
	if first < 0 {
		e.spacePublished = false
		return nil
	}

	indices := make([]int, 0, MaxOutputs)
	for i, s := range e.slots {
		if s != nil {
			indices = append(indices, i)
		}
	}

	visited := make(map[int]bool, len(indices))
	queue := []int{indices[0]}
	visited[indices[0]] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, other := range indices {
			if visited[other] {
				continue
			}
			if grownTouches(*e.slots[cur], *e.slots[other]) {
				visited[other] = true
				queue = append(queue, other)
			}
		}
	}
	if len(visited) < len(indices) {
		return &GapError{Total: len(indices), Reachable: len(visited)}
	}

	minX, minY := e.slots[indices[0]].X, e.slots[indices[0]].Y
	maxX, maxY := e.slots[indices[0]].right(), e.slots[indices[0]].bottom()
	for _, i := range indices[1:] {
		r := e.slots[i]
		if r.X < minX {
			minX = r.X
		}
		if r.Y < minY {
			minY = r.Y
		}
		if r.right() > maxX {
			maxX = r.right()
		}
		if r.bottom() > maxY {
			maxY = r.bottom()
		}
	}
	e.origin = Point{X: minX, Y: minY}
	e.extent = Point{X: maxX, Y: maxY}
	e.spacePublished = true
	return nil
}

// Origin returns the global-space origin (min corner across outputs).
func (e *Engine) Origin() Point { return e.origin }

// Extent returns the global-space extent (max corner across outputs).
func (e *Engine) Extent() Point { return e.extent }

// HasSpace reports whether at least one output has been published.
func (e *Engine) HasSpace() bool { return e.spacePublished }

// LocalPoint is the result of an AbsToLocal lookup.
type LocalPoint struct {
	OutputIdx int
	X, Y      int32
	Valid     bool
}

// AbsToLocal finds the first output (by ascending index) whose rectangle
// contains p and returns p translated into that output's local
// coordinates. Valid is false if no output contains p.
func (e *Engine) AbsToLocal(p Point) LocalPoint {
	for i, r := range e.slots {
		if r == nil {
			continue
		}
		if r.contains(p) {
			return LocalPoint{OutputIdx: i, X: p.X - r.X, Y: p.Y - r.Y, Valid: true}
		}
	}
	return LocalPoint{}
}

// LocalToAbs translates a local point on output idx back into global
// space. It returns (-1, -1) if idx has no installed geometry; it does
// not bounds-check lx, ly beyond non-negativity.
func (e *Engine) LocalToAbs(lx, ly int32, idx int) Point {
	if idx < 0 || idx >= MaxOutputs || e.slots[idx] == nil {
		return Point{X: -1, Y: -1}
	}
	if lx < 0 || ly < 0 {
		return Point{X: -1, Y: -1}
	}
	r := e.slots[idx]
	return Point{X: r.X + lx, Y: r.Y + ly}
}

// RectAt returns the installed rectangle at idx and whether it exists.
func (e *Engine) RectAt(idx int) (Rect, bool) {
	if idx < 0 || idx >= MaxOutputs || e.slots[idx] == nil {
		return Rect{}, false
	}
	return *e.slots[idx], true
}
