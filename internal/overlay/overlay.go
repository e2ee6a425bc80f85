// Package overlay draws the synthetic cursor onto a translucent,
// triple-buffered layer surface per output. Grounded in kloak.c's
// draw_frame / allocate_drawable_layer / damage_surface_enh /
// create_shm_file (spec.md §4.9).
package overlay

import (
	"fmt"
	"syscall"

	"github.com/bnema/wlturbo/wl"

	"github.com/bnema/keyveil/internal/geometry"
	"github.com/bnema/keyveil/internal/wlproto"
)

// FrameCount is the number of slots in each output's shared-memory
// pool (spec.md §4.9: "FRAMES = 3").
const FrameCount = 3

// CursorRadius is the default half-width, in pixels, of the crosshair
// square (spec.md §4.9 default 15px).
const CursorRadius = 15

const bytesPerPixel = 4

type slot struct {
	inUse    bool
	lastX    int32
	lastY    int32
	hasDrawn bool
	buffer   *wl.Buffer
}

// Layer is one output's DrawableLayer: a layer-shell surface backed by
// a triple-buffered shared-memory pool.
type Layer struct {
	outputIdx int
	width     int32
	height    int32
	color     uint32

	surface *wl.Surface
	layer   *wlproto.LayerSurface

	poolFD   int
	poolSize int32
	poolData []byte
	pool     *wl.ShmPool

	slots [FrameCount]slot

	lastPaintedValid bool
	lastPaintedX     int32
	lastPaintedY     int32

	pendingRedraw  bool
	onSlotReleased func()
}

// NewLayer creates the shared-memory pool and layer-shell surface for
// one output and configures it per spec.md §4.9: anchored to all four
// edges, exclusive zone -1, empty input region.
func NewLayer(conn *wlproto.Conn, layerShell *wlproto.LayerShell, output *wl.Output, outputIdx int, width, height int32, color uint32) (*Layer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("overlay: invalid output size %dx%d", width, height)
	}

	surface, err := conn.Compositor().CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("overlay: create surface: %w", err)
	}

	emptyRegion, err := conn.Compositor().CreateRegion()
	if err != nil {
		return nil, fmt.Errorf("overlay: create empty input region: %w", err)
	}
	if err := surface.SetInputRegion(emptyRegion); err != nil {
		return nil, fmt.Errorf("overlay: set empty input region: %w", err)
	}

	lsurf, err := layerShell.GetLayerSurface(surface, output, uint32(wlproto.LayerOverlay), "keyveil-cursor-overlay")
	if err != nil {
		return nil, fmt.Errorf("overlay: get layer surface: %w", err)
	}
	if err := lsurf.SetAnchor(wlproto.AnchorAllEdges); err != nil {
		return nil, err
	}
	if err := lsurf.SetExclusiveZone(-1); err != nil {
		return nil, err
	}
	if err := lsurf.SetKeyboardInteractivity(0); err != nil {
		return nil, err
	}
	if err := lsurf.SetSize(uint32(width), uint32(height)); err != nil {
		return nil, err
	}

	l := &Layer{
		outputIdx: outputIdx,
		width:     width,
		height:    height,
		color:     color,
		surface:   surface,
		layer:     lsurf,
	}

	lsurf.SetConfigureHandler(func(serial, w, h uint32) {
		if w > 0 {
			l.width = int32(w)
		}
		if h > 0 {
			l.height = int32(h)
		}
		_ = lsurf.AckConfigure(serial)
		_ = surface.Commit()
	})
	lsurf.SetClosedHandler(func() {
		l.Destroy()
	})

	if err := l.allocatePool(conn); err != nil {
		return nil, err
	}
	if err := surface.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

func frameSize(width, height int32) int32 {
	return width * height * bytesPerPixel
}

// allocatePool creates the anonymous POSIX shared-memory file backing
// this layer's FrameCount slots, via a random-name create-exclusive
// retry loop (spec.md §4.9 last paragraph), then immediately unlinks it.
func (l *Layer) allocatePool(conn *wlproto.Conn) error {
	size := frameSize(l.width, l.height)
	fd, err := createAnonShmFile(int64(size) * FrameCount)
	if err != nil {
		return fmt.Errorf("overlay: allocate shared memory: %w", err)
	}
	data, err := wl.MapMemory(fd, int(size)*FrameCount)
	if err != nil {
		_ = syscall.Close(fd)
		return fmt.Errorf("overlay: map shared memory: %w", err)
	}
	pool, err := conn.Shm().CreatePool(fd, size*FrameCount)
	if err != nil {
		_ = syscall.Close(fd)
		return fmt.Errorf("overlay: create shm pool: %w", err)
	}

	l.poolFD = fd
	l.poolSize = size
	l.poolData = data
	l.pool = pool

	for i := range l.slots {
		offset := size * int32(i)
		buf, err := pool.CreateBuffer(offset, l.width, l.height, l.width*bytesPerPixel, uint32(wlproto.ShmFormatArgb8888))
		if err != nil {
			return fmt.Errorf("overlay: create buffer %d: %w", i, err)
		}
		idx := i
		buf.SetReleaseHandler(func() { l.handleSlotReleased(idx) })
		l.slots[idx].buffer = buf
	}
	return nil
}

// createAnonShmFile creates the anonymous backing file for a pool,
// retrying up to maxAttempts times on transient failure (spec.md
// §4.9's create_shm_file retry loop; wl.CreateAnonymousFile itself
// picks the randomized name kloak.c's randname() generated by hand).
func createAnonShmFile(size int64) (int, error) {
	const maxAttempts = 100
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		fd, err := wl.CreateAnonymousFile(size)
		if err == nil {
			return fd, nil
		}
		lastErr = err
	}
	return -1, fmt.Errorf("overlay: could not create anonymous shm file after %d attempts: %w", maxAttempts, lastErr)
}

// MarkDirty flags this layer as having a pending redraw.
func (l *Layer) MarkDirty() {
	l.pendingRedraw = true
}

// Pending reports whether this layer has a redraw pending.
func (l *Layer) Pending() bool {
	return l.pendingRedraw
}

// SetOnSlotReleased installs fn to run whenever a buffer-release frees
// a slot while this layer still has a deferred frame pending (spec.md
// §4.9: "buffer-release eventually re-arms the layer"). The handler
// itself fires on whatever goroutine drives Wayland dispatch, so fn
// must hand off to the owning event loop rather than touch shared
// state directly.
func (l *Layer) SetOnSlotReleased(fn func()) {
	l.onSlotReleased = fn
}

// handleSlotReleased is the compositor's wl_buffer.release handler for
// slot idx: the slot becomes free, and if a frame is still owed,
// onSlotReleased is told so the owning event loop can re-arm the
// redraw instead of waiting for it to be revisited incidentally.
func (l *Layer) handleSlotReleased(idx int) {
	l.slots[idx].inUse = false
	if l.pendingRedraw && l.onSlotReleased != nil {
		l.onSlotReleased()
	}
}

// DrawFrame implements spec.md §4.9's draw_frame: find a free slot,
// blank the previous occupant's footprint, paint the crosshair if the
// cursor is on this output, damage only the affected squares, commit.
func (l *Layer) DrawFrame(geo *geometry.Engine, cur geometry.Point) error {
	l.pendingRedraw = false

	freeIdx := -1
	for i := range l.slots {
		if !l.slots[i].inUse {
			freeIdx = i
			break
		}
	}
	if freeIdx < 0 {
		// No free slot: defer. A later buffer-release re-arms this layer.
		l.pendingRedraw = true
		return nil
	}

	s := &l.slots[freeIdx]
	buf := s.buffer
	pix := l.poolData[int32(freeIdx)*l.poolSize : (int32(freeIdx)+1)*l.poolSize]

	if s.hasDrawn {
		l.blankSquare(pix, s.lastX, s.lastY)
	}

	lp := geo.AbsToLocal(cur)
	onThisOutput := lp.Valid && lp.OutputIdx == l.outputIdx
	if onThisOutput {
		l.paintCrosshair(pix, lp.X, lp.Y)
	}

	damageX, damageY, damageW, damageH := l.damageRect(onThisOutput, lp)
	if damageW > 0 && damageH > 0 {
		if err := l.surface.DamageBuffer(damageX, damageY, damageW, damageH); err != nil {
			return err
		}
	}
	if err := l.surface.Attach(buf, 0, 0); err != nil {
		return err
	}
	if err := l.surface.Commit(); err != nil {
		return err
	}

	s.inUse = true
	if onThisOutput {
		s.lastX, s.lastY = lp.X, lp.Y
		s.hasDrawn = true
		l.lastPaintedValid = true
		l.lastPaintedX, l.lastPaintedY = lp.X, lp.Y
	} else {
		s.hasDrawn = false
	}
	return nil
}

// damageRect computes the union of the new paint square and the
// previously painted square, damage-minimal per spec.md §4.9 step 4-5.
func (l *Layer) damageRect(painting bool, lp geometry.LocalPoint) (x, y, w, h int32) {
	const pad = 1
	minX, minY := int32(1<<30), int32(1<<30)
	maxX, maxY := int32(-(1 << 30)), int32(-(1 << 30))
	have := false

	if painting {
		x0, y0, x1, y1 := squareBounds(lp.X, lp.Y, pad)
		minX, minY, maxX, maxY = x0, y0, x1, y1
		have = true
	}
	if l.lastPaintedValid {
		x0, y0, x1, y1 := squareBounds(l.lastPaintedX, l.lastPaintedY, pad)
		if !have || x0 < minX {
			minX = x0
		}
		if !have || y0 < minY {
			minY = y0
		}
		if !have || x1 > maxX {
			maxX = x1
		}
		if !have || y1 > maxY {
			maxY = y1
		}
		have = true
	}
	if !have {
		return 0, 0, 0, 0
	}
	return minX, minY, maxX - minX, maxY - minY
}

func squareBounds(cx, cy int32, pad int32) (x0, y0, x1, y1 int32) {
	x0 = cx - CursorRadius - pad
	y0 = cy - CursorRadius - pad
	x1 = cx + CursorRadius + pad
	y1 = cy + CursorRadius + pad
	return
}

// paintCrosshair draws a crosshair of l.color in an axis-aligned square
// of radius CursorRadius centered at (cx, cy): pixels on the center row
// or column get the cursor color, everything else in the square becomes
// transparent (spec.md §4.9 step 4).
func (l *Layer) paintCrosshair(pix []byte, cx, cy int32) {
	for dy := -int32(CursorRadius); dy <= CursorRadius; dy++ {
		y := cy + dy
		if y < 0 || y >= l.height {
			continue
		}
		for dx := -int32(CursorRadius); dx <= CursorRadius; dx++ {
			x := cx + dx
			if x < 0 || x >= l.width {
				continue
			}
			var argb uint32
			if dx == 0 || dy == 0 {
				argb = l.color
			}
			putPixel(pix, l.width, x, y, argb)
		}
	}
}

// blankSquare overwrites the (2·CursorRadius+1)-pixel square centered on
// (cx, cy), the area paintCrosshair covers, with zero
// (fully transparent) pixels — cheap, bounded blanking of the previous
// frame's footprint (spec.md §4.9 step 2).
func (l *Layer) blankSquare(pix []byte, cx, cy int32) {
	for dy := -int32(CursorRadius); dy <= CursorRadius; dy++ {
		y := cy + dy
		if y < 0 || y >= l.height {
			continue
		}
		for dx := -int32(CursorRadius); dx <= CursorRadius; dx++ {
			x := cx + dx
			if x < 0 || x >= l.width {
				continue
			}
			putPixel(pix, l.width, x, y, 0)
		}
	}
}

func putPixel(pix []byte, stride int32, x, y int32, argb uint32) {
	off := (y*stride + x) * bytesPerPixel
	if off < 0 || int(off)+4 > len(pix) {
		return
	}
	pix[off+0] = byte(argb)
	pix[off+1] = byte(argb >> 8)
	pix[off+2] = byte(argb >> 16)
	pix[off+3] = byte(argb >> 24)
}

// Destroy tears down the layer surface and its pool.
func (l *Layer) Destroy() {
	if l.layer != nil {
		_ = l.layer.Destroy()
	}
	if l.pool != nil {
		_ = l.pool.Destroy()
	}
	if l.poolFD > 0 {
		_ = syscall.Close(l.poolFD)
	}
}
