// Package raster paints a shape queue onto an RGBA canvas.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"tileserver/internal/shape"
)

var ErrInvalidSize = errors.New("invalid canvas size")

// DefaultBackground is the land colour under every shape.
var DefaultBackground = color.RGBA{R: 0xf2, G: 0xef, B: 0xe9, A: 0xff}

const (
	minStrokeWidth = 1.0
	defaultMarker  = 3.0
)

type Rasterizer struct {
	background color.RGBA
}

func New(background color.RGBA) *Rasterizer {
	return &Rasterizer{background: background}
}

// Render paints q in paint order onto a width×height canvas. view is the pixel
// region stretched over the canvas; shapes outside it are skipped. An invalid
// view or an empty queue yields a canvas filled with the background.
func (r *Rasterizer) Render(q shape.Queue, view shape.PixelBox, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
	if !view.Valid() {
		return canvas, nil
	}

	p := painter{
		z:      vector.NewRasterizer(width, height),
		canvas: canvas,
		tr:     fit(view, width, height),
		w:      float64(width),
		h:      float64(height),
	}
	for {
		item, ok := q.Dequeue()
		if !ok {
			break
		}
		p.paint(item.Shape)
	}
	return canvas, nil
}

// transform maps world pixels to canvas pixels.
type transform struct {
	sx, sy float64
	ox, oy float64
}

func fit(view shape.PixelBox, width, height int) transform {
	w, h := float64(width), float64(height)
	bw, bh := view.Width(), view.Height()

	var sx, sy float64
	switch {
	case bw > 0 && bh > 0:
		sx, sy = w/bw, h/bh
	case bw > 0:
		sx = w / bw
		sy = sx
	case bh > 0:
		sy = h / bh
		sx = sy
	default:
		sx, sy = 1, 1
	}

	cx := (view.MinX + view.MaxX) / 2
	cy := (view.MinY + view.MaxY) / 2
	return transform{
		sx: sx,
		sy: sy,
		ox: w/2 - cx*sx,
		oy: h/2 - cy*sy,
	}
}

func (t transform) apply(p shape.Point) point {
	return point{x: p.X*t.sx + t.ox, y: p.Y*t.sy + t.oy}
}

type point struct {
	x, y float64
}

type painter struct {
	z      *vector.Rasterizer
	canvas *image.RGBA
	tr     transform
	w, h   float64
}

func (p *painter) paint(s *shape.Shape) {
	if s == nil || len(s.Paths) == 0 {
		return
	}

	half := s.Width / 2
	if s.Kind == shape.KindLine && s.Width < minStrokeWidth {
		half = minStrokeWidth / 2
	}
	if s.Kind == shape.KindPoint && s.Width <= 0 {
		half = defaultMarker / 2
	}

	clip := rect{minX: -half - 1, minY: -half - 1, maxX: p.w + half + 1, maxY: p.h + half + 1}
	ext := s.Extent()
	lo, hi := p.tr.apply(shape.Point{X: ext.MinX, Y: ext.MinY}), p.tr.apply(shape.Point{X: ext.MaxX, Y: ext.MaxY})
	if hi.x < clip.minX || lo.x > clip.maxX || hi.y < clip.minY || lo.y > clip.maxY {
		return
	}

	p.z.Reset(int(p.w), int(p.h))
	drawn := false
	switch s.Kind {
	case shape.KindPolygon:
		for _, ring := range s.Paths {
			pts := make([]point, len(ring))
			for i, v := range ring {
				pts[i] = p.tr.apply(v)
			}
			drawn = p.fill(clip.clip(pts)) || drawn
		}
	case shape.KindLine:
		for _, path := range s.Paths {
			for i := 1; i < len(path); i++ {
				a, b := p.tr.apply(path[i-1]), p.tr.apply(path[i])
				drawn = p.fill(clip.clip(segment(a, b, half))) || drawn
			}
		}
	case shape.KindPoint:
		if len(s.Paths[0]) > 0 {
			c := p.tr.apply(s.Paths[0][0])
			drawn = p.fill(clip.clip(segment(c, c, half))) || drawn
		}
	}

	if drawn {
		p.z.Draw(p.canvas, p.canvas.Bounds(), image.NewUniform(s.Color), image.Point{})
	}
}

func (p *painter) fill(pts []point) bool {
	if len(pts) < 3 {
		return false
	}
	p.z.MoveTo(float32(pts[0].x), float32(pts[0].y))
	for _, v := range pts[1:] {
		p.z.LineTo(float32(v.x), float32(v.y))
	}
	p.z.ClosePath()
	return true
}

// segment returns the quad covering a stroke of half-width half from a to b,
// extended by half past both ends so consecutive segments overlap at joints.
// Every quad has the same orientation, so overlaps never cancel out.
func segment(a, b point, half float64) []point {
	dx, dy := b.x-a.x, b.y-a.y
	l := math.Hypot(dx, dy)
	if l == 0 {
		dx, dy, l = 1, 0, 1
	}
	ux, uy := dx/l*half, dy/l*half
	nx, ny := -uy, ux

	a = point{a.x - ux, a.y - uy}
	b = point{b.x + ux, b.y + uy}
	return []point{
		{a.x + nx, a.y + ny},
		{b.x + nx, b.y + ny},
		{b.x - nx, b.y - ny},
		{a.x - nx, a.y - ny},
	}
}
