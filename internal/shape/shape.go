// Package shape holds the drawable primitives produced by tessellation, the
// pixel-space bounding box they accumulate into, and the persistent priority
// queue that orders them for painting.
package shape

import (
	"image/color"
	"math"
)

type Kind int

const (
	KindPolygon Kind = iota
	KindLine
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "polygon"
	case KindLine:
		return "line"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Point is a position in world pixel space. Y grows downward.
type Point struct {
	X float64
	Y float64
}

// Shape is one drawable primitive. Polygons use Paths as rings (first outer,
// following holes), lines use each path as a separate polyline and points use
// the first vertex of the first path. Width is the stroke width for lines and
// the marker edge for points, both in canvas pixels.
//
// Shapes are shared between the cache and every snapshot taken from it and
// must not be modified after they are enqueued.
type Shape struct {
	Kind  Kind
	Paths [][]Point
	Width float64
	Color color.RGBA
}

// Extent returns the pixel-space bounding box of every vertex of the shape.
func (s *Shape) Extent() PixelBox {
	box := EmptyPixelBox()
	for _, path := range s.Paths {
		for _, p := range path {
			box.ExtendPoint(p)
		}
	}
	return box
}

// PixelBox is an accumulator for a bounding box in pixel space. The zero value
// is not empty; use EmptyPixelBox.
type PixelBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func EmptyPixelBox() PixelBox {
	return PixelBox{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

func (b *PixelBox) ExtendPoint(p Point) {
	b.MinX = math.Min(b.MinX, p.X)
	b.MinY = math.Min(b.MinY, p.Y)
	b.MaxX = math.Max(b.MaxX, p.X)
	b.MaxY = math.Max(b.MaxY, p.Y)
}

func (b *PixelBox) Extend(other PixelBox) {
	if !other.Valid() {
		return
	}
	b.ExtendPoint(Point{X: other.MinX, Y: other.MinY})
	b.ExtendPoint(Point{X: other.MaxX, Y: other.MaxY})
}

// Valid reports whether at least one point has been added.
func (b PixelBox) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

func (b PixelBox) Width() float64 {
	if !b.Valid() {
		return 0
	}
	return b.MaxX - b.MinX
}

func (b PixelBox) Height() float64 {
	if !b.Valid() {
		return 0
	}
	return b.MaxY - b.MinY
}
