// Package tessellate turns GeoJSON features into drawable shapes in world
// pixel space, assigning each a paint priority from its tags.
package tessellate

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"tileserver/internal/shape"
)

const (
	// ReferenceZoom is the web map zoom level whose pixel grid shapes are
	// projected onto.
	ReferenceZoom = 17
	TileSize      = 256
)

const earthHalfCircumference = orb.EarthRadius * math.Pi

type Tessellator struct {
	worldSize float64
}

func New() *Tessellator {
	return &Tessellator{
		worldSize: TileSize * math.Exp2(ReferenceZoom),
	}
}

// Project maps a lon/lat position to world pixel coordinates.
func (t *Tessellator) Project(p orb.Point) shape.Point {
	m := project.WGS84.ToMercator(p)
	scale := t.worldSize / (2 * earthHalfCircumference)
	return shape.Point{
		X: (m[0] + earthHalfCircumference) * scale,
		Y: (earthHalfCircumference - m[1]) * scale,
	}
}

// Tessellate appends the shapes for f to q and widens box by their extent.
// Features with no drawable geometry add nothing.
func (t *Tessellator) Tessellate(f *geojson.Feature, box *shape.PixelBox, q *shape.Queue) {
	if f == nil || f.Geometry == nil {
		return
	}
	t.geometry(f.Properties, f.Geometry, box, q)
}

func (t *Tessellator) geometry(props geojson.Properties, g orb.Geometry, box *shape.PixelBox, q *shape.Queue) {
	switch g := g.(type) {
	case orb.Point:
		t.add(classify(props, shape.KindPoint), [][]shape.Point{{t.Project(g)}}, box, q)
	case orb.MultiPoint:
		for _, p := range g {
			t.geometry(props, p, box, q)
		}
	case orb.LineString:
		if len(g) < 2 {
			return
		}
		t.add(classify(props, shape.KindLine), [][]shape.Point{t.path(g)}, box, q)
	case orb.MultiLineString:
		paths := make([][]shape.Point, 0, len(g))
		for _, ls := range g {
			if len(ls) >= 2 {
				paths = append(paths, t.path(ls))
			}
		}
		if len(paths) > 0 {
			t.add(classify(props, shape.KindLine), paths, box, q)
		}
	case orb.Ring:
		t.geometry(props, orb.Polygon{g}, box, q)
	case orb.Polygon:
		paths := make([][]shape.Point, 0, len(g))
		for _, ring := range g {
			if len(ring) >= 3 {
				paths = append(paths, t.path(ring))
			}
		}
		if len(paths) > 0 {
			t.add(classify(props, shape.KindPolygon), paths, box, q)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			t.geometry(props, p, box, q)
		}
	case orb.Bound:
		t.geometry(props, g.ToPolygon(), box, q)
	case orb.Collection:
		for _, c := range g {
			t.geometry(props, c, box, q)
		}
	}
}

func (t *Tessellator) path(points []orb.Point) []shape.Point {
	out := make([]shape.Point, len(points))
	for i, p := range points {
		out[i] = t.Project(p)
	}
	return out
}

func (t *Tessellator) add(st style, paths [][]shape.Point, box *shape.PixelBox, q *shape.Queue) {
	s := &shape.Shape{
		Kind:  st.kind,
		Paths: paths,
		Width: st.width,
		Color: st.color,
	}
	box.Extend(s.Extent())
	q.Enqueue(s, st.priority)
}
