package tessellate

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tileserver/internal/shape"
)

func feature(g orb.Geometry, tags map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(g)
	for k, v := range tags {
		f.Properties[k] = v
	}
	return f
}

func TestProjectOrientation(t *testing.T) {
	tess := New()
	world := TileSize * math.Exp2(ReferenceZoom)

	origin := tess.Project(orb.Point{0, 0})
	assert.InDelta(t, world/2, origin.X, 1e-6)
	assert.InDelta(t, world/2, origin.Y, 1e-6)

	west := tess.Project(orb.Point{-180, 0})
	assert.InDelta(t, 0, west.X, 1e-6)

	a := tess.Project(orb.Point{-74.0, 40.0})
	b := tess.Project(orb.Point{-73.9, 40.1})
	assert.Greater(t, b.X, a.X, "east maps to larger x")
	assert.Less(t, b.Y, a.Y, "north maps to smaller y")
}

func TestTessellateBoundingBoxIsUnionOfExtents(t *testing.T) {
	tess := New()
	features := []*geojson.Feature{
		feature(orb.Polygon{{{-74.0, 40.0}, {-73.95, 40.0}, {-73.95, 40.05}, {-74.0, 40.0}}}, map[string]interface{}{"building": "yes"}),
		feature(orb.LineString{{-73.99, 40.01}, {-73.91, 40.09}}, map[string]interface{}{"highway": "motorway"}),
		feature(orb.Point{-73.92, 40.02}, map[string]interface{}{"place": "village"}),
		feature(orb.MultiPolygon{
			{{{-73.97, 40.03}, {-73.96, 40.03}, {-73.96, 40.04}, {-73.97, 40.03}}},
			{{{-73.93, 40.06}, {-73.92, 40.06}, {-73.92, 40.07}, {-73.93, 40.06}}},
		}, map[string]interface{}{"natural": "water"}),
	}

	box := shape.EmptyPixelBox()
	var q shape.Queue
	for _, f := range features {
		tess.Tessellate(f, &box, &q)
	}

	require.Equal(t, 5, q.Len())
	require.True(t, box.Valid())
	assert.LessOrEqual(t, box.MinX, box.MaxX)
	assert.LessOrEqual(t, box.MinY, box.MaxY)

	union := shape.EmptyPixelBox()
	for _, item := range q.Items() {
		union.Extend(item.Shape.Extent())
	}
	assert.Equal(t, union, box)

	assert.Equal(t, tess.Project(orb.Point{-74.0, 40.0}).X, box.MinX)
	assert.Equal(t, tess.Project(orb.Point{-73.91, 40.09}).Y, box.MinY)
}

func TestTessellatePriorities(t *testing.T) {
	tess := New()
	cases := []struct {
		name     string
		geometry orb.Geometry
		tags     map[string]interface{}
		kind     shape.Kind
		priority int
	}{
		{"motorway", orb.LineString{{0, 0}, {1, 1}}, map[string]interface{}{"highway": "motorway"}, shape.KindLine, PriorityMotorway},
		{"residential street", orb.LineString{{0, 0}, {1, 1}}, map[string]interface{}{"highway": "residential"}, shape.KindLine, PriorityMinorRoad},
		{"river", orb.LineString{{0, 0}, {1, 1}}, map[string]interface{}{"waterway": "river"}, shape.KindLine, PriorityWaterway},
		{"railway", orb.MultiLineString{{{0, 0}, {1, 1}}}, map[string]interface{}{"railway": "rail"}, shape.KindLine, PriorityRailway},
		{"untagged line", orb.LineString{{0, 0}, {1, 1}}, nil, shape.KindLine, PriorityDefaultLine},
		{"lake", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, map[string]interface{}{"natural": "water"}, shape.KindPolygon, PriorityWater},
		{"forest", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, map[string]interface{}{"landuse": "forest"}, shape.KindPolygon, PriorityVegetation},
		{"houses", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, map[string]interface{}{"landuse": "residential"}, shape.KindPolygon, PriorityResidential},
		{"building", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, map[string]interface{}{"building": "yes", "levels": 3}, shape.KindPolygon, PriorityBuilding},
		{"border", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, map[string]interface{}{"boundary": "administrative"}, shape.KindLine, PriorityBorder},
		{"untagged area", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, map[string]interface{}{"name": 42}, shape.KindPolygon, PriorityBackground},
		{"place", orb.Point{0, 0}, map[string]interface{}{"place": "city"}, shape.KindPoint, PriorityPlace},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			box := shape.EmptyPixelBox()
			var q shape.Queue
			tess.Tessellate(feature(tc.geometry, tc.tags), &box, &q)

			item, ok := q.Peek()
			require.True(t, ok)
			assert.Equal(t, tc.priority, item.Priority)
			assert.Equal(t, tc.kind, item.Shape.Kind)
		})
	}
}

func TestTessellateSkipsDegenerateGeometry(t *testing.T) {
	tess := New()
	box := shape.EmptyPixelBox()
	var q shape.Queue

	tess.Tessellate(nil, &box, &q)
	tess.Tessellate(&geojson.Feature{}, &box, &q)
	tess.Tessellate(feature(orb.LineString{{0, 0}}, nil), &box, &q)
	tess.Tessellate(feature(orb.Polygon{{{0, 0}, {1, 1}}}, nil), &box, &q)

	assert.Zero(t, q.Len())
	assert.False(t, box.Valid())
}

func TestTessellateCollection(t *testing.T) {
	tess := New()
	box := shape.EmptyPixelBox()
	var q shape.Queue

	tess.Tessellate(feature(orb.Collection{
		orb.Point{1, 1},
		orb.MultiPoint{{2, 2}, {3, 3}},
		orb.LineString{{0, 0}, {1, 0}},
	}, nil), &box, &q)

	assert.Equal(t, 4, q.Len())
	items := q.Items()
	assert.Equal(t, PriorityDefaultLine, items[0].Priority)
	assert.Equal(t, PriorityPlace, items[3].Priority)
}
