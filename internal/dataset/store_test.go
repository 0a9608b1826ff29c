package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sample = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "park", "leisure": "park"},
     "geometry": {"type": "Polygon", "coordinates": [[[-73.99, 40.02], [-73.95, 40.02], [-73.95, 40.06], [-73.99, 40.06], [-73.99, 40.02]]]}},
    {"type": "Feature", "properties": {"name": "main st", "highway": "primary"},
     "geometry": {"type": "LineString", "coordinates": [[-73.98, 40.01], [-73.92, 40.09]]}},
    {"type": "Feature", "properties": {"name": "far away", "place": "town"},
     "geometry": {"type": "Point", "coordinates": [2.35, 48.85]}},
    {"type": "Feature", "properties": {"name": "no geometry"}, "geometry": null}
  ]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))
	return path
}

func nyc() orb.Bound {
	return orb.Bound{Min: orb.Point{-74.0, 40.0}, Max: orb.Point{-73.9, 40.1}}
}

func names(t *testing.T, s *Store, b orb.Bound) []string {
	t.Helper()
	var out []string
	_, err := s.ForEachFeature(context.Background(), b, func(f *geojson.Feature) bool {
		out = append(out, f.Properties.MustString("name"))
		return true
	})
	require.NoError(t, err)
	return out
}

func TestLoadSkipsFeaturesWithoutGeometry(t *testing.T) {
	s := New(writeSample(t), zap.NewNop())
	require.NoError(t, s.Load())

	info := s.Info()
	assert.True(t, info.Loaded)
	assert.Equal(t, 3, info.Features)
	assert.Positive(t, info.Bytes)
	assert.Len(t, info.Checksum, 16)
	assert.Equal(t, info.Checksum, s.Checksum())
	assert.InDelta(t, 2.35, info.Bound.Max[0], 1e-9)
}

func TestForEachFeatureFiltersByBound(t *testing.T) {
	s := New(writeSample(t), zap.NewNop())

	assert.Equal(t, []string{"park", "main st"}, names(t, s, nyc()))

	paris := orb.Bound{Min: orb.Point{2.0, 48.0}, Max: orb.Point{3.0, 49.0}}
	assert.Equal(t, []string{"far away"}, names(t, s, paris))
}

func TestForEachFeatureStopsEarly(t *testing.T) {
	s := New(writeSample(t), zap.NewNop())

	visited := 0
	sum, err := s.ForEachFeature(context.Background(), nyc(), func(*geojson.Feature) bool {
		visited++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, visited)
	assert.Equal(t, s.Checksum(), sum)
}

func TestForEachFeatureHonoursContext(t *testing.T) {
	s := New(writeSample(t), zap.NewNop())
	require.NoError(t, s.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ForEachFeature(ctx, nyc(), func(*geojson.Feature) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadErrors(t *testing.T) {
	missing := New(filepath.Join(t.TempDir(), "missing.geojson"), zap.NewNop())
	assert.ErrorIs(t, missing.Load(), os.ErrNotExist)

	_, err := missing.ForEachFeature(context.Background(), nyc(), func(*geojson.Feature) bool { return true })
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.ErrorIs(t, New("map.osm.pbf", zap.NewNop()).Load(), ErrUnsupported)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	assert.Error(t, New(bad, zap.NewNop()).Load())
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New(writeSample(t), zap.NewNop())
	require.NoError(t, s.Load())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Close())
		}()
	}
	wg.Wait()
	assert.NoError(t, s.Close())

	assert.Equal(t, int32(1), s.releases.Load())
	assert.False(t, s.Info().Loaded)

	_, err := s.ForEachFeature(context.Background(), nyc(), func(*geojson.Feature) bool { return true })
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Load(), ErrClosed)
}

func TestForEachFeatureReportsChecksumOfWalkedContent(t *testing.T) {
	path := writeSample(t)
	s := New(path, zap.NewNop())
	require.NoError(t, s.Load())
	before := s.Checksum()

	replacement := `{"type": "FeatureCollection", "features": [
	  {"type": "Feature", "properties": {"name": "pier"}, "geometry": {"type": "Point", "coordinates": [-73.95, 40.05]}}
	]}`

	var visited []string
	sum, err := s.ForEachFeature(context.Background(), nyc(), func(f *geojson.Feature) bool {
		if len(visited) == 0 {
			require.NoError(t, os.WriteFile(path, []byte(replacement), 0644))
			require.NoError(t, s.Load())
		}
		visited = append(visited, f.Properties.MustString("name"))
		return true
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"park", "main st"}, visited)
	assert.Equal(t, before, sum)
	assert.NotEqual(t, before, s.Checksum())
	assert.Equal(t, []string{"pier"}, names(t, s, nyc()))
}
