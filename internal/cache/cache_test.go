package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tileserver/internal/config"
)

func key(size int) TileKey {
	return TileKey{
		MinLat:  40.7,
		MinLon:  -74.02,
		MaxLat:  40.8,
		MaxLon:  -73.93,
		Width:   size,
		Height:  size,
		Version: "v1",
		Format:  "png",
	}
}

func TestTileKeyString(t *testing.T) {
	assert.Equal(t, "v1/256x256/40.7,-74.02,40.8,-73.93.png", key(256).String())
	assert.NotEqual(t, key(256).String(), key(512).String())

	other := key(256)
	other.Version = "v2"
	assert.NotEqual(t, key(256).String(), other.String())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2)

	c.Set(key(1), []byte("a"))
	c.Set(key(2), []byte("b"))

	_, ok := c.Get(key(1))
	require.True(t, ok)

	c.Set(key(3), []byte("c"))

	assert.True(t, c.Has(key(1)))
	assert.False(t, c.Has(key(2)))
	assert.True(t, c.Has(key(3)))
	assert.Equal(t, 2, c.Len())

	c.Set(key(1), []byte("a2"))
	data, ok := c.Get(key(1))
	require.True(t, ok)
	assert.Equal(t, []byte("a2"), data)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.False(t, c.Has(key(1)))
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	require.NoError(t, err)

	_, ok := c.Get(key(256))
	assert.False(t, ok)
	assert.False(t, c.Has(key(256)))

	c.Set(key(256), []byte("png-bytes"))
	assert.True(t, c.Has(key(256)))
	data, ok := c.Get(key(256))
	require.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), data)

	matches, err := filepath.Glob(filepath.Join(dir, "v1", "256x256", "*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	c.Clear()
	assert.False(t, c.Has(key(256)))
	assert.DirExists(t, dir)
}

func TestSQLiteCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.db")
	c, err := NewSQLiteCache(path, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(key(256))
	assert.False(t, ok)

	c.Set(key(256), []byte("first"))
	c.Set(key(256), []byte("second"))
	assert.True(t, c.Has(key(256)))
	data, ok := c.Get(key(256))
	require.True(t, ok)
	assert.Equal(t, []byte("second"), data)

	c.Clear()
	assert.False(t, c.Has(key(256)))
}

func TestSQLiteCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.db")
	c, err := NewSQLiteCache(path, zap.NewNop())
	require.NoError(t, err)
	c.Set(key(128), []byte("kept"))
	require.NoError(t, c.Close())

	c, err = NewSQLiteCache(path, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	data, ok := c.Get(key(128))
	require.True(t, ok)
	assert.Equal(t, []byte("kept"), data)
}

func TestNoopCache(t *testing.T) {
	c := NewNoopCache()
	c.Set(key(1), []byte("x"))
	_, ok := c.Get(key(1))
	assert.False(t, ok)
	assert.False(t, c.Has(key(1)))
}

func TestNewCache(t *testing.T) {
	log := zap.NewNop()
	dir := t.TempDir()

	cases := []struct {
		name    string
		cfg     config.Cache
		want    interface{}
		wantErr bool
	}{
		{"memory", config.Cache{Type: "memory", MemoryTiles: 10}, &MemoryCache{}, false},
		{"file", config.Cache{Type: "file", FileDir: filepath.Join(dir, "files")}, &FileCache{}, false},
		{"sqlite", config.Cache{Type: "sqlite", SQLitePath: filepath.Join(dir, "tiles.db")}, &SQLiteCache{}, false},
		{"disabled", config.Cache{Type: "disabled"}, &NoopCache{}, false},
		{"unknown", config.Cache{Type: "s3"}, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCache(tc.cfg, config.Redis{}, log)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.want, c)
			if closer, ok := c.(interface{ Close() error }); ok {
				closer.Close()
			}
		})
	}
}
