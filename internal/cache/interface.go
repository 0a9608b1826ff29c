package cache

import (
	"fmt"
	"strconv"
)

// TileKey identifies one rendered tile: the requested geographic bounding box,
// the output dimensions, the dataset version it was drawn from and the
// encoding.
type TileKey struct {
	MinLat  float64
	MinLon  float64
	MaxLat  float64
	MaxLon  float64
	Width   int
	Height  int
	Version string
	Format  string
}

func (k TileKey) String() string {
	return fmt.Sprintf("%s/%dx%d/%s,%s,%s,%s.%s",
		k.Version, k.Width, k.Height,
		formatCoord(k.MinLat), formatCoord(k.MinLon), formatCoord(k.MaxLat), formatCoord(k.MaxLon),
		k.Format,
	)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type Cache interface {
	Get(key TileKey) ([]byte, bool)
	Set(key TileKey, value []byte)
	Has(key TileKey) bool // Check if tile exists without reading it (lightweight check)
	Clear()
}
