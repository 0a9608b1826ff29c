package tile_renderer

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	ErrInvalidRequestParameters = errors.New("invalid request parameters")
	ErrDatasetUnavailable       = errors.New("dataset unavailable")
	ErrRenderFailure            = errors.New("render failure")
)

// Request asks for the area between two corners rendered as a Size×Size PNG.
// A zero Size means the renderer's default.
type Request struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
	Size   int
}

func (r Request) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.MinLon, r.MinLat},
		Max: orb.Point{r.MaxLon, r.MaxLat},
	}
}

// Validate checks r against maxSize. It does not apply the default size.
func (r Request) Validate(maxSize int) error {
	for _, v := range []float64{r.MinLat, r.MinLon, r.MaxLat, r.MaxLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidRequestParameters)
		}
	}

	switch {
	case r.MinLat < -90 || r.MinLat > 90 || r.MaxLat < -90 || r.MaxLat > 90:
		return fmt.Errorf("%w: latitude must be within [-90, 90]", ErrInvalidRequestParameters)
	case r.MinLon < -180 || r.MinLon > 180 || r.MaxLon < -180 || r.MaxLon > 180:
		return fmt.Errorf("%w: longitude must be within [-180, 180]", ErrInvalidRequestParameters)
	case r.MinLat >= r.MaxLat:
		return fmt.Errorf("%w: minLat must be less than maxLat", ErrInvalidRequestParameters)
	case r.MinLon >= r.MaxLon:
		return fmt.Errorf("%w: minLon must be less than maxLon", ErrInvalidRequestParameters)
	case r.Size < 0 || r.Size > maxSize:
		return fmt.Errorf("%w: size must be within [1, %d]", ErrInvalidRequestParameters, maxSize)
	}
	return nil
}
