package shape_cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"tileserver/internal/metrics"
	"tileserver/internal/shape"
)

type State int32

const (
	StateEmpty State = iota
	StatePopulating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePopulating:
		return "populating"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// FeatureSource enumerates the features intersecting a bound. It returns a
// checksum of the content it enumerated, or "" when the source cannot
// identify its content.
type FeatureSource interface {
	ForEachFeature(ctx context.Context, bound orb.Bound, visit func(*geojson.Feature) bool) (string, error)
}

type Tessellator interface {
	Tessellate(f *geojson.Feature, box *shape.PixelBox, q *shape.Queue)
}

// Snapshot is a per-request view of the cached shapes. Consuming Shapes does
// not affect the cache or any other snapshot.
type Snapshot struct {
	Shapes  shape.Queue
	Box     shape.PixelBox
	Version string
}

type population struct {
	done chan struct{}
	err  error
}

// Cache holds the shapes of the dataset for the lifetime of a dataset version.
// The first Populate fills it; every later Populate is a no-op until Reset,
// whatever bounding box it is called with.
type Cache struct {
	source FeatureSource
	tess   Tessellator
	logger *zap.Logger

	state atomic.Int32

	mu       sync.Mutex
	shapes   shape.Queue
	box      shape.PixelBox
	version  string
	inflight *population
}

func New(source FeatureSource, tess Tessellator, logger *zap.Logger) *Cache {
	return &Cache{
		source: source,
		tess:   tess,
		logger: logger,
		box:    shape.EmptyPixelBox(),
	}
}

func (c *Cache) State() State {
	return State(c.state.Load())
}

// Populate fills the cache from the features intersecting bound unless it is
// already filled. Exactly one caller performs a fill; callers arriving while it
// runs wait for it and share its result. A fill that fails, or that finds no
// shapes, leaves the cache empty so a later call tries again.
//
// ctx only bounds how long the caller waits. The fill itself runs to
// completion for the benefit of the other waiters.
func (c *Cache) Populate(ctx context.Context, bound orb.Bound) error {
	for {
		switch c.State() {
		case StateReady:
			return nil

		case StateEmpty:
			c.mu.Lock()
			if c.state.CompareAndSwap(int32(StateEmpty), int32(StatePopulating)) {
				p := &population{done: make(chan struct{})}
				c.inflight = p
				c.mu.Unlock()
				go c.fill(context.WithoutCancel(ctx), bound, p)
				return c.wait(ctx, p)
			}
			c.mu.Unlock()

		case StatePopulating:
			c.mu.Lock()
			p := c.inflight
			c.mu.Unlock()
			if p != nil {
				return c.wait(ctx, p)
			}
		}
	}
}

func (c *Cache) wait(ctx context.Context, p *population) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) fill(ctx context.Context, bound orb.Bound, p *population) {
	start := time.Now()

	box := shape.EmptyPixelBox()
	var shapes shape.Queue
	features := 0
	checksum, err := c.source.ForEachFeature(ctx, bound, func(f *geojson.Feature) bool {
		features++
		c.tess.Tessellate(f, &box, &shapes)
		return true
	})
	duration := time.Since(start)

	c.mu.Lock()
	switch {
	case err != nil:
		c.state.Store(int32(StateEmpty))
		metrics.Populations.WithLabelValues("error").Inc()
		c.logger.Error("Shape population failed", zap.Error(err), zap.Duration("duration", duration))
	case shapes.Len() == 0:
		c.state.Store(int32(StateEmpty))
		metrics.Populations.WithLabelValues("empty").Inc()
		c.logger.Warn("Shape population found no shapes",
			zap.Int("features", features),
			zap.Float64s("bound", []float64{bound.Min[1], bound.Min[0], bound.Max[1], bound.Max[0]}),
		)
	default:
		c.shapes = shapes
		c.box = box
		c.version = newVersion(checksum, bound)
		c.state.Store(int32(StateReady))
		metrics.Populations.WithLabelValues("ok").Inc()
		metrics.CachedShapes.Set(float64(shapes.Len()))
		c.logger.Info("Shape cache populated",
			zap.String("version", c.version),
			zap.Int("features", features),
			zap.Int("shapes", shapes.Len()),
			zap.Duration("duration", duration),
		)
	}
	p.err = err
	c.inflight = nil
	c.mu.Unlock()

	metrics.PopulationLatency.Observe(duration.Seconds())
	close(p.done)
}

// newVersion names the shape set built from bound out of content identified by
// checksum. It is stable across restarts when checksum is known, and random
// otherwise.
func newVersion(checksum string, bound orb.Bound) string {
	if checksum == "" {
		return uuid.NewString()
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%v|%v", checksum, bound.Min, bound.Max)))
	return hex.EncodeToString(sum[:])[:16]
}

// Clone returns an independent snapshot of the cached shapes together with the
// pixel bounding box and version they belong to. The cache is left intact.
func (c *Cache) Clone() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Shapes:  c.shapes,
		Box:     c.box,
		Version: c.version,
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shapes.Len()
}

func (c *Cache) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Wait blocks until the fill in flight, if any, has finished. It does not
// report the outcome of the fill.
func (c *Cache) Wait(ctx context.Context) error {
	c.mu.Lock()
	p := c.inflight
	c.mu.Unlock()

	if p == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset empties a ready cache so the next Populate fills it again under a new
// version. It reports false, and does nothing, while a fill is in flight.
func (c *Cache) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Load() == int32(StatePopulating) {
		return false
	}
	c.state.Store(int32(StateEmpty))
	c.shapes = shape.Queue{}
	c.box = shape.EmptyPixelBox()
	c.version = ""
	metrics.CachedShapes.Set(0)
	return true
}
