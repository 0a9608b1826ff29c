package tile_renderer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tileserver/internal/cache"
	"tileserver/internal/canvas_cache"
	"tileserver/internal/dataset"
	"tileserver/internal/encoder"
	"tileserver/internal/metrics"
	"tileserver/internal/shape"
	"tileserver/internal/shape_cache"
)

const tracerName = "tileserver/internal/tile_renderer"

// Where a tile's bytes came from.
const (
	SourceStore  = "store"
	SourceCanvas = "canvas"
	SourceRender = "render"
)

// Rasterizer paints q onto a width×height canvas. view is the pixel region
// stretched over the canvas; the renderer passes the projected request
// bounding box rather than the snapshot's accumulated box, so that each
// cached canvas shows its own area.
type Rasterizer interface {
	Render(q shape.Queue, view shape.PixelBox, width, height int) (*image.RGBA, error)
}

type Projector interface {
	Project(p orb.Point) shape.Point
}

// Dataset is the feature store behind the shape cache, as seen by the
// renderer.
type Dataset interface {
	Info() dataset.Info
	Load() error
}

type Renderer struct {
	shapes    *shape_cache.Cache
	canvases  *canvas_cache.Cache
	raster    Rasterizer
	encoder   encoder.Encoder
	projector Projector
	tileCache cache.Cache
	dataset   Dataset
	logger    *zap.Logger

	defaultSize int
	maxSize     int
}

type Options struct {
	Shapes      *shape_cache.Cache
	Canvases    *canvas_cache.Cache
	Rasterizer  Rasterizer
	Encoder     encoder.Encoder
	Projector   Projector
	TileCache   cache.Cache
	Dataset     Dataset
	DefaultSize int
	MaxSize     int
}

type TileResult struct {
	Data    []byte
	ETag    string
	Size    int
	Width   int
	Height  int
	Version string
	Source  string
}

func New(opts Options, logger *zap.Logger) *Renderer {
	tileCache := opts.TileCache
	if tileCache == nil {
		tileCache = cache.NewNoopCache()
	}
	return &Renderer{
		shapes:      opts.Shapes,
		canvases:    opts.Canvases,
		raster:      opts.Rasterizer,
		encoder:     opts.Encoder,
		projector:   opts.Projector,
		tileCache:   tileCache,
		dataset:     opts.Dataset,
		logger:      logger,
		defaultSize: opts.DefaultSize,
		maxSize:     opts.MaxSize,
	}
}

// RenderPNG renders req as a square PNG. Invalid parameters are rejected
// before the shape cache or any renderer is touched.
func (r *Renderer) RenderPNG(ctx context.Context, req Request) (*TileResult, error) {
	metrics.RenderRequests.Inc()

	if err := req.Validate(r.maxSize); err != nil {
		metrics.RenderErrors.WithLabelValues("invalid").Inc()
		return nil, err
	}
	size := req.Size
	if size == 0 {
		size = r.defaultSize
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "tile_renderer.RenderPNG",
		trace.WithAttributes(
			attribute.Float64Slice("tile.bbox", []float64{req.MinLat, req.MinLon, req.MaxLat, req.MaxLon}),
			attribute.Int("tile.size", size),
		),
	)
	defer span.End()

	result, err := r.render(ctx, req, size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RenderErrors.WithLabelValues(errorKind(err)).Inc()
		return nil, err
	}

	span.SetAttributes(
		attribute.String("tile.source", result.Source),
		attribute.String("tile.version", result.Version),
	)
	return result, nil
}

func (r *Renderer) render(ctx context.Context, req Request, size int) (*TileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.shapes.Populate(ctx, req.Bound()); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDatasetUnavailable, err)
	}

	snap := r.shapes.Clone()
	key := tileKey(req, size, snap.Version)

	if cached, ok := r.tileCache.Get(key); ok {
		metrics.TileStoreHits.Inc()
		return r.result(key, cached, SourceStore), nil
	}
	metrics.TileStoreMisses.Inc()

	canvasKey := key
	canvasKey.Format = "rgba"
	view := r.view(req)

	canvas, reused, err := r.canvases.Get(ctx, canvasKey, func() (*image.RGBA, error) {
		start := time.Now()
		img, err := r.raster.Render(snap.Shapes, view, size, size)
		metrics.Rasterizations.Inc()
		metrics.RasterizeLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		r.logger.Debug("Canvas rasterized",
			zap.Stringer("key", canvasKey),
			zap.Int("shapes", snap.Shapes.Len()),
			zap.Duration("duration", time.Since(start)),
		)
		return img, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}

	start := time.Now()
	data, err := r.encoder.Encode(canvas)
	metrics.EncodeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}

	r.tileCache.Set(key, data)

	source := SourceRender
	if reused {
		source = SourceCanvas
	}
	return r.result(key, data, source), nil
}

func tileKey(req Request, size int, version string) cache.TileKey {
	return cache.TileKey{
		MinLat:  req.MinLat,
		MinLon:  req.MinLon,
		MaxLat:  req.MaxLat,
		MaxLon:  req.MaxLon,
		Width:   size,
		Height:  size,
		Version: version,
		Format:  "png",
	}
}

// view is the pixel region covered by the requested bounding box.
func (r *Renderer) view(req Request) shape.PixelBox {
	box := shape.EmptyPixelBox()
	box.ExtendPoint(r.projector.Project(orb.Point{req.MinLon, req.MaxLat}))
	box.ExtendPoint(r.projector.Project(orb.Point{req.MaxLon, req.MinLat}))
	return box
}

func (r *Renderer) result(key cache.TileKey, data []byte, source string) *TileResult {
	return &TileResult{
		Data:    data,
		ETag:    r.generateETag(key),
		Size:    len(data),
		Width:   key.Width,
		Height:  key.Height,
		Version: key.Version,
		Source:  source,
	}
}

func (r *Renderer) generateETag(key cache.TileKey) string {
	hash := sha256.Sum256([]byte(key.String()))
	return hex.EncodeToString(hash[:])[:16]
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrDatasetUnavailable):
		return "dataset"
	case errors.Is(err, ErrRenderFailure):
		return "render"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
