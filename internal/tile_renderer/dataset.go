package tile_renderer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tileserver/internal/dataset"
)

type DatasetInfo struct {
	State         string       `json:"state"`
	Version       string       `json:"version"`
	Shapes        int          `json:"shapes"`
	PixelBox      []float64    `json:"pixel_box,omitempty"`
	CanvasEntries int          `json:"canvas_entries"`
	DefaultSize   int          `json:"default_size"`
	MaxSize       int          `json:"max_size"`
	Dataset       dataset.Info `json:"dataset"`
	Bound         []float64    `json:"bound,omitempty"`
}

func (r *Renderer) DatasetInfo() DatasetInfo {
	snap := r.shapes.Clone()
	info := DatasetInfo{
		State:         r.shapes.State().String(),
		Version:       snap.Version,
		Shapes:        snap.Shapes.Len(),
		CanvasEntries: r.canvases.Len(),
		DefaultSize:   r.defaultSize,
		MaxSize:       r.maxSize,
	}
	if snap.Box.Valid() {
		info.PixelBox = []float64{snap.Box.MinX, snap.Box.MinY, snap.Box.MaxX, snap.Box.MaxY}
	}
	if r.dataset != nil {
		info.Dataset = r.dataset.Info()
		if info.Dataset.Loaded {
			b := info.Dataset.Bound
			info.Bound = []float64{b.Min[1], b.Min[0], b.Max[1], b.Max[0]}
		}
	}
	return info
}

// ErrNoDataset is returned by Reload when the renderer has no dataset.
var ErrNoDataset = errors.New("no dataset configured")

// Reload rereads the dataset and drops every cached shape and canvas so the
// next request is drawn from the new content. A fill already in flight is
// waited for and then discarded. Encoded tiles are kept; their keys carry the
// dataset version.
func (r *Renderer) Reload(ctx context.Context) error {
	if r.dataset == nil {
		return ErrNoDataset
	}
	if err := r.dataset.Load(); err != nil {
		return err
	}

	for !r.shapes.Reset() {
		r.logger.Debug("Waiting for shape population before reset")
		if err := r.shapes.Wait(ctx); err != nil {
			return err
		}
	}
	r.canvases.Clear()

	r.logger.Info("Dataset reloaded", zap.Any("dataset", r.dataset.Info()))
	return nil
}

// Warmup renders bbox (minLat, minLon, maxLat, maxLon) at each size with at
// most workers renders in flight. Tiles already in the tile store are not
// rendered again. Failed tiles are logged and skipped; the returned count is
// the number of tiles rendered or found stored.
func (r *Renderer) Warmup(ctx context.Context, bbox [4]float64, sizes []int, workers int) int {
	if workers <= 0 {
		workers = 1
	}

	r.logger.Info("Starting tile warmup", zap.Float64s("bbox", bbox[:]), zap.Ints("sizes", sizes))
	start := time.Now()

	var rendered atomic.Int32
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, size := range sizes {
		g.Go(func() error {
			req := Request{MinLat: bbox[0], MinLon: bbox[1], MaxLat: bbox[2], MaxLon: bbox[3], Size: size}
			if r.stored(ctx, req) {
				rendered.Add(1)
				return nil
			}
			if _, err := r.RenderPNG(ctx, req); err != nil {
				r.logger.Debug("Warmup tile failed", zap.Int("size", size), zap.Error(err))
				return nil
			}
			rendered.Add(1)
			return nil
		})
	}
	g.Wait()

	r.logger.Info("Tile warmup completed",
		zap.Int32("rendered", rendered.Load()),
		zap.Duration("duration", time.Since(start)),
	)
	return int(rendered.Load())
}

// stored reports whether the tile for req is already in the tile store under
// the current dataset version.
func (r *Renderer) stored(ctx context.Context, req Request) bool {
	if req.Validate(r.maxSize) != nil {
		return false
	}
	size := req.Size
	if size == 0 {
		size = r.defaultSize
	}
	if r.shapes.Populate(ctx, req.Bound()) != nil {
		return false
	}
	return r.tileCache.Has(tileKey(req, size, r.shapes.Version()))
}
