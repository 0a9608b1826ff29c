package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RenderRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserver_render_requests_total",
		Help: "Total number of render requests",
	})

	RenderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tileserver_render_errors_total",
		Help: "Total number of failed render requests by error kind",
	}, []string{"kind"})

	TileStoreHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserver_tile_store_hits_total",
		Help: "Total number of encoded tiles served from the tile store",
	})

	TileStoreMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserver_tile_store_misses_total",
		Help: "Total number of tile store misses",
	})

	CanvasCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserver_canvas_cache_hits_total",
		Help: "Total number of canvases reused from the canvas cache",
	})

	CanvasCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserver_canvas_cache_misses_total",
		Help: "Total number of canvas cache misses",
	})

	Rasterizations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserver_rasterizations_total",
		Help: "Total number of canvases rasterized",
	})

	RasterizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tileserver_rasterize_latency_seconds",
		Help:    "Latency of canvas rasterization in seconds",
		Buckets: prometheus.DefBuckets,
	})

	EncodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tileserver_encode_latency_seconds",
		Help:    "Latency of PNG encoding in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	Populations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tileserver_shape_populations_total",
		Help: "Total number of shape cache populations by result",
	}, []string{"result"})

	PopulationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tileserver_shape_population_latency_seconds",
		Help:    "Latency of shape cache population in seconds",
		Buckets: prometheus.DefBuckets,
	})

	CachedShapes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tileserver_cached_shapes",
		Help: "Number of shapes held by the shape cache",
	})
)
