package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cshum/vipsgen/vips"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"tileserver/internal/cache"
	"tileserver/internal/canvas_cache"
	"tileserver/internal/config"
	"tileserver/internal/dataset"
	"tileserver/internal/encoder"
	httphandlers "tileserver/internal/http"
	"tileserver/internal/logger"
	"tileserver/internal/raster"
	"tileserver/internal/shape_cache"
	"tileserver/internal/telemetry"
	"tileserver/internal/tessellate"
	"tileserver/internal/tile_renderer"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if cfg.Render.Encoder == "vips" {
		startVips(cfg, log)
		defer vips.Shutdown()
	}

	shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	log.Info("Starting tile server",
		zap.Int("port", cfg.Port),
		zap.String("data_file", cfg.DataFile),
	)

	store := dataset.New(cfg.DataFile, log)
	if err := store.Load(); err != nil {
		log.Warn("Initial dataset load failed", zap.Error(err))
	}
	defer store.Close()

	tileCache, err := cache.NewCache(cfg.Cache, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}
	if closer, ok := tileCache.(io.Closer); ok {
		defer closer.Close()
	}

	enc, err := encoder.New(cfg.Render.Encoder, log)
	if err != nil {
		log.Fatal("Failed to initialize encoder", zap.Error(err))
	}

	tess := tessellate.New()
	shapes := shape_cache.New(store, tess, log)
	canvases := canvas_cache.New(cfg.Render.CanvasEntries, cfg.Render.Workers, log)

	renderer := tile_renderer.New(tile_renderer.Options{
		Shapes:      shapes,
		Canvases:    canvases,
		Rasterizer:  raster.New(raster.DefaultBackground),
		Encoder:     enc,
		Projector:   tess,
		TileCache:   tileCache,
		Dataset:     store,
		DefaultSize: cfg.Render.DefaultSize,
		MaxSize:     cfg.Render.MaxSize,
	}, log)

	handlers := httphandlers.New(cfg, log, validator.New(), renderer)
	router := httphandlers.NewRouter(handlers, cfg.Telemetry.Enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Warmup.Enabled {
		bbox := [4]float64{cfg.Warmup.BBox[0], cfg.Warmup.BBox[1], cfg.Warmup.BBox[2], cfg.Warmup.BBox[3]}
		go renderer.Warmup(ctx, bbox, cfg.Warmup.Sizes, cfg.Warmup.Workers)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for running := true; running; {
		select {
		case <-reload:
			log.Info("Reloading dataset")
			reloadCtx, reloadCancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			if err := renderer.Reload(reloadCtx); err != nil {
				log.Error("Dataset reload failed", zap.Error(err))
			}
			reloadCancel()
		case <-quit:
			running = false
		}
	}

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	log.Info("Server stopped")
}

func startVips(cfg *config.Config, log *zap.Logger) {
	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.Vips.Concurrency,
		MaxCacheMem:      cfg.Vips.MaxCacheMB * 1024 * 1024, // Convert MB to bytes
		MaxCacheFiles:    0,                                 // Disable disk cache
		MaxCacheSize:     0,                                 // Disable disk cache
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		// Map vips log levels to zap levels
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
		// Ignore info/debug messages to keep logs clean
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.Vips.MaxCacheMB),
		zap.Int("concurrency", cfg.Vips.Concurrency),
	)
}
