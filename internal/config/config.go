package config

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		Port          int    `env:"PORT" envDefault:"8080"`
		DataFile      string `env:"DATA_FILE" envDefault:"/data/map.geojson"`
		LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
		AllowedOrigin string `env:"ALLOWED_ORIGIN"`

		HTTP      HTTP      `envPrefix:"HTTP_"`
		Render    Render    `envPrefix:"RENDER_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Vips      Vips      `envPrefix:"VIPS_"`
		Warmup    Warmup    `envPrefix:"WARMUP_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
	}

	HTTP struct {
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	Render struct {
		DefaultSize   int    `env:"DEFAULT_SIZE" envDefault:"800"`
		MaxSize       int    `env:"MAX_SIZE" envDefault:"4096"`
		Workers       int    `env:"WORKERS" envDefault:"0"`
		CanvasEntries int    `env:"CANVAS_ENTRIES" envDefault:"64"`
		Encoder       string `env:"ENCODER" envDefault:"vips"`
	}

	// Cache configures the store of encoded PNG tiles.
	Cache struct {
		Type        string `env:"TYPE" envDefault:"memory"`
		MemoryTiles int    `env:"MEMORY_TILES" envDefault:"2000"`
		FileDir     string `env:"FILE_DIR"`
		SQLitePath  string `env:"SQLITE_PATH"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD"`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"24h"`
	}

	Vips struct {
		MaxCacheMB  int `env:"MAX_CACHE_MB" envDefault:"256"`
		Concurrency int `env:"CONCURRENCY" envDefault:"1"`
	}

	// Warmup pre-renders BBox (minLat,minLon,maxLat,maxLon) at each of Sizes.
	Warmup struct {
		Enabled bool      `env:"ENABLED" envDefault:"false"`
		BBox    []float64 `env:"BBOX" envSeparator:","`
		Sizes   []int     `env:"SIZES" envSeparator:"," envDefault:"256,800"`
		Workers int       `env:"WORKERS" envDefault:"1"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"tileserver"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	}
)

// New loads an optional .env file and then the process environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	dataDir := filepath.Dir(c.DataFile)
	if c.Cache.FileDir == "" {
		c.Cache.FileDir = filepath.Join(dataDir, "cache")
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = filepath.Join(dataDir, "tiles.db")
	}
	if c.Render.Workers <= 0 {
		c.Render.Workers = runtime.NumCPU()
	}
	if c.Warmup.Workers <= 0 {
		c.Warmup.Workers = 1
	}
}

func (c *Config) Validate() error {
	if c.Render.DefaultSize < 1 || c.Render.DefaultSize > c.Render.MaxSize {
		return fmt.Errorf("RENDER_DEFAULT_SIZE must be in [1, %d], got %d", c.Render.MaxSize, c.Render.DefaultSize)
	}
	if c.Render.CanvasEntries < 1 {
		return fmt.Errorf("RENDER_CANVAS_ENTRIES must be positive, got %d", c.Render.CanvasEntries)
	}
	switch c.Render.Encoder {
	case "vips", "std":
	default:
		return fmt.Errorf("unknown encoder: %s (supported: vips, std)", c.Render.Encoder)
	}
	if c.Warmup.Enabled && len(c.Warmup.BBox) != 4 {
		return fmt.Errorf("WARMUP_BBOX needs 4 values (minLat,minLon,maxLat,maxLon), got %d", len(c.Warmup.BBox))
	}
	return nil
}
