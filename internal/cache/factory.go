package cache

import (
	"fmt"

	"go.uber.org/zap"

	"tileserver/internal/config"
)

// NewCache creates a cache instance based on the cache type
func NewCache(cfg config.Cache, redisCfg config.Redis, log *zap.Logger) (Cache, error) {
	switch cfg.Type {
	case "memory":
		log.Info("Using memory cache", zap.Int("max_tiles", cfg.MemoryTiles))
		return NewMemoryCache(cfg.MemoryTiles), nil
	case "file":
		log.Info("Using file cache", zap.String("cache_dir", cfg.FileDir))
		return NewFileCache(cfg.FileDir)
	case "sqlite":
		log.Info("Using sqlite cache", zap.String("path", cfg.SQLitePath))
		return NewSQLiteCache(cfg.SQLitePath, log)
	case "redis":
		log.Info("Using redis cache", zap.String("addr", redisCfg.Addr), zap.Int("db", redisCfg.DB))
		return NewRedisCache(RedisConfig{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			TTL:      redisCfg.TTL,
		}, log)
	case "disabled":
		log.Info("Cache disabled")
		return NewNoopCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, file, sqlite, redis, disabled)", cfg.Type)
	}
}
