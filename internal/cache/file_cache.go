package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileCache implements file-based cache
// Structure: {cacheDir}/{version}/{width}x{height}/{sha256(key)}.{format}
type FileCache struct {
	mu       sync.RWMutex
	cacheDir string
}

func NewFileCache(cacheDir string) (*FileCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FileCache{
		cacheDir: cacheDir,
	}, nil
}

func (c *FileCache) buildFilePath(key TileKey) string {
	version := key.Version
	if version == "" {
		version = "unversioned"
	}
	sum := sha256.Sum256([]byte(key.String()))
	dir := filepath.Join(c.cacheDir, version, fmt.Sprintf("%dx%d", key.Width, key.Height))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+"."+key.Format)
}

func (c *FileCache) Get(key TileKey) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.buildFilePath(key))
	if err != nil {
		return nil, false
	}

	return data, true
}

func (c *FileCache) Has(key TileKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, err := os.Stat(c.buildFilePath(key))
	return err == nil
}

func (c *FileCache) Set(key TileKey, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	filePath := c.buildFilePath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return
	}

	// Write atomically
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, value, 0644); err != nil {
		return
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return
	}
}

func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.cacheDir); err != nil {
		return
	}

	os.MkdirAll(c.cacheDir, 0755)
}
