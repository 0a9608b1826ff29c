package cache

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteCache keeps encoded tiles in a single SQLite table so they survive
// restarts.
type SQLiteCache struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteCache(path string, log *zap.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}

	c := &SQLiteCache{
		db:     db,
		logger: log,
	}

	if err := c.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite cache: %w", err)
	}

	log.Info("SQLite cache initialized", zap.String("path", path))
	return c, nil
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.Up(c.db, "migrations")
}

func (c *SQLiteCache) Get(key TileKey) ([]byte, bool) {
	query := `SELECT tile_data
	FROM tile_cache
	WHERE tile_key = ?`

	var data []byte
	err := c.db.QueryRow(query, key.String()).Scan(&data)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Error("SQLite cache get failed", zap.Stringer("key", key), zap.Error(err))
		}
		return nil, false
	}

	return data, true
}

func (c *SQLiteCache) Has(key TileKey) bool {
	var one int
	err := c.db.QueryRow(`SELECT 1 FROM tile_cache WHERE tile_key = ?`, key.String()).Scan(&one)
	return err == nil
}

func (c *SQLiteCache) Set(key TileKey, value []byte) {
	query := `INSERT INTO tile_cache (tile_key, version, width, height, format, tile_data)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(tile_key) DO UPDATE SET tile_data = excluded.tile_data`

	_, err := c.db.Exec(query, key.String(), key.Version, key.Width, key.Height, key.Format, value)
	if err != nil {
		c.logger.Error("SQLite cache set failed", zap.Stringer("key", key), zap.Error(err))
	}
}

func (c *SQLiteCache) Clear() {
	if _, err := c.db.Exec(`DELETE FROM tile_cache`); err != nil {
		c.logger.Error("SQLite cache clear failed", zap.Error(err))
	}
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
