package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

var (
	ErrClosed      = errors.New("dataset: store is closed")
	ErrUnsupported = errors.New("dataset: unsupported file format")
)

// checkEvery is how many features are visited between context checks.
const checkEvery = 1024

type Info struct {
	Path     string    `json:"path"`
	Loaded   bool      `json:"loaded"`
	Features int       `json:"features"`
	Bytes    int64     `json:"bytes"`
	Checksum string    `json:"checksum,omitempty"`
	Bound    orb.Bound `json:"-"`
}

type entry struct {
	feature *geojson.Feature
	bound   orb.Bound
}

// Store reads a GeoJSON FeatureCollection and enumerates its features by
// geographic bounding box. It owns the loaded dataset until Close.
type Store struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	entries  []entry
	bound    orb.Bound
	bytes    int64
	checksum string
	loaded   bool
	closed   bool

	closeOnce sync.Once
	releases  atomic.Int32
}

func New(path string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

// Load reads the dataset file, replacing anything loaded before.
func (s *Store) Load() error {
	ext := strings.ToLower(filepath.Ext(s.path))
	if ext != ".geojson" && ext != ".json" {
		return fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("failed to stat dataset: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("failed to parse dataset: %w", err)
	}

	entries := make([]entry, 0, len(fc.Features))
	var bound orb.Bound
	skipped := 0
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			skipped++
			continue
		}
		b := f.Geometry.Bound()
		if len(entries) == 0 {
			bound = b
		} else {
			bound = bound.Union(b)
		}
		entries = append(entries, entry{feature: f, bound: b})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.entries = entries
	s.bound = bound
	s.bytes = info.Size()
	sum := sha256.Sum256(data)
	s.checksum = hex.EncodeToString(sum[:])[:16]
	s.loaded = true

	s.logger.Info("Dataset loaded",
		zap.String("path", s.path),
		zap.Int("features", len(entries)),
		zap.Int("skipped", skipped),
		zap.Int64("bytes", info.Size()),
		zap.String("checksum", s.checksum),
	)

	return nil
}

// Checksum identifies the content of the loaded dataset. It is empty until a
// load succeeds.
func (s *Store) Checksum() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checksum
}

// ForEachFeature calls visit for every feature whose bounds intersect bound,
// in file order, until visit returns false. The dataset is loaded on first
// use if Load has not succeeded yet.
//
// It returns the checksum of the content it walked. A concurrent Load does
// not affect a walk already underway, so this may differ from Checksum.
func (s *Store) ForEachFeature(ctx context.Context, bound orb.Bound, visit func(*geojson.Feature) bool) (string, error) {
	s.mu.RLock()
	closed, loaded := s.closed, s.loaded
	s.mu.RUnlock()

	if closed {
		return "", ErrClosed
	}
	if !loaded {
		if err := s.Load(); err != nil {
			return "", err
		}
	}

	s.mu.RLock()
	entries, checksum := s.entries, s.checksum
	s.mu.RUnlock()

	for i, e := range entries {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		if !e.bound.Intersects(bound) {
			continue
		}
		if !visit(e.feature) {
			break
		}
	}

	return checksum, nil
}

func (s *Store) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Info{
		Path:     s.path,
		Loaded:   s.loaded,
		Features: len(s.entries),
		Bytes:    s.bytes,
		Checksum: s.checksum,
		Bound:    s.bound,
	}
}

// Close releases the loaded dataset. It is safe to call any number of times;
// only the first call releases anything and no call returns an error.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closed = true
		s.entries = nil
		s.loaded = false
		s.releases.Add(1)

		s.logger.Info("Dataset released", zap.String("path", s.path))
	})
	return nil
}
