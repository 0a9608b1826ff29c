package canvas_cache

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tileserver/internal/cache"
)

func key(size int) cache.TileKey {
	return cache.TileKey{MinLat: 1, MinLon: 2, MaxLat: 3, MaxLon: 4, Width: size, Height: size, Version: "v1"}
}

func canvas(size int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, size, size))
}

func TestGetRendersOnceForConcurrentCallers(t *testing.T) {
	c := New(8, 2, zap.NewNop())

	var renders atomic.Int32
	release := make(chan struct{})
	render := func() (*image.RGBA, error) {
		renders.Add(1)
		<-release
		return canvas(16), nil
	}

	const callers = 20
	var renderers atomic.Int32
	var wg sync.WaitGroup
	results := make(chan *image.RGBA, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, reused, err := c.Get(context.Background(), key(16), render)
			assert.NoError(t, err)
			if !reused {
				renderers.Add(1)
			}
			results <- img
		}()
	}

	require.Eventually(t, func() bool { return renders.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), renders.Load())
	assert.Equal(t, int32(1), renderers.Load(), "exactly one caller reports a fresh render")
	var first *image.RGBA
	for img := range results {
		if first == nil {
			first = img
		}
		assert.Same(t, first, img)
	}

	img, cached, err := c.Get(context.Background(), key(16), render)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Same(t, first, img)
	assert.Equal(t, int32(1), renders.Load())
}

func TestGetEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, 1, zap.NewNop())
	var renders atomic.Int32
	render := func(size int) RenderFunc {
		return func() (*image.RGBA, error) {
			renders.Add(1)
			return canvas(size), nil
		}
	}
	ctx := context.Background()

	for _, size := range []int{1, 2, 1, 3} {
		_, _, err := c.Get(ctx, key(size), render(size))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), renders.Load())
	assert.Equal(t, 2, c.Len())

	_, cached, err := c.Get(ctx, key(1), render(1))
	require.NoError(t, err)
	assert.True(t, cached)

	_, cached, err = c.Get(ctx, key(2), render(2))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int32(4), renders.Load())
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	c := New(4, 1, zap.NewNop())
	boom := errors.New("boom")

	_, _, err := c.Get(context.Background(), key(8), func() (*image.RGBA, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	img, cached, err := c.Get(context.Background(), key(8), func() (*image.RGBA, error) { return canvas(8), nil })
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestGetCancelledCallerLeavesRenderRunning(t *testing.T) {
	c := New(4, 1, zap.NewNop())
	release := make(chan struct{})
	done := make(chan struct{})
	render := func() (*image.RGBA, error) {
		defer close(done)
		<-release
		return canvas(4), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Get(ctx, key(4), render)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, time.Millisecond)
}

func TestGetBoundsConcurrentRenders(t *testing.T) {
	const workers = 2
	c := New(16, workers, zap.NewNop())

	var running, peak atomic.Int32
	render := func() (*image.RGBA, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return canvas(2), nil
	}

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			_, _, err := c.Get(context.Background(), key(size), render)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Equal(t, 8, c.Len())
}

func TestClear(t *testing.T) {
	c := New(4, 1, zap.NewNop())
	_, _, err := c.Get(context.Background(), key(3), func() (*image.RGBA, error) { return canvas(3), nil })
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
}
