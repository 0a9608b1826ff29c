package encoder

import (
	"fmt"
	"image"

	"github.com/cshum/vipsgen/vips"
)

// Vips encodes through libvips.
type Vips struct {
	compression int
}

func NewVips(compression int) *Vips {
	return &Vips{compression: compression}
}

func (e *Vips) Encode(img image.Image) ([]byte, error) {
	rgba := toRGBA(img)
	b := rgba.Bounds()

	// Load the raw pixels directly; the canvas is already 8-bit sRGB RGBA.
	vimg, err := vips.NewImageFromMemory(rgba.Pix, b.Dx(), b.Dy(), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to load canvas: %w", err)
	}
	defer vimg.Close()

	opts := vips.DefaultPngsaveBufferOptions()
	opts.Compression = e.compression

	data, err := vimg.PngsaveBuffer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}
	return data, nil
}
