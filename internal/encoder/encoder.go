// Package encoder serializes canvases as PNG.
package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"go.uber.org/zap"
)

const ContentType = "image/png"

type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// New creates an encoder by name: "vips" (libvips, must be started by the
// caller) or "std".
func New(kind string, log *zap.Logger) (Encoder, error) {
	switch kind {
	case "vips":
		log.Info("Using libvips PNG encoder")
		return NewVips(6), nil
	case "std":
		log.Info("Using standard library PNG encoder")
		return NewStd(), nil
	default:
		return nil, fmt.Errorf("unknown encoder: %s (supported: vips, std)", kind)
	}
}

// Std encodes with image/png.
type Std struct {
	enc png.Encoder
}

func NewStd() *Std {
	return &Std{enc: png.Encoder{CompressionLevel: png.DefaultCompression}}
}

func (e *Std) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// toRGBA returns img as a tightly packed RGBA image, copying only if needed.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*b.Dx() && b.Min == (image.Point{}) {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
