package preprocess

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoder limits applied to zero StdDecoder fields.
const (
	// DefaultMinWidth is the width below which decoded images are upscaled.
	DefaultMinWidth = 640
	// DefaultMaxPixels bounds both the source and the normalized image.
	DefaultMaxPixels = 24_000_000
	// DefaultMaxUpscale bounds the upscale factor per axis.
	DefaultMaxUpscale = 8
)

// StdDecoder decodes every format registered with the image package and
// upscales narrow images. Zero fields select the defaults; a negative
// MinWidth disables upscaling.
type StdDecoder struct {
	MinWidth   int
	MaxPixels  int
	MaxUpscale float64
}

func (d StdDecoder) Decode(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Image{}, ErrEmptyImage
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > int64(d.maxPixels()) {
		return Image{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, d.maxPixels())
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if img.Bounds().Empty() {
		return Image{}, ErrEmptyImage
	}
	return Image{Image: d.normalize(img), Format: format}, nil
}

func (d StdDecoder) minWidth() int {
	if d.MinWidth == 0 {
		return DefaultMinWidth
	}
	return d.MinWidth
}

func (d StdDecoder) maxPixels() int {
	if d.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return d.MaxPixels
}

func (d StdDecoder) maxUpscale() float64 {
	if d.MaxUpscale <= 0 {
		return DefaultMaxUpscale
	}
	return d.MaxUpscale
}

// scale returns the upscale factor for a w x h source: enough to reach the
// minimum width, capped by MaxUpscale and by the pixel budget. It never
// shrinks.
func (d StdDecoder) scale(w, h int) float64 {
	mw := d.minWidth()
	if mw <= 0 || w >= mw {
		return 1
	}
	f := min(float64(mw)/float64(w), d.maxUpscale())
	if budget := math.Sqrt(float64(d.maxPixels()) / (float64(w) * float64(h))); f > budget {
		f = budget
	}
	return max(f, 1)
}

// normalize converts to RGBA with an origin at (0,0) and upscales narrow
// images, keeping the aspect ratio.
func (d StdDecoder) normalize(src image.Image) image.Image {
	b := src.Bounds()
	f := d.scale(b.Dx(), b.Dy())
	w := max(1, int(math.Round(float64(b.Dx())*f)))
	h := max(1, int(math.Round(float64(b.Dy())*f)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
