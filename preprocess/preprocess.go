// Package preprocess turns raw upload bytes into normalized images and the
// enhanced variants that are sent to OCR.
package preprocess

import (
	"errors"
	"image"
)

var (
	// ErrEmptyImage reports a zero-length payload or a decoded image without
	// pixels.
	ErrEmptyImage = errors.New("image is empty")
	// ErrUndecodable reports bytes no registered format could decode.
	ErrUndecodable = errors.New("image could not be decoded")
	// ErrImageTooLarge reports an image over the decoder's pixel budget.
	ErrImageTooLarge = errors.New("image is too large")
)

// Image is a decoded, normalized picture and the format it was decoded from.
type Image struct {
	image.Image
	Format string
}

// Variant is one enhanced rendition of an Image. Name identifies it in logs
// and doubles as the OCR input id.
type Variant struct {
	Name  string
	Image image.Image
}

// Decoder converts raw bytes into an Image.
type Decoder interface {
	Decode(data []byte) (Image, error)
}

// VariantGenerator produces the OCR variants for an image. Returning no
// variants is legal.
type VariantGenerator interface {
	Variants(img Image) []Variant
}
