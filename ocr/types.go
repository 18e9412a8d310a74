package ocr

import (
	"context"
	"image"
)

// PlateCharset is the recognition whitelist for plates: uppercase Latin
// letters and digits.
const PlateCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Input encapsulates a single image variant submitted for OCR.
type Input struct {
	// ID identifies the variant and is echoed back in the Result.
	ID string
	// Image is the encoded image payload in the format specified by Format.
	Image []byte
	// Format declares the image content type (e.g., image/png).
	Format ImageFormat
	// DPI carries the effective dots-per-inch for the image; zero means unknown.
	DPI int
	// Languages lists trained-data hints (e.g., "eng", "ara").
	Languages []string
	// Metadata passes engine-specific knobs (e.g., Tesseract variables)
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// TextWord represents a single recognized token.
type TextWord struct {
	Text       string
	Bounds     image.Rectangle
	Confidence float64
}

// Result captures OCR output for a single input image. An engine that finds
// no text returns a Result with empty Text and a nil error.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Text is the recognized text with surrounding whitespace trimmed.
	Text string
	// Confidence is the engine's confidence scaled to [0,1].
	Confidence float64
	// Words carries per-token detail when the engine provides it.
	Words []TextWord
}

// Empty reports whether the engine found no text.
func (r Result) Empty() bool { return r.Text == "" }

// Engine is the OCR provider contract: one image in, one result out.
// Implementations must be safe for concurrent calls.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}
