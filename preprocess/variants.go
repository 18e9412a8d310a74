package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Variant names.
const (
	VariantFull      = "full"
	VariantSharpened = "sharpened"
	VariantBinary    = "binary"
	VariantInverted  = "inverted"
)

const (
	// numericBand is the fraction of the height, from the bottom, holding
	// the number sequence.
	numericBand = 0.65
	// letterBand is the fraction of the width, from the right, holding the
	// classification letters.
	letterBand     = 0.28
	minLetterWidth = 30
	focusWidth     = 320
)

// EnhancementGenerator derives contrast, threshold and region variants from
// an image. Rotations adds rotated and mirrored layouts of the full image
// for plates photographed sideways.
type EnhancementGenerator struct {
	Rotations bool
}

func (g EnhancementGenerator) Variants(img Image) []Variant {
	if img.Image == nil || img.Bounds().Empty() {
		return nil
	}
	src := img.Image
	sharp := sharpen(src)
	vs := []Variant{
		{Name: VariantFull, Image: src},
		{Name: VariantSharpened, Image: sharp},
		{Name: VariantBinary, Image: binarize(sharp)},
		{Name: VariantInverted, Image: imaging.Invert(sharp)},
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if top := h - int(float64(h)*numericBand); top > 0 && top < h {
		band := imaging.Crop(src, image.Rect(b.Min.X, b.Min.Y+top, b.Max.X, b.Max.Y))
		vs = append(vs, focused("numeric", band)...)
	}
	if lw := int(float64(w) * letterBand); lw > minLetterWidth {
		band := imaging.Crop(src, image.Rect(b.Max.X-lw, b.Min.Y, b.Max.X, b.Max.Y))
		vs = append(vs, focused("letters", band)...)
	}

	if g.Rotations {
		vs = append(vs,
			Variant{Name: "rotate90", Image: imaging.Rotate90(src)},
			Variant{Name: "rotate180", Image: imaging.Rotate180(src)},
			Variant{Name: "rotate270", Image: imaging.Rotate270(src)},
			Variant{Name: "flipH", Image: imaging.FlipH(src)},
			Variant{Name: "flipV", Image: imaging.FlipV(src)},
		)
	}
	return vs
}

// focused upscales a band and emits its sharpened and binary renditions.
func focused(prefix string, band image.Image) []Variant {
	if band.Bounds().Dx() < focusWidth {
		band = imaging.Resize(band, focusWidth, 0, imaging.CatmullRom)
	}
	sharp := sharpen(band)
	return []Variant{
		{Name: prefix + "-" + VariantSharpened, Image: sharp},
		{Name: prefix + "-" + VariantBinary, Image: binarize(sharp)},
	}
}

func sharpen(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 40)
	return imaging.Sharpen(gray, 1.2)
}

// binarize thresholds a grayscale image at its mean luminance.
func binarize(img *image.NRGBA) *image.NRGBA {
	threshold := meanLuminance(img)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if luminance(c) >= threshold {
			return color.NRGBA{R: 255, G: 255, B: 255, A: c.A}
		}
		return color.NRGBA{A: c.A}
	})
}

func meanLuminance(img *image.NRGBA) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 128
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += luminance(img.NRGBAAt(x, y))
		}
	}
	return sum / float64(n)
}

func luminance(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}
