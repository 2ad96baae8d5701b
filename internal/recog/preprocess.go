package recog

import (
	"image"

	"github.com/disintegration/imaging"
)

// Zone crops are small slivers of a game UI; Tesseract wants tall,
// high-contrast glyphs on a clean background.
const minGlyphHeight = 48

// Prepare normalizes a zone crop for recognition: grayscale, a contrast
// and sharpen bump, and an upscale when the crop is shorter than Tesseract
// handles well.
func Prepare(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.Sharpen(out, 0.6)
	if h := out.Bounds().Dy(); h > 0 && h < minGlyphHeight {
		out = imaging.Resize(out, 0, minGlyphHeight, imaging.Lanczos)
	}
	return out
}
