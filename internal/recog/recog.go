// Package recog turns captured zone images into text. The backend is
// Tesseract; tests substitute a fake Recognizer.
package recog

import (
	"errors"
	"image"
)

// ErrRecognitionFailed wraps backend failures. The frame that triggered it
// is dropped; the pipeline keeps running.
var ErrRecognitionFailed = errors.New("recognition failed")

// Result is one zone's recognized text with backend confidence in [0,1].
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer reads text out of a single zone crop. numeric selects a
// digits-only character set for price and quantity zones.
type Recognizer interface {
	Recognize(img image.Image, numeric bool) (Result, error)
	Close() error
}
