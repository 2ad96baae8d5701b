package recog

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

const (
	textWhitelist  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 '-"
	digitWhitelist = "0123456789.,: "
)

// Tesseract recognizes zone crops with two gosseract clients: one tuned for
// item names, one whitelisted down to digits for price zones. Clients are
// not safe for concurrent use; the recognition worker is the only caller.
type Tesseract struct {
	text   *gosseract.Client
	digits *gosseract.Client
}

func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	text := gosseract.NewClient()
	if err := text.SetLanguage(language); err != nil {
		text.Close()
		return nil, fmt.Errorf("set language %q: %w", language, err)
	}
	_ = text.SetWhitelist(textWhitelist)
	_ = text.SetPageSegMode(gosseract.PSM_SINGLE_LINE)

	digits := gosseract.NewClient()
	if err := digits.SetLanguage(language); err != nil {
		text.Close()
		digits.Close()
		return nil, fmt.Errorf("set language %q: %w", language, err)
	}
	_ = digits.SetWhitelist(digitWhitelist)
	_ = digits.SetPageSegMode(gosseract.PSM_SINGLE_LINE)

	return &Tesseract{text: text, digits: digits}, nil
}

func (t *Tesseract) Recognize(img image.Image, numeric bool) (Result, error) {
	client := t.text
	if numeric {
		client = t.digits
	}
	prepared := Prepare(img)
	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared); err != nil {
		return Result{}, fmt.Errorf("%w: encode crop: %v", ErrRecognitionFailed, err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}
	if len(boxes) == 0 {
		return Result{}, nil
	}
	words := make([]string, 0, len(boxes))
	sum := 0.0
	for _, b := range boxes {
		words = append(words, b.Word)
		sum += b.Confidence
	}
	return Result{
		Text:       strings.TrimSpace(strings.Join(words, " ")),
		Confidence: sum / float64(len(boxes)) / 100,
	}, nil
}

func (t *Tesseract) Close() error {
	err := t.text.Close()
	if err2 := t.digits.Close(); err == nil {
		err = err2
	}
	return err
}
