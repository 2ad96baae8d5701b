package capture

import (
	"errors"
	"image"
	"time"

	xdraw "golang.org/x/image/draw"

	"marketwatch/internal/layout"
)

// ErrCaptureUnavailable signals that the capture target is not reachable
// (window closed, minimized, monitor gone). Transient: the sampler backs off
// and retries, it never treats this as fatal.
var ErrCaptureUnavailable = errors.New("capture target unavailable")

// Grabber is the external screen-grab primitive. Implementations return the
// pixels of the requested rectangle; any failure is reported so callers can
// treat it as ErrCaptureUnavailable.
type Grabber interface {
	Grab(r layout.Rect) (image.Image, error)
}

// Frame is one sampler tick: every zone of the active layout cropped at the
// same instant. Frames are short-lived and owned by whoever holds them;
// they are never persisted.
type Frame struct {
	Zones      map[string]*image.RGBA
	CapturedAt time.Time
}

// toRGBA normalizes a grabbed image into RGBA so the recognition backend
// sees one pixel format regardless of what the grab primitive produced.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(out, image.Point{}, img, b, xdraw.Src, nil)
	return out
}
