package capture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"marketwatch/internal/layout"
)

// DirectoryGrabber serves zone crops from the newest screenshot file in a
// directory. The game client (or a capture tool) keeps dumping full-screen
// shots there; each Grab crops the requested rectangle out of the latest
// one. The decoded image is cached per file so one tick's zones share a
// single decode.
type DirectoryGrabber struct {
	dir string

	mu      sync.Mutex
	path    string
	modTime time.Time
	img     image.Image
}

func NewDirectoryGrabber(dir string) *DirectoryGrabber {
	return &DirectoryGrabber{dir: dir}
}

func (g *DirectoryGrabber) Grab(r layout.Rect) (image.Image, error) {
	img, err := g.latest()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	b := img.Bounds()
	if r.X+r.W > b.Dx() || r.Y+r.H > b.Dy() {
		return nil, fmt.Errorf("%w: zone %dx%d+%d+%d outside %dx%d screenshot",
			ErrCaptureUnavailable, r.W, r.H, r.X, r.Y, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)), nil
}

func (g *DirectoryGrabber) latest() (image.Image, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		return nil, err
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return nil, fmt.Errorf("no screenshots in %s", g.dir)
	}
	path := filepath.Join(g.dir, newest)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.img != nil && g.path == path && g.modTime.Equal(newestMod) {
		return g.img, nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	g.path, g.modTime, g.img = path, newestMod, img
	return img, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".bmp":
		return true
	}
	return false
}
