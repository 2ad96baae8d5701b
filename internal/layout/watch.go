package layout

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the catalog file and invokes onChange when it is written or
// replaced. The running pipeline keeps its loaded catalog; callers typically
// surface an event so the operator can restart capture to pick up the new
// rectangles.
func Watch(ctx context.Context, path string, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Base(evt.Name) != filepath.Base(abs) {
					continue
				}
				onChange(abs)
			case err := <-watcher.Errors:
				log.Printf("layout watcher error: %v", err)
			}
		}
	}()
	// Watch the directory: editors replace files rather than write in place.
	return watcher.Add(filepath.Dir(abs))
}
