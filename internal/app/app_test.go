package app

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"marketwatch/internal/config"
	"marketwatch/internal/events"
	"marketwatch/internal/layout"
	"marketwatch/internal/recog"
)

const testCatalog = `layouts:
  test:
    product_name: {x: 0, y: 0, w: 100, h: 20}
    local_price: {x: 0, y: 30, w: 50, h: 20, numeric: true}
    friend_price: {x: 0, y: 60, w: 60, h: 20, numeric: true}
goods:
  Iron Ore: wuling
  Copper Wire: valley
`

type fakeGrabber struct{}

func (fakeGrabber) Grab(r layout.Rect) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, r.W, r.H)), nil
}

// scriptedRecognizer answers by crop width and can be retargeted while the
// pipeline runs.
type scriptedRecognizer struct {
	mu      sync.Mutex
	byWidth map[int]recog.Result
}

func (r *scriptedRecognizer) Recognize(img image.Image, numeric bool) (recog.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byWidth[img.Bounds().Dx()], nil
}

func (r *scriptedRecognizer) Close() error { return nil }

func (r *scriptedRecognizer) set(byWidth map[int]recog.Result) {
	r.mu.Lock()
	r.byWidth = byWidth
	r.mu.Unlock()
}

func testApp(t *testing.T) (*App, *scriptedRecognizer) {
	t.Helper()
	dir := t.TempDir()
	layoutsPath := filepath.Join(dir, "layouts.yaml")
	if err := os.WriteFile(layoutsPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Defaults()
	cfg.LayoutsPath = layoutsPath
	cfg.LayoutID = "test"
	cfg.DBPath = filepath.Join(dir, "test.db")
	cfg.CaptureIntervalMS = 20
	cfg.StabilityThreshold = 2
	cfg.IdleTimeoutMS = 60000

	rec := &scriptedRecognizer{}
	a, err := NewWith(cfg, fakeGrabber{}, func() (recog.Recognizer, error) { return rec, nil })
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, rec
}

func waitForCommit(t *testing.T, sub <-chan events.Event, good string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Kind == events.KindObservationCommitted && ev.Payload["good_name"] == good {
				return
			}
		case <-deadline:
			t.Fatalf("no commit for %s", good)
		}
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	a, rec := testApp(t)
	sub := a.Bus().Subscribe()

	rec.set(map[int]recog.Result{
		100: {Text: "Iron Ore", Confidence: 0.95},
		50:  {Text: "100", Confidence: 0.92},
		60:  {Text: "140", Confidence: 0.9},
	})
	if err := a.StartCapture(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.StartCapture(); err != ErrAlreadyRunning {
		t.Fatalf("second start: %v", err)
	}
	waitForCommit(t, sub, "Iron Ore")

	rec.set(map[int]recog.Result{
		100: {Text: "Copper Wire", Confidence: 0.95},
		50:  {Text: "80", Confidence: 0.92},
		60:  {Text: "90", Confidence: 0.9},
	})
	waitForCommit(t, sub, "Copper Wire")

	if err := a.StopCapture(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if a.Running() {
		t.Fatalf("still running after stop")
	}

	day := config.Day(config.Now())
	wuling := a.Board().Ranking("wuling", day)
	if len(wuling) != 1 || wuling[0].Good != "Iron Ore" || wuling[0].Profit != 40 {
		t.Fatalf("wuling board = %+v", wuling)
	}
	valley := a.Board().Ranking("valley", day)
	if len(valley) != 1 || valley[0].Profit != 10 {
		t.Fatalf("valley board = %+v", valley)
	}

	ctx := context.Background()
	recs, err := a.Store().HistoryByGood(ctx, "Iron Ore", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("steady price must persist exactly one row, got %d", len(recs))
	}

	sessions, err := a.Store().Sessions(ctx, 5)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].EndedAt == nil || sessions[0].Observations < 2 {
		t.Fatalf("session = %+v", sessions[0])
	}
}

func TestStopWithoutStart(t *testing.T) {
	a, _ := testApp(t)
	if err := a.StopCapture(); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}
