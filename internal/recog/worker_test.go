package recog

import (
	"image"
	"testing"
	"time"

	"marketwatch/internal/capture"
	"marketwatch/internal/dedup"
	"marketwatch/internal/events"
	"marketwatch/internal/layout"
	"marketwatch/internal/parse"
)

// fakeRecognizer answers by crop width so tests can script per-zone text
// without a Tesseract install.
type fakeRecognizer struct {
	byWidth map[int]Result
	fail    bool
}

func (r *fakeRecognizer) Recognize(img image.Image, numeric bool) (Result, error) {
	if r.fail {
		return Result{}, ErrRecognitionFailed
	}
	return r.byWidth[img.Bounds().Dx()], nil
}

func (r *fakeRecognizer) Close() error { return nil }

func testZones() map[string]layout.Zone {
	return map[string]layout.Zone{
		layout.ZoneProductName: {Rect: layout.Rect{W: 100, H: 20}},
		layout.ZoneLocalPrice:  {Rect: layout.Rect{W: 50, H: 20}, Numeric: true},
		layout.ZoneFriendPrice: {Rect: layout.Rect{W: 60, H: 20}, Numeric: true},
	}
}

func frameFor(zones map[string]layout.Zone, at time.Time) capture.Frame {
	f := capture.Frame{Zones: make(map[string]*image.RGBA, len(zones)), CapturedAt: at}
	for name, z := range zones {
		f.Zones[name] = image.NewRGBA(image.Rect(0, 0, z.Rect.W, z.Rect.H))
	}
	return f
}

func testParser() *parse.Parser {
	cat := &layout.Catalog{Goods: map[string]string{"Iron Ore": "wuling"}}
	return parse.New(cat, 0.75, 9000, 2)
}

func TestWorkerCommitsStableObservation(t *testing.T) {
	rec := &fakeRecognizer{byWidth: map[int]Result{
		100: {Text: "Iron Ore", Confidence: 0.95},
		50:  {Text: "100", Confidence: 0.92},
		60:  {Text: "140", Confidence: 0.9},
	}}
	zones := testZones()
	q := capture.NewFrameQueue(8)
	tr := dedup.NewTracker(dedup.Config{Stability: 2, IdleTimeout: time.Minute})
	w := NewWorker(q, rec, testParser(), tr, zones, events.NewBus())
	w.Start()

	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	q.Push(frameFor(zones, at))
	q.Push(frameFor(zones, at.Add(time.Second)))
	q.Close()

	var got []dedup.Observation
	for obs := range w.Observations() {
		got = append(got, obs)
	}
	w.Wait()

	if len(got) != 1 {
		t.Fatalf("observations = %d, want 1", len(got))
	}
	obs := got[0]
	if obs.Good != "Iron Ore" || obs.Region != "wuling" {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if obs.Profit() != 40 {
		t.Fatalf("profit = %d", obs.Profit())
	}
}

func TestWorkerDropsFrameOnRecognitionFailure(t *testing.T) {
	rec := &fakeRecognizer{fail: true}
	zones := testZones()
	bus := events.NewBus()
	sub := bus.Subscribe()
	q := capture.NewFrameQueue(8)
	tr := dedup.NewTracker(dedup.Config{Stability: 1, IdleTimeout: time.Minute})
	w := NewWorker(q, rec, testParser(), tr, zones, bus)
	w.Start()

	q.Push(frameFor(zones, time.Now()))
	q.Close()

	if _, ok := <-w.Observations(); ok {
		t.Fatalf("failed frame produced an observation")
	}
	w.Wait()

	select {
	case ev := <-sub:
		if ev.Kind != events.KindRecognitionFailed {
			t.Fatalf("event kind = %q", ev.Kind)
		}
	default:
		t.Fatalf("no recognition_failed event")
	}
}

func TestWorkerSkipsEmptyZones(t *testing.T) {
	// Only the name zone reads anything: the parser sees a partial frame
	// and the tracker accumulates without committing.
	rec := &fakeRecognizer{byWidth: map[int]Result{
		100: {Text: "Iron Ore", Confidence: 0.95},
	}}
	zones := testZones()
	q := capture.NewFrameQueue(8)
	tr := dedup.NewTracker(dedup.Config{Stability: 1, IdleTimeout: time.Minute})
	w := NewWorker(q, rec, testParser(), tr, zones, events.NewBus())
	w.Start()

	q.Push(frameFor(zones, time.Now()))
	q.Close()

	if _, ok := <-w.Observations(); ok {
		t.Fatalf("partial frame committed")
	}
	w.Wait()
}
