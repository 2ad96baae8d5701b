package recog

import (
	"log"
	"sync"
	"time"

	"marketwatch/internal/capture"
	"marketwatch/internal/dedup"
	"marketwatch/internal/events"
	"marketwatch/internal/layout"
	"marketwatch/internal/metrics"
	"marketwatch/internal/parse"
)

// Worker is the single recognition goroutine. It drains the frame queue,
// runs OCR per zone, parses, and feeds the dedup tracker. Observations the
// tracker commits go out on a channel the committer drains. One goroutine
// end to end keeps frame order and leaves the tracker lock-free.
type Worker struct {
	queue   *capture.FrameQueue
	rec     Recognizer
	parser  *parse.Parser
	tracker *dedup.Tracker
	zones   map[string]layout.Zone
	bus     *events.Bus

	out chan dedup.Observation
	wg  sync.WaitGroup
}

func NewWorker(q *capture.FrameQueue, rec Recognizer, p *parse.Parser, tr *dedup.Tracker, zones map[string]layout.Zone, bus *events.Bus) *Worker {
	return &Worker{
		queue:   q,
		rec:     rec,
		parser:  p,
		tracker: tr,
		zones:   zones,
		bus:     bus,
		out:     make(chan dedup.Observation, 16),
	}
}

// Observations is the committed-observation stream. It closes after the
// frame queue is closed and fully drained.
func (w *Worker) Observations() <-chan dedup.Observation { return w.out }

func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Wait blocks until the worker has drained the queue and exited.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) run() {
	defer w.wg.Done()
	defer close(w.out)
	for f := range w.queue.Frames() {
		w.process(f)
	}
}

func (w *Worker) process(f capture.Frame) {
	raw := make(map[string]parse.RawField, len(f.Zones))
	for name, img := range f.Zones {
		res, err := w.rec.Recognize(img, w.zones[name].Numeric)
		if err != nil {
			metrics.IncRecogFailures()
			log.Printf("recognition failed zone=%s: %v", name, err)
			w.bus.Publish(events.Event{
				Kind:    events.KindRecognitionFailed,
				At:      time.Now().UTC(),
				Payload: map[string]any{"zone": name, "error": err.Error()},
			})
			return
		}
		if res.Text == "" {
			continue
		}
		raw[name] = parse.RawField{Text: res.Text, Confidence: res.Confidence}
	}
	if len(raw) == 0 {
		return
	}
	fields, err := w.parser.Parse(raw, f.CapturedAt)
	if err != nil {
		// Already counted and logged by the parser.
		return
	}
	if obs, ok := w.tracker.Offer(fields, f.CapturedAt); ok {
		w.out <- obs
	}
}
