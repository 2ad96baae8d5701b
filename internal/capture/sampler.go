package capture

import (
	"context"
	"image"
	"log"
	"sync"
	"time"

	"marketwatch/internal/events"
	"marketwatch/internal/layout"
	"marketwatch/internal/metrics"
)

// Sampler polls the grab primitive at a fixed cadence and produces one Frame
// per tick with every zone of the active layout. Capture failures are never
// fatal: the tick interval backs off exponentially up to a cap and recovers
// on the next successful grab.
type Sampler struct {
	grabber    Grabber
	zones      map[string]layout.Zone
	interval   time.Duration
	maxBackoff time.Duration
	out        *FrameQueue
	bus        *events.Bus

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewSampler(g Grabber, l layout.Layout, interval, maxBackoff time.Duration, out *FrameQueue, bus *events.Bus) *Sampler {
	if maxBackoff < interval {
		maxBackoff = interval
	}
	return &Sampler{
		grabber:    g,
		zones:      l.Zones,
		interval:   interval,
		maxBackoff: maxBackoff,
		out:        out,
		bus:        bus,
	}
}

// Start launches the sampling loop.
func (s *Sampler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts frame production and waits for the loop to exit. It does not
// touch the queue: frames already accepted stay there for the worker to
// drain.
func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sampler) run(ctx context.Context) {
	defer s.wg.Done()
	delay := s.interval
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if frame, ok := s.sample(); ok {
			s.out.Push(frame)
			metrics.IncFramesCaptured()
			delay = s.interval
		} else {
			delay *= 2
			if delay > s.maxBackoff {
				delay = s.maxBackoff
			}
		}
		timer.Reset(delay)
	}
}

// sample grabs every zone of the layout. A failure on any zone abandons the
// whole tick; partial ticks would feed the parser mismatched screens.
func (s *Sampler) sample() (Frame, bool) {
	frame := Frame{
		Zones:      make(map[string]*image.RGBA, len(s.zones)),
		CapturedAt: time.Now().UTC(),
	}
	for name, z := range s.zones {
		img, err := s.grabber.Grab(z.Rect)
		if err != nil {
			metrics.IncCaptureFailures()
			log.Printf("capture unavailable zone=%s: %v", name, err)
			s.bus.Publish(events.Event{
				Kind:    events.KindCaptureUnavailable,
				Payload: map[string]any{"zone": name, "error": err.Error()},
			})
			return Frame{}, false
		}
		frame.Zones[name] = toRGBA(img)
	}
	return frame, true
}
