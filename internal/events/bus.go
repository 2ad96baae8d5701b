package events

import (
	"sync"
	"time"
)

// Event kinds published on the bus.
const (
	KindObservationCommitted = "observation_committed"
	KindCaptureUnavailable   = "capture_unavailable"
	KindRecognitionFailed    = "recognition_failed"
	KindHistoryWriteDegraded = "history_write_degraded"
	KindLayoutChanged        = "layout_changed"
	KindSessionStarted       = "session_started"
	KindSessionEnded         = "session_ended"
)

// Event is a single pipeline notification. Payload is kind-specific and JSON
// friendly for the SSE stream.
type Event struct {
	Kind    string         `json:"kind"`
	Region  string         `json:"region,omitempty"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Bus provides in-process pub/sub for pipeline events. Publish never blocks;
// a subscriber that falls behind misses events rather than stalling the
// commit path.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Event
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
