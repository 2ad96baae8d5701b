package history

import (
	"context"
	"log"
	"time"

	"marketwatch/internal/dedup"
	"marketwatch/internal/events"
	"marketwatch/internal/metrics"
)

const (
	writeAttempts     = 3
	writeInitialDelay = 50 * time.Millisecond
)

// Writer appends observations with bounded retry. A write that still fails
// after the retries is reported as degradation, not as a pipeline stop:
// the live ranking keeps updating while history catches up on later
// observations.
type Writer struct {
	store *Store
	bus   *events.Bus
}

func NewWriter(store *Store, bus *events.Bus) *Writer {
	return &Writer{store: store, bus: bus}
}

// Append persists one observation, retrying transient failures with
// doubling delays. The returned error is the last attempt's.
func (w *Writer) Append(ctx context.Context, obs dedup.Observation) error {
	delay := writeInitialDelay
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if err = w.store.Append(ctx, obs); err == nil {
			return nil
		}
		if attempt == writeAttempts {
			break
		}
		metrics.IncHistoryRetries()
		log.Printf("history write retry %d good=%s: %v", attempt, obs.Good, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	metrics.IncHistoryFailures()
	log.Printf("history write degraded good=%s region=%s: %v", obs.Good, obs.Region, err)
	w.bus.Publish(events.Event{
		Kind:    events.KindHistoryWriteDegraded,
		Region:  obs.Region,
		At:      time.Now().UTC(),
		Payload: map[string]any{"good_name": obs.Good, "error": err.Error()},
	})
	return err
}
