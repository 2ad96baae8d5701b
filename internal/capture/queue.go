package capture

import (
	"log"
	"sync/atomic"

	"marketwatch/internal/metrics"
)

// FrameQueue is the bounded hand-off between the sampler and the recognition
// worker. When full it sheds the OLDEST queued frame: for a live price feed
// recency matters more than completeness, and the sampler must never stall
// on a slow OCR backend.
type FrameQueue struct {
	ch      chan Frame
	pushed  uint64
	dropped uint64
}

func NewFrameQueue(depth int) *FrameQueue {
	if depth < 1 {
		depth = 1
	}
	return &FrameQueue{ch: make(chan Frame, depth)}
}

// Push enqueues a frame without blocking. Only the sampler goroutine calls
// Push, so the evict-then-retry sequence cannot race another producer.
func (q *FrameQueue) Push(f Frame) {
	for {
		select {
		case q.ch <- f:
			atomic.AddUint64(&q.pushed, 1)
			return
		default:
		}
		select {
		case old := <-q.ch:
			atomic.AddUint64(&q.dropped, 1)
			metrics.IncFramesDropped()
			log.Printf("frame queue full, shedding frame captured_at=%s", old.CapturedAt.Format("15:04:05.000"))
		default:
		}
	}
}

// Frames exposes the receive side for the worker. The channel is closed by
// Close once the sampler has stopped; queued frames remain to be drained.
func (q *FrameQueue) Frames() <-chan Frame { return q.ch }

// Close stops the queue. Call only after the pushing side has stopped.
func (q *FrameQueue) Close() { close(q.ch) }

// Stats reports queue counters for the ops surface.
func (q *FrameQueue) Stats() (length, capacity int, pushed, dropped uint64) {
	return len(q.ch), cap(q.ch), atomic.LoadUint64(&q.pushed), atomic.LoadUint64(&q.dropped)
}
