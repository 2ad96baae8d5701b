package metrics

import "sync/atomic"

var (
	framesCaptured   int64
	framesDropped    int64
	captureFailures  int64
	recogFailures    int64
	parseRejected    int64
	commits          int64
	historyFailures  int64
	historyRetries   int64
)

func IncFramesCaptured()  { atomic.AddInt64(&framesCaptured, 1) }
func IncFramesDropped()   { atomic.AddInt64(&framesDropped, 1) }
func IncCaptureFailures() { atomic.AddInt64(&captureFailures, 1) }
func IncRecogFailures()   { atomic.AddInt64(&recogFailures, 1) }
func IncParseRejected()   { atomic.AddInt64(&parseRejected, 1) }
func IncCommits()         { atomic.AddInt64(&commits, 1) }
func IncHistoryFailures() { atomic.AddInt64(&historyFailures, 1) }
func IncHistoryRetries()  { atomic.AddInt64(&historyRetries, 1) }

func Snapshot() map[string]int64 {
	return map[string]int64{
		"frames_captured":        atomic.LoadInt64(&framesCaptured),
		"frames_dropped":         atomic.LoadInt64(&framesDropped),
		"capture_failures":       atomic.LoadInt64(&captureFailures),
		"recognition_failures":   atomic.LoadInt64(&recogFailures),
		"parse_rejected":         atomic.LoadInt64(&parseRejected),
		"observations_committed": atomic.LoadInt64(&commits),
		"history_write_failures": atomic.LoadInt64(&historyFailures),
		"history_write_retries":  atomic.LoadInt64(&historyRetries),
	}
}
