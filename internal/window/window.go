// Package window buffers timestamped PPI intervals and emits time-bounded
// snapshots at a target step rate.
package window

import (
	"time"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/model"
)

const (
	fastStartFraction  = 0.33
	steadyStateFraction = 0.60
)

type entry struct {
	ts  time.Time
	ppi int
}

// Window is a deque of (timestamp, ppi_ms) entries, owned exclusively by
// the pipeline's processing task -- no internal locking.
type Window struct {
	cfg config.SignalConfig

	buf []entry

	lastEmit     time.Time
	everEmitted  bool
}

func New(cfg config.SignalConfig) *Window {
	return &Window{cfg: cfg}
}

// Add reconstructs per-sample timestamps by walking backward from now and
// subtracting each interval, then inserts them oldest-first, then evicts
// from the head anything older than the configured window span.
func (w *Window) Add(now time.Time, ppiMS []int) {
	if len(ppiMS) == 0 {
		return
	}
	ts := make([]time.Time, len(ppiMS))
	cursor := now
	for i := len(ppiMS) - 1; i >= 0; i-- {
		ts[i] = cursor
		cursor = cursor.Add(-time.Duration(ppiMS[i]) * time.Millisecond)
	}
	for i, t := range ts {
		w.buf = append(w.buf, entry{ts: t, ppi: ppiMS[i]})
	}
	w.evict()
}

func (w *Window) evict() {
	if len(w.buf) == 0 {
		return
	}
	tail := w.buf[len(w.buf)-1].ts
	cutoff := tail.Add(-time.Duration(w.cfg.WindowSizeSec * float64(time.Second)))
	i := 0
	for i < len(w.buf) && w.buf[i].ts.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.buf = append([]entry(nil), w.buf[i:]...)
	}
}

// MaybeEmit returns a WindowData snapshot and true if no window has been
// emitted in the last window_step_sec and the buffered span
// exceeds the fill-fraction threshold (0.33 on the first ever emission,
// 0.60 thereafter).
func (w *Window) MaybeEmit(now time.Time) (model.WindowData, bool) {
	if len(w.buf) == 0 {
		return model.WindowData{}, false
	}
	if w.everEmitted && now.Sub(w.lastEmit) < time.Duration(w.cfg.WindowStepSec*float64(time.Second)) {
		return model.WindowData{}, false
	}

	span := w.buf[len(w.buf)-1].ts.Sub(w.buf[0].ts).Seconds()
	fraction := steadyStateFraction
	if !w.everEmitted {
		fraction = fastStartFraction
	}
	if span < fraction*w.cfg.WindowSizeSec {
		return model.WindowData{}, false
	}

	intervals := make([]int, len(w.buf))
	timestamps := make([]time.Time, len(w.buf))
	for i, e := range w.buf {
		intervals[i] = e.ppi
		timestamps[i] = e.ts
	}
	data := model.WindowData{
		Intervals:   intervals,
		Timestamps:  timestamps,
		WindowStart: w.buf[0].ts,
		WindowEnd:   w.buf[len(w.buf)-1].ts,
		SampleCount: len(w.buf),
	}
	w.lastEmit = now
	w.everEmitted = true
	return data, true
}

// Reset clears the buffer and last-emit timestamp; the next emission
// reverts to the fast-start threshold.
func (w *Window) Reset() {
	w.buf = nil
	w.lastEmit = time.Time{}
	w.everEmitted = false
}
