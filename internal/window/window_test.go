package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwave.dev/core/internal/config"
)

func testConfig() config.SignalConfig {
	cfg := config.Default().Signal
	cfg.WindowSizeSec = 15
	cfg.WindowStepSec = 1
	return cfg
}

func TestWindow_EmptyBatchNoEmission(t *testing.T) {
	w := New(testConfig())
	_, ok := w.MaybeEmit(time.Now())
	assert.False(t, ok)
}

func TestWindow_FastStart(t *testing.T) {
	w := New(testConfig())
	now := time.Now()
	// 6 intervals of 800ms span (6-1)*0.8=4.0s -> below 0.33*15=4.95s threshold
	w.Add(now, []int{800, 800, 800, 800, 800, 800})
	_, ok := w.MaybeEmit(now)
	assert.False(t, ok, "span below fast-start threshold should not emit")

	// add enough for a >4.95s span (fast-start threshold is 0.33*15=4.95s):
	// 8 intervals of 800ms span (8-1)*0.8=5.6s.
	w2 := New(testConfig())
	w2.Add(now, repeatInterval(800, 8))
	data, ok := w2.MaybeEmit(now)
	require.True(t, ok)
	assert.Equal(t, 8, data.SampleCount)
}

func TestWindow_AtMostOnePerStep(t *testing.T) {
	w := New(testConfig())
	now := time.Now()
	// 18 intervals of 800ms span 13.6s, comfortably past both the
	// fast-start (4.95s) and steady-state (9s) thresholds.
	w.Add(now, repeatInterval(800, 18))
	_, ok := w.MaybeEmit(now)
	require.True(t, ok)

	// a second emission attempt before window_step_sec elapses is refused
	_, ok = w.MaybeEmit(now.Add(500 * time.Millisecond))
	assert.False(t, ok)

	// after window_step_sec it's allowed again (steady-state threshold now 0.60)
	w.Add(now.Add(2*time.Second), repeatInterval(800, 3))
	_, ok = w.MaybeEmit(now.Add(2 * time.Second))
	assert.True(t, ok)
}

func TestWindow_SnapshotIsCopy(t *testing.T) {
	w := New(testConfig())
	now := time.Now()
	w.Add(now, repeatInterval(800, 8))
	data, ok := w.MaybeEmit(now)
	require.True(t, ok)
	data.Intervals[0] = 999999
	// internal buffer must be unaffected by mutating a returned snapshot
	// the new sample lands at now+4s, so the buffered span (9.6s) passes the
	// 0.60*15=9s steady-state threshold and a second window is emitted
	w.Add(now.Add(4*time.Second), []int{800})
	latest, ok := w.MaybeEmit(now.Add(4 * time.Second))
	require.True(t, ok)
	for _, v := range latest.Intervals {
		assert.NotEqual(t, 999999, v)
	}
}

func TestWindow_Eviction(t *testing.T) {
	w := New(testConfig())
	base := time.Now()
	w.Add(base, repeatInterval(800, 20)) // 15.2s span > 15s window
	data, ok := w.MaybeEmit(base)
	require.True(t, ok)
	span := data.WindowEnd.Sub(data.WindowStart).Seconds()
	assert.LessOrEqual(t, span, 15.0+0.001)
}

func TestWindow_Reset(t *testing.T) {
	w := New(testConfig())
	now := time.Now()
	w.Add(now, repeatInterval(800, 8))
	_, ok := w.MaybeEmit(now)
	require.True(t, ok)

	w.Reset()
	_, ok = w.MaybeEmit(now)
	assert.False(t, ok, "reset buffer is empty")

	// next emission reverts to fast-start threshold
	w.Add(now, repeatInterval(800, 8))
	_, ok = w.MaybeEmit(now)
	assert.True(t, ok)
}

func repeatInterval(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
