package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/model"
)

func TestPipeline_EmptyBatchNoEmission(t *testing.T) {
	p := New(*config.Default(), nil)
	var got int
	p.OnInference(func(InferenceEvent) { got++ })
	p.ReceivePPI(nil, time.Now())
	assert.Equal(t, 0, got)
}

func TestPipeline_WindowEmissionFansOut(t *testing.T) {
	p := New(*config.Default(), nil)
	var events []InferenceEvent
	p.OnInference(func(e InferenceEvent) { events = append(events, e) })

	now := time.Now()
	p.ReceivePPI(repeatInterval(800, 20), now)
	require.NotEmpty(t, events)
}

func TestPipeline_HRUpdateObserver(t *testing.T) {
	p := New(*config.Default(), nil)
	var hrEvents []HRUpdateEvent
	p.OnHRUpdate(func(e HRUpdateEvent) { hrEvents = append(hrEvents, e) })
	p.ReceiveHR(72, time.Now())
	require.Len(t, hrEvents, 1)
	assert.Equal(t, 72, hrEvents[0].HR)
}

func TestPipeline_HROnlyFallbackWhenWindowEmpty(t *testing.T) {
	p := New(*config.Default(), nil)
	var events []InferenceEvent
	p.OnInference(func(e InferenceEvent) { events = append(events, e) })

	now := time.Now()
	p.ReceiveHR(72, now)
	require.Len(t, events, 1)

	// gated: within 3s, no second early output
	p.ReceiveHR(75, now.Add(1500*time.Millisecond))
	assert.Len(t, events, 1)

	p.ReceiveHR(78, now.Add(4*time.Second))
	assert.Len(t, events, 2)
}

func TestPipeline_SessionRecordsDataPoints(t *testing.T) {
	rec := NewMemoryRecorder()
	p := New(*config.Default(), rec)
	_, err := p.StartSession("focus-work")
	require.NoError(t, err)
	assert.True(t, p.IsRecording())

	p.ReceivePPI(repeatInterval(800, 20), time.Now())
	assert.NotEmpty(t, rec.Points())

	summary, err := p.StopSession()
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.False(t, p.IsRecording())
}

func TestPipeline_ForceStopResetsState(t *testing.T) {
	rec := NewMemoryRecorder()
	p := New(*config.Default(), rec)
	_, err := p.StartSession("rest")
	require.NoError(t, err)
	p.ForceStopSession()
	assert.False(t, p.IsRecording())

	var events []InferenceEvent
	p.OnInference(func(e InferenceEvent) { events = append(events, e) })
	p.ReceiveHR(70, time.Now())
	require.Len(t, events, 1, "HR fallback gate should have reset")
}

func TestPipeline_PublishDeviceStateFansOutRounded(t *testing.T) {
	p := New(*config.Default(), nil)
	var got DeviceStateEvent
	var calls int
	p.OnDeviceState(func(e DeviceStateEvent) { got = e; calls++ })

	p.PublishDeviceState(model.DeviceInfo{
		Name:           "wristband-1",
		Address:        "00:11:22:33:44:55",
		BatteryPercent: 87,
		SignalQuality:  0.123456,
		Phase:          model.Streaming,
	})

	require.Equal(t, 1, calls)
	assert.Equal(t, "streaming", got.ConnectionState)
	assert.Equal(t, "wristband-1", got.Name)
	assert.Equal(t, "00:11:22:33:44:55", got.Address)
	assert.Equal(t, 87, got.BatteryLevel)
	assert.Equal(t, 0.123, got.SignalQuality)
}

func TestPipeline_PublishDeviceStateNoObserverNoPanic(t *testing.T) {
	p := New(*config.Default(), nil)
	assert.NotPanics(t, func() {
		p.PublishDeviceState(model.DeviceInfo{Phase: model.Disconnected})
	})
}

func repeatInterval(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
