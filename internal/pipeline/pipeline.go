// Package pipeline wires the sensor client, sliding window, PPI cleaner,
// feature extractor and inference engine into one orchestrator, and fans
// results out to registered observers.
package pipeline

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vitalwave.dev/core/internal/cleaner"
	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/features"
	"vitalwave.dev/core/internal/inference"
	"vitalwave.dev/core/internal/logging"
	"vitalwave.dev/core/internal/model"
	"vitalwave.dev/core/internal/window"
)

// Pipeline owns the window buffer, cleaner, extractor, engine and HR
// fallback state exclusively -- a single-owner processing task. All
// public methods are meant to be called from that one task; only
// Snapshot-style reads are safe from elsewhere.
type Pipeline struct {
	cfg config.Config
	log *logrus.Entry

	win      *window.Window
	cleaner  *cleaner.Cleaner
	extractor *features.Extractor
	engine   *inference.Engine

	recorder Recorder

	mu             sync.Mutex
	sessionActive  bool
	sessionInfo    SessionInfo
	windowHasData  bool

	onInference   func(InferenceEvent)
	onHRUpdate    func(HRUpdateEvent)
	onDeviceState func(DeviceStateEvent)
}

func New(cfg config.Config, recorder Recorder) *Pipeline {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	p := &Pipeline{
		cfg:       cfg,
		log:       logging.For("pipeline"),
		win:       window.New(cfg.Signal),
		cleaner:   cleaner.New(cfg.Signal),
		extractor: features.New(cfg.Signal),
		engine:    inference.New(cfg.ML),
		recorder:  recorder,
	}
	p.engine.Reset(time.Now())
	return p
}

// OnInference registers the observer fired for every window or HR-only
// inference.
func (p *Pipeline) OnInference(f func(InferenceEvent)) { p.onInference = f }

// OnHRUpdate registers the observer fired for every raw HR sample.
func (p *Pipeline) OnHRUpdate(f func(HRUpdateEvent)) { p.onHRUpdate = f }

// OnDeviceState registers the observer fired whenever PublishDeviceState is
// called with a fresh sensor client snapshot.
func (p *Pipeline) OnDeviceState(f func(DeviceStateEvent)) { p.onDeviceState = f }

// PublishDeviceState converts a sensor client snapshot to the outbound
// device_state event and fans it out. Callers decide when a snapshot is
// worth publishing (connection transitions, periodic battery/signal-quality
// refresh).
func (p *Pipeline) PublishDeviceState(info model.DeviceInfo) {
	if p.onDeviceState != nil {
		p.onDeviceState(toDeviceStateEvent(info))
	}
}

// ReceivePPI ingests a batch of PPI intervals arriving at nominal time ts,
// buffers them, and emits + processes a window when one becomes due.
func (p *Pipeline) ReceivePPI(ppiMS []int, ts time.Time) {
	if len(ppiMS) == 0 {
		return
	}
	p.win.Add(ts, ppiMS)
	p.windowHasData = true

	data, ok := p.win.MaybeEmit(ts)
	if !ok {
		return
	}
	p.processWindow(data)
}

// ReceiveHR ingests a standalone HR sample. When the PPI window buffer is
// still empty, this triggers the HR-only degraded inference path.
func (p *Pipeline) ReceiveHR(hr int, ts time.Time) {
	if p.onHRUpdate != nil {
		p.onHRUpdate(HRUpdateEvent{HR: hr, Timestamp: secondsSinceEpoch(ts)})
	}
	if p.windowHasData {
		return
	}
	result, ok := p.engine.HRFallback(hr, ts)
	if !ok {
		return
	}
	p.publish(result)
}

func (p *Pipeline) processWindow(data model.WindowData) {
	cleaned := p.cleaner.Clean(data)
	feats := p.extractor.Extract(cleaned)
	result := p.engine.Infer(feats, data.WindowEnd)
	p.publish(result)
}

func (p *Pipeline) publish(result model.InferenceResult) {
	p.mu.Lock()
	active := p.sessionActive
	p.mu.Unlock()
	if active {
		if err := p.recorder.RecordDataPoint(toDataPoint(result)); err != nil {
			p.log.WithError(err).Warn("record data point failed")
		}
	}
	if p.onInference != nil {
		p.onInference(toInferenceEvent(result))
	}
}

func toDataPoint(r model.InferenceResult) DataPoint {
	f := r.Features
	return DataPoint{
		Timestamp:        secondsSinceEpoch(r.Scores.Timestamp),
		HR:               f.MeanHR,
		RMSSD:            f.RMSSD,
		SDNN:             f.SDNN,
		PNN50:            f.PNN50,
		MeanRR:           f.MeanRR,
		LFPower:          f.LFPower,
		HFPower:          f.HFPower,
		LFHFRatio:        f.LFHFRatio,
		Stress:           r.Scores.Stress,
		CognitiveLoad:    r.Scores.CognitiveLoad,
		Fatigue:          r.Scores.Fatigue,
		WindowQuality:    r.QualityRatio,
		FatigueSlope:     r.Trend.SlopePerMin,
		FatiguePredicted: r.Trend.PredictedFatigueAtHorizon,
	}
}

// StartSession begins a recording session via the Recorder collaborator
// and resets window + inference + HR state around the boundary.
func (p *Pipeline) StartSession(activityType string) (SessionInfo, error) {
	info, err := p.recorder.StartSession(activityType)
	if err != nil {
		return SessionInfo{}, err
	}
	p.mu.Lock()
	p.sessionActive = true
	p.sessionInfo = info
	p.mu.Unlock()
	p.resetState(info.StartedAt)
	return info, nil
}

// StopSession ends the recording session and resets pipeline state.
func (p *Pipeline) StopSession() (*Summary, error) {
	summary, err := p.recorder.StopSession()
	p.mu.Lock()
	p.sessionActive = false
	p.mu.Unlock()
	p.resetState(time.Now())
	return summary, err
}

// ForceStopSession tears down session bookkeeping best-effort even if the
// recorder misbehaves; state is always reset to a clean slate.
func (p *Pipeline) ForceStopSession() {
	_, _ = p.recorder.StopSession()
	p.mu.Lock()
	p.sessionActive = false
	p.mu.Unlock()
	p.resetState(time.Now())
}

// resetState clears window + inference + HR state -- called around every
// session boundary regardless of outcome.
func (p *Pipeline) resetState(sessionStart time.Time) {
	p.win.Reset()
	p.engine.Reset(sessionStart)
	p.windowHasData = false
}

// IsRecording reports whether a session is currently active.
func (p *Pipeline) IsRecording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionActive
}
