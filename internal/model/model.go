// Package model holds the data types shared across the pipeline stages:
// sensor client, sliding window, PPI cleaner, feature extractor and
// inference engine. None of these types carry behavior beyond small,
// obviously-correct helpers; the stages that produce and consume them own
// the logic.
package model

import "time"

// ConnectionPhase is the sensor client's connection state machine position.
type ConnectionPhase int

const (
	Disconnected ConnectionPhase = iota
	Scanning
	Connecting
	Connected
	Streaming
	ErrorState
)

func (p ConnectionPhase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Streaming:
		return "streaming"
	case ErrorState:
		return "error"
	default:
		return "unknown"
	}
}

// DeviceInfo is the sensor client's identity and health snapshot. Only
// BatteryPercent and SignalQuality are meant to be read outside the
// sensor client's owning goroutine; Phase/Name/Address are mutated
// exclusively by the sensor client itself.
type DeviceInfo struct {
	Name           string
	Address        string
	BatteryPercent int // 0-100, -1 when unread.
	SignalQuality  float64
	Phase          ConnectionPhase
}

// Sample is a single decoded reading from the sensor: either a bare HR
// value or a batch of PPI intervals with parallel per-interval metadata.
// Samples are immutable once emitted by the sensor client.
type Sample struct {
	At  time.Time
	HR  int // valid when PPI is nil.
	PPI []int
	// ErrorEstimateMS and SkinContact are parallel to PPI; both are nil
	// when HR is the payload instead.
	ErrorEstimateMS []int
	SkinContact     []bool
}

// IsHR reports whether this sample carries a bare HR reading rather than a
// PPI batch.
func (s Sample) IsHR() bool {
	return s.PPI == nil
}

// WindowData is an immutable snapshot of the sliding window buffer at
// emission time: parallel PPI/timestamp arrays plus the window's time span.
type WindowData struct {
	Intervals   []int
	Timestamps  []time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	SampleCount int
}

// CleanedPPI is the output of artifact rejection plus optional gap-fill
// interpolation. Mask[i] == true means Intervals[i] passed both filters;
// gap-filled entries keep Mask[i] == false. The cleaner never mutates its
// input.
type CleanedPPI struct {
	Intervals    []int
	Mask         []bool
	QualityRatio float64
	ValidCount   int
	TotalCount   int
}

// HRVFeatures is the fixed-ordering 14-scalar feature vector computed from
// a cleaned window, alongside the observability fields carried with it.
type HRVFeatures struct {
	// Time domain.
	MeanRR float64
	MeanHR float64
	SDNN   float64
	RMSSD  float64
	SDSD   float64
	PNN50  float64
	CVRR   float64
	// Frequency domain (Welch PSD).
	LFPower      float64
	HFPower      float64
	TotalPower   float64
	LFHFRatio    float64
	// Nonlinear (Poincare).
	SD1     float64
	SD2     float64
	SDRatio float64

	QualityRatio float64
	SampleCount  int
}

// CognitiveScores is the triplet of smoothed 0-100 scores produced for a
// window, or for an HR-only degraded inference.
type CognitiveScores struct {
	Stress        float64
	CognitiveLoad float64
	Fatigue       float64
	Timestamp     time.Time
}

// FatigueTrend is the short-horizon fatigue projection fit from the recent
// fatigue-score history.
type FatigueTrend struct {
	SlopePerMin            float64
	PredictedFatigueAtHorizon float64
	Confidence             float64
}

// InferenceResult bundles everything the orchestrator fans out to
// observers and hands to the session recorder for one window (or one
// HR-only degraded inference).
type InferenceResult struct {
	Features HRVFeatures
	Scores   CognitiveScores
	Trend    FatigueTrend
	// QualityRatio mirrors Features.QualityRatio for convenience at the
	// orchestrator boundary; HR-only fallbacks set it to 0.
	QualityRatio float64
	Degraded     bool // true for the HR-only fallback path.
}

// Clamp constrains v to [lo, hi], treating NaN as lo. Used by the
// inference engine's score, smoothing and trend math so that no NaN or
// out-of-range score reaches an observer.
func Clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
