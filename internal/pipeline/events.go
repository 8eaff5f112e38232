package pipeline

import (
	"math"
	"time"

	"vitalwave.dev/core/internal/model"
)

// InferenceEvent is the outbound `inference` event: scores and features
// are pre-rounded to their documented decimal places so a transport
// collaborator can serialise them without repeating the rounding rule.
type InferenceEvent struct {
	Scores        ScoresPayload
	Features      FeaturesPayload
	FatigueTrend  FatigueTrendPayload
	Timestamp     float64
	WindowQuality float64
}

type ScoresPayload struct {
	Stress        float64
	CognitiveLoad float64
	Fatigue       float64
}

type FeaturesPayload struct {
	MeanRR     float64
	MeanHR     float64
	SDNN       float64
	RMSSD      float64
	SDSD       float64
	PNN50      float64
	CVRR       float64
	LFPower    float64
	HFPower    float64
	TotalPower float64
	LFHFRatio  float64
	SD1        float64
	SD2        float64
	SDRatio    float64
}

type FatigueTrendPayload struct {
	Slope                float64
	PredictedFatigue10Min float64
	Confidence           float64
}

// HRUpdateEvent is the outbound `hr_update` event.
type HRUpdateEvent struct {
	HR        int
	Timestamp float64
}

// DeviceStateEvent is the outbound `device_state` event.
type DeviceStateEvent struct {
	ConnectionState string
	Name            string
	Address         string
	BatteryLevel    int
	SignalQuality   float64
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// toDeviceStateEvent builds the outbound `device_state` event from a
// sensor client snapshot, rounding signal_quality to 3 decimal places.
func toDeviceStateEvent(info model.DeviceInfo) DeviceStateEvent {
	return DeviceStateEvent{
		ConnectionState: info.Phase.String(),
		Name:            info.Name,
		Address:         info.Address,
		BatteryLevel:    info.BatteryPercent,
		SignalQuality:   round(info.SignalQuality, 3),
	}
}

func toInferenceEvent(r model.InferenceResult) InferenceEvent {
	f := r.Features
	return InferenceEvent{
		Scores: ScoresPayload{
			Stress:        round(r.Scores.Stress, 1),
			CognitiveLoad: round(r.Scores.CognitiveLoad, 1),
			Fatigue:       round(r.Scores.Fatigue, 1),
		},
		Features: FeaturesPayload{
			MeanRR:     round(f.MeanRR, 2),
			MeanHR:     round(f.MeanHR, 1),
			SDNN:       round(f.SDNN, 2),
			RMSSD:      round(f.RMSSD, 2),
			SDSD:       round(f.SDSD, 2),
			PNN50:      round(f.PNN50, 2),
			CVRR:       round(f.CVRR, 4),
			LFPower:    round(f.LFPower, 2),
			HFPower:    round(f.HFPower, 2),
			TotalPower: round(f.TotalPower, 2),
			LFHFRatio:  round(f.LFHFRatio, 3),
			SD1:        round(f.SD1, 2),
			SD2:        round(f.SD2, 2),
			SDRatio:    round(f.SDRatio, 3),
		},
		FatigueTrend: FatigueTrendPayload{
			Slope:                 round(r.Trend.SlopePerMin, 3),
			PredictedFatigue10Min: round(r.Trend.PredictedFatigueAtHorizon, 1),
			Confidence:            round(r.Trend.Confidence, 3),
		},
		Timestamp:     secondsSinceEpoch(r.Scores.Timestamp),
		WindowQuality: round(r.QualityRatio, 3),
	}
}

// secondsSinceEpoch reports raw (unrounded) seconds since the Unix epoch.
func secondsSinceEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
