package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/model"
)

func testMLConfig() config.MLConfig {
	cfg := config.Default().ML
	return cfg
}

func TestHeuristicScores_ClampedRange(t *testing.T) {
	f := model.HRVFeatures{MeanRR: 800, MeanHR: 75, SDNN: 0.1, RMSSD: 0.1, PNN50: 0, LFHFRatio: 50, SD1: 0.1}
	scores := heuristicScores(f)
	assert.GreaterOrEqual(t, scores.Stress, 0.0)
	assert.LessOrEqual(t, scores.Stress, 100.0)
	assert.GreaterOrEqual(t, scores.CognitiveLoad, 0.0)
	assert.LessOrEqual(t, scores.CognitiveLoad, 100.0)
	assert.GreaterOrEqual(t, scores.Fatigue, 0.0)
	assert.LessOrEqual(t, scores.Fatigue, 100.0)
}

func TestEngine_SmoothingFirstPassesThrough(t *testing.T) {
	e := New(testMLConfig())
	f := model.HRVFeatures{MeanRR: 800, MeanHR: 75, SDNN: 60, RMSSD: 40, PNN50: 10}
	res := e.Infer(f, time.Now())
	raw := heuristicScores(f)
	assert.InDelta(t, raw.Stress, res.Scores.Stress, 1e-9)
}

func TestEngine_SmoothingBlendsSubsequent(t *testing.T) {
	e := New(testMLConfig())
	now := time.Now()
	f1 := model.HRVFeatures{MeanRR: 800, MeanHR: 75, SDNN: 60, RMSSD: 40, PNN50: 10}
	r1 := e.Infer(f1, now)

	f2 := model.HRVFeatures{MeanRR: 700, MeanHR: 85, SDNN: 20, RMSSD: 10, PNN50: 2}
	r2 := e.Infer(f2, now.Add(time.Second))

	raw2 := heuristicScores(f2)
	alpha := testMLConfig().ScoreSmoothingAlpha
	expected := alpha*raw2.Stress + (1-alpha)*r1.Scores.Stress
	assert.InDelta(t, expected, r2.Scores.Stress, 1e-6)
}

func TestEngine_ResetClearsSmoothing(t *testing.T) {
	e := New(testMLConfig())
	f := model.HRVFeatures{MeanRR: 800, MeanHR: 75, SDNN: 60, RMSSD: 40, PNN50: 10}
	now := time.Now()
	e.Infer(f, now)
	e.Reset(now)
	res := e.Infer(f, now)
	raw := heuristicScores(f)
	assert.InDelta(t, raw.Stress, res.Scores.Stress, 1e-9)
}

func TestFatigueTrend_BelowMinPoints(t *testing.T) {
	ft := newFatigueTrend()
	now := time.Now()
	for i := 0; i < 5; i++ {
		ft.add(now.Add(time.Duration(i)*time.Minute), 50)
	}
	trend := ft.compute(50, 10)
	assert.Zero(t, trend.SlopePerMin)
	assert.Zero(t, trend.Confidence)
}

func TestFatigueTrend_RisingLinearly(t *testing.T) {
	ft := newFatigueTrend()
	now := time.Now()
	for i := 0; i < 20; i++ {
		fatigue := 40 + float64(i)*20.0/19.0 // rises 40->60 over 19 steps
		ft.add(now.Add(time.Duration(i)*30*time.Second), fatigue)
	}
	trend := ft.compute(60, 10)
	assert.InDelta(t, 2.0, trend.SlopePerMin, 0.2)
	assert.InDelta(t, 80, trend.PredictedFatigueAtHorizon, 2)
	assert.GreaterOrEqual(t, trend.Confidence, 0.8)
}

func TestEngine_HRFallback_Gating(t *testing.T) {
	e := New(testMLConfig())
	now := time.Now()
	e.Reset(now)

	_, ok := e.HRFallback(72, now)
	require.True(t, ok)

	_, ok = e.HRFallback(75, now.Add(1500*time.Millisecond))
	assert.False(t, ok, "within 3s gate, should be suppressed")

	_, ok = e.HRFallback(78, now.Add(4*time.Second))
	assert.True(t, ok, "past 3s gate, should emit")
}

func TestEngine_HRFallback_ZeroFilledFeatures(t *testing.T) {
	e := New(testMLConfig())
	now := time.Now()
	e.Reset(now)
	res, ok := e.HRFallback(80, now)
	require.True(t, ok)
	assert.Equal(t, 80.0, res.Features.MeanHR)
	assert.InDelta(t, 60000.0/80, res.Features.MeanRR, 1e-9)
	assert.Equal(t, 0.0, res.Features.SDNN)
	assert.True(t, res.Degraded)
}
