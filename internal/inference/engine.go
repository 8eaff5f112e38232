// Package inference maps HRV feature vectors to smoothed cognitive-state
// scores and a short-horizon fatigue trend.
package inference

import (
	"time"

	"github.com/sirupsen/logrus"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/logging"
	"vitalwave.dev/core/internal/model"
)

// earlyOutputGap is the minimum spacing between HR-only degraded
// inferences while the PPI window buffer is still empty.
const earlyOutputGap = 3 * time.Second

// Engine computes CognitiveScores + FatigueTrend from a feature vector,
// preferring a trained model when one is configured and falling back to
// the heuristic formulas otherwise.
type Engine struct {
	cfg       config.MLConfig
	predictor Predictor
	log       *logrus.Entry

	hasPrevScores bool
	prevScores    model.CognitiveScores

	trend *fatigueTrend

	sessionStart     time.Time
	lastEarlyOutput  time.Time
	hasEarlyOutput   bool
}

func New(cfg config.MLConfig) *Engine {
	e := &Engine{cfg: cfg, log: logging.For("inference"), trend: newFatigueTrend()}
	if cfg.ModelPath != "" && cfg.ScalerPath != "" {
		p, err := LoadTrainedModel(cfg.ModelPath, cfg.ScalerPath)
		if err != nil {
			e.log.WithError(err).Info("trained model unavailable, using heuristic engine")
		} else {
			e.predictor = p
		}
	}
	return e
}

// Reset clears smoothing state, the fatigue ring and the early-output gate
// -- called around session boundaries alongside the window and HR state.
func (e *Engine) Reset(sessionStart time.Time) {
	e.hasPrevScores = false
	e.prevScores = model.CognitiveScores{}
	e.trend = newFatigueTrend()
	e.sessionStart = sessionStart
	e.lastEarlyOutput = time.Time{}
	e.hasEarlyOutput = false
}

// Infer runs the full feature->score->trend pipeline for one window.
func (e *Engine) Infer(features model.HRVFeatures, now time.Time) model.InferenceResult {
	raw := e.predict(features)
	raw.Timestamp = now
	smoothed := e.smooth(raw)
	e.trend.add(now, smoothed.Fatigue)
	trend := e.trend.compute(smoothed.Fatigue, e.cfg.FatigueHorizonMin)

	return model.InferenceResult{
		Features:     features,
		Scores:       smoothed,
		Trend:        trend,
		QualityRatio: features.QualityRatio,
		Degraded:     false,
	}
}

// predict runs the trained model when available, falling back to the
// heuristic formulas on any load or predict failure (never retried).
func (e *Engine) predict(f model.HRVFeatures) model.CognitiveScores {
	if e.predictor != nil {
		vec := [featureDim]float64{
			f.MeanRR, f.MeanHR, f.SDNN, f.RMSSD, f.SDSD, f.PNN50, f.CVRR,
			f.LFPower, f.HFPower, f.TotalPower, f.LFHFRatio, f.SD1, f.SD2, f.SDRatio,
		}
		stress, load, fatigue, err := e.predictor.Predict(vec)
		if err == nil {
			return model.CognitiveScores{
				Stress:        model.Clamp(stress, 0, 100),
				CognitiveLoad: model.Clamp(load, 0, 100),
				Fatigue:       model.Clamp(fatigue, 0, 100),
			}
		}
		e.log.WithError(err).Warn("trained model prediction failed, using heuristic for this window")
	}
	return heuristicScores(f)
}

// heuristicScores implements the rule-based feature->score mapping
// grounded in HRV/autonomic literature.
func heuristicScores(f model.HRVFeatures) model.CognitiveScores {
	c := model.Clamp

	stress := 0.4*c((f.LFHFRatio-0.5)/4*100, 0, 100) +
		0.4*c((1-f.RMSSD/80)*100, 0, 100) +
		0.2*c((f.MeanHR-60)/50*60, 0, 100)

	cognitiveLoad := 0.35*c((1-f.SDNN/100)*100, 0, 100) +
		0.35*c((f.MeanHR-55)/55*80, 0, 100) +
		0.30*c((1-f.SD1/50)*100, 0, 100)

	fatigue := 0.40*c((1-f.RMSSD/60)*80, 0, 100) +
		0.35*c((1-f.PNN50/30)*80, 0, 100) +
		0.25*c((f.MeanHR-65)/40*50, 0, 100)

	return model.CognitiveScores{
		Stress:        c(stress, 0, 100),
		CognitiveLoad: c(cognitiveLoad, 0, 100),
		Fatigue:       c(fatigue, 0, 100),
	}
}

// smooth applies the single-pole EMA: the first call passes raw through
// unchanged, every later call blends with the previous output.
func (e *Engine) smooth(raw model.CognitiveScores) model.CognitiveScores {
	if !e.hasPrevScores {
		e.hasPrevScores = true
		e.prevScores = raw
		return raw
	}
	alpha := e.cfg.ScoreSmoothingAlpha
	out := model.CognitiveScores{
		Stress:        model.Clamp(alpha*raw.Stress+(1-alpha)*e.prevScores.Stress, 0, 100),
		CognitiveLoad: model.Clamp(alpha*raw.CognitiveLoad+(1-alpha)*e.prevScores.CognitiveLoad, 0, 100),
		Fatigue:       model.Clamp(alpha*raw.Fatigue+(1-alpha)*e.prevScores.Fatigue, 0, 100),
		Timestamp:     raw.Timestamp,
	}
	e.prevScores = out
	return out
}

// HRFallback computes the HR-only degraded inference when the PPI window
// buffer is still empty. ok is false when the 3-second early-output gate
// suppresses this call.
func (e *Engine) HRFallback(hr int, now time.Time) (model.InferenceResult, bool) {
	if e.hasEarlyOutput && now.Sub(e.lastEarlyOutput) < earlyOutputGap {
		return model.InferenceResult{}, false
	}
	e.hasEarlyOutput = true
	e.lastEarlyOutput = now

	hrF := float64(hr)
	c := model.Clamp
	elapsedMin := now.Sub(e.sessionStart).Minutes()

	raw := model.CognitiveScores{
		Stress:        c((hrF-60)*1.5, 0, 100),
		CognitiveLoad: c((hrF-55)*0.8, 0, 100),
		Fatigue:       c(elapsedMin*1.5+(hrF-65)*0.3, 0, 100),
	}
	raw.Timestamp = now
	smoothed := e.smooth(raw)
	e.trend.add(now, smoothed.Fatigue)
	trend := e.trend.compute(smoothed.Fatigue, e.cfg.FatigueHorizonMin)

	features := model.HRVFeatures{MeanHR: hrF, MeanRR: 60000 / hrF}
	return model.InferenceResult{
		Features: features,
		Scores:   smoothed,
		Trend:    trend,
		Degraded: true,
	}, true
}
