// Package features computes the 14-scalar HRV feature vector (time-domain,
// frequency-domain and nonlinear) from a cleaned RR-interval series.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/model"
)

// minSamples is the minimum RR count below which all 14 features are
// returned zeroed.
const minSamples = 4

// Extractor computes HRVFeatures from model.CleanedPPI.
type Extractor struct {
	cfg config.SignalConfig
}

func New(cfg config.SignalConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract computes the full feature vector. rr is the cleaned (and
// possibly gap-filled) RR series in milliseconds.
func (e *Extractor) Extract(cleaned model.CleanedPPI) model.HRVFeatures {
	rr := cleaned.Intervals
	if len(rr) < minSamples {
		return model.HRVFeatures{QualityRatio: cleaned.QualityRatio, SampleCount: len(rr)}
	}

	rrF := toFloat64(rr)
	meanRR := stat.Mean(rrF, nil)
	meanHR := 60000 / meanRR
	sdnn := stat.StdDev(rrF, nil)

	diffs := make([]float64, len(rrF)-1)
	for i := range diffs {
		diffs[i] = rrF[i+1] - rrF[i]
	}
	sq := make([]float64, len(diffs))
	over50 := 0
	for i, d := range diffs {
		sq[i] = d * d
		if math.Abs(d) > 50 {
			over50++
		}
	}
	rmssd := math.Sqrt(stat.Mean(sq, nil))
	sdsd := stat.StdDev(diffs, nil)
	pnn50 := 100 * float64(over50) / float64(len(diffs))
	cvRR := sdnn / meanRR

	lf, hf, total, ratio := welchBands(rrF, e.cfg.InterpolationMethod)

	sd1, sd2, sdRatio := poincare(rrF)

	return model.HRVFeatures{
		MeanRR: meanRR,
		MeanHR: meanHR,
		SDNN:   sdnn,
		RMSSD:  rmssd,
		SDSD:   sdsd,
		PNN50:  pnn50,
		CVRR:   cvRR,

		LFPower:    lf,
		HFPower:    hf,
		TotalPower: total,
		LFHFRatio:  ratio,

		SD1:     sd1,
		SD2:     sd2,
		SDRatio: sdRatio,

		QualityRatio: cleaned.QualityRatio,
		SampleCount:  len(rr),
	}
}

// poincare computes the short/long axis dispersion of the Poincare
// scatter of consecutive RR intervals.
func poincare(rr []float64) (sd1, sd2, sdRatio float64) {
	n := len(rr) - 1
	diff := make([]float64, n)
	sum := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = rr[i+1] - rr[i]
		sum[i] = rr[i+1] + rr[i]
	}
	sd1 = stat.StdDev(diff, nil) / math.Sqrt2
	sd2 = stat.StdDev(sum, nil) / math.Sqrt2
	if sd2 != 0 {
		sdRatio = sd1 / sd2
	}
	return
}

func toFloat64(rr []int) []float64 {
	out := make([]float64, len(rr))
	for i, v := range rr {
		out[i] = float64(v)
	}
	return out
}
