package inference

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"vitalwave.dev/core/internal/model"
)

// fatigueRingSize is the maximum number of (timestamp, fatigue) points
// retained for the trend fit.
const fatigueRingSize = 120

// minTrendPoints is the minimum ring size below which compute returns a
// zero trend.
const minTrendPoints = 6

type fatiguePoint struct {
	at      time.Time
	fatigue float64
}

// fatigueTrend maintains the most recent fatigueRingSize (timestamp,
// fatigue) points and fits a degree-1 least-squares trend line through
// them via gonum.org/v1/gonum/stat.
type fatigueTrend struct {
	points []fatiguePoint
}

func newFatigueTrend() *fatigueTrend {
	return &fatigueTrend{points: make([]fatiguePoint, 0, fatigueRingSize)}
}

func (t *fatigueTrend) add(at time.Time, fatigue float64) {
	t.points = append(t.points, fatiguePoint{at: at, fatigue: fatigue})
	if len(t.points) > fatigueRingSize {
		t.points = t.points[len(t.points)-fatigueRingSize:]
	}
}

// compute fits the trend line and projects fatigue horizonMin minutes
// ahead of currentFatigue.
func (t *fatigueTrend) compute(currentFatigue, horizonMin float64) model.FatigueTrend {
	if len(t.points) < minTrendPoints {
		return model.FatigueTrend{}
	}

	first := t.points[0].at
	xs := make([]float64, len(t.points))
	ys := make([]float64, len(t.points))
	for i, p := range t.points {
		xs[i] = p.at.Sub(first).Minutes()
		ys[i] = p.fatigue
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	rSquared := stat.RSquared(xs, ys, nil, alpha, beta)
	if rSquared != rSquared { // NaN when total variance is 0
		rSquared = 0
	}

	spanMin := xs[len(xs)-1] - xs[0]
	confidence := model.Clamp(rSquared*minFloat(spanMin/5, 1), 0, 1)

	predicted := model.Clamp(currentFatigue+beta*horizonMin, 0, 100)

	return model.FatigueTrend{
		SlopePerMin:               beta,
		PredictedFatigueAtHorizon: predicted,
		Confidence:                confidence,
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
