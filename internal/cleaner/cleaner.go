// Package cleaner rejects physiologically impossible or ectopic PPI
// intervals and interpolates the gaps they leave behind.
package cleaner

import (
	"math"

	"github.com/sirupsen/logrus"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/logging"
	"vitalwave.dev/core/internal/model"
)

// Cleaner applies the range filter, successive-difference filter and
// gap-fill interpolation to a WindowData snapshot.
type Cleaner struct {
	cfg config.SignalConfig
	log *logrus.Entry
}

func New(cfg config.SignalConfig) *Cleaner {
	return &Cleaner{cfg: cfg, log: logging.For("cleaner")}
}

// Clean runs the full pipeline: range filter, successive-difference
// pair-invalidation, quality ratio, then gap-fill interpolation. It never
// mutates w.Intervals.
func (c *Cleaner) Clean(w model.WindowData) model.CleanedPPI {
	n := len(w.Intervals)
	if n == 0 {
		return model.CleanedPPI{Intervals: []int{}, Mask: []bool{}, QualityRatio: 0}
	}

	intervals := append([]int(nil), w.Intervals...)
	mask := make([]bool, n)
	for i, v := range intervals {
		mask[i] = v >= c.cfg.MinPPIMs && v <= c.cfg.MaxPPIMs
	}

	for i := 0; i < n-1; i++ {
		if intervals[i] == 0 {
			continue
		}
		diff := math.Abs(float64(intervals[i+1]-intervals[i])) / float64(intervals[i])
		if diff > c.cfg.MaxPPIDiffRatio {
			mask[i] = false
			mask[i+1] = false
		}
	}

	valid := 0
	for _, m := range mask {
		if m {
			valid++
		}
	}
	qualityRatio := float64(valid) / float64(n)
	if qualityRatio < c.cfg.MinQualityRatio {
		c.log.WithField("quality_ratio", qualityRatio).Warn("low quality window")
	}

	out := interpolate(intervals, mask)

	return model.CleanedPPI{
		Intervals:    out,
		Mask:         mask,
		QualityRatio: qualityRatio,
		ValidCount:   valid,
		TotalCount:   n,
	}
}

// interpolate replaces invalid indices by linear interpolation over the
// index axis against the valid subset. The gap-fill is always linear; the
// configured interpolation method is not consulted here. With fewer than
// two valid points, the original array is returned unchanged.
func interpolate(intervals []int, mask []bool) []int {
	n := len(intervals)
	allValid := true
	var validIdx []int
	for i, m := range mask {
		if m {
			validIdx = append(validIdx, i)
		} else {
			allValid = false
		}
	}
	if allValid || len(validIdx) < 2 {
		return append([]int(nil), intervals...)
	}

	out := append([]int(nil), intervals...)
	for _, i := range missingRuns(mask) {
		lo, hi := i[0], i[1]
		var left, right int = -1, -1
		for _, v := range validIdx {
			if v < lo {
				left = v
			}
			if v >= hi && right == -1 {
				right = v
			}
		}
		switch {
		case left == -1:
			for k := lo; k < hi; k++ {
				out[k] = intervals[right]
			}
		case right == -1:
			for k := lo; k < hi; k++ {
				out[k] = intervals[left]
			}
		default:
			span := float64(right - left)
			delta := float64(intervals[right] - intervals[left])
			for k := lo; k < hi; k++ {
				frac := float64(k-left) / span
				out[k] = int(math.Round(float64(intervals[left]) + frac*delta))
			}
		}
	}
	return out
}

// missingRuns returns the [start,end) index ranges of consecutive
// mask=false entries.
func missingRuns(mask []bool) [][2]int {
	var runs [][2]int
	i := 0
	for i < len(mask) {
		if mask[i] {
			i++
			continue
		}
		start := i
		for i < len(mask) && !mask[i] {
			i++
		}
		runs = append(runs, [2]int{start, i})
	}
	return runs
}
