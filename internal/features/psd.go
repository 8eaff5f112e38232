package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/interp"

	"vitalwave.dev/core/internal/logging"
)

const (
	resampleHz    = 4.0
	minDurationSec = 10.0
	lfLow, lfHigh = 0.04, 0.15
	hfLow, hfHigh = 0.15, 0.40
	maxSegmentLen = 256
)

// welchBands runs the frequency-domain block of feature extraction: build
// a cumulative-time axis from the RR series, resample it to a uniform 4 Hz
// grid, mean-centre, then estimate the power spectral density with Welch's
// method (50% overlap, Hann window) and integrate LF/HF band power.
// Any failure here is contained: it is logged and zeros are returned, per
// the PSDFailed policy -- the caller never sees a panic or error.
func welchBands(rrMS []float64, interpolationMethod string) (lf, hf, total, ratio float64) {
	defer func() {
		if r := recover(); r != nil {
			logging.For("features").WithField("panic", r).Warn("PSD computation failed")
			lf, hf, total, ratio = 0, 0, 0, 0
		}
	}()

	t := make([]float64, len(rrMS))
	cum := 0.0
	for i, rr := range rrMS {
		t[i] = cum
		cum += rr / 1000
	}
	duration := cum
	if duration < minDurationSec {
		return 0, 0, 0, 0
	}

	resampled, err := resample(t, rrMS, resampleHz)
	if err != nil {
		logging.For("features").WithError(err).Warn("PSD resample failed")
		return 0, 0, 0, 0
	}
	if len(resampled) < 4 {
		return 0, 0, 0, 0
	}

	mean := 0.0
	for _, v := range resampled {
		mean += v
	}
	mean /= float64(len(resampled))
	centred := make([]float64, len(resampled))
	for i, v := range resampled {
		centred[i] = v - mean
	}

	freqs, psd := welchPSD(centred, resampleHz)

	lf = integrateBand(freqs, psd, lfLow, lfHigh)
	hf = integrateBand(freqs, psd, hfLow, hfHigh)
	total = lf + hf
	if hf > 0 {
		ratio = lf / hf
	}
	return lf, hf, total, ratio
}

// resample fits a cubic spline over (t, y) and evaluates it on a uniform
// grid at the given sample rate. This step is always cubic whatever the
// configured interpolation_method says; the cleaner's gap-fill is always
// linear -- see the Open Question resolution on interpolation methods.
func resample(t, y []float64, hz float64) ([]float64, error) {
	var pc interp.NaturalCubic
	if err := pc.Fit(t, y); err != nil {
		return nil, err
	}
	n := int(t[len(t)-1] * hz)
	out := make([]float64, 0, n)
	step := 1.0 / hz
	for x := 0.0; x <= t[len(t)-1]; x += step {
		out = append(out, pc.Predict(x))
	}
	return out, nil
}

// welchPSD estimates the one-sided power spectral density with segment
// length min(256, N) and 50% overlap, Hann-windowed.
func welchPSD(x []float64, hz float64) (freqs, psd []float64) {
	n := len(x)
	segLen := n
	if segLen > maxSegmentLen {
		segLen = maxSegmentLen
	}
	if segLen < 2 {
		return nil, nil
	}
	step := segLen / 2
	if step < 1 {
		step = 1
	}

	win := window.Hann(make([]float64, segLen))
	fft := fourier.NewFFT(segLen)
	nFreq := fft.Len()
	acc := make([]float64, nFreq)
	segments := 0

	winPower := 0.0
	for _, w := range win {
		winPower += w * w
	}

	for start := 0; start+segLen <= n; start += step {
		seg := make([]float64, segLen)
		for i := 0; i < segLen; i++ {
			seg[i] = x[start+i] * win[i]
		}
		coeffs := fft.Coefficients(nil, seg)
		for i, c := range coeffs {
			mag := real(c)*real(c) + imag(c)*imag(c)
			acc[i] += mag
		}
		segments++
	}
	if segments == 0 {
		seg := make([]float64, segLen)
		copy(seg, x[:segLen])
		for i := range seg {
			seg[i] *= win[i]
		}
		coeffs := fft.Coefficients(nil, seg)
		for i, c := range coeffs {
			acc[i] = real(c)*real(c) + imag(c)*imag(c)
		}
		segments = 1
	}

	freqs = make([]float64, nFreq)
	psd = make([]float64, nFreq)
	scale := 1.0 / (hz * winPower * float64(segments))
	for i := range acc {
		freqs[i] = float64(i) * hz / float64(segLen)
		psd[i] = acc[i] * scale
	}
	return freqs, psd
}

// integrateBand trapezoidally integrates psd over [lo, hi) against freqs.
func integrateBand(freqs, psd []float64, lo, hi float64) float64 {
	total := 0.0
	for i := 0; i+1 < len(freqs); i++ {
		f0, f1 := freqs[i], freqs[i+1]
		if f1 < lo || f0 >= hi {
			continue
		}
		total += 0.5 * (psd[i] + psd[i+1]) * (f1 - f0)
	}
	return math.Max(total, 0)
}
