package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/model"
)

func testConfig() config.SignalConfig {
	return config.Default().Signal
}

func TestClean_Empty(t *testing.T) {
	c := New(testConfig())
	out := c.Clean(model.WindowData{})
	assert.Equal(t, 0.0, out.QualityRatio)
	assert.Empty(t, out.Intervals)
}

func TestClean_AllValid_Idempotent(t *testing.T) {
	c := New(testConfig())
	in := model.WindowData{Intervals: []int{800, 805, 795, 810, 790}}
	out := c.Clean(in)
	require.Equal(t, 1.0, out.QualityRatio)
	for _, m := range out.Mask {
		assert.True(t, m)
	}
	assert.Equal(t, in.Intervals, out.Intervals)

	// idempotence: cleaning the cleaned output again yields the same mask
	out2 := c.Clean(model.WindowData{Intervals: out.Intervals})
	assert.Equal(t, out.Mask, out2.Mask)
	assert.Equal(t, 1.0, out2.QualityRatio)
}

func TestClean_EctopicBeat(t *testing.T) {
	c := New(testConfig())
	in := model.WindowData{Intervals: []int{800, 800, 400, 800, 800}}
	out := c.Clean(in)
	assert.Equal(t, []bool{true, false, false, false, true}, out.Mask)
	assert.Equal(t, 0.40, out.QualityRatio)
	// gap-filled by linear interpolation between the two valid neighbours
	assert.Equal(t, 800, out.Intervals[1])
	assert.Equal(t, 800, out.Intervals[2])
	assert.Equal(t, 800, out.Intervals[3])
}

func TestClean_OutOfRange(t *testing.T) {
	c := New(testConfig())
	in := model.WindowData{Intervals: []int{250, 800, 2500, 800}}
	out := c.Clean(in)
	assert.False(t, out.Mask[0])
	assert.False(t, out.Mask[2])
	assert.LessOrEqual(t, out.QualityRatio, 0.50)
}

func TestClean_SingleSample(t *testing.T) {
	c := New(testConfig())
	out := c.Clean(model.WindowData{Intervals: []int{800}})
	assert.Equal(t, []bool{true}, out.Mask)
	assert.Equal(t, 1.0, out.QualityRatio)
}

func TestClean_FewerThanTwoValid_ReturnsUnchanged(t *testing.T) {
	c := New(testConfig())
	in := model.WindowData{Intervals: []int{100, 800, 100}}
	out := c.Clean(in)
	assert.Equal(t, in.Intervals, out.Intervals)
}

func TestInterpolate_LeadingGap(t *testing.T) {
	mask := []bool{false, false, true, true}
	intervals := []int{0, 0, 800, 820}
	out := interpolate(intervals, mask)
	assert.Equal(t, 800, out[0])
	assert.Equal(t, 800, out[1])
}

func TestInterpolate_TrailingGap(t *testing.T) {
	mask := []bool{true, true, false, false}
	intervals := []int{800, 820, 0, 0}
	out := interpolate(intervals, mask)
	assert.Equal(t, 820, out[2])
	assert.Equal(t, 820, out[3])
}
