package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePPIFrame(t *testing.T) {
	now := time.Now()
	b := encodeFakePPI(now, 72, 833, 6, true)
	s, ok := decodePPIFrame(b, now)
	require.True(t, ok)
	require.Len(t, s.PPI, 1)
	assert.Equal(t, 833, s.PPI[0])
	assert.Equal(t, 6, s.ErrorEstimateMS[0])
	assert.True(t, s.SkinContact[0])
}

func TestDecodePPIFrame_wrongMeasurementType(t *testing.T) {
	b := encodeFakePPI(time.Now(), 72, 833, 6, true)
	b[0] = 0x01
	_, ok := decodePPIFrame(b, time.Now())
	assert.False(t, ok)
}

func TestDecodePPIFrame_tooShort(t *testing.T) {
	_, ok := decodePPIFrame([]byte{0x03, 0x00}, time.Now())
	assert.False(t, ok)
}

func TestDecodeHRFrame_8bit(t *testing.T) {
	s, ok := decodeHRFrame([]byte{0x00, 72}, time.Now())
	require.True(t, ok)
	assert.Equal(t, 72, s.HR)
}

func TestDecodeHRFrame_16bit(t *testing.T) {
	s, ok := decodeHRFrame(encodeFakeHR(300), time.Now())
	require.True(t, ok)
	assert.Equal(t, 300, s.HR)
}

func TestDecodeHRFrame_tooShort(t *testing.T) {
	_, ok := decodeHRFrame([]byte{0x01, 0x2C}, time.Now())
	assert.False(t, ok)
}

func TestDecodeCommandResponse(t *testing.T) {
	resp, err := decodeCommandResponse([]byte{responsePrefix, opStart, measurementPPI, 0})
	require.NoError(t, err)
	assert.Equal(t, byte(0), resp.status)
}

func TestDecodeCommandResponse_badPrefix(t *testing.T) {
	_, err := decodeCommandResponse([]byte{0x00, opStart, measurementPPI, 0})
	assert.Error(t, err)
}

func TestQualityWindow(t *testing.T) {
	q := newQualityWindow(4)
	assert.Equal(t, 0.0, q.mean())
	q.add(true)
	q.add(true)
	q.add(false)
	q.add(false)
	assert.Equal(t, 0.5, q.mean())
	// rolls over: evicts the oldest true
	q.add(true)
	assert.Equal(t, 0.5, q.mean())
}
