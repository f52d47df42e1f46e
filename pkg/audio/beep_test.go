package audio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReaderStreamer(t *testing.T) {
	raw := []byte{
		0x00, 0x40, 0x00, 0xC0, // 0.5, -0.5
		0xFF, 0x7F, 0x00, 0x80, // max, min
		0x01, // partial frame
	}
	s := &readerStreamer{r: bytes.NewReader(raw), channels: 2}

	samples := make([][2]float64, 4)
	n, ok := s.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, [2]float64{0.5, -0.5}, samples[0])
	assert.Equal(t, [2]float64{32767.0 / 32768, -1}, samples[1])

	n, ok = s.Stream(samples)
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.NoError(t, s.Err())
}

func TestReaderStreamerMono(t *testing.T) {
	s := &readerStreamer{r: bytes.NewReader([]byte{0x00, 0x40}), channels: 1}
	samples := make([][2]float64, 1)
	n, ok := s.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, [2]float64{0.5, 0.5}, samples[0])
}

func TestBeepOutputClosed(t *testing.T) {
	b := NewBeepOutput(1024)
	assert.False(t, b.IsPlaying())
	assert.True(t, b.Wait(0))
	assert.NoError(t, b.Close())
}
