package audio

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slade-tools/oplplay/pkg/opl"
	"github.com/slade-tools/oplplay/pkg/oplmusic"
)

// levelChip renders a fixed level on both sides.
type levelChip struct{ level float32 }

func (c *levelChip) WriteReg(int, byte)               {}
func (c *levelChip) SetPanning(int, float32, float32) {}
func (c *levelChip) Reset()                           {}
func (c *levelChip) OPL3() bool                       { return false }
func (c *levelChip) Update(buf []float32) {
	for i := range buf {
		buf[i] += c.level
	}
}

func testConfig() oplmusic.Config {
	return oplmusic.Config{
		Chips:      1,
		SampleRate: opl.SampleRate,
		ChipFactory: func(int) (opl.Chip, error) {
			return &levelChip{level: 0.5}, nil
		},
	}
}

// rdosSong is ten ticks of 100 samples each, then the end.
func rdosSong() []byte {
	data := []byte("RAWADATA")
	data = binary.LittleEndian.AppendUint16(data, 100*opl.ClockMul)
	return append(data, 10, 0)
}

const (
	songFrames = 1000
	fullLevel  = 16383 // 0.5 as signed 16 bit
)

func newTestPlayer(t *testing.T) (*Player, *BufferOutput) {
	t.Helper()
	out := NewBufferOutput()
	p := NewPlayer(testConfig(), nil, out)
	require.NoError(t, p.Open(rdosSong()))
	t.Cleanup(func() { p.Close() })
	return p, out
}

func allEqual(t *testing.T, want int16, got []int16) {
	t.Helper()
	for i, v := range got {
		if v != want {
			assert.Failf(t, "unexpected sample", "sample %d = %d, want %d", i, v, want)
			return
		}
	}
}

func TestPlayerStates(t *testing.T) {
	p, out := newTestPlayer(t)
	assert.Equal(t, Opened, p.State())
	assert.Equal(t, "opened", p.State().String())

	require.NoError(t, p.Play())
	assert.True(t, p.IsPlaying())
	assert.True(t, out.IsPlaying())

	n, err := out.Pull(100)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	allEqual(t, fullLevel, out.GetBuffer())

	p.Pause()
	assert.Equal(t, Paused, p.State())
	out.Clear()
	_, err = out.Pull(100)
	require.NoError(t, err)
	allEqual(t, 0, out.GetBuffer())

	require.NoError(t, p.Play())
	assert.Equal(t, Playing, p.State())
	out.Clear()
	_, err = out.Pull(100)
	require.NoError(t, err)
	allEqual(t, fullLevel, out.GetBuffer())

	p.Stop()
	assert.Equal(t, Stopped, p.State())
	assert.False(t, out.IsPlaying())
	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestPlayerRunsToEnd(t *testing.T) {
	p, out := newTestPlayer(t)
	require.NoError(t, p.Play())
	done := p.Done()

	n, err := out.Pull(songFrames + 100)
	require.NoError(t, err)
	assert.Equal(t, songFrames+100, n)

	n, err = out.Pull(10)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
	assert.False(t, out.IsPlaying())

	assert.Equal(t, Stopped, p.State())
	select {
	case <-done:
	default:
		t.Fatal("Done not closed at the end of the score")
	}

	// playing again rewinds and reopens the output
	require.NoError(t, p.Play())
	assert.True(t, out.IsPlaying())
	out.Clear()
	n, err = out.Pull(10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestPlayerLoop(t *testing.T) {
	p, out := newTestPlayer(t)
	p.SetLoop(true)
	require.NoError(t, p.Play())

	n, err := out.Pull(3 * songFrames)
	require.NoError(t, err)
	assert.Equal(t, 3*songFrames, n)
	assert.True(t, p.IsPlaying())
}

func TestPlayerVolume(t *testing.T) {
	p, out := newTestPlayer(t)
	p.SetVolume(50)
	require.NoError(t, p.Play())
	_, err := out.Pull(10)
	require.NoError(t, err)
	allEqual(t, 8191, out.GetBuffer())

	p.SetVolume(-5)
	out.Clear()
	_, err = out.Pull(10)
	require.NoError(t, err)
	allEqual(t, 0, out.GetBuffer())
}

func TestPlayerOpenFailure(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Play())

	err := p.Open([]byte("junk"))
	assert.ErrorIs(t, err, oplmusic.ErrFormat)
	assert.Equal(t, Stopped, p.State())
	assert.ErrorIs(t, p.Play(), ErrNotOpen)
	assert.Zero(t, p.Length())

	_, ok := p.Format()
	assert.False(t, ok)
}

func TestPlayerPosition(t *testing.T) {
	p, _ := newTestPlayer(t)
	f, ok := p.Format()
	require.True(t, ok)
	assert.Equal(t, oplmusic.RDosPlay, f)
	assert.Equal(t, len(rdosSong()), p.Length())
	assert.Equal(t, 10, p.Position())
	assert.False(t, p.SetPosition(0))
}

func TestPlayerStreamer(t *testing.T) {
	p := NewPlayer(testConfig(), nil, nil)
	require.NoError(t, p.Open(rdosSong()))
	s := p.Streamer()

	samples := make([][2]float64, 64)
	n, ok := s.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 64, n)
	assert.Zero(t, samples[0][0], "opened player streams silence")

	require.NoError(t, p.Play())
	n, ok = s.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 64, n)
	assert.InDelta(t, 0.5, samples[0][0], 1e-6)
	assert.InDelta(t, 0.5, samples[63][1], 1e-6)
	assert.NoError(t, s.Err())
}

func TestPlayerReadStopped(t *testing.T) {
	p := NewPlayer(testConfig(), nil, nil)
	n, err := p.Read(make([]byte, 16))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPlayerIMFInfo(t *testing.T) {
	data := []byte("ADLIB\x01Song\x00Game\x00\x00")
	data = binary.LittleEndian.AppendUint32(data, 0)
	data = append(data, 0, 0, 0, 0, 0, 0, 0, 0)

	rates := oplmusic.RateTable{crc32.ChecksumIEEE(data): 280}
	p := NewPlayer(testConfig(), rates, nil)
	require.NoError(t, p.Open(data))

	info := p.Info()
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, "Game", info.Game)
	assert.Equal(t, 280, info.Rate)
}
