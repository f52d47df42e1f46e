package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

var (
	speakerMutex sync.Mutex
	speakerRate  beep.SampleRate
)

// StreamerSource is implemented by sources that can feed beep directly
// instead of through encoded bytes.
type StreamerSource interface {
	Streamer() beep.Streamer
}

// BeepOutput plays through the beep speaker.
type BeepOutput struct {
	bufferSize int // frames
	ctrl       *beep.Ctrl
	done       chan struct{}
	mu         sync.Mutex
}

func NewBeepOutput(bufferSize int) *BeepOutput {
	return &BeepOutput{bufferSize: bufferSize}
}

func initSpeaker(rate beep.SampleRate, bufferSize int) error {
	speakerMutex.Lock()
	defer speakerMutex.Unlock()

	if speakerRate != 0 {
		if speakerRate != rate {
			return fmt.Errorf("speaker already running at %d Hz", speakerRate)
		}
		return nil
	}
	if err := speaker.Init(rate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	speakerRate = rate
	return nil
}

// Open starts playing src. Sources implementing StreamerSource are
// played without the int16 round trip.
func (b *BeepOutput) Open(sampleRate, channels int, src io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctrl != nil {
		return fmt.Errorf("stream already open")
	}
	rate := beep.SampleRate(sampleRate)
	if err := initSpeaker(rate, b.bufferSize); err != nil {
		return err
	}

	var s beep.Streamer
	if ss, ok := src.(StreamerSource); ok {
		s = ss.Streamer()
	} else {
		s = &readerStreamer{r: src, channels: channels}
	}

	done := make(chan struct{})
	b.done = done
	b.ctrl = &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(func() { close(done) }))}
	speaker.Play(b.ctrl)
	return nil
}

func (b *BeepOutput) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctrl == nil {
		return nil
	}
	speaker.Lock()
	b.ctrl.Streamer = nil
	speaker.Unlock()
	b.ctrl = nil
	b.done = nil
	return nil
}

// Wait blocks until the stream ends or timeout passes. It reports
// whether the stream ended.
func (b *BeepOutput) Wait(timeout time.Duration) bool {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (b *BeepOutput) IsPlaying() bool {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// readerStreamer decodes signed 16-bit little-endian frames.
type readerStreamer struct {
	r        io.Reader
	channels int
	buf      []byte
	err      error
}

func (s *readerStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}
	frame := s.channels * 2
	if need := len(samples) * frame; cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:len(samples)*frame]

	n, err := io.ReadFull(s.r, buf)
	frames := n / frame
	for i := 0; i < frames; i++ {
		p := buf[i*frame:]
		l := float64(int16(uint16(p[0])|uint16(p[1])<<8)) / 32768
		r := l
		if s.channels > 1 {
			r = float64(int16(uint16(p[2])|uint16(p[3])<<8)) / 32768
		}
		samples[i] = [2]float64{l, r}
	}
	if err != nil {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			s.err = err
		} else {
			s.err = io.EOF
		}
		return frames, frames > 0
	}
	return frames, true
}

func (s *readerStreamer) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
