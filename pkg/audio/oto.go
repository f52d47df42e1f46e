package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	// Global Oto context singleton. Oto allows one context per process.
	globalOtoMutex sync.Mutex
	globalContext  *oto.Context
	globalRate     int
	globalChannels int
)

// OtoOutput plays through Oto v3, which pulls samples on its own goroutine.
type OtoOutput struct {
	player     *oto.Player
	bufferSize int // frames
	mu         sync.Mutex
}

// NewOtoOutput creates an Oto output with a device buffer of bufferSize frames.
func NewOtoOutput(bufferSize int) *OtoOutput {
	return &OtoOutput{bufferSize: bufferSize}
}

func otoContext(sampleRate, channels, bufferSize int) (*oto.Context, error) {
	globalOtoMutex.Lock()
	defer globalOtoMutex.Unlock()

	if globalContext != nil {
		if globalRate != sampleRate || globalChannels != channels {
			return nil, fmt.Errorf("oto context already running at %d Hz, %d channels", globalRate, globalChannels)
		}
		return globalContext, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(bufferSize) * time.Second / time.Duration(sampleRate),
	}
	context, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	globalContext = context
	globalRate = sampleRate
	globalChannels = channels
	return context, nil
}

// Open starts playing src.
func (o *OtoOutput) Open(sampleRate, channels int, src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("stream already open")
	}

	context, err := otoContext(sampleRate, channels, o.bufferSize)
	if err != nil {
		return err
	}
	o.player = context.NewPlayer(src)
	o.player.Play()
	return nil
}

// Close stops playback. The shared context is kept alive for reuse.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}

// IsPlaying reports whether Oto is still pulling from the source.
func (o *OtoOutput) IsPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.player != nil && o.player.IsPlaying()
}

// FallbackOutput pulls from the source at real-time pace without making
// any sound. Used where no audio device is available.
type FallbackOutput struct {
	bufferSize int
	stop       chan struct{}
	done       chan struct{}
	mu         sync.Mutex
}

func NewFallbackOutput(bufferSize int) *FallbackOutput {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &FallbackOutput{bufferSize: bufferSize}
}

func (f *FallbackOutput) Open(sampleRate, channels int, src io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stop != nil {
		return fmt.Errorf("stream already open")
	}
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go f.run(sampleRate, channels, src, f.stop, f.done)
	return nil
}

func (f *FallbackOutput) run(sampleRate, channels int, src io.Reader, stop, done chan struct{}) {
	defer close(done)

	buf := make([]byte, f.bufferSize*channels*2)
	period := time.Duration(f.bufferSize) * time.Second / time.Duration(sampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if _, err := io.ReadFull(src, buf); err != nil {
			return
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (f *FallbackOutput) Close() error {
	f.mu.Lock()
	stop, done := f.stop, f.done
	f.stop, f.done = nil, nil
	f.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (f *FallbackOutput) IsPlaying() bool {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

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
