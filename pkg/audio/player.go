package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gopxl/beep/v2"

	"github.com/slade-tools/oplplay/pkg/opl"
	"github.com/slade-tools/oplplay/pkg/oplmusic"
)

// ErrNotOpen is returned when playback is requested with no score loaded.
var ErrNotOpen = errors.New("audio: no score loaded")

// State is the playback state of a Player.
type State int

const (
	Stopped State = iota
	Opened
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Opened:
		return "opened"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Player streams one score to an Output.
//
// Read and Streamer are the pull callbacks used by outputs. Control
// methods may be called from any goroutine.
type Player struct {
	cfg    oplmusic.Config
	rates  oplmusic.RateTable
	output Output

	music *oplmusic.MusicFile
	data  []byte
	info  oplmusic.Info
	state State
	gain  float32
	loop  bool
	ended bool

	outputOpen bool
	done       chan struct{}
	fbuf       []float32

	mu sync.Mutex
}

// NewPlayer creates a stopped player. output may be nil when the caller
// pulls samples itself through Read or Streamer.
func NewPlayer(cfg oplmusic.Config, rates oplmusic.RateTable, output Output) *Player {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = opl.SampleRate
	}
	return &Player{
		cfg:    cfg,
		rates:  rates,
		output: output,
		gain:   1,
		done:   closedChan(),
	}
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// SampleRate is the rate samples are produced at.
func (p *Player) SampleRate() int { return p.cfg.SampleRate }

// Open replaces the current score with data. On failure the player is
// left stopped with nothing loaded.
func (p *Player) Open(data []byte) error {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.music != nil {
		p.music.Close()
		p.music = nil
		p.data = nil
	}

	m, err := oplmusic.Open(data, p.cfg)
	if err != nil {
		p.state = Stopped
		return fmt.Errorf("failed to open score: %w", err)
	}
	p.music = m
	p.data = data
	p.loadInfo()
	p.music.SetLoop(p.loop)
	p.music.Restart()
	p.state = Opened
	return nil
}

// loadInfo reads the IMF metadata and applies its tick rate.
func (p *Player) loadInfo() {
	if p.music.Format() != oplmusic.IMF {
		p.info = oplmusic.Info{}
		return
	}
	p.info = oplmusic.ReadIMFInfo(p.data, p.cfg.ImfRate, p.rates)
	p.music.SetImfRate(p.info.Rate)
}

// Play starts or resumes playback. Starting from a stop rewinds the
// score and reloads its metadata.
func (p *Player) Play() error {
	p.mu.Lock()
	if p.music == nil {
		p.mu.Unlock()
		return ErrNotOpen
	}
	switch p.state {
	case Playing:
		p.mu.Unlock()
		return nil
	case Paused:
		p.state = Playing
		p.mu.Unlock()
		return nil
	}

	p.loadInfo()
	p.music.Restart()
	p.ended = false
	p.done = make(chan struct{})
	p.state = Playing

	// An output that drained the previous run has seen io.EOF.
	reopen := p.outputOpen
	openOutput := p.output != nil
	p.outputOpen = openOutput
	p.mu.Unlock()

	// Outputs may pull synchronously, so they are driven unlocked.
	if reopen {
		p.output.Close()
	}
	if openOutput {
		if err := p.output.Open(p.cfg.SampleRate, 2, p); err != nil {
			p.mu.Lock()
			p.outputOpen = false
			p.state = Opened
			p.finish()
			p.mu.Unlock()
			return fmt.Errorf("failed to open audio output: %w", err)
		}
	}
	return nil
}

// Pause holds playback without rewinding.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Playing {
		p.state = Paused
	}
}

// Stop halts playback and rewinds to the start of the score.
func (p *Player) Stop() {
	p.mu.Lock()
	closeOutput := p.outputOpen
	p.outputOpen = false
	if p.music != nil {
		p.music.Restart()
	}
	p.state = Stopped
	p.finish()
	p.mu.Unlock()

	if closeOutput {
		p.output.Close()
	}
}

// Close stops playback and releases the score.
func (p *Player) Close() error {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.music == nil {
		return nil
	}
	err := p.music.Close()
	p.music = nil
	p.data = nil
	return err
}

// finish marks the current run as over. Called with p.mu held.
func (p *Player) finish() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// endRun tells the puller the stream is over. A score that played out
// leaves the player stopped, so Play starts it again from the top.
// Called with p.mu held.
func (p *Player) endRun() {
	if p.ended {
		p.state = Stopped
	}
	p.finish()
}

// Done is closed when the current run ends or is stopped.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) IsPlaying() bool {
	return p.State() == Playing
}

// Position is the byte offset of the score cursor.
func (p *Player) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.music == nil {
		return 0
	}
	return p.music.Position()
}

// SetPosition always fails; OPL scores cannot be entered mid-stream.
func (p *Player) SetPosition(pos int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.music == nil {
		return false
	}
	return p.music.SetPosition(pos)
}

// Length is the decodable length of the score in bytes.
func (p *Player) Length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.music == nil {
		return 0
	}
	return p.music.Length()
}

// SetVolume scales the output, 0..100.
func (p *Player) SetVolume(volume int) {
	volume = max(0, min(100, volume))
	p.mu.Lock()
	p.gain = float32(volume) / 100
	p.mu.Unlock()
}

func (p *Player) SetLoop(loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = loop
	if p.music != nil {
		p.music.SetLoop(loop)
	}
}

// Info returns the metadata of the loaded IMF score.
func (p *Player) Info() oplmusic.Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

// Format reports the loaded score format.
func (p *Player) Format() (oplmusic.Format, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.music == nil {
		return 0, false
	}
	return p.music.Format(), true
}

// ServiceStream fills buf with interleaved stereo samples scaled by the
// volume. Paused players produce silence. It returns false once the
// score has ended.
func (p *Player) ServiceStream(buf []float32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.service(buf)
}

func (p *Player) service(buf []float32) bool {
	if p.music == nil || p.ended || p.state == Stopped {
		clear(buf)
		return false
	}
	if p.state != Playing {
		clear(buf)
		return true
	}
	if !p.music.ServiceStream(buf) {
		p.ended = true
	}
	if p.gain != 1 {
		for i := range buf {
			buf[i] *= p.gain
		}
	}
	return !p.ended
}

func (p *Player) scratch(n int) []float32 {
	if cap(p.fbuf) < n {
		p.fbuf = make([]float32, n)
	}
	return p.fbuf[:n]
}

// Read implements io.Reader with signed 16-bit little-endian stereo
// frames. The buffer that reaches the end of the score is still
// delivered; the read after it returns io.EOF.
func (p *Player) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended || p.music == nil || p.state == Stopped {
		p.endRun()
		return 0, io.EOF
	}

	frames := len(b) / 4
	if frames == 0 {
		return 0, nil
	}
	f := p.scratch(frames * 2)
	p.service(f)
	for i, v := range f {
		s := uint16(floatToS16(v))
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return frames * 4, nil
}

func floatToS16(v float32) int16 {
	s := v * 32767
	if s > 32767 {
		return 32767
	} else if s < -32768 {
		return -32768
	}
	return int16(s)
}

// Streamer returns a beep.Streamer over the same stream as Read.
func (p *Player) Streamer() beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.ended || p.music == nil || p.state == Stopped {
			p.endRun()
			return 0, false
		}
		f := p.scratch(len(samples) * 2)
		p.service(f)
		for i := range samples {
			samples[i] = [2]float64{float64(f[i*2]), float64(f[i*2+1])}
		}
		return len(samples), true
	})
}
