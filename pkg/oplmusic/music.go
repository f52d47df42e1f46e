package oplmusic

import (
	"fmt"

	"github.com/slade-tools/oplplay/pkg/opl"
)

// Config controls how a score is opened.
type Config struct {
	Chips       int // emulated chips, 1..opl.MaxChips; 0 means 2
	SampleRate  int // output rate; 0 means opl.SampleRate
	ImfRate     int // IMF tick rate; 0 means DefaultImfRate
	Bank        *opl.Bank
	SingleVoice bool // never allocate a second voice for double-voice instruments
	AssumeIMF   bool // treat unsigned data as headerless IMF

	// Backend receives register writes. nil creates live chips from
	// ChipFactory (nil selects the woody core).
	Backend     opl.Backend
	ChipFactory opl.ChipFactory
}

func (c *Config) defaults() {
	if c.Chips <= 0 {
		c.Chips = 2
	} else if c.Chips > opl.MaxChips {
		c.Chips = opl.MaxChips
	}
	if c.SampleRate <= 0 {
		c.SampleRate = opl.SampleRate
	}
	if c.ImfRate <= 0 {
		c.ImfRate = DefaultImfRate
	}
}

// MusicFile decodes one raw OPL score into register writes and renders
// it through its backend.
type MusicFile struct {
	io    *opl.IO
	synth opl.Synth

	score []byte
	hdr   header
	pos   int

	mlTime         uint32
	nextTickIn     float64
	tickPeriod     float64 // native OPL samples per tick
	samplesPerTick float64 // output samples per tick
	rateScale      float64
	imfRate        int
	whichChip      int
	octave         byte
	loop           bool

	dc     dcOffset
	driver *Driver
	fbuf   []float32
}

// Open parses data and allocates the chips for it. The returned file is
// positioned at the start of the score. data is copied.
func Open(data []byte, cfg Config) (*MusicFile, error) {
	cfg.defaults()

	score := make([]byte, len(data))
	copy(score, data)

	hdr, err := parseHeader(score, &cfg)
	if err != nil {
		return nil, err
	}

	backend := cfg.Backend
	if backend == nil {
		backend = opl.NewLiveChips(cfg.ChipFactory, cfg.SampleRate)
	}
	io := opl.NewIO(backend)
	if _, err := io.Init(cfg.Chips); err != nil {
		return nil, fmt.Errorf("failed to initialize OPL: %w", err)
	}

	m := &MusicFile{
		io:        io,
		score:     score,
		hdr:       hdr,
		rateScale: float64(cfg.SampleRate) / opl.SampleRate,
		imfRate:   cfg.ImfRate,
	}
	m.synth, _ = backend.(opl.Synth)
	if hdr.format == MUS {
		m.driver = NewDriver(io, cfg.Bank, cfg.SingleVoice)
	}
	m.Restart()
	return m, nil
}

// Close releases the chips. The file cannot be played afterwards.
func (m *MusicFile) Close() error {
	if m.score == nil {
		return nil
	}
	m.score = nil
	return m.io.Deinit()
}

func (m *MusicFile) setTickPeriod(nativeSamples float64) {
	m.tickPeriod = nativeSamples
	m.samplesPerTick = nativeSamples * m.rateScale
	m.io.SetClockRate(nativeSamples)
}

// Restart rewinds to the start of the score and silences every voice.
func (m *MusicFile) Restart() {
	if m.score == nil {
		return
	}
	m.stopMusic()
	m.mlTime = 0
	m.nextTickIn = 0
	m.dc.last = 0
	m.whichChip = 0
	m.pos = m.hdr.start

	switch m.hdr.format {
	case RDosPlay:
		m.setTickPeriod(float64(m.hdr.clock) / opl.ClockMul)
	case DosBox1, DosBox2:
		m.setTickPeriod(float64(opl.SampleRate) / dosboxRate)
	case IMF:
		m.setTickPeriod(opl.SampleRate / float64(m.imfRate))
	case AudioT:
		m.setTickPeriod(float64(opl.SampleRate) / audioTRate)
		m.octave = m.hdr.audioT.octave
		m.io.WriteAudioTInstrument(0, &m.hdr.audioT.inst)
	case MUS:
		m.setTickPeriod(float64(opl.SampleRate) / musRate)
		m.driver.PlayMusic(100)
	}
}

func (m *MusicFile) stopMusic() {
	if m.driver != nil {
		m.driver.StopMusic()
		return
	}
	for i := 0; i < m.io.Channels(); i++ {
		m.io.WriteChannel(opl.RegSustain, i, 0x0F, 0x0F) // release rate - fastest
		m.io.WriteChannel(opl.RegScale, i, 0x3F, 0x3F)   // no volume
	}
}

// ServiceStream fills buf with interleaved stereo samples. It returns
// false once the score has ended; the rest of buf then holds the decay
// of the last notes.
func (m *MusicFile) ServiceStream(buf []float32) bool {
	clear(buf)
	if m.score == nil {
		return false
	}

	frames := len(buf) / 2
	out := buf
	prevEnded := false

	for frames > 0 {
		if left := min(frames, int(m.nextTickIn)); left > 0 {
			m.render(out[:left*2])
			m.nextTickIn -= float64(left)
			frames -= left
			out = out[left*2:]
		}

		if m.nextTickIn < 1 {
			next := m.PlayTick()
			if next == 0 {
				if m.loop && !prevEnded {
					prevEnded = true
					m.Restart()
					continue
				}
				if frames > 0 {
					m.render(out[:frames*2])
				}
				return false
			}
			prevEnded = false
			m.nextTickIn += m.samplesPerTick * float64(next)
			m.mlTime += uint32(next)
		}
	}
	return true
}

// ServiceStreamI is ServiceStream for signed 16-bit output.
func (m *MusicFile) ServiceStreamI(buf []int16) bool {
	if cap(m.fbuf) < len(buf) {
		m.fbuf = make([]float32, len(buf))
	}
	f := m.fbuf[:len(buf)]
	res := m.ServiceStream(f)
	for i, v := range f {
		buf[i] = floatToS16(v)
	}
	return res
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

func (m *MusicFile) render(buf []float32) {
	if m.synth != nil {
		m.synth.Render(buf)
	}
	m.dc.apply(buf)
}

// Dump plays the score into the backend without rendering audio,
// emitting a delay after every tick. It stops at the end of the score or
// after maxTicks ticks when maxTicks > 0, and returns the ticks played.
func (m *MusicFile) Dump(maxTicks int) int {
	m.Restart()
	total := 0
	for maxTicks <= 0 || total < maxTicks {
		next := m.PlayTick()
		if next == 0 {
			break
		}
		m.io.WriteDelay(next)
		m.mlTime += uint32(next)
		total += next
	}
	return total
}

// Position is the byte offset of the next record.
func (m *MusicFile) Position() int { return m.pos }

// Length is the decodable length of the score in bytes.
func (m *MusicFile) Length() int { return m.hdr.scoreLen }

// SetPosition always fails: none of the formats can be entered mid-stream.
func (m *MusicFile) SetPosition(int) bool { return false }

// SetImfRate changes the IMF tick rate from the next Restart on.
func (m *MusicFile) SetImfRate(rate int) {
	if rate > 0 {
		m.imfRate = rate
	}
}

func (m *MusicFile) ImfRate() int            { return m.imfRate }
func (m *MusicFile) SetLoop(loop bool)       { m.loop = loop }
func (m *MusicFile) Format() Format          { return m.hdr.format }
func (m *MusicFile) SamplesPerTick() float64 { return m.samplesPerTick }
func (m *MusicFile) Time() uint32            { return m.mlTime }
func (m *MusicFile) IO() *opl.IO             { return m.io }
func (m *MusicFile) Driver() *Driver         { return m.driver }
