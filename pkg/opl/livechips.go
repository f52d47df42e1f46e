package opl

import "fmt"

// LiveChips is the Backend that drives emulated chips.
type LiveChips struct {
	factory    ChipFactory
	sampleRate int
	chips      []Chip
	opl3       bool
}

// NewLiveChips creates a chip array. A nil factory selects NewWoodyChip.
func NewLiveChips(factory ChipFactory, sampleRate int) *LiveChips {
	if factory == nil {
		factory = NewWoodyChip
	}
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return &LiveChips{factory: factory, sampleRate: sampleRate}
}

// Open creates up to numChips chips. Creating fewer than requested is
// not an error as long as at least one exists.
func (l *LiveChips) Open(numChips int) (int, error) {
	l.chips = l.chips[:0]
	for i := 0; i < numChips && i < MaxChips; i++ {
		c, err := l.factory(l.sampleRate)
		if err != nil || c == nil {
			if i == 0 {
				return 0, fmt.Errorf("%w: %v", ErrNoChips, err)
			}
			break
		}
		l.chips = append(l.chips, c)
	}
	if len(l.chips) == 0 {
		return 0, ErrNoChips
	}
	l.opl3 = l.chips[0].OPL3()
	return len(l.chips), nil
}

func (l *LiveChips) Close() error {
	l.chips = nil
	return nil
}

func (l *LiveChips) OPL3() bool { return l.opl3 }

func (l *LiveChips) WriteReg(which, reg int, data byte) {
	if l.opl3 {
		reg |= (which & 1) << 8
		which >>= 1
	}
	if which >= 0 && which < len(l.chips) {
		l.chips[which].WriteReg(reg, data)
	}
}

func (l *LiveChips) SetClockRate(float64) {}
func (l *LiveChips) WriteDelay(int)       {}

// Render adds the output of every chip to buf (interleaved stereo).
func (l *LiveChips) Render(buf []float32) {
	for _, c := range l.chips {
		c.Update(buf)
	}
}

func (l *LiveChips) SetPanning(channel int, left, right float32) {
	per := OPL2Channels
	if l.opl3 {
		per = OPL3Channels
	}
	if idx := channel / per; idx < len(l.chips) {
		l.chips[idx].SetPanning(channel%per, left, right)
	}
}

// Reset returns every chip to its power-on state.
func (l *LiveChips) Reset() {
	for _, c := range l.chips {
		c.Reset()
	}
}

// SampleRate reports the rate the chips were created with.
func (l *LiveChips) SampleRate() int { return l.sampleRate }
