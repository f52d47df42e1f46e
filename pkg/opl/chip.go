package opl

import (
	"errors"
	"fmt"

	woody "github.com/trondhumbor/go-woody-opl"
)

// ErrNoChips is returned when no emulated chip could be created.
var ErrNoChips = errors.New("opl: no chip could be created")

// Chip is one emulated OPL2 or OPL3.
//
// Update adds len(buf)/2 interleaved stereo frames to buf. Registers
// 0x100-0x1FF address the second register set and are only valid when
// OPL3 reports true.
type Chip interface {
	WriteReg(reg int, v byte)
	Update(buf []float32)
	SetPanning(channel int, left, right float32)
	Reset()
	OPL3() bool
}

// ChipFactory creates a chip producing samples at sampleRate.
type ChipFactory func(sampleRate int) (Chip, error)

// woodyChip wraps the woody OPL2 core. The core mixes all channels into
// one mono sample, so both sides get the same signal.
type woodyChip struct {
	rate   int
	write  func(reg, v byte)
	sample func() float32
}

// NewWoodyChip creates an OPL2 backed by go-woody-opl.
func NewWoodyChip(sampleRate int) (Chip, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("opl: invalid sample rate %d", sampleRate)
	}
	c := &woodyChip{rate: sampleRate}
	c.Reset()
	return c, nil
}

func (c *woodyChip) Reset() {
	o := woody.NewOpl()
	o.Adlib_init(c.rate)
	c.write = func(reg, v byte) { o.Adlib_write(reg, v) }
	c.sample = func() float32 { return float32(o.Adlib_getsample()) / 32768 }
}

func (c *woodyChip) WriteReg(reg int, v byte) {
	if reg > 0xFF {
		return
	}
	c.write(byte(reg), v)
}

func (c *woodyChip) Update(buf []float32) {
	for i := 0; i+1 < len(buf); i += 2 {
		s := c.sample()
		buf[i] += s
		buf[i+1] += s
	}
}

// SetPanning is a no-op: the core has no per-channel output.
func (c *woodyChip) SetPanning(channel int, left, right float32) {}

func (c *woodyChip) OPL3() bool { return false }
