package opl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChip records writes and renders a constant level.
type fakeChip struct {
	opl3   bool
	level  float32
	writes []Event
	pans   map[int][2]float32
	resets int
}

func (c *fakeChip) WriteReg(reg int, v byte) {
	c.writes = append(c.writes, Event{Kind: EventWrite, Reg: reg, Data: v})
}

func (c *fakeChip) Update(buf []float32) {
	for i := range buf {
		buf[i] += c.level
	}
}

func (c *fakeChip) SetPanning(channel int, left, right float32) {
	if c.pans == nil {
		c.pans = make(map[int][2]float32)
	}
	c.pans[channel] = [2]float32{left, right}
}

func (c *fakeChip) Reset()     { c.resets++ }
func (c *fakeChip) OPL3() bool { return c.opl3 }

func fakeFactory(chips *[]*fakeChip, opl3 bool) ChipFactory {
	return func(int) (Chip, error) {
		c := &fakeChip{opl3: opl3}
		*chips = append(*chips, c)
		return c, nil
	}
}

func TestInitWritesPowerOnState(t *testing.T) {
	r := &Recorder{}
	o := NewIO(r)

	n, err := o.Init(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, OPL2Channels, o.Channels())

	w := r.Writes()
	require.Len(t, w, 3+OPL2Channels*7)
	assert.Equal(t, Event{Kind: EventWrite, Which: 0, Reg: 0x01, Data: 0x20}, w[0])
	assert.Equal(t, Event{Kind: EventWrite, Which: 0, Reg: 0x0B, Data: 0x40}, w[1])
	assert.Equal(t, Event{Kind: EventWrite, Which: 0, Reg: 0xBD, Data: 0x00}, w[2])

	// channel 0 is silenced and keyed off
	assert.Equal(t, 0x40, w[3].Reg)
	assert.Equal(t, byte(0x3F), w[3].Data)
	assert.Equal(t, 0xB0, w[9].Reg)
	assert.Equal(t, byte(0), w[9].Data)
}

func TestInitClampsChipCount(t *testing.T) {
	o := NewIO(&Recorder{})
	n, err := o.Init(20)
	require.NoError(t, err)
	assert.Equal(t, MaxChips, n)
	assert.Equal(t, MaxChips*OPL2Channels, o.Channels())

	o = NewIO(&Recorder{})
	n, err = o.Init(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInitOPL3(t *testing.T) {
	r := &Recorder{OPL3Mode: true}
	o := NewIO(r)
	_, err := o.Init(1)
	require.NoError(t, err)
	assert.Equal(t, OPL3Channels, o.Channels())

	w := r.Writes()
	assert.Equal(t, 0x105, w[0].Reg)
	assert.Equal(t, byte(0x01), w[0].Data)
	assert.Equal(t, 0x104, w[1].Reg)
}

func TestWriteChannelAddressing(t *testing.T) {
	r := &Recorder{}
	o := NewIO(r)
	_, err := o.Init(2)
	require.NoError(t, err)
	r.Reset()

	o.WriteChannel(RegChar, 4, 0x11, 0x22)
	o.WriteChannel(RegChar, 10, 0x33, 0x44)
	o.WriteValue(RegFreqLow, 12, 0x55)

	assert.Equal(t, []Event{
		{Kind: EventWrite, Which: 0, Reg: 0x29, Data: 0x11},
		{Kind: EventWrite, Which: 0, Reg: 0x2C, Data: 0x22},
		{Kind: EventWrite, Which: 1, Reg: 0x21, Data: 0x33},
		{Kind: EventWrite, Which: 1, Reg: 0x24, Data: 0x44},
		{Kind: EventWrite, Which: 1, Reg: 0xA3, Data: 0x55},
	}, r.Writes())
}

func TestWriteInstrumentMutesFirst(t *testing.T) {
	r := &Recorder{}
	o := NewIO(r)
	_, err := o.Init(1)
	require.NoError(t, err)
	r.Reset()

	instr := &Instrument{TremVibr1: 1, TremVibr2: 2, AttDec1: 3, AttDec2: 4, SustRel1: 5, SustRel2: 6, Wave1: 1, Wave2: 2, Feedback: 0x0E}
	o.WriteInstrument(0, instr)

	w := r.Writes()
	require.Len(t, w, 11)
	assert.Equal(t, 0x40, w[0].Reg)
	assert.Equal(t, byte(0x3F), w[0].Data)
	assert.Equal(t, 0x20, w[2].Reg)
	assert.Equal(t, byte(1), w[2].Data)
	assert.Equal(t, Event{Kind: EventWrite, Reg: 0xC0, Data: 0x3E}, w[10])
}

func TestLiveChipsAllocation(t *testing.T) {
	boom := errors.New("boom")
	o := NewIO(NewLiveChips(func(int) (Chip, error) { return nil, boom }, 0))
	_, err := o.Init(2)
	require.ErrorIs(t, err, ErrNoChips)

	calls := 0
	lc := NewLiveChips(func(int) (Chip, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return &fakeChip{}, nil
	}, 0)
	n, err := NewIO(lc).Init(4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, SampleRate, lc.SampleRate())
}

func TestLiveChipsOPL3HalfMapping(t *testing.T) {
	var chips []*fakeChip
	lc := NewLiveChips(fakeFactory(&chips, true), 44100)
	_, err := lc.Open(2)
	require.NoError(t, err)
	require.Len(t, chips, 2)

	lc.WriteReg(1, 0x20, 5)
	lc.WriteReg(2, 0x20, 6)
	lc.WriteReg(9, 0x20, 7) // no such chip

	assert.Equal(t, []Event{{Kind: EventWrite, Reg: 0x120, Data: 5}}, chips[0].writes)
	assert.Equal(t, []Event{{Kind: EventWrite, Reg: 0x20, Data: 6}}, chips[1].writes)
}

func TestLiveChipsRenderMixes(t *testing.T) {
	var chips []*fakeChip
	lc := NewLiveChips(fakeFactory(&chips, false), 0)
	_, err := lc.Open(2)
	require.NoError(t, err)
	chips[0].level = 0.25
	chips[1].level = 0.5

	buf := make([]float32, 8)
	lc.Render(buf)
	for _, v := range buf {
		assert.InDelta(t, 0.75, v, 1e-6)
	}

	lc.Reset()
	assert.Equal(t, 1, chips[0].resets)
	assert.Equal(t, 1, chips[1].resets)
}
