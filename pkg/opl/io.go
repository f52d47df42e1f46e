package opl

// Backend receives the register stream produced by an IO. LiveChips
// forwards it to emulated chips, DiskWriter serializes it, Recorder logs it.
//
// which selects an OPL2 register half: on OPL3 backends even/odd values
// address the two halves of one chip, otherwise each value is one chip.
type Backend interface {
	Open(numChips int) (int, error)
	Close() error
	OPL3() bool
	WriteReg(which, reg int, data byte)
	SetClockRate(samplesPerTick float64)
	WriteDelay(ticks int)
}

// Synth is implemented by backends that produce audio.
type Synth interface {
	Render(buf []float32)
}

// Panner is implemented by backends with per-channel stereo placement.
type Panner interface {
	SetPanning(channel int, left, right float32)
}

// IO drives a Backend with channel-level register helpers.
type IO struct {
	backend  Backend
	chips    int
	channels int
}

// NewIO wraps b. Init must be called before any register write.
func NewIO(b Backend) *IO {
	return &IO{backend: b}
}

// Init opens the backend with up to numChips chips and writes the
// power-on register state. It returns the number of chips opened.
func (o *IO) Init(numChips int) (int, error) {
	if numChips < 1 {
		numChips = 1
	} else if numChips > MaxChips {
		numChips = MaxChips
	}

	n, err := o.backend.Open(numChips)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNoChips
	}

	o.chips = n
	if o.backend.OPL3() {
		o.channels = n * OPL3Channels
	} else {
		o.channels = n * OPL2Channels
	}
	o.WriteInitState()
	return n, nil
}

// Deinit closes the backend. The IO is unusable afterwards.
func (o *IO) Deinit() error {
	o.chips = 0
	o.channels = 0
	return o.backend.Close()
}

func (o *IO) Backend() Backend { return o.backend }
func (o *IO) Chips() int       { return o.chips }
func (o *IO) Channels() int    { return o.channels }

func (o *IO) WriteReg(which, reg int, data byte) {
	o.backend.WriteReg(which, reg, data)
}

func (o *IO) SetClockRate(samplesPerTick float64) {
	o.backend.SetClockRate(samplesPerTick)
}

func (o *IO) WriteDelay(ticks int) {
	o.backend.WriteDelay(ticks)
}

// WriteChannel writes an operator pair. For register bases 0x20, 0x40,
// 0x60, 0x80 and 0xE0.
func (o *IO) WriteChannel(regbase, channel int, data1, data2 byte) {
	which := channel / OPL2Channels
	reg := regbase + opNum[channel%OPL2Channels]
	o.WriteReg(which, reg, data1)
	o.WriteReg(which, reg+3, data2)
}

// WriteValue writes a single channel value. For register bases 0xA0,
// 0xB0 and 0xC0.
func (o *IO) WriteValue(regbase, channel int, value byte) {
	which := channel / OPL2Channels
	o.WriteReg(which, regbase+channel%OPL2Channels, value)
}

// WriteInstrument loads a GENMIDI voice into channel with its output
// muted. Volume is set separately with WriteVolume.
func (o *IO) WriteInstrument(channel int, instr *Instrument) {
	o.WriteChannel(RegScale, channel, 0x3F, 0x3F)
	o.WriteChannel(RegChar, channel, instr.TremVibr1, instr.TremVibr2)
	o.WriteChannel(RegAttack, channel, instr.AttDec1, instr.AttDec2)
	o.WriteChannel(RegSustain, channel, instr.SustRel1, instr.SustRel2)
	o.WriteChannel(RegWave, channel, instr.Wave1, instr.Wave2)
	o.WriteValue(RegFeedCon, channel, instr.Feedback|0x30)
}

// WriteAudioTInstrument loads a Wolf3D sound effect instrument.
func (o *IO) WriteAudioTInstrument(channel int, instr *AudioTInstrument) {
	o.WriteChannel(RegChar, channel, instr.MChar, instr.CChar)
	o.WriteChannel(RegScale, channel, instr.MScale, instr.CScale)
	o.WriteChannel(RegAttack, channel, instr.MAttack, instr.CAttack)
	o.WriteChannel(RegSustain, channel, instr.MSus, instr.CSus)
	o.WriteChannel(RegWave, channel, instr.MWave, instr.CWave)
	o.WriteValue(RegFeedCon, channel, 0x30)
}

// Shutup silences every channel.
func (o *IO) Shutup() {
	for i := 0; i < o.channels; i++ {
		o.WriteChannel(RegScale, i, 0x3F, 0x3F)   // turn off volume
		o.WriteChannel(RegAttack, i, 0xFF, 0xFF)  // the fastest attack, decay
		o.WriteChannel(RegSustain, i, 0x0F, 0x0F) // ... and release
		o.WriteValue(RegFreqHigh, i, 0)           // KEY-OFF
	}
}

// WriteInitState puts every opened chip into melodic mode and silences it.
func (o *IO) WriteInitState() {
	opl3 := o.backend.OPL3()
	for i := 0; i < o.chips; i++ {
		which := i
		if opl3 {
			which = i << 1
			o.WriteReg(which, 0x105, 0x01) // enable YMF262/OPL3 mode
			o.WriteReg(which, 0x104, 0x00) // disable 4-operator mode
		}
		o.WriteReg(which, 0x01, 0x20)       // enable Waveform Select
		o.WriteReg(which, 0x0B, 0x40)       // turn off CSW mode
		o.WriteReg(which, RegEffects, 0x00) // melodic mode, low vibrato/tremolo depth
	}
	o.Shutup()
}
