package oplmusic

import "github.com/slade-tools/oplplay/pkg/opl"

// Controller is a channel control in MUS numbering. Values from
// SoundsOff on are the MUS system events.
type Controller int

const (
	CtrlPatch Controller = iota
	CtrlBank
	CtrlModulation
	CtrlVolume
	CtrlPan
	CtrlExpression
	CtrlReverb
	CtrlChorus
	CtrlSustainPedal
	CtrlSoftPedal
	CtrlRPNHi
	CtrlRPNLo
	CtrlNRPNHi
	CtrlNRPNLo
	CtrlDataEntryHi
	CtrlDataEntryLo

	CtrlSoundsOff
	CtrlNotesOff
	CtrlMono
	CtrlPoly
)

// midiControllers maps MIDI CC numbers onto controllers.
var midiControllers = map[byte]Controller{
	0:   CtrlBank,
	1:   CtrlModulation,
	6:   CtrlDataEntryHi,
	7:   CtrlVolume,
	10:  CtrlPan,
	11:  CtrlExpression,
	38:  CtrlDataEntryLo,
	64:  CtrlSustainPedal,
	67:  CtrlSoftPedal,
	91:  CtrlReverb,
	93:  CtrlChorus,
	98:  CtrlNRPNLo,
	99:  CtrlNRPNHi,
	100: CtrlRPNLo,
	101: CtrlRPNHi,
	120: CtrlSoundsOff,
	123: CtrlNotesOff,
	126: CtrlMono,
	127: CtrlPoly,
}

// MIDIController returns the controller for a MIDI CC number.
func MIDIController(cc byte) (Controller, bool) {
	c, ok := midiControllers[cc]
	return c, ok
}

const (
	// Channels is the number of logical score channels.
	Channels = 16
	// Percussion is the MUS percussion channel.
	Percussion = 15

	slotFree = 0x80 // set in slot.channel when the voice is free

	slotSecondary = 0x01
	slotSustain   = 0x02
	slotVibrato   = 0x04

	modMin      = 40 // vibrato threshold
	highestNote = 127
)

type slot struct {
	channel  int // owning score channel, or'ed with slotFree
	note     int
	flags    int
	realNote int
	fineTune int
	pitch    int
	volume   int
	realVol  int
	instr    *opl.Instrument
	time     uint32
}

type channelState struct {
	instrument int
	volume     int
	lastVolume int
	pan        int
	pitch      int
	sustain    int
	modulation int
	pitchSens  int
	rpn        int
	expression int
}

// Driver allocates OPL voices to the notes of up to 16 MIDI-like
// channels using a GENMIDI bank.
type Driver struct {
	io          *opl.IO
	bank        *opl.Bank
	singleVoice bool
	slots       []slot
	ch          [Channels]channelState

	// Time is the tick clock used to age voices.
	Time uint32
}

// NewDriver creates a driver with one slot per channel of io.
func NewDriver(io *opl.IO, bank *opl.Bank, singleVoice bool) *Driver {
	d := &Driver{
		io:          io,
		bank:        bank,
		singleVoice: singleVoice,
		slots:       make([]slot, io.Channels()),
	}
	for i := range d.slots {
		d.slots[i].channel = slotFree
	}
	return d
}

func (d *Driver) writeFrequency(i, note, pitch int, keyOn bool) {
	d.io.WriteFreq(i, note, pitch, keyOn)
}

func calcVolume(channelVolume, channelExpression, noteVolume int) int {
	v := channelVolume * channelExpression * noteVolume / (127 * 127)
	if v > 127 {
		return 127
	}
	return v
}

func (d *Driver) occupySlot(i, channel, note, volume int, entry *opl.BankEntry, secondary bool) {
	s := &d.slots[i]
	cs := &d.ch[channel]

	s.channel = channel
	s.note = note
	s.flags = 0
	if secondary {
		s.flags |= slotSecondary
	}
	if cs.modulation >= modMin {
		s.flags |= slotVibrato
	}
	s.time = d.Time
	if volume == -1 {
		volume = cs.lastVolume
	} else {
		cs.lastVolume = volume
	}
	s.volume = volume
	s.realVol = calcVolume(cs.volume, cs.expression, volume)

	switch {
	case entry.Flags&opl.FlagFixedPitch != 0:
		note = int(entry.Note)
	case channel == Percussion:
		note = 60 // C-5
	}
	if secondary && entry.Flags&opl.FlagDoubleVoice != 0 {
		s.fineTune = (int(entry.FineTune) - 0x80) >> 1
	} else {
		s.fineTune = 0
	}
	s.pitch = s.fineTune + cs.pitch

	instr := &entry.Voices[0]
	if secondary {
		instr = &entry.Voices[1]
	}
	s.instr = instr

	if channel != Percussion && entry.Flags&opl.FlagFixedPitch == 0 {
		note += int(instr.BaseNote)
		for note < 0 {
			note += 12
		}
		for note > highestNote {
			note -= 12
		}
	}
	s.realNote = note

	d.io.WriteInstrument(i, instr)
	if s.flags&slotVibrato != 0 {
		d.io.WriteModulation(i, instr, true)
	}
	d.io.WritePan(i, instr, cs.pan)
	d.io.WriteVolume(i, instr, s.realVol)
	d.writeFrequency(i, note, s.pitch, true)
}

func (d *Driver) releaseSlot(i int, killed bool) {
	s := &d.slots[i]
	d.writeFrequency(i, s.realNote, s.pitch, false)
	s.channel |= slotFree
	s.flags = 0
	s.time = d.Time
	if killed {
		d.io.WriteChannel(opl.RegSustain, i, 0x0F, 0x0F) // release rate - fastest
		d.io.WriteChannel(opl.RegScale, i, 0x3F, 0x3F)   // no volume
	}
}

func (d *Driver) releaseSustain(channel int) {
	for i := range d.slots {
		if d.slots[i].channel == channel && d.slots[i].flags&slotSustain != 0 {
			d.releaseSlot(i, false)
		}
	}
}

// FindFreeChannel picks the slot for a new note and releases whatever
// it was playing. Free slots win, then the slot already playing this
// channel and note, then sustained notes, then the oldest. If flag&1 is
// set only a free slot is acceptable and -1 is returned when none is.
func (d *Driver) FindFreeChannel(flag, channel, note int) int {
	var best uint32
	bestSlot := 0
	for i := range d.slots {
		s := &d.slots[i]
		magic := (d.Time - s.time) & 0x1FFFFFFF
		if s.channel&slotFree != 0 {
			magic |= 1 << 31
		}
		if s.channel == channel && s.note == note {
			magic |= 1 << 30
		}
		if s.flags&slotSustain != 0 {
			magic |= 1 << 29
		}
		if magic > best {
			best = magic
			bestSlot = i
		}
	}
	if len(d.slots) == 0 || (flag&1 != 0 && best&(1<<31) == 0) {
		return -1
	}
	d.releaseSlot(bestSlot, true)
	return bestSlot
}

func (d *Driver) instrument(channel, note int) *opl.BankEntry {
	var n int
	if channel == Percussion {
		if note < 35 || note > 81 {
			return nil // wrong percussion number
		}
		n = note + (128 - 35)
	} else {
		n = d.ch[channel].instrument
	}
	if n < 0 || n >= opl.BankSize {
		return nil
	}
	return &d.bank.Entries[n]
}

// NoteOn starts a note. volume -1 reuses the channel's last volume and
// 0 releases the note.
func (d *Driver) NoteOn(channel, note, volume int) {
	channel &= Channels - 1
	if volume == 0 {
		d.NoteOff(channel, note)
		return
	}
	entry := d.instrument(channel, note)
	if entry == nil {
		return
	}

	flag := 0
	if channel == Percussion {
		flag = 2
	}
	i := d.FindFreeChannel(flag, channel, note)
	if i == -1 {
		return
	}
	d.occupySlot(i, channel, note, volume, entry, false)
	if !d.singleVoice && entry.Flags&opl.FlagDoubleVoice != 0 {
		if i = d.FindFreeChannel(flag|1, channel, note); i != -1 {
			d.occupySlot(i, channel, note, -1, entry, true)
		}
	}
}

// NoteOff releases a note, or marks it sustained while the pedal is down.
func (d *Driver) NoteOff(channel, note int) {
	channel &= Channels - 1
	sustain := d.ch[channel].sustain
	for i := range d.slots {
		s := &d.slots[i]
		if s.channel != channel || s.note != note {
			continue
		}
		if sustain < 0x40 {
			d.releaseSlot(i, false)
		} else {
			s.flags |= slotSustain
		}
	}
}

// PitchWheel bends every voice of channel. value is 14 bit, 8192 centre.
func (d *Driver) PitchWheel(channel, value int) {
	channel &= Channels - 1
	cs := &d.ch[channel]
	pitch := (value-8192)*cs.pitchSens/(200*128) + 64
	cs.pitch = pitch
	for i := range d.slots {
		s := &d.slots[i]
		if s.channel != channel {
			continue
		}
		s.time = d.Time
		s.pitch = s.fineTune + pitch
		d.writeFrequency(i, s.realNote, s.pitch, true)
	}
}

// ChangeControl applies a controller change to channel.
func (d *Driver) ChangeControl(channel int, ctrl Controller, value int) {
	channel &= Channels - 1
	cs := &d.ch[channel]

	switch ctrl {
	case CtrlPatch:
		cs.instrument = value
	case CtrlModulation:
		cs.modulation = value
		for i := range d.slots {
			s := &d.slots[i]
			if s.channel != channel {
				continue
			}
			flags := s.flags
			s.time = d.Time
			if value >= modMin {
				s.flags |= slotVibrato
			} else {
				s.flags &^= slotVibrato
			}
			if s.flags != flags {
				d.io.WriteModulation(i, s.instr, value >= modMin)
			}
		}
	case CtrlVolume:
		cs.volume = value
		d.updateVolume(channel)
	case CtrlExpression:
		cs.expression = value
		d.updateVolume(channel)
	case CtrlPan:
		cs.pan = value - 64
		for i := range d.slots {
			if d.slots[i].channel == channel {
				d.slots[i].time = d.Time
				d.io.WritePan(i, d.slots[i].instr, cs.pan)
			}
		}
	case CtrlSustainPedal:
		cs.sustain = value
		if value < 0x40 {
			d.releaseSustain(channel)
		}
	case CtrlNotesOff:
		for i := range d.slots {
			if d.slots[i].channel == channel {
				if cs.sustain < 0x40 {
					d.releaseSlot(i, false)
				} else {
					d.slots[i].flags |= slotSustain
				}
			}
		}
	case CtrlSoundsOff:
		for i := range d.slots {
			if d.slots[i].channel == channel {
				d.releaseSlot(i, true)
			}
		}
	case CtrlRPNHi:
		cs.rpn = cs.rpn&0x7F | (value&0x7F)<<7
	case CtrlRPNLo:
		cs.rpn = cs.rpn&0x3F80 | value&0x7F
	case CtrlNRPNLo, CtrlNRPNHi:
		cs.rpn = 0x3FFF
	case CtrlDataEntryHi:
		if cs.rpn == 0 {
			cs.pitchSens = value*100 + cs.pitchSens%100
		}
	case CtrlDataEntryLo:
		if cs.rpn == 0 {
			cs.pitchSens = value + cs.pitchSens/100*100
		}
	}
}

func (d *Driver) updateVolume(channel int) {
	cs := &d.ch[channel]
	for i := range d.slots {
		s := &d.slots[i]
		if s.channel != channel {
			continue
		}
		s.time = d.Time
		s.realVol = calcVolume(cs.volume, cs.expression, s.volume)
		d.io.WriteVolume(i, s.instr, s.realVol)
	}
}

// ProgramChange selects the instrument of a melodic channel.
func (d *Driver) ProgramChange(channel, value int) {
	d.ChangeControl(channel, CtrlPatch, value)
}

// ResetControllers returns a channel to its power-on control state.
func (d *Driver) ResetControllers(channel, volume int) {
	channel &= Channels - 1
	cs := &d.ch[channel]
	cs.volume = volume
	cs.expression = 127
	cs.sustain = 0
	cs.lastVolume = 64
	cs.pitch = 64
	cs.rpn = 0x3FFF
	cs.pitchSens = 200
}

// PlayMusic clears all channel and voice state and sets every channel
// to volume. Sounding voices should be stopped first.
func (d *Driver) PlayMusic(volume int) {
	d.Time = 0
	for i := range d.slots {
		d.slots[i] = slot{channel: slotFree}
	}
	for i := range d.ch {
		d.ch[i] = channelState{}
		d.ResetControllers(i, volume)
	}
}

// StopMusic kills every sounding voice.
func (d *Driver) StopMusic() {
	for i := range d.slots {
		if d.slots[i].channel&slotFree == 0 {
			d.releaseSlot(i, true)
		}
	}
}

// Active returns the number of occupied slots.
func (d *Driver) Active() int {
	n := 0
	for i := range d.slots {
		if d.slots[i].channel&slotFree == 0 {
			n++
		}
	}
	return n
}
