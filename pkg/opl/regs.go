package opl

import "math"

// Pitch is expressed in 1/32 semitone steps with 64 as the centre, so
// note*32 + pitch indexes freqTable.
const (
	pitchSteps   = 32
	freqLowPart  = 284
	freqOctave   = pitchSteps * 12
	freqTableLen = freqLowPart + freqOctave
)

var freqTable = buildFreqTable()

func buildFreqTable() [freqTableLen]uint16 {
	var t [freqTableLen]uint16
	scale := math.Exp2(20) / SampleRate
	for j := range t {
		semis := float64(j-64)/pitchSteps - 69
		f := 2 * 440 * math.Exp2(semis/12) * scale
		v := math.Round(f)
		if v > 0x3FF {
			v = 0x3FF
		}
		t[j] = uint16(v)
	}
	return t
}

var volumeTable = [128]byte{
	0, 1, 3, 5, 6, 8, 10, 11,
	13, 14, 16, 17, 19, 20, 22, 23,
	25, 26, 27, 29, 30, 32, 33, 34,
	36, 37, 39, 41, 43, 45, 47, 49,
	50, 52, 54, 55, 57, 59, 60, 61,
	63, 64, 66, 67, 68, 69, 71, 72,
	73, 74, 75, 76, 77, 79, 80, 81,
	82, 83, 84, 84, 85, 86, 87, 88,
	89, 90, 91, 92, 92, 93, 94, 95,
	96, 96, 97, 98, 99, 99, 100, 101,
	101, 102, 103, 103, 104, 105, 105, 106,
	107, 107, 108, 109, 109, 110, 110, 111,
	112, 112, 113, 113, 114, 114, 115, 115,
	116, 117, 117, 118, 118, 119, 119, 120,
	120, 121, 121, 122, 122, 123, 123, 123,
	124, 124, 125, 125, 126, 126, 127, 127,
}

// FreqBlock returns the combined F-number / block word for a note and
// biased pitch, as written to registers 0xA0 (low byte) and 0xB0.
func FreqBlock(note, pitch int) uint16 {
	octave := 0
	j := note<<5 + pitch
	if j < 0 {
		j = 0
	} else if j >= freqLowPart {
		j -= freqLowPart
		octave = j / freqOctave
		if octave > 7 {
			octave = 7
		}
		j = j%freqOctave + freqLowPart
	}
	return freqTable[j] | uint16(octave)<<10
}

// WriteFreq sets a channel's frequency and key state.
func (o *IO) WriteFreq(channel, note, pitch int, keyOn bool) {
	i := FreqBlock(note, pitch)
	hi := byte(i >> 8)
	if keyOn {
		hi |= 0x20
	}
	o.WriteValue(RegFreqLow, channel, byte(i))
	o.WriteValue(RegFreqHigh, channel, hi)
}

// ConvertVolume scales a 6-bit attenuation level by a 0..127 volume.
func ConvertVolume(level byte, volume int) byte {
	if volume > 127 {
		volume = 127
	} else if volume < 0 {
		volume = 0
	}
	return 0x3F - byte((int(0x3F-level&0x3F)*int(volumeTable[volume]))>>7)
}

// WriteVolume sets the output level of a voice. The modulator is only
// scaled for additive (AM) instruments.
func (o *IO) WriteVolume(channel int, instr *Instrument, volume int) {
	if instr == nil {
		return
	}
	mod := instr.Level1
	if instr.Feedback&1 != 0 {
		mod = ConvertVolume(instr.Level1, volume)
	}
	o.WriteChannel(RegScale, channel, mod|instr.Scale1, ConvertVolume(instr.Level2, volume)|instr.Scale2)
}

// WritePan routes a voice left, right or centre. pan is -64..63.
func (o *IO) WritePan(channel int, instr *Instrument, pan int) {
	if instr == nil {
		return
	}
	var bits byte
	switch {
	case pan < -36:
		bits = 0x10
	case pan > 36:
		bits = 0x20
	default:
		bits = 0x30
	}
	o.WriteValue(RegFeedCon, channel, instr.Feedback|bits)

	if p, ok := o.backend.(Panner); ok {
		// 0 and 1 are both hard left so that 64 is exactly centre.
		level := 0.0
		if pan > -63 {
			level = float64(pan+64-1) / 126
		}
		p.SetPanning(channel, float32(math.Cos(math.Pi/2*level)), float32(math.Sin(math.Pi/2*level)))
	}
}

// WriteModulation toggles frequency vibrato on a voice.
func (o *IO) WriteModulation(channel int, instr *Instrument, on bool) {
	if instr == nil {
		return
	}
	var state byte
	if on {
		state = 0x40
	}
	mod := instr.TremVibr1
	if instr.Feedback&1 != 0 {
		mod |= state
	}
	o.WriteChannel(RegChar, channel, mod, instr.TremVibr2|state)
}
