package opl

// Hardware constants
const (
	SampleRate   = 49716 // native OPL output rate
	OPL2Channels = 9
	OPL3Channels = OPL2Channels * 2
	MaxChips     = 8
	ClockMul     = 24.0 // RDOS clock word = samples per tick * ClockMul
)

// Register bases
const (
	RegChar     = 0x20 // tremolo / vibrato / sustain / KSR / multi
	RegScale    = 0x40 // key scale level / output level
	RegAttack   = 0x60 // attack / decay
	RegSustain  = 0x80 // sustain level / release
	RegFreqLow  = 0xA0
	RegFreqHigh = 0xB0
	RegFeedCon  = 0xC0
	RegWave     = 0xE0
	RegEffects  = 0xBD
)

// opNum maps a channel within one OPL2 half to its modulator cell.
var opNum = [OPL2Channels]int{0x00, 0x01, 0x02, 0x08, 0x09, 0x0A, 0x10, 0x11, 0x12}
