package opl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ErrBank is returned for data that is not a GENMIDI instrument bank.
var ErrBank = errors.New("opl: not a GENMIDI bank")

// Instrument flags
const (
	FlagFixedPitch  = 0x0001
	FlagUnknown     = 0x0002 // only set on instrument 65
	FlagDoubleVoice = 0x0004
)

const (
	BankSize      = 128 + 81 - 35 + 1 // melodic + percussion notes 35..81
	bankMagic     = "#OPL_II#"
	voiceSize     = 16
	bankEntrySize = 4 + 2*voiceSize
	bankNameSize  = 32
)

// Instrument is one two-operator voice in GENMIDI layout.
type Instrument struct {
	TremVibr1 byte // modulator: tremolo / vibrato / sustain / KSR / multi
	AttDec1   byte
	SustRel1  byte
	Wave1     byte
	Scale1    byte // key scale level
	Level1    byte // output level
	Feedback  byte // feedback / connection, both operators
	TremVibr2 byte // carrier
	AttDec2   byte
	SustRel2  byte
	Wave2     byte
	Scale2    byte
	Level2    byte
	BaseNote  int16
}

// BankEntry is one GENMIDI instrument with up to two voices.
type BankEntry struct {
	Flags    uint16
	FineTune byte // second voice detune, 0x80 = none
	Note     byte // note for fixed pitch instruments
	Voices   [2]Instrument
}

// Bank is a loaded GENMIDI lump: 128 melodic and 47 percussion instruments.
type Bank struct {
	Entries [BankSize]BankEntry
	Names   [BankSize]string
}

func parseInstrument(b []byte) Instrument {
	return Instrument{
		TremVibr1: b[0],
		AttDec1:   b[1],
		SustRel1:  b[2],
		Wave1:     b[3],
		Scale1:    b[4],
		Level1:    b[5],
		Feedback:  b[6],
		TremVibr2: b[7],
		AttDec2:   b[8],
		SustRel2:  b[9],
		Wave2:     b[10],
		Scale2:    b[11],
		Level2:    b[12],
		BaseNote:  int16(binary.LittleEndian.Uint16(b[14:16])),
	}
}

// LoadBank parses a GENMIDI lump. Instrument names are optional.
func LoadBank(data []byte) (*Bank, error) {
	if len(data) < len(bankMagic) || string(data[:len(bankMagic)]) != bankMagic {
		return nil, ErrBank
	}
	body := data[len(bankMagic):]
	if len(body) < BankSize*bankEntrySize {
		return nil, fmt.Errorf("%w: %d bytes of instrument data, need %d", ErrBank, len(body), BankSize*bankEntrySize)
	}

	bank := &Bank{}
	for i := range bank.Entries {
		e := body[i*bankEntrySize : (i+1)*bankEntrySize]
		bank.Entries[i] = BankEntry{
			Flags:    binary.LittleEndian.Uint16(e[0:2]),
			FineTune: e[2],
			Note:     e[3],
			Voices: [2]Instrument{
				parseInstrument(e[4 : 4+voiceSize]),
				parseInstrument(e[4+voiceSize : 4+2*voiceSize]),
			},
		}
	}

	names := body[BankSize*bankEntrySize:]
	for i := 0; i < BankSize && (i+1)*bankNameSize <= len(names); i++ {
		n := names[i*bankNameSize : (i+1)*bankNameSize]
		if z := bytes.IndexByte(n, 0); z >= 0 {
			n = n[:z]
		}
		bank.Names[i] = string(n)
	}
	return bank, nil
}

// ReadBankFile loads a GENMIDI lump from disk.
func ReadBankFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank: %w", err)
	}
	return LoadBank(data)
}

// AudioTInstrument is the instrument block of a Wolf3D AdLib sound.
type AudioTInstrument struct {
	MChar, CChar     byte
	MScale, CScale   byte
	MAttack, CAttack byte
	MSus, CSus       byte
	MWave, CWave     byte
	Conn             byte
}

// AudioTInstrumentSize is the on-disk size including 5 unused bytes.
const AudioTInstrumentSize = 16

// ParseAudioTInstrument decodes the 16-byte block at the start of b.
func ParseAudioTInstrument(b []byte) AudioTInstrument {
	return AudioTInstrument{
		MChar: b[0], CChar: b[1],
		MScale: b[2], CScale: b[3],
		MAttack: b[4], CAttack: b[5],
		MSus: b[6], CSus: b[7],
		MWave: b[8], CWave: b[9],
		Conn: b[10],
	}
}
