package oplmusic

import (
	"errors"
	"fmt"

	"github.com/slade-tools/oplplay/pkg/opl"
)

var (
	// ErrFormat is returned for data that is not a recognized OPL score.
	ErrFormat = errors.New("oplmusic: unknown or unidentified OPL format")

	// ErrTruncated is returned when a header promises more data than exists.
	ErrTruncated = fmt.Errorf("%w: truncated header", ErrFormat)

	// ErrUnsupported is returned for recognized but unplayable variants.
	ErrUnsupported = fmt.Errorf("%w: unsupported variant", ErrFormat)

	// ErrNoBank is returned for MUS scores when no GENMIDI bank is loaded.
	ErrNoBank = fmt.Errorf("%w: MUS playback needs a GENMIDI bank", ErrFormat)
)

// Format is the score grammar of an opened file.
type Format int

const (
	RDosPlay Format = iota
	IMF
	DosBox1
	DosBox2
	AudioT
	MUS
)

func (f Format) String() string {
	switch f {
	case RDosPlay:
		return "RDos raw OPL"
	case IMF:
		return "IMF"
	case DosBox1:
		return "DOSBox raw OPL v1"
	case DosBox2:
		return "DOSBox raw OPL v2"
	case AudioT:
		return "AdLib sound effect"
	case MUS:
		return "MUS"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Tick rates of the fixed-rate formats, in Hz.
const (
	dosboxRate     = 1000
	audioTRate     = 140
	musRate        = 140
	DefaultImfRate = 700
)

// Header sizes and offsets.
const (
	rdosHeaderSize   = 10
	dosbox1Size      = 24
	dosbox2CodeTable = 0x1A
	audioTBody       = 23 // length u32, priority u16, instrument[16], octave
	musHeaderSize    = 16
)

// header is the parsed, format-specific part of a score.
type header struct {
	format   Format
	start    int // offset of the first record
	scoreLen int // decodable length of the buffer

	clock  uint16 // RDosPlay initial clock word
	dro2   dro2Codes
	audioT audioTHeader
	imf    imfHeader
	mus    musHeader
}

type dro2Codes struct {
	shortDelay byte
	longDelay  byte
	regs       []byte // code -> register
}

type audioTHeader struct {
	inst   opl.AudioTInstrument
	octave byte
}

type imfHeader struct {
	track string
	game  string
}

type musHeader struct {
	channels    int
	secondary   int
	instruments []int
}

// parseHeader sniffs the score signature and parses its header. Nothing
// is written to any chip.
func parseHeader(data []byte, cfg *Config) (header, error) {
	n := len(data)
	switch {
	case n >= 8 && string(data[0:8]) == "RAWADATA":
		return parseRDos(data)
	case n >= 8 && string(data[0:8]) == "DBRAWOPL":
		return parseDosBox(data)
	case n >= 6 && string(data[0:5]) == "ADLIB" && data[5] == 1:
		return parseADLIB(data)
	case n >= 4 && string(data[0:4]) == "MUS\x1a":
		return parseMUS(data, cfg)
	}
	if cfg.AssumeIMF {
		return parseBareIMF(data)
	}
	if n > audioTBody+3 && data[22] < 8 && uint64(audioTBody+1)+uint64(readLE32(data, 0)) <= uint64(n) {
		return parseAudioT(data)
	}
	return header{}, ErrFormat
}

func parseRDos(data []byte) (header, error) {
	if len(data) < rdosHeaderSize {
		return header{}, ErrTruncated
	}
	clock := uint16(readLE16(data, 8))
	if clock == 0 {
		// a clock speed of 0 is bad
		clock = 0xFFFF
	}
	return header{format: RDosPlay, start: rdosHeaderSize, scoreLen: len(data), clock: clock}, nil
}

func parseDosBox(data []byte) (header, error) {
	if len(data) < 12 {
		return header{}, ErrTruncated
	}
	v1 := readLE16(data, 8)
	v2 := readLE16(data, 10)

	switch {
	case (v1 == 0 || v1 > 1000) && v2 == 1:
		// Early v0.1 files stored the length in ms at offset 8.
		if len(data) < dosbox1Size {
			return header{}, ErrTruncated
		}
		body := uint64(len(data) - dosbox1Size)
		if l := uint64(readLE32(data, 16)); l < body {
			body = l
		}
		return header{format: DosBox1, start: dosbox1Size, scoreLen: int(body) + dosbox1Size}, nil

	case v1 == 2 && v2 == 0:
		if len(data) < dosbox2CodeTable {
			return header{}, ErrTruncated
		}
		if data[21] != 0 {
			return header{}, fmt.Errorf("%w: DOSBox raw OPL format %d", ErrUnsupported, data[21])
		}
		if data[22] != 0 {
			return header{}, fmt.Errorf("%w: DOSBox raw OPL compression %d", ErrUnsupported, data[22])
		}
		size := dosbox2CodeTable + int(data[0x19])
		if len(data) < size {
			return header{}, ErrTruncated
		}
		body := uint64(len(data) - size)
		if l := uint64(readLE32(data, 12)) * 2; l < body {
			body = l
		}
		return header{
			format:   DosBox2,
			start:    size,
			scoreLen: int(body) + size,
			dro2: dro2Codes{
				shortDelay: data[0x17],
				longDelay:  data[0x18],
				regs:       data[dosbox2CodeTable:size],
			},
		}, nil
	}
	return header{}, fmt.Errorf("%w: DOSBox raw OPL version %d.%d", ErrUnsupported, v1, v2)
}

func parseADLIB(data []byte) (header, error) {
	h := header{format: IMF, scoreLen: len(data)}

	track := 6
	game := skipString(data, track)
	if game < 0 {
		return header{}, ErrTruncated
	}
	pos := skipString(data, game)
	if pos < 0 {
		return header{}, ErrTruncated
	}
	h.imf = imfHeader{track: cString(data[track:]), game: cString(data[game:])}

	pos++ // reserved byte
	if pos+8 > len(data) {
		// not enough room left for song data
		return header{}, ErrTruncated
	}
	songLen := int64(readLE32(data, pos))
	pos += 4
	h.start = pos
	if songLen != 0 && songLen+4 < int64(len(data)-pos) {
		h.scoreLen = int(songLen+4) + pos
	}
	return h, nil
}

func parseBareIMF(data []byte) (header, error) {
	if len(data) < 4 {
		return header{}, ErrTruncated
	}
	// Type-1 files lead with the byte length of the register data.
	if l := readLE16(data, 0); l > 0 && l%4 == 0 && 2+l <= len(data) {
		return header{format: IMF, start: 2, scoreLen: 2 + l}, nil
	}
	return header{format: IMF, start: 0, scoreLen: len(data)}, nil
}

func parseAudioT(data []byte) (header, error) {
	length := int(readLE32(data, 0))
	return header{
		format:   AudioT,
		start:    audioTBody,
		scoreLen: audioTBody + length,
		audioT: audioTHeader{
			inst:   opl.ParseAudioTInstrument(data[6 : 6+opl.AudioTInstrumentSize]),
			octave: data[22],
		},
	}, nil
}

func parseMUS(data []byte, cfg *Config) (header, error) {
	if len(data) < musHeaderSize {
		return header{}, ErrTruncated
	}
	if cfg.Bank == nil {
		return header{}, ErrNoBank
	}
	scoreLen := readLE16(data, 4)
	start := readLE16(data, 6)
	count := readLE16(data, 12)
	if musHeaderSize+2*count > len(data) || start > len(data) || start < musHeaderSize {
		return header{}, ErrTruncated
	}

	h := header{
		format:   MUS,
		start:    start,
		scoreLen: min(len(data), start+scoreLen),
		mus: musHeader{
			channels:  readLE16(data, 8),
			secondary: readLE16(data, 10),
		},
	}
	for i := 0; i < count; i++ {
		h.mus.instruments = append(h.mus.instruments, readLE16(data, musHeaderSize+2*i))
	}
	return h, nil
}
