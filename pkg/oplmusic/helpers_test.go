package oplmusic

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slade-tools/oplplay/pkg/opl"
)

func le16(v int) []byte { return binary.LittleEndian.AppendUint16(nil, uint16(v)) }
func le32(v int) []byte { return binary.LittleEndian.AppendUint32(nil, uint32(v)) }

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func rdosFile(clock int, body ...byte) []byte {
	return cat([]byte("RAWADATA"), le16(clock), body)
}

func dosbox1File(body ...byte) []byte {
	hdr := cat([]byte("DBRAWOPL"), le16(0), le16(1), le32(0), le32(len(body)), make([]byte, 4))
	return cat(hdr, body)
}

func dosbox2File(short, long byte, regs []byte, body ...byte) []byte {
	hdr := cat([]byte("DBRAWOPL"), le16(2), le16(0), le32(len(body)/2), le32(0),
		[]byte{0, 0, 0, short, long, byte(len(regs))}, regs)
	return cat(hdr, body)
}

func adlibFile(track, game string, songLen int, body ...byte) []byte {
	return cat([]byte("ADLIB\x01"), []byte(track), []byte{0}, []byte(game), []byte{0}, []byte{0}, le32(songLen), body)
}

func audioTFile(octave byte, body ...byte) []byte {
	inst := []byte{0x21, 0x31, 0x4F, 0x00, 0xF2, 0xD2, 0x52, 0x73, 0x00, 0x00, 0x06, 0, 0, 0, 0, 0}
	return cat(le32(len(body)-1), le16(0), inst, []byte{octave}, body)
}

func musFile(instruments []int, score ...byte) []byte {
	start := musHeaderSize + 2*len(instruments)
	hdr := cat([]byte("MUS\x1a"), le16(len(score)), le16(start), le16(1), le16(0), le16(len(instruments)), le16(0))
	for _, i := range instruments {
		hdr = append(hdr, le16(i)...)
	}
	return cat(hdr, score)
}

// openRecorded opens data against a Recorder and discards the setup writes.
func openRecorded(t *testing.T, data []byte, cfg Config) (*MusicFile, *opl.Recorder) {
	t.Helper()
	r := &opl.Recorder{}
	cfg.Backend = r
	m, err := Open(data, cfg)
	require.NoError(t, err)
	r.Reset()
	return m, r
}

func write(which, reg int, data byte) opl.Event {
	return opl.Event{Kind: opl.EventWrite, Which: which, Reg: reg, Data: data}
}

// constChip renders a fixed level on both sides.
type constChip struct{ level float32 }

func (c *constChip) WriteReg(int, byte)               {}
func (c *constChip) SetPanning(int, float32, float32) {}
func (c *constChip) Reset()                           {}
func (c *constChip) OPL3() bool                       { return false }
func (c *constChip) Update(buf []float32) {
	for i := range buf {
		buf[i] += c.level
	}
}

func constFactory(level float32) opl.ChipFactory {
	return func(int) (opl.Chip, error) { return &constChip{level: level}, nil }
}
