package opl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskFormat selects the raw OPL file grammar written by DiskWriter.
type DiskFormat int

const (
	DiskRDOS   DiskFormat = iota // "RAWADATA", Rdos RAW capture
	DiskDosBox                   // "DBRAWOPL" v0.1, DOSBox capture
)

// dosboxHeaderSize is the size of a DOSBox v0.1 header.
const dosboxHeaderSize = 24

// DiskFormatForPath picks DosBox for ".dro" files and RDOS otherwise.
func DiskFormatForPath(path string) DiskFormat {
	if strings.EqualFold(filepath.Ext(path), ".dro") {
		return DiskDosBox
	}
	return DiskRDOS
}

// DiskWriter is a Backend that serializes the register stream to a raw
// OPL capture file instead of playing it. Only two register halves can
// be addressed by either format; writes to others are dropped.
type DiskWriter struct {
	path   string
	format DiskFormat

	file *os.File
	w    *bufio.Writer
	err  error

	chips     int
	curChip   int
	needClock bool
	tickMul   int
	written   int64

	timePerTick float64 // milliseconds
	curTime     float64
	curIntTime  int
}

// NewDiskWriter creates a writer for path. The file is created by Open.
func NewDiskWriter(path string) *DiskWriter {
	return &DiskWriter{path: path, format: DiskFormatForPath(path), tickMul: 1}
}

// Format reports the grammar chosen for the output path.
func (d *DiskWriter) Format() DiskFormat { return d.format }

func (d *DiskWriter) Open(numChips int) (int, error) {
	if numChips > 2 {
		numChips = 2
	}
	f, err := os.Create(d.path)
	if err != nil {
		return 0, fmt.Errorf("could not open %s for writing: %w", d.path, err)
	}
	d.file = f
	d.w = bufio.NewWriter(f)
	d.err = nil
	d.chips = numChips
	d.curChip = 0
	d.tickMul = 1
	d.written = 0
	d.timePerTick = 0
	d.curTime = 0
	d.curIntTime = 0

	if d.format == DiskDosBox {
		var hdr [dosboxHeaderSize]byte
		copy(hdr[0:8], "DBRAWOPL")
		binary.LittleEndian.PutUint16(hdr[8:10], 0)  // version minor
		binary.LittleEndian.PutUint16(hdr[10:12], 1) // version major
		if numChips > 1 {
			hdr[20] = 2 // dual OPL2
		}
		d.put(hdr[:]...)
		d.needClock = false
	} else {
		d.put([]byte("RAWADATA\x00\x00")...)
		d.needClock = true
	}
	d.written = 0
	return numChips, d.err
}

func (d *DiskWriter) OPL3() bool { return false }

func (d *DiskWriter) put(b ...byte) {
	if d.err != nil {
		return
	}
	n, err := d.w.Write(b)
	d.written += int64(n)
	d.err = err
}

func (d *DiskWriter) patch(off int64, b []byte) {
	if d.err != nil {
		return
	}
	if err := d.w.Flush(); err != nil {
		d.err = err
		return
	}
	_, d.err = d.file.WriteAt(b, off)
}

func (d *DiskWriter) setChip(which int) {
	if which == d.curChip {
		return
	}
	d.curChip = which
	if d.format == DiskRDOS {
		d.put(byte(which+1), 2)
	} else {
		d.put(byte(which + 2))
	}
}

func (d *DiskWriter) WriteReg(which, reg int, data byte) {
	if d.file == nil || which < 0 || which > 1 || reg > 0xFF {
		return
	}
	d.setChip(which)
	if d.format == DiskRDOS {
		// registers 0 and 2 and the FF/FF pair are control codes
		if reg != 0 && reg != 2 && (reg != 0xFF || data != 0xFF) {
			d.put(data, byte(reg))
		}
		return
	}
	if reg <= 4 {
		d.put(4, byte(reg), data)
	} else {
		d.put(byte(reg), data)
	}
}

func (d *DiskWriter) SetClockRate(samplesPerTick float64) {
	if d.file == nil {
		return
	}
	d.timePerTick = samplesPerTick / SampleRate * 1000
	if d.format != DiskRDOS {
		return
	}

	// The clock word caps a tick at ~55 ms; longer ticks are expressed
	// as multiples of a shorter one.
	clockRate := samplesPerTick * ClockMul
	mul := 1
	for clockRate/float64(mul)+0.5 > 65535 {
		mul++
	}
	d.tickMul = mul
	word := uint16(clockRate/float64(mul) + 0.5)

	if d.needClock {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], word)
		d.patch(8, b[:])
		d.needClock = false
	} else {
		d.put(0, 2, byte(word), byte(word>>8))
	}
}

func (d *DiskWriter) WriteDelay(ticks int) {
	if d.file == nil || ticks <= 0 {
		return
	}
	if d.format == DiskRDOS {
		ticks *= d.tickMul
		for ticks > 255 {
			ticks -= 255
			d.put(255, 0)
		}
		d.put(byte(ticks), 0)
		return
	}

	// DOSBox delays are whole milliseconds; keep the fraction for later.
	d.curTime += d.timePerTick * float64(ticks)
	delay := int(d.curTime+0.5) - d.curIntTime
	d.curIntTime += delay
	for delay > 65536 {
		d.put(1, 0xFF, 0xFF)
		delay -= 65536
	}
	switch {
	case delay <= 0:
	case delay <= 256:
		d.put(0, byte(delay-1))
	default:
		d.put(1, byte((delay-1)&0xFF), byte((delay-1)>>8))
	}
}

// Close finalizes the file: RDOS gets its end marker, DosBox gets its
// length fields filled in.
func (d *DiskWriter) Close() error {
	if d.file == nil {
		return nil
	}
	if d.format == DiskRDOS {
		d.put(0xFF, 0xFF)
	} else {
		var b [8]byte
		binary.LittleEndian.PutUint32(b[0:4], uint32(d.curIntTime))
		binary.LittleEndian.PutUint32(b[4:8], uint32(d.written))
		d.patch(12, b[:])
	}
	if d.err == nil {
		d.err = d.w.Flush()
	}
	if err := d.file.Close(); err != nil && d.err == nil {
		d.err = err
	}
	d.file = nil
	d.w = nil
	return d.err
}
