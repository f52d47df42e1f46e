package oplmusic

import "github.com/slade-tools/oplplay/pkg/opl"

// PlayTick applies the register writes of the next record and returns
// the number of ticks until the one after it is due. 0 means the score
// has ended. A record cut short by the end of the score ends it.
func (m *MusicFile) PlayTick() int {
	if m.score == nil {
		return 0
	}
	switch m.hdr.format {
	case RDosPlay:
		return m.tickRDos()
	case DosBox1:
		return m.tickDosBox1()
	case DosBox2:
		return m.tickDosBox2()
	case IMF:
		return m.tickIMF()
	case AudioT:
		return m.tickAudioT()
	case MUS:
		return m.tickMUS()
	}
	return 0
}

// avail reports whether n more bytes can be read at the cursor.
func (m *MusicFile) avail(n int) bool {
	return m.pos+n <= m.hdr.scoreLen
}

func (m *MusicFile) tickRDos() int {
	for m.avail(2) {
		data := m.score[m.pos]
		reg := m.score[m.pos+1]
		m.pos += 2
		switch reg {
		case 0: // delay
			if data != 0 {
				return int(data)
			}
		case 2: // speed change or chip select
			switch data {
			case 0:
				if !m.avail(2) {
					m.pos = m.hdr.scoreLen
					return 0
				}
				clock := readLE16(m.score, m.pos)
				m.pos += 2
				if clock == 0 {
					clock = 0xFFFF
				}
				m.setTickPeriod(float64(clock) / opl.ClockMul)
			case 1:
				m.whichChip = 0
			case 2:
				m.whichChip = 1
			}
		case 0xFF:
			if data == 0xFF {
				return 0
			}
		default:
			m.io.WriteReg(m.whichChip, int(reg), data)
		}
	}
	return 0
}

func (m *MusicFile) tickDosBox1() int {
	for m.avail(1) {
		reg := m.score[m.pos]
		m.pos++

		var data byte
		switch reg {
		case 0: // one byte delay
			if !m.avail(1) {
				return 0
			}
			m.pos++
			return int(m.score[m.pos-1]) + 1
		case 1: // two byte delay
			if !m.avail(2) {
				return 0
			}
			m.pos += 2
			return readLE16(m.score, m.pos-2) + 1
		case 2:
			m.whichChip = 0
			continue
		case 3:
			m.whichChip = 1
			continue
		case 4: // escaped low register
			if !m.avail(2) {
				return 0
			}
			reg, data = m.score[m.pos], m.score[m.pos+1]
			m.pos += 2
		default:
			if !m.avail(1) {
				return 0
			}
			data = m.score[m.pos]
			m.pos++
		}
		m.io.WriteReg(m.whichChip, int(reg), data)
	}
	return 0
}

func (m *MusicFile) tickDosBox2() int {
	codes := &m.hdr.dro2
	for m.avail(2) {
		code := m.score[m.pos]
		data := m.score[m.pos+1]
		m.pos += 2

		// The high bit selects the chip.
		which := int(code >> 7)
		code &= 0x7F

		switch {
		case code == codes.shortDelay:
			return int(data) + 1
		case code == codes.longDelay:
			return (int(data) + 1) << 8
		case int(code) < len(codes.regs):
			m.io.WriteReg(which, int(codes.regs[code]), data)
		}
	}
	return 0
}

func (m *MusicFile) tickIMF() int {
	delay := 0
	for delay == 0 && m.avail(4) {
		rec := m.score[m.pos : m.pos+4]
		if rec[0] == 0xFF && rec[1] == 0xFF && rec[2] == 0xFF && rec[3] == 0xFF {
			return 0
		}
		delay = readLE16(rec, 2)
		m.pos += 4
		m.io.WriteReg(0, int(rec[0]), rec[1])
	}
	return delay
}

func (m *MusicFile) tickAudioT() int {
	// The final byte of a sound effect is padding.
	if m.pos >= m.hdr.scoreLen-1 {
		return 0
	}
	block := (m.octave & 7) << 2
	if f := m.score[m.pos]; f == 0 {
		m.io.WriteReg(0, opl.RegFreqHigh, block)
	} else {
		m.io.WriteReg(0, opl.RegFreqLow, f)
		m.io.WriteReg(0, opl.RegFreqHigh, block|0x20)
	}
	m.pos++
	return 1
}
