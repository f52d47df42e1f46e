package oplmusic

// MUS event types, from bits 4-6 of the event byte.
const (
	musReleaseNote = iota
	musPlayNote
	musPitchBend
	musSystemEvent
	musController
	musMeasureEnd
	musScoreEnd
	musUnused
)

// musSystemControllers maps MUS system events 10-14 to controllers.
// Event 14 resets all controllers and has no Controller of its own.
var musSystemControllers = [...]Controller{
	10: CtrlSoundsOff,
	11: CtrlNotesOff,
	12: CtrlMono,
	13: CtrlPoly,
}

const musResetControllers = 14

// tickMUS runs events until one carries a non-zero delay.
func (m *MusicFile) tickMUS() int {
	d := m.driver
	d.Time = m.mlTime

	for m.avail(1) {
		ev := m.score[m.pos]
		m.pos++
		channel := int(ev & 0x0F)

		switch (ev >> 4) & 0x07 {
		case musReleaseNote:
			if !m.avail(1) {
				return 0
			}
			d.NoteOff(channel, int(m.score[m.pos]&0x7F))
			m.pos++

		case musPlayNote:
			if !m.avail(1) {
				return 0
			}
			note := m.score[m.pos]
			m.pos++
			volume := -1
			if note&0x80 != 0 {
				if !m.avail(1) {
					return 0
				}
				volume = int(m.score[m.pos] & 0x7F)
				m.pos++
			}
			d.NoteOn(channel, int(note&0x7F), volume)

		case musPitchBend:
			if !m.avail(1) {
				return 0
			}
			d.PitchWheel(channel, int(m.score[m.pos])<<6)
			m.pos++

		case musSystemEvent:
			if !m.avail(1) {
				return 0
			}
			n := int(m.score[m.pos] & 0x7F)
			m.pos++
			switch {
			case n == musResetControllers:
				d.ResetControllers(channel, d.ch[channel].volume)
			case n >= 10 && n < len(musSystemControllers):
				d.ChangeControl(channel, musSystemControllers[n], 0)
			}

		case musController:
			if !m.avail(2) {
				return 0
			}
			ctrl := int(m.score[m.pos] & 0x7F)
			value := int(m.score[m.pos+1] & 0x7F)
			m.pos += 2
			if ctrl <= int(CtrlSoftPedal) {
				d.ChangeControl(channel, Controller(ctrl), value)
			}

		case musMeasureEnd:

		case musScoreEnd:
			return 0

		case musUnused:
			if !m.avail(1) {
				return 0
			}
			m.pos++
		}

		if ev&0x80 != 0 {
			if delay := m.readMUSDelay(); delay > 0 {
				return delay
			} else if delay < 0 {
				return 0
			}
		}
	}
	return 0
}

// readMUSDelay reads a variable length time value: 7 bits per byte,
// high bit set on all but the last. -1 means the score ended mid-value.
func (m *MusicFile) readMUSDelay() int {
	delay := 0
	for m.avail(1) {
		b := m.score[m.pos]
		m.pos++
		delay = delay<<7 | int(b&0x7F)
		if b&0x80 == 0 {
			return delay
		}
		if delay > 1<<24 {
			return -1
		}
	}
	return -1
}
