package oplmusic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMUSEvents(t *testing.T) {
	data := musFile(nil,
		0x90, 0x80|60, 100, 0x0A, // play note with volume, delay 10
		0x80, 60, 0x05, // release, delay 5
		0xC0, 3, 50, 0x81, 0x00, // volume 50, delay 128
		0xA0, 0xFF, 0x01, // pitch bend, delay 1
		0xB0, 14, 0x02, // reset controllers, delay 2
		0x60, // score end
	)
	m, _ := openRecorded(t, data, Config{Chips: 1, Bank: testBank()})
	d := m.Driver()
	require.NotNil(t, d)

	assert.Equal(t, 10, m.PlayTick())
	assert.Equal(t, 1, d.Active())
	assert.Equal(t, calcVolume(100, 127, 100), d.slots[0].realVol)

	assert.Equal(t, 5, m.PlayTick())
	assert.Equal(t, 0, d.Active())

	assert.Equal(t, 128, m.PlayTick())
	assert.Equal(t, 50, d.ch[0].volume)

	assert.Equal(t, 1, m.PlayTick())
	assert.Equal(t, 127, d.ch[0].pitch)

	assert.Equal(t, 2, m.PlayTick())
	assert.Equal(t, 64, d.ch[0].pitch)
	assert.Equal(t, 50, d.ch[0].volume)

	assert.Equal(t, 0, m.PlayTick())
}

func TestMUSNoteReusesVolume(t *testing.T) {
	data := musFile(nil,
		0x10, 0x80|60, 90, // play note, no delay
		0x90, 62, 0x01, // play note at the last volume
		0x60,
	)
	m, _ := openRecorded(t, data, Config{Chips: 1, Bank: testBank()})
	d := m.Driver()

	assert.Equal(t, 1, m.PlayTick())
	require.Equal(t, 2, d.Active())
	assert.Equal(t, 90, d.slots[1].volume)
}

func TestMUSTruncated(t *testing.T) {
	for name, score := range map[string][]byte{
		"note":  {0x90, 0x80 | 60},
		"ctrl":  {0xC0, 3},
		"delay": {0x90, 60, 0x81},
	} {
		t.Run(name, func(t *testing.T) {
			m, _ := openRecorded(t, musFile(nil, score...), Config{Chips: 1, Bank: testBank()})
			assert.Equal(t, 0, m.PlayTick())
		})
	}
}

func TestMUSSystemEvents(t *testing.T) {
	data := musFile(nil,
		0x10, 60, // play note
		0x30, 11, // all notes off
		0x10, 62,
		0x10, 64,
		0xB0, 10, 0x01, // all sounds off, delay 1
		0x60,
	)
	m, r := openRecorded(t, data, Config{Chips: 1, Bank: testBank()})
	assert.Equal(t, 1, m.PlayTick())
	assert.Equal(t, 0, m.Driver().Active())
	assert.Contains(t, r.Writes(), write(0, 0x80, 0x0F), "sounds off kills voices")
}

func TestMUSRestartClearsDriver(t *testing.T) {
	data := musFile(nil, 0x90, 0x80|60, 100, 0x0A, 0x60)
	m, _ := openRecorded(t, data, Config{Chips: 1, Bank: testBank()})
	d := m.Driver()
	require.Equal(t, 10, m.PlayTick())
	require.Equal(t, 1, d.Active())
	d.Time = 33

	m.Restart()
	assert.Equal(t, 0, d.Active())
	assert.Equal(t, uint32(0), d.Time)
	assert.Equal(t, 10, m.PlayTick())
}

func TestMUSNeedsBank(t *testing.T) {
	_, err := Open(musFile(nil, 0x60), Config{Chips: 1, ChipFactory: constFactory(0)})
	assert.ErrorIs(t, err, ErrNoBank)
	assert.ErrorIs(t, err, ErrFormat)
}
