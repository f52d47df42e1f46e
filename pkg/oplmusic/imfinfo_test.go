package oplmusic

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
)

func padded(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func TestIMFInfoUnidentified(t *testing.T) {
	data := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	info := ReadIMFInfo(data, 0, nil)
	assert.Empty(t, info.Title)
	assert.Equal(t, DefaultImfRate, info.Rate)
	assert.Equal(t, crc32.ChecksumIEEE(data), info.CRC)
	assert.Contains(t, info.String(), "Unidentified song")
}

func TestIMFInfoADLIB(t *testing.T) {
	data := adlibFile("Track", "Game", 0, 0, 0, 0, 0, 0, 0, 0, 0)
	info := ReadIMFInfo(data, 560, nil)
	assert.Equal(t, "Track", info.Title)
	assert.Equal(t, "Game", info.Game)
	assert.Equal(t, 560, info.Rate)
	assert.Contains(t, info.String(), "Track name: Track\n")
}

func TestIMFInfoMUSE(t *testing.T) {
	data := cat(le16(8), make([]byte, 8),
		padded("Song", museNameSize), padded(`C:\MUSE\SONG.MUS`, musePathSize), make([]byte, 6))
	info := ReadIMFInfo(data, 700, nil)
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, `C:\MUSE\SONG.MUS`, info.Source)
	assert.Empty(t, info.Author)
}

func TestIMFInfoFooter(t *testing.T) {
	data := cat(le16(4), make([]byte, 4), []byte{imfFooterMark},
		[]byte("Title\x00Author\x00Remark\x00Prog\x00"))
	info := ReadIMFInfo(data, 700, nil)
	assert.Equal(t, "Title", info.Title)
	assert.Equal(t, "Author", info.Author)
	assert.Equal(t, "Remark", info.Comment)
	assert.Equal(t, "Prog", info.Program)

	s := info.String()
	assert.Contains(t, s, "Author(s): Author\n")
	assert.Contains(t, s, "\"Remark\"\n")
}

func TestIMFInfoFooterUnterminated(t *testing.T) {
	data := cat(le16(4), make([]byte, 4), []byte{imfFooterMark}, []byte("Title\x00Auth"))
	info := ReadIMFInfo(data, 700, nil)
	assert.Equal(t, "Title", info.Title)
	assert.Equal(t, "Auth", info.Author)
	assert.Empty(t, info.Program)
}

func TestIMFInfoRateTable(t *testing.T) {
	data := cat(le16(4), make([]byte, 4))
	rates := RateTable{crc32.ChecksumIEEE(data): 280}
	assert.Equal(t, 280, ReadIMFInfo(data, 700, rates).Rate)
	assert.Equal(t, 700, ReadIMFInfo(append(data, 0), 700, rates).Rate)
}
