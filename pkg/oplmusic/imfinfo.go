package oplmusic

import (
	"fmt"
	"hash/crc32"
	"strings"
)

const (
	museRecordSize = 86
	museNameSize   = 16
	musePathSize   = 64
	imfFooterMark  = 0x1A
)

// RateTable overrides the IMF tick rate of known files, keyed by the
// CRC-32 of the whole file.
type RateTable map[uint32]int

// Info is the text embedded in an IMF file.
type Info struct {
	Title   string
	Game    string
	Source  string // MUSE source path
	Author  string
	Comment string
	Program string
	Rate    int
	CRC     uint32
}

// String formats the info for display.
func (i Info) String() string {
	var b strings.Builder
	if i.Title != "" {
		fmt.Fprintf(&b, "Track name: %s\n", i.Title)
	} else {
		b.WriteString("Unidentified song\n")
	}
	if i.Game != "" {
		fmt.Fprintf(&b, "Game: %s\n", i.Game)
	}
	if i.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", i.Source)
	}
	if i.Author != "" {
		fmt.Fprintf(&b, "Author(s): %s\n", i.Author)
	}
	if i.Comment != "" {
		fmt.Fprintf(&b, "\"%s\"\n", i.Comment)
	}
	if i.Program != "" {
		fmt.Fprintf(&b, "Program: %s\n", i.Program)
	}
	fmt.Fprintf(&b, "Rate: %d Hz\n", i.Rate)
	return b.String()
}

// ReadIMFInfo extracts the embedded text of an IMF file without playing
// it. defaultRate is used when rates has no entry for the file.
func ReadIMFInfo(data []byte, defaultRate int, rates RateTable) Info {
	if defaultRate <= 0 {
		defaultRate = DefaultImfRate
	}
	info := Info{CRC: crc32.ChecksumIEEE(data), Rate: defaultRate}
	if r, ok := rates[info.CRC]; ok && r > 0 {
		info.Rate = r
	}

	end := imfSongEnd(data)

	// MUSE records take priority over any other text.
	if end > 0 && end+museRecordSize <= len(data) {
		rec := data[end : end+museRecordSize]
		name := printable(rec[:museNameSize])
		if name != "" {
			info.Title = name
			info.Source = printable(rec[museNameSize : museNameSize+musePathSize])
			return info
		}
	}

	if len(data) >= 6 && string(data[:5]) == "ADLIB" && data[5] == 1 {
		if h, err := parseADLIB(data); err == nil {
			info.Title = h.imf.track
			info.Game = h.imf.game
			if info.Title != "" || info.Game != "" {
				return info
			}
		}
	}

	if end > 0 && end < len(data) && data[end] == imfFooterMark {
		fields := make([]string, 4)
		pos := end + 1
		for i := range fields {
			next := skipString(data, pos)
			if next < 0 {
				fields[i] = printable(data[pos:])
				break
			}
			fields[i] = printable(data[pos:next])
			pos = next
		}
		info.Title, info.Author, info.Comment, info.Program = fields[0], fields[1], fields[2], fields[3]
	}
	return info
}

// imfSongEnd returns the offset just past the register data, or 0 if the
// file carries no length.
func imfSongEnd(data []byte) int {
	if len(data) >= 6 && string(data[:5]) == "ADLIB" && data[5] == 1 {
		h, err := parseADLIB(data)
		if err != nil || h.scoreLen == len(data) {
			return 0
		}
		return h.scoreLen
	}
	if l := readLE16(data, 0); l > 0 && l%4 == 0 && 2+l <= len(data) {
		return 2 + l
	}
	return 0
}

// printable returns the NUL-terminated text of b, or "" if it contains
// control characters.
func printable(b []byte) string {
	s := cString(b)
	for _, c := range []byte(s) {
		if c < 0x20 || c == 0x7F {
			return ""
		}
	}
	return strings.TrimSpace(s)
}
