package oplmusic

// Bounded little-endian readers. Out of range reads return 0; callers
// check lengths first where a short read matters.

func readLE16(b []byte, off int) int {
	if off < 0 || off+2 > len(b) {
		return 0
	}
	return int(b[off]) | int(b[off+1])<<8
}

func readLE32(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

// skipString returns the offset just past the NUL terminating the string
// at off, or -1 if the buffer ends first.
func skipString(b []byte, off int) int {
	for ; off < len(b); off++ {
		if b[off] == 0 {
			return off + 1
		}
	}
	return -1
}

// cString returns the text before the first NUL in b.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
