package oplmusic

import "math"

const offsetRamp = 512

// dcOffset recentres synthesized output. Three of the four OPL waveforms
// are non-negative, so some timbres push the signal far above zero.
type dcOffset struct {
	last float64
}

// apply shifts buf back toward [-1, 1], ramping from the previous
// block's offset so there is no click at the boundary.
func (o *dcOffset) apply(buf []float32) {
	count := len(buf)
	if count == 0 {
		return
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	largestAt := 0
	for i, v := range buf {
		s := float64(v)
		if s > hi {
			hi = s
			largestAt = i
		}
		if s < lo {
			lo = s
			largestAt = i
		}
	}

	var target float64
	// Prefer zero, even if that means a little clipping.
	if o.last == 0 && lo >= -1.1 && hi <= 1.1 {
		target = 0
	} else {
		target = (hi + lo) / 2
		if math.Abs(target) < 1.0/256 {
			target = 0
		}
	}

	var ramp int
	if count >= offsetRamp {
		ramp = offsetRamp
	} else {
		ramp = min(count, max(196, largestAt))
	}
	step := (target - o.last) / float64(ramp)

	offset := o.last
	i := 0
	if step != 0 {
		for ; i < ramp; i++ {
			buf[i] = float32(float64(buf[i]) - offset)
			offset += step
		}
	}
	if offset != 0 {
		for ; i < count; i++ {
			buf[i] = float32(float64(buf[i]) - offset)
		}
	}
	o.last = offset
}
