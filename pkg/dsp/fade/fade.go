// Package fade computes linear gain windows for clip playback: fade-in
// at the clip start, fade-out at the end, and shorter fades around loop
// boundaries to avoid clicks on repeat.
package fade

// DefaultFadeSeconds is the length of both the start/end fades and the
// loop-boundary fades, measured in rendered audio.
const DefaultFadeSeconds = 0.01

// Calculator computes a gain factor for an absolute sample position.
// All fields are sample frame counts at one fixed rate.
type Calculator struct {
	// EndPos is the position where playback ends (fade-out target),
	// relative to start position zero.
	EndPos uint64
	// ClipLength locates the loop boundaries.
	ClipLength uint64
	// ClipCursorOffset is the phase within the clip at position zero,
	// used together with ClipLength to locate loop boundaries.
	ClipCursorOffset uint64
	// StartEndFadeLength is the length of the start fade-in and end
	// fade-out.
	StartEndFadeLength uint64
	// IntermediateFadeLength is the length of the loop-boundary fades.
	IntermediateFadeLength uint64
}

// FadeFactor returns the gain in [0, 1] for the given position.
// Positions before zero (not yet started) and at or past EndPos
// (finished) yield zero. Start/end fades take priority over
// loop-boundary fades so a clip edge that coincides with a loop
// boundary is not attenuated twice.
func (c *Calculator) FadeFactor(currentPos int64) float64 {
	if currentPos < 0 {
		return 0.0
	}
	pos := uint64(currentPos)
	if pos >= c.EndPos {
		return 0.0
	}
	if fadeLength := c.StartEndFadeLength; fadeLength > 0 {
		if pos < fadeLength {
			return float64(pos) / float64(fadeLength)
		}
		if distanceToEnd := c.EndPos - pos; distanceToEnd < fadeLength {
			return float64(distanceToEnd) / float64(fadeLength)
		}
	}
	if fadeLength := c.IntermediateFadeLength; fadeLength > 0 && c.ClipLength > 0 {
		posWithinClip := uint64(euclidMod(currentPos+int64(c.ClipCursorOffset), int64(c.ClipLength)))
		if distanceToClipEnd := c.ClipLength - posWithinClip; distanceToClipEnd < fadeLength {
			return float64(distanceToClipEnd) / float64(fadeLength)
		}
		if posWithinClip < fadeLength {
			return float64(posWithinClip) / float64(fadeLength)
		}
	}
	return 1.0
}

// euclidMod is the always-non-negative remainder, correct for values
// crossing zero from either side.
func euclidMod(a, n int64) int64 {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
