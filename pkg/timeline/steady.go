package timeline

// SteadyTimeline is a manually advanced timeline for offline rendering
// and tests. It advances only when Advance is called, so a driver can
// step it in lockstep with rendered blocks.
type SteadyTimeline struct {
	cursorPos float64
	tempo     float64
	running   bool
}

// NewSteadyTimeline returns a running timeline at position zero with the
// given tempo.
func NewSteadyTimeline(tempo float64) *SteadyTimeline {
	return &SteadyTimeline{tempo: tempo, running: true}
}

// CursorPos returns the current position in seconds.
func (t *SteadyTimeline) CursorPos() float64 { return t.cursorPos }

// Tempo returns the current tempo in beats per minute.
func (t *SteadyTimeline) Tempo() float64 { return t.tempo }

// IsRunning reports whether the timeline is advancing.
func (t *SteadyTimeline) IsRunning() bool { return t.running }

// Advance moves the cursor forward by the given number of seconds.
// It has no effect while the timeline is paused.
func (t *SteadyTimeline) Advance(seconds float64) {
	if t.running {
		t.cursorPos += seconds
	}
}

// SetTempo changes the tempo. Takes effect on the next snapshot.
func (t *SteadyTimeline) SetTempo(bpm float64) { t.tempo = bpm }

// SetRunning pauses or resumes the timeline.
func (t *SteadyTimeline) SetRunning(running bool) { t.running = running }

// SeekTo jumps the cursor to an absolute position in seconds.
func (t *SteadyTimeline) SeekTo(pos float64) { t.cursorPos = pos }
