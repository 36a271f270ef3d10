// Package timeline provides the external time and tempo reference that
// clips schedule themselves against.
package timeline

// Timeline is the clock a clip synchronizes to. It is distinct from
// wall-clock time: it can pause, jump and change tempo between render
// blocks.
type Timeline interface {
	// CursorPos returns the current position in seconds.
	CursorPos() float64
	// Tempo returns the current tempo in beats per minute.
	Tempo() float64
	// IsRunning reports whether the timeline is advancing.
	IsRunning() bool
}

// Snapshot is one consistent read of a timeline, taken once at block
// start. The renderer must never re-read the live timeline mid-block.
type Snapshot struct {
	CursorPos float64
	Tempo     float64
	Running   bool
}

// TakeSnapshot reads the timeline once.
func TakeSnapshot(tl Timeline) Snapshot {
	return Snapshot{
		CursorPos: tl.CursorPos(),
		Tempo:     tl.Tempo(),
		Running:   tl.IsRunning(),
	}
}
