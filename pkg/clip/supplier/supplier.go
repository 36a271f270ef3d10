// Package supplier implements the clip engine's transformation
// pipeline: an ordered, fixed-topology chain of stages
// (Fader → Resampler → TimeStretcher → Looper → Recorder) that the
// block renderer pulls audio and MIDI through. Each stage owns the
// stage below it exclusively; the chain holds no transport state.
package supplier

import (
	"github.com/guirod/clipengine/pkg/source"
)

// Supplier is one stage of the pipeline. Every stage supplies both
// audio and MIDI (passing through whichever it does not transform) and
// answers the pass-through material queries.
type Supplier interface {
	source.AudioSupplier
	source.MidiSupplier
	source.ExactFrameCount
	source.ExactDuration
	source.WithFrameRate
}
