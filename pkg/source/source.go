// Package source defines the material abstraction the clip engine pulls
// from: a supplier of interleaved audio frames or timestamped MIDI
// events for a given position, length and sample rate. It also provides
// in-memory audio and MIDI sources used as the innermost stage of the
// supplier chain.
package source

import (
	clipmidi "github.com/guirod/clipengine/pkg/midi"
)

// SupplyAudioRequest asks a supplier for audio starting at an inner
// frame position.
type SupplyAudioRequest struct {
	// StartFrame is the position within the supplier's material, in
	// frames at DestSampleRate. Stages that convert rates (resampler,
	// time stretcher) translate it to native frames. Negative during
	// count-in.
	StartFrame int64
	// DestSampleRate is the frame rate of the destination buffer.
	DestSampleRate float64
}

// SupplyMidiRequest asks a supplier for MIDI events covering a block.
type SupplyMidiRequest struct {
	// StartFrame is the position within the supplier's material, in
	// frames at DestSampleRate. Negative positions are valid: events at
	// material frame >= 0 are emitted with correspondingly later
	// offsets within the block.
	StartFrame int64
	// DestFrameCount is the number of frames the block spans.
	DestFrameCount int
	// DestSampleRate is the frame rate of the destination block.
	DestSampleRate float64
}

// SupplyResponse reports what a supplier produced for one request.
type SupplyResponse struct {
	// NumFramesWritten is the number of destination frames filled.
	NumFramesWritten int
	// NumFramesConsumed is the number of inner source frames used up.
	NumFramesConsumed int
	// NextInnerFrame is the inner frame position a follow-up request
	// should continue at.
	NextInnerFrame int64
	// ReachedEnd reports that the supplier's material is exhausted.
	ReachedEnd bool
}

// AudioSupplier supplies interleaved audio frames.
type AudioSupplier interface {
	SupplyAudio(req *SupplyAudioRequest, dest *AudioBuffer) SupplyResponse
	ChannelCount() int
}

// MidiSupplier supplies timestamped MIDI events.
type MidiSupplier interface {
	SupplyMidi(req *SupplyMidiRequest, dest *clipmidi.EventList) SupplyResponse
}

// ExactFrameCount is implemented by suppliers whose material has a known
// frame count.
type ExactFrameCount interface {
	FrameCount() int
}

// ExactDuration is implemented by suppliers whose material has a known
// duration in seconds.
type ExactDuration interface {
	Duration() float64
}

// WithFrameRate is implemented by suppliers that know their native frame
// rate. The bool result is false while the rate is not determinable
// (e.g. mid-recording).
type WithFrameRate interface {
	FrameRate() (float64, bool)
}

// Material is a piece of playable source material. Concrete materials
// additionally implement AudioSupplier or MidiSupplier (or both).
type Material interface {
	ExactFrameCount
	ExactDuration
	WithFrameRate
}
