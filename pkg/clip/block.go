package clip

import (
	"github.com/guirod/clipengine/pkg/midi"
	"github.com/guirod/clipengine/pkg/source"
)

// Block is the per-callback render target handed to ProcessBlock.
// Exactly one of Audio or Midi is set, matching the clip's material
// kind. The driver owns the block and reuses it across calls; the
// renderer clears it at the start of every call and reports how many
// frames it produced via FramesWritten.
type Block struct {
	frameCount int
	sampleRate float64

	// Audio is the interleaved output buffer for audio clips.
	Audio *source.AudioBuffer
	// Midi is the output event list for MIDI clips.
	Midi *midi.EventList

	framesWritten int
}

// NewAudioBlock creates a render block backed by an owned interleaved
// buffer.
func NewAudioBlock(channels, frameCount int, sampleRate float64) *Block {
	return &Block{
		frameCount: frameCount,
		sampleRate: sampleRate,
		Audio:      source.NewAudioBuffer(channels, frameCount),
	}
}

// NewMidiBlock creates a render block backed by an event list.
func NewMidiBlock(frameCount int, sampleRate float64) *Block {
	return &Block{
		frameCount: frameCount,
		sampleRate: sampleRate,
		Midi:       midi.NewEventList(128),
	}
}

// FrameCount returns the fixed block length in frames.
func (b *Block) FrameCount() int { return b.frameCount }

// SampleRate returns the output sample rate in Hz.
func (b *Block) SampleRate() float64 { return b.sampleRate }

// Duration returns the block length in seconds of rendered audio.
func (b *Block) Duration() float64 {
	if b.sampleRate == 0 {
		return 0
	}
	return float64(b.frameCount) / b.sampleRate
}

// IsMidi reports whether the block carries MIDI events.
func (b *Block) IsMidi() bool { return b.Midi != nil }

// FramesWritten reports how many output frames the last render call
// produced. Anything less than FrameCount means the remainder is
// silence.
func (b *Block) FramesWritten() int { return b.framesWritten }

// setFramesWritten records the produced frame count, clamped to the
// block length.
func (b *Block) setFramesWritten(n int) {
	if n > b.frameCount {
		n = b.frameCount
	}
	if n < 0 {
		n = 0
	}
	b.framesWritten = n
}

// Clear resets the block to silence/emptiness before rendering.
func (b *Block) Clear() {
	b.framesWritten = 0
	if b.Audio != nil {
		b.Audio.Clear()
	}
	if b.Midi != nil {
		b.Midi.Clear()
	}
}
