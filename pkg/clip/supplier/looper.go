package supplier

import (
	"github.com/guirod/clipengine/pkg/dsp/fade"
	clipmidi "github.com/guirod/clipengine/pkg/midi"
	"github.com/guirod/clipengine/pkg/source"
)

// Looper repeats the inner material endlessly by wrapping request
// positions modulo the material length. Short fades around the loop
// boundary (enabled by default via the chain) mask discontinuities
// between the material's end and start.
//
// MIDI passes through unlooped; the renderer wraps MIDI itself so that
// re-queried events keep correct within-block offsets.
type Looper struct {
	inner        Supplier
	enabled      bool
	fadesEnabled bool
}

// NewLooper wraps the inner stage. Looping is off until SetEnabled.
func NewLooper(inner Supplier) *Looper {
	return &Looper{inner: inner}
}

// Supplier returns the wrapped stage.
func (l *Looper) Supplier() Supplier { return l.inner }

// SetEnabled toggles loop wrapping.
func (l *Looper) SetEnabled(enabled bool) { l.enabled = enabled }

// Enabled reports whether loop wrapping is active.
func (l *Looper) Enabled() bool { return l.enabled }

// SetFadesEnabled toggles loop-boundary fades.
func (l *Looper) SetFadesEnabled(enabled bool) { l.fadesEnabled = enabled }

// FadesEnabled reports whether loop-boundary fades are applied.
func (l *Looper) FadesEnabled() bool { return l.fadesEnabled }

// SupplyAudio wraps the requested position into the material and
// re-queries from the start whenever the material runs out mid-block.
func (l *Looper) SupplyAudio(req *source.SupplyAudioRequest, dest *source.AudioBuffer) source.SupplyResponse {
	if !l.enabled || req.StartFrame < 0 {
		return l.inner.SupplyAudio(req, dest)
	}
	length := int64(l.inner.FrameCount())
	if length <= 0 {
		return l.inner.SupplyAudio(req, dest)
	}
	start := req.StartFrame % length
	destFrames := dest.FrameCount()
	written := 0
	consumed := 0
	for written < destFrames {
		innerReq := source.SupplyAudioRequest{
			StartFrame:     start,
			DestSampleRate: req.DestSampleRate,
		}
		part := dest.Slice(written, destFrames)
		resp := l.inner.SupplyAudio(&innerReq, part)
		if resp.NumFramesWritten == 0 && !resp.ReachedEnd {
			break
		}
		written += resp.NumFramesWritten
		consumed += resp.NumFramesConsumed
		if written < destFrames {
			// Wrap: the user is assumed to have cut the material
			// sample-perfect, so continue immediately from the top.
			start = 0
		}
		if resp.NumFramesWritten == 0 && resp.ReachedEnd && start == 0 {
			// Zero-length tail guard; avoid spinning.
			break
		}
	}
	if l.fadesEnabled {
		l.applyBoundaryFades(req, dest, written, length)
	}
	return source.SupplyResponse{
		NumFramesWritten:  written,
		NumFramesConsumed: consumed,
		NextInnerFrame:    req.StartFrame + int64(written),
		ReachedEnd:        false,
	}
}

func (l *Looper) applyBoundaryFades(req *source.SupplyAudioRequest, dest *source.AudioBuffer, written int, length int64) {
	if req.DestSampleRate <= 0 {
		return
	}
	fadeFrames := uint64(fade.DefaultFadeSeconds * req.DestSampleRate)
	calc := fade.Calculator{
		EndPos:                 ^uint64(0),
		ClipLength:             uint64(length),
		StartEndFadeLength:     0,
		IntermediateFadeLength: fadeFrames,
	}
	channels := dest.ChannelCount()
	for f := 0; f < written; f++ {
		gain := float32(calc.FadeFactor(req.StartFrame + int64(f)))
		if gain == 1.0 {
			continue
		}
		for ch := 0; ch < channels; ch++ {
			dest.SetSample(f, ch, dest.Sample(f, ch)*gain)
		}
	}
}

// SupplyMidi passes through.
func (l *Looper) SupplyMidi(req *source.SupplyMidiRequest, dest *clipmidi.EventList) source.SupplyResponse {
	return l.inner.SupplyMidi(req, dest)
}

// ChannelCount passes through.
func (l *Looper) ChannelCount() int { return l.inner.ChannelCount() }

// FrameCount passes through.
func (l *Looper) FrameCount() int { return l.inner.FrameCount() }

// Duration passes through.
func (l *Looper) Duration() float64 { return l.inner.Duration() }

// FrameRate passes through.
func (l *Looper) FrameRate() (float64, bool) { return l.inner.FrameRate() }
