package supplier

import (
	clipmidi "github.com/guirod/clipengine/pkg/midi"
	"github.com/guirod/clipengine/pkg/source"
)

// Resampler converts between the inner material's native frame rate and
// the rate the request asks for, using linear interpolation. When
// disabled (or when the rates already match) it passes requests through
// untouched, which plays the material detuned.
type Resampler struct {
	inner   Supplier
	enabled bool
	temp    *source.AudioBuffer
}

// NewResampler wraps the inner stage. Disabled until SetEnabled(true).
func NewResampler(inner Supplier) *Resampler {
	return &Resampler{inner: inner}
}

// Supplier returns the wrapped stage.
func (r *Resampler) Supplier() Supplier { return r.inner }

// SetEnabled toggles rate conversion.
func (r *Resampler) SetEnabled(enabled bool) { r.enabled = enabled }

// Enabled reports whether rate conversion is active.
func (r *Resampler) Enabled() bool { return r.enabled }

// SupplyAudio translates the request into the inner rate, pulls the
// required inner frames and interpolates them to the destination rate.
func (r *Resampler) SupplyAudio(req *source.SupplyAudioRequest, dest *source.AudioBuffer) source.SupplyResponse {
	nativeRate, ok := r.inner.FrameRate()
	if !r.enabled || !ok || req.DestSampleRate <= 0 || nativeRate == req.DestSampleRate {
		return r.inner.SupplyAudio(req, dest)
	}
	ratio := nativeRate / req.DestSampleRate
	destFrames := dest.FrameCount()
	innerStart := int64(float64(req.StartFrame) * ratio)
	// One extra frame so the last interpolation has a right neighbor.
	innerFrames := int(float64(destFrames)*ratio) + 2
	temp := r.tempBuffer(dest.ChannelCount(), innerFrames)
	innerReq := source.SupplyAudioRequest{
		StartFrame:     innerStart,
		DestSampleRate: nativeRate,
	}
	innerResp := r.inner.SupplyAudio(&innerReq, temp)
	channels := dest.ChannelCount()
	written := 0
	for i := 0; i < destFrames; i++ {
		pos := float64(req.StartFrame+int64(i))*ratio - float64(innerStart)
		idx := int(pos)
		if idx >= innerResp.NumFramesWritten {
			break
		}
		frac := float32(pos - float64(idx))
		next := idx + 1
		if next >= innerResp.NumFramesWritten {
			next = innerResp.NumFramesWritten - 1
		}
		for ch := 0; ch < channels; ch++ {
			a := temp.Sample(idx, ch)
			b := temp.Sample(next, ch)
			dest.SetSample(i, ch, a+(b-a)*frac)
		}
		written++
	}
	return source.SupplyResponse{
		NumFramesWritten:  written,
		NumFramesConsumed: innerResp.NumFramesConsumed,
		NextInnerFrame:    req.StartFrame + int64(written),
		ReachedEnd:        innerResp.ReachedEnd && written < destFrames,
	}
}

// tempBuffer reuses the scratch buffer across blocks, growing only when
// a larger block arrives.
func (r *Resampler) tempBuffer(channels, frames int) *source.AudioBuffer {
	if r.temp == nil || r.temp.ChannelCount() != channels || r.temp.FrameCount() < frames {
		r.temp = source.NewAudioBuffer(channels, frames)
	}
	return r.temp.Slice(0, frames)
}

// SupplyMidi passes through; MIDI sources rescale event timestamps to
// the destination rate themselves.
func (r *Resampler) SupplyMidi(req *source.SupplyMidiRequest, dest *clipmidi.EventList) source.SupplyResponse {
	return r.inner.SupplyMidi(req, dest)
}

// ChannelCount passes through.
func (r *Resampler) ChannelCount() int { return r.inner.ChannelCount() }

// FrameCount passes through.
func (r *Resampler) FrameCount() int { return r.inner.FrameCount() }

// Duration passes through.
func (r *Resampler) Duration() float64 { return r.inner.Duration() }

// FrameRate passes through.
func (r *Resampler) FrameRate() (float64, bool) { return r.inner.FrameRate() }
