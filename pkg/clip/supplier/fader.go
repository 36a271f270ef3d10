package supplier

import (
	"github.com/guirod/clipengine/pkg/dsp/fade"
	clipmidi "github.com/guirod/clipengine/pkg/midi"
	"github.com/guirod/clipengine/pkg/source"
)

// faderState tracks what the fader is currently doing.
type faderState int

const (
	faderIdle faderState = iota
	faderFadingIn
	faderFadingOut
	faderSilent
)

// Fader is the outermost stage. It ramps the signal down before
// destructive edits of the material below it (e.g. replacing the source
// when recording starts) and back up afterwards, so edits never click.
// While idle it passes audio through untouched.
type Fader struct {
	inner       Supplier
	state       faderState
	frameCursor int
	fadeFrames  int
}

// NewFader wraps the inner stage.
func NewFader(inner Supplier) *Fader {
	return &Fader{inner: inner}
}

// Supplier returns the wrapped stage.
func (f *Fader) Supplier() Supplier { return f.inner }

// StartFadeOut begins ramping the output down to silence over the
// standard fade length.
func (f *Fader) StartFadeOut() {
	f.state = faderFadingOut
	f.frameCursor = 0
}

// StartFadeIn begins ramping the output back up from silence.
func (f *Fader) StartFadeIn() {
	f.state = faderFadingIn
	f.frameCursor = 0
}

// IsSilent reports whether a fade-out has completed and playback is
// currently muted.
func (f *Fader) IsSilent() bool { return f.state == faderSilent }

// SupplyAudio pulls from the inner stage and applies the active ramp.
func (f *Fader) SupplyAudio(req *source.SupplyAudioRequest, dest *source.AudioBuffer) source.SupplyResponse {
	if f.state == faderSilent {
		dest.Clear()
		return source.SupplyResponse{
			NumFramesWritten: dest.FrameCount(),
			NextInnerFrame:   req.StartFrame + int64(dest.FrameCount()),
		}
	}
	resp := f.inner.SupplyAudio(req, dest)
	if f.state == faderIdle {
		return resp
	}
	if f.fadeFrames == 0 && req.DestSampleRate > 0 {
		f.fadeFrames = int(fade.DefaultFadeSeconds * req.DestSampleRate)
	}
	channels := dest.ChannelCount()
	for frame := 0; frame < resp.NumFramesWritten; frame++ {
		gain := f.currentGain()
		for ch := 0; ch < channels; ch++ {
			dest.SetSample(frame, ch, dest.Sample(frame, ch)*float32(gain))
		}
		f.advance()
	}
	return resp
}

func (f *Fader) currentGain() float64 {
	if f.state == faderSilent {
		return 0.0
	}
	if f.fadeFrames == 0 {
		return 1.0
	}
	ratio := float64(f.frameCursor) / float64(f.fadeFrames)
	if ratio > 1.0 {
		ratio = 1.0
	}
	if f.state == faderFadingOut {
		return 1.0 - ratio
	}
	return ratio
}

func (f *Fader) advance() {
	switch f.state {
	case faderFadingOut:
		f.frameCursor++
		if f.frameCursor >= f.fadeFrames {
			f.state = faderSilent
		}
	case faderFadingIn:
		f.frameCursor++
		if f.frameCursor >= f.fadeFrames {
			f.state = faderIdle
		}
	}
}

// SupplyMidi passes MIDI through; fades are a continuous-gain concept.
func (f *Fader) SupplyMidi(req *source.SupplyMidiRequest, dest *clipmidi.EventList) source.SupplyResponse {
	return f.inner.SupplyMidi(req, dest)
}

// ChannelCount passes through.
func (f *Fader) ChannelCount() int { return f.inner.ChannelCount() }

// FrameCount passes through.
func (f *Fader) FrameCount() int { return f.inner.FrameCount() }

// Duration passes through.
func (f *Fader) Duration() float64 { return f.inner.Duration() }

// FrameRate passes through.
func (f *Fader) FrameRate() (float64, bool) { return f.inner.FrameRate() }
