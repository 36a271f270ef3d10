package supplier

import (
	clipmidi "github.com/guirod/clipengine/pkg/midi"
	"github.com/guirod/clipengine/pkg/source"
)

// Grain geometry for the overlap-add stretch. Sizes are in destination
// frames.
const (
	grainLength  = 1024
	grainOverlap = 128
)

// TimeStretcher changes playback speed without changing pitch, using a
// granular overlap-add scheme: fixed-size output grains read input
// grains whose spacing is scaled by the stretch factor, with a short
// crossfade between adjacent grains. Factor 1 (or disabled) bypasses.
type TimeStretcher struct {
	inner   Supplier
	enabled bool
	factor  float64
	temp    *source.AudioBuffer
	overlap *source.AudioBuffer
}

// NewTimeStretcher wraps the inner stage at factor 1.
func NewTimeStretcher(inner Supplier) *TimeStretcher {
	return &TimeStretcher{inner: inner, factor: 1.0}
}

// Supplier returns the wrapped stage.
func (t *TimeStretcher) Supplier() Supplier { return t.inner }

// SetEnabled toggles stretching.
func (t *TimeStretcher) SetEnabled(enabled bool) { t.enabled = enabled }

// Enabled reports whether stretching is active.
func (t *TimeStretcher) Enabled() bool { return t.enabled }

// SetFactor sets the stretch factor: material consumed per output
// frame. 2.0 plays the material twice as fast, 0.5 half as fast.
func (t *TimeStretcher) SetFactor(factor float64) {
	if factor > 0 {
		t.factor = factor
	}
}

// Factor returns the current stretch factor.
func (t *TimeStretcher) Factor() float64 { return t.factor }

// SupplyAudio fills dest grain by grain. Each output grain of
// grainLength frames copies an equally long input grain; only the grain
// start positions advance by factor*grainLength, which is what
// preserves pitch while changing speed.
func (t *TimeStretcher) SupplyAudio(req *source.SupplyAudioRequest, dest *source.AudioBuffer) source.SupplyResponse {
	if !t.enabled || t.factor == 1.0 {
		return t.inner.SupplyAudio(req, dest)
	}
	destFrames := dest.FrameCount()
	channels := dest.ChannelCount()
	temp := t.grainBuffer(channels)
	written := 0
	reachedEnd := false
	for written < destFrames && !reachedEnd {
		outGrainStart := req.StartFrame + int64(written)
		grainIndex := outGrainStart / grainLength
		grainOffset := int(outGrainStart % grainLength)
		innerGrainStart := int64(float64(grainIndex) * grainLength * t.factor)
		innerReq := source.SupplyAudioRequest{
			StartFrame:     innerGrainStart + int64(grainOffset),
			DestSampleRate: req.DestSampleRate,
		}
		want := grainLength - grainOffset
		if remaining := destFrames - written; want > remaining {
			want = remaining
		}
		grainDest := temp.Slice(0, want)
		resp := t.inner.SupplyAudio(&innerReq, grainDest)
		for f := 0; f < resp.NumFramesWritten; f++ {
			gain := grainGain(grainOffset + f)
			for ch := 0; ch < channels; ch++ {
				dest.SetSample(written+f, ch, grainDest.Sample(f, ch)*gain)
			}
		}
		// Overlap the head of this grain with the tail of the previous
		// one, read from where the previous grain would have continued.
		if grainIndex > 0 && grainOffset < grainOverlap {
			t.addPreviousTail(req, dest, written, grainIndex, grainOffset, channels)
		}
		if resp.NumFramesWritten < want {
			reachedEnd = resp.ReachedEnd
		}
		written += resp.NumFramesWritten
		if resp.NumFramesWritten == 0 {
			break
		}
	}
	return source.SupplyResponse{
		NumFramesWritten:  written,
		NumFramesConsumed: int(float64(written) * t.factor),
		NextInnerFrame:    req.StartFrame + int64(written),
		ReachedEnd:        reachedEnd,
	}
}

// addPreviousTail mixes in the continuation of the previous grain over
// the crossfade region at the start of the current grain.
func (t *TimeStretcher) addPreviousTail(
	req *source.SupplyAudioRequest,
	dest *source.AudioBuffer,
	written int,
	grainIndex int64,
	grainOffset, channels int,
) {
	prevInnerStart := int64(float64(grainIndex-1)*grainLength*t.factor) + grainLength
	want := grainOverlap - grainOffset
	if remaining := dest.FrameCount() - written; want > remaining {
		want = remaining
	}
	if want <= 0 {
		return
	}
	tail := t.overlapBuffer(channels).Slice(0, want)
	tailReq := source.SupplyAudioRequest{
		StartFrame:     prevInnerStart + int64(grainOffset),
		DestSampleRate: req.DestSampleRate,
	}
	resp := t.inner.SupplyAudio(&tailReq, tail)
	for f := 0; f < resp.NumFramesWritten; f++ {
		gain := 1.0 - grainGain(grainOffset+f)
		for ch := 0; ch < channels; ch++ {
			mixed := dest.Sample(written+f, ch) + tail.Sample(f, ch)*gain
			dest.SetSample(written+f, ch, mixed)
		}
	}
}

// grainGain ramps up over the first grainOverlap frames of a grain and
// stays at unity afterwards.
func grainGain(offsetInGrain int) float32 {
	if offsetInGrain >= grainOverlap {
		return 1.0
	}
	return float32(offsetInGrain) / float32(grainOverlap)
}

func (t *TimeStretcher) grainBuffer(channels int) *source.AudioBuffer {
	if t.temp == nil || t.temp.ChannelCount() != channels {
		t.temp = source.NewAudioBuffer(channels, grainLength)
	}
	return t.temp
}

func (t *TimeStretcher) overlapBuffer(channels int) *source.AudioBuffer {
	if t.overlap == nil || t.overlap.ChannelCount() != channels {
		t.overlap = source.NewAudioBuffer(channels, grainOverlap)
	}
	return t.overlap
}

// SupplyMidi passes through; MIDI tempo handling happens via the
// destination rate, not granular stretching.
func (t *TimeStretcher) SupplyMidi(req *source.SupplyMidiRequest, dest *clipmidi.EventList) source.SupplyResponse {
	return t.inner.SupplyMidi(req, dest)
}

// ChannelCount passes through.
func (t *TimeStretcher) ChannelCount() int { return t.inner.ChannelCount() }

// FrameCount passes through.
func (t *TimeStretcher) FrameCount() int { return t.inner.FrameCount() }

// Duration passes through.
func (t *TimeStretcher) Duration() float64 { return t.inner.Duration() }

// FrameRate passes through.
func (t *TimeStretcher) FrameRate() (float64, bool) { return t.inner.FrameRate() }
