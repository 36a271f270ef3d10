package source

import (
	"math"

	"github.com/pkg/errors"
)

// AudioSource is in-memory PCM material with a fixed native frame rate.
type AudioSource struct {
	data         []float32
	channelCount int
	frameRate    float64
}

// NewAudioSource creates a source from interleaved samples.
func NewAudioSource(data []float32, channelCount int, frameRate float64) (*AudioSource, error) {
	if channelCount < 1 {
		return nil, errors.New("audio source needs at least one channel")
	}
	if len(data)%channelCount != 0 {
		return nil, errors.Errorf(
			"sample count %d not divisible by channel count %d", len(data), channelCount)
	}
	if frameRate <= 0 {
		return nil, errors.New("frame rate must be positive")
	}
	return &AudioSource{data: data, channelCount: channelCount, frameRate: frameRate}, nil
}

// NewSineSource generates a mono sine wave, useful for demos and tests.
func NewSineSource(freq, seconds, frameRate float64) *AudioSource {
	frameCount := int(seconds * frameRate)
	data := make([]float32, frameCount)
	for i := range data {
		data[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / frameRate))
	}
	return &AudioSource{data: data, channelCount: 1, frameRate: frameRate}
}

// ChannelCount returns the number of interleaved channels.
func (s *AudioSource) ChannelCount() int { return s.channelCount }

// FrameCount returns the material length in frames.
func (s *AudioSource) FrameCount() int { return len(s.data) / s.channelCount }

// Duration returns the material length in seconds at the native rate.
func (s *AudioSource) Duration() float64 {
	return float64(s.FrameCount()) / s.frameRate
}

// FrameRate returns the native frame rate.
func (s *AudioSource) FrameRate() (float64, bool) { return s.frameRate, true }

// SupplyAudio copies frames starting at the requested position into
// dest. Frames before position zero and past the end produce nothing;
// callers handle count-in shifting and loop wrapping themselves.
func (s *AudioSource) SupplyAudio(req *SupplyAudioRequest, dest *AudioBuffer) SupplyResponse {
	frameCount := int64(s.FrameCount())
	start := req.StartFrame
	if start < 0 {
		start = 0
	}
	if start >= frameCount {
		return SupplyResponse{NextInnerFrame: req.StartFrame, ReachedEnd: true}
	}
	want := int64(dest.FrameCount())
	end := start + want
	if end > frameCount {
		end = frameCount
	}
	written := int(end - start)
	copyInterleaved(dest, s.data, int(start), written, s.channelCount)
	return SupplyResponse{
		NumFramesWritten:  written,
		NumFramesConsumed: written,
		NextInnerFrame:    end,
		ReachedEnd:        end >= frameCount,
	}
}

// copyInterleaved copies frames from interleaved src data into dest,
// adapting the channel count (mono fans out, extra channels drop).
func copyInterleaved(dest *AudioBuffer, src []float32, srcStartFrame, frames, srcChannels int) {
	destChannels := dest.ChannelCount()
	if destChannels == srcChannels {
		copy(dest.Data()[:frames*destChannels],
			src[srcStartFrame*srcChannels:(srcStartFrame+frames)*srcChannels])
		return
	}
	for f := 0; f < frames; f++ {
		for ch := 0; ch < destChannels; ch++ {
			srcCh := ch
			if srcCh >= srcChannels {
				srcCh = srcChannels - 1
			}
			dest.SetSample(f, ch, src[(srcStartFrame+f)*srcChannels+srcCh])
		}
	}
}
