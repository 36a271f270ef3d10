package source

// AudioBuffer is an owned, channel-interleaved float32 buffer.
//
// All index arithmetic is in frames; one frame spans channelCount
// consecutive samples.
type AudioBuffer struct {
	data         []float32
	channelCount int
}

// NewAudioBuffer allocates a buffer for the given channel and frame
// counts.
func NewAudioBuffer(channelCount, frameCount int) *AudioBuffer {
	return &AudioBuffer{
		data:         make([]float32, channelCount*frameCount),
		channelCount: channelCount,
	}
}

// ChannelCount returns the number of interleaved channels.
func (b *AudioBuffer) ChannelCount() int { return b.channelCount }

// FrameCount returns the number of frames.
func (b *AudioBuffer) FrameCount() int {
	if b.channelCount == 0 {
		return 0
	}
	return len(b.data) / b.channelCount
}

// Data returns the raw interleaved samples.
func (b *AudioBuffer) Data() []float32 { return b.data }

// Sample returns the sample at the given frame and channel.
func (b *AudioBuffer) Sample(frame, channel int) float32 {
	return b.data[frame*b.channelCount+channel]
}

// SetSample sets the sample at the given frame and channel.
func (b *AudioBuffer) SetSample(frame, channel int, value float32) {
	b.data[frame*b.channelCount+channel] = value
}

// Slice returns a view of frames [startFrame, endFrame). The view
// shares storage with the parent buffer.
func (b *AudioBuffer) Slice(startFrame, endFrame int) *AudioBuffer {
	return &AudioBuffer{
		data:         b.data[startFrame*b.channelCount : endFrame*b.channelCount],
		channelCount: b.channelCount,
	}
}

// Clear zeroes the buffer.
func (b *AudioBuffer) Clear() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// CopyFrom copies as many frames as fit from src and returns the number
// of frames copied.
func (b *AudioBuffer) CopyFrom(src *AudioBuffer) int {
	n := copy(b.data, src.data)
	if b.channelCount == 0 {
		return 0
	}
	return n / b.channelCount
}
