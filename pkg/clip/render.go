package clip

import (
	"math"

	"github.com/guirod/clipengine/pkg/debug"
	"github.com/guirod/clipengine/pkg/dsp/fade"
	"github.com/guirod/clipengine/pkg/midi"
	"github.com/guirod/clipengine/pkg/source"
	"github.com/guirod/clipengine/pkg/timeline"
)

// ProcessBlock renders one block. It reads the timeline exactly once at
// block start so a host transport change mid-computation cannot produce
// an inconsistent block, then branches on the transport state. When the
// timeline is not running, nothing is rendered and the state stays
// untouched (playing the same buffer repeatedly would sound wrong).
func (c *Clip) ProcessBlock(block *Block, tl timeline.Timeline) {
	block.Clear()
	snapshot := timeline.TakeSnapshot(tl)
	if !snapshot.Running {
		return
	}
	if c.debugCounter%500 == 0 {
		debug.Debugf("block %d: state=%v cursor=%.3f tempo=%.1f",
			c.debugCounter, c.state.Kind(), snapshot.CursorPos, snapshot.Tempo)
	}
	c.debugCounter++
	c.processInternal(block, snapshot)
}

func (c *Clip) processInternal(block *Block, snapshot timeline.Snapshot) {
	finalTempoFactor := c.calcFinalTempoFactor(snapshot.Tempo)
	switch s := c.state.(type) {
	case Stopped, Paused:
	case Suspending:
		if c.isMidi {
			// MIDI. Emit the panic messages that silence everything,
			// then transition immediately; discrete events need no
			// gradual fade.
			midi.AppendPanic(block.Midi, 0)
			block.setFramesWritten(block.FrameCount())
			c.state = c.suspensionFollowUpState(s.Reason, s.PlayInfo)
			return
		}
		// Audio. Render with a short fade-out to prevent clicks.
		cli := c.cursorAndLengthInfoAt(s.PlayInfo, snapshot.CursorPos, snapshot.Tempo)
		info := newBlockInfo(block, cli, finalTempoFactor, s.TransitionCountdown, true)
		c.fillSamples(block, &info)
		nextCountdown := s.TransitionCountdown - info.duration
		if nextCountdown > 0 {
			c.state = Suspending{
				Reason:              s.Reason,
				PlayInfo:            s.PlayInfo,
				TransitionCountdown: nextCountdown,
			}
		} else {
			c.state = c.suspensionFollowUpState(s.Reason, s.PlayInfo)
		}
	case ScheduledOrPlaying:
		cli := c.cursorAndLengthInfoAt(s.PlayInfo, snapshot.CursorPos, snapshot.Tempo)
		countdown, hasCountdown := cli.effectiveStopCountdown(s.StopInstruction)
		info := newBlockInfo(block, cli, finalTempoFactor, countdown, hasCountdown)
		c.fillSamples(block, &info)
		nextPlayInfo := PlayInfo{NextBlockPos: info.blockEndPos}
		if !hasCountdown {
			c.state = ScheduledOrPlaying{PlayInfo: nextPlayInfo}
			return
		}
		if countdown-info.duration > 0 {
			var nextInstruction StopInstruction
			if s.StopInstruction != nil {
				nextInstruction = s.StopInstruction.countDownBy(info.duration)
			}
			c.state = ScheduledOrPlaying{
				PlayInfo:        nextPlayInfo,
				StopInstruction: nextInstruction,
			}
		} else {
			// The natural or scheduled end is reached. Everything that
			// needed to be played has been played in previous blocks
			// and the fade-out has been applied inside them, so there
			// is no need for a suspending phase. Stop right away.
			c.state = Stopped{}
		}
	}
}

func (c *Clip) suspensionFollowUpState(reason SuspensionReason, playInfo PlayInfo) State {
	switch reason.Kind {
	case SuspendRetrigger:
		return ScheduledOrPlaying{PlayInfo: PlayInfo{NextBlockPos: 0}}
	case SuspendPause:
		pos := playInfo.NextBlockPos
		if pos < 0 {
			pos = 0
		}
		return Paused{NextBlockPos: pos}
	case SuspendStop:
		return Stopped{}
	case SuspendPlayWhileSuspending:
		return ScheduledOrPlaying{PlayInfo: PlayInfo{NextBlockPos: reason.NextBlockPos}}
	default:
		return Stopped{}
	}
}

// blockInfo collects the per-block derived quantities the fill routines
// need. Recomputed every block, never stored.
type blockInfo struct {
	length           int
	sampleRate       float64
	duration         float64
	blockStartPos    float64
	blockEndPos      float64
	clipLength       float64
	finalTempoFactor float64
	stopCountdown    float64
	hasStopCountdown bool
}

func newBlockInfo(block *Block, cli cursorAndLengthInfo, finalTempoFactor, stopCountdown float64, hasStopCountdown bool) blockInfo {
	duration := block.Duration()
	startPos := cli.cursorInfo.playInfo.NextBlockPos
	// The position grows monotonically across cycles; the within-clip
	// position is derived by modulo where needed. Keeping it unwrapped
	// is what makes the cycle index and end-of-cycle stop resolution
	// work.
	endPos := startPos + duration*finalTempoFactor
	return blockInfo{
		length:           block.FrameCount(),
		sampleRate:       block.SampleRate(),
		duration:         duration,
		blockStartPos:    startPos,
		blockEndPos:      endPos,
		clipLength:       cli.clipLength,
		finalTempoFactor: finalTempoFactor,
		stopCountdown:    stopCountdown,
		hasStopCountdown: hasStopCountdown,
	}
}

// isLastBlock reports whether a resolved stop countdown ends within
// this block.
func (b *blockInfo) isLastBlock() bool {
	return b.hasStopCountdown && b.stopCountdown <= b.duration
}

// startPosWithinMaterial maps the monotonic block start position into
// the material. Negative (count-in) positions stay as they are.
func (b *blockInfo) startPosWithinMaterial() float64 {
	if b.blockStartPos < 0 || b.clipLength <= 0 {
		return b.blockStartPos
	}
	return euclidMod(b.blockStartPos, b.clipLength)
}

// fillSamples dispatches to the material-specific fill routine.
//
// Playback must start exactly when the scheduled start position is
// reached (position zero). The block start is not necessarily aligned
// with that point, so naively waiting for the start position to become
// non-negative would skip the first samples and events. Instead the
// block renders as soon as its end reaches the start point.
func (c *Clip) fillSamples(block *Block, info *blockInfo) {
	if info.blockEndPos < 0 {
		// The complete block lies before the start position (pure
		// count-in block).
		return
	}
	if c.isMidi {
		c.fillSamplesMidi(block, info)
	} else {
		c.fillSamplesAudio(block, info)
		c.postProcessAudio(block, info)
	}
}

func (c *Clip) fillSamplesAudio(block *Block, info *blockInfo) {
	outerRate := info.sampleRate
	// The tempo effect is achieved through the rate: requesting the
	// material at a lower inner rate makes the same span of output
	// frames cover more source material.
	innerRate := outerRate / info.finalTempoFactor
	head := c.chain.Head()
	written := 0
	if info.blockStartPos < 0 {
		// For audio, querying at a negative position leads to weird
		// sounds. Query from zero instead and shift the written samples
		// forward in the output buffer. The sample offset is calculated
		// with the outer rate because it does not concern the inner
		// source content.
		sampleOffset := int(-info.blockStartPos * outerRate)
		if sampleOffset < block.FrameCount() {
			req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: innerRate}
			resp := head.SupplyAudio(&req, block.Audio.Slice(sampleOffset, block.FrameCount()))
			written = sampleOffset + resp.NumFramesWritten
		} else {
			written = block.FrameCount()
		}
	} else {
		req := source.SupplyAudioRequest{
			StartFrame:     int64(info.startPosWithinMaterial() * innerRate),
			DestSampleRate: innerRate,
		}
		resp := head.SupplyAudio(&req, block.Audio)
		written = resp.NumFramesWritten
	}
	if written < block.FrameCount() {
		// The end of the material is reached and the block is not full.
		if info.isLastBlock() {
			// Declare the buffer fully written; the cleared remainder
			// is the intended silence and a re-query would produce
			// artifacts.
			written = block.FrameCount()
		} else {
			// Repeat. The material is assumed to be cut sample-perfect,
			// so the rest of the buffer continues with its very
			// beginning.
			req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: innerRate}
			head.SupplyAudio(&req, block.Audio.Slice(written, block.FrameCount()))
			written = block.FrameCount()
		}
	}
	block.setFramesWritten(written)
}

func (c *Clip) fillSamplesMidi(block *Block, info *blockInfo) {
	outerRate := info.sampleRate
	innerRate := outerRate / info.finalTempoFactor
	head := c.chain.Head()
	// Negative start positions are fine for MIDI: the source ignores
	// events before position zero and writes later ones with the
	// correct frame offset.
	req := source.SupplyMidiRequest{
		StartFrame:     int64(info.startPosWithinMaterial() * innerRate),
		DestFrameCount: block.FrameCount(),
		DestSampleRate: innerRate,
	}
	resp := head.SupplyMidi(&req, block.Midi)
	written := resp.NumFramesWritten
	if written < block.FrameCount() {
		if info.isLastBlock() {
			// Declare the block fully written so nothing re-queries and
			// doubles events.
			written = block.FrameCount()
		} else {
			// Repeat: fill the rest of the block with the beginning of
			// the material. Querying from a negative position as long
			// as what was already written makes the frame offsets of
			// the added events land after the existing ones.
			wrapReq := source.SupplyMidiRequest{
				StartFrame:     -int64(written),
				DestFrameCount: block.FrameCount(),
				DestSampleRate: innerRate,
			}
			head.SupplyMidi(&wrapReq, block.Midi)
			written = block.FrameCount()
		}
	}
	block.setFramesWritten(written)
}

// postProcessAudio applies the start fade-in and, when a stop or
// suspension countdown is active, the fade-out that makes the reported
// last block end silent.
func (c *Clip) postProcessAudio(block *Block, info *blockInfo) {
	if !info.hasStopCountdown {
		return
	}
	outerRate := info.sampleRate
	blockStartFrame := int64(info.blockStartPos * outerRate)
	endFrame := blockStartFrame + int64(info.stopCountdown*outerRate)
	if endFrame < 0 {
		endFrame = 0
	}
	calc := fade.Calculator{
		EndPos:             uint64(endFrame),
		ClipLength:         uint64(info.clipLength * outerRate),
		StartEndFadeLength: uint64(fade.DefaultFadeSeconds * outerRate),
		// Loop-boundary fades are the looper stage's job.
		IntermediateFadeLength: 0,
	}
	channels := block.Audio.ChannelCount()
	for f := 0; f < block.FramesWritten(); f++ {
		factor := float32(calc.FadeFactor(blockStartFrame + int64(f)))
		if factor == 1.0 {
			continue
		}
		for ch := 0; ch < channels; ch++ {
			block.Audio.SetSample(f, ch, block.Audio.Sample(f, ch)*factor)
		}
	}
}

// euclidMod is the always-non-negative remainder in seconds, correct
// for positions crossing zero from either side.
func euclidMod(a, n float64) float64 {
	m := math.Mod(a, n)
	if m < 0 {
		m += n
	}
	return m
}
