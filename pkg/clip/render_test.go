package clip

import (
	"math"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	clipmidi "github.com/guirod/clipengine/pkg/midi"
	"github.com/guirod/clipengine/pkg/source"
	"github.com/guirod/clipengine/pkg/timeline"
)

const (
	testBlockFrames  = 22050 // 0.5 s at 44.1 kHz
	testBlockSeconds = 0.5
)

func newTestAudioClip(t *testing.T) *Clip {
	t.Helper()
	return NewAudioClip(source.NewSineSource(440, 4.0, testFrameRate))
}

func newTestMidiClip(t *testing.T, events []clipmidi.Event) *Clip {
	t.Helper()
	return NewMidiClip(source.NewMidiSource(events, 4*int(testFrameRate), testFrameRate))
}

func renderBlocks(c *Clip, block *Block, tl *timeline.SteadyTimeline, n int) {
	for i := 0; i < n; i++ {
		c.ProcessBlock(block, tl)
		tl.Advance(testBlockSeconds)
	}
}

// The reference scenario: a 4 s clip playing two cycles stops naturally
// after 8 s, going directly to Stopped without a suspension phase.
func TestNaturalStopAfterTwoCycles(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	tl.SeekTo(10.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.ScheduleStart(10.0, 10.0, false)
	c.setRepetition(RepeatTimes(2))
	s, ok := c.ClipState().(ScheduledOrPlaying)
	if !ok || s.PlayInfo.NextBlockPos != 0.0 {
		t.Fatalf("state after schedule = %#v, want ScheduledOrPlaying at 0", c.ClipState())
	}

	// 4 s of playback puts us at the start of the second cycle.
	renderBlocks(c, block, tl, 8)
	s, ok = c.ClipState().(ScheduledOrPlaying)
	if !ok {
		t.Fatalf("state after 4s = %T, want ScheduledOrPlaying", c.ClipState())
	}
	cli := c.cursorAndLengthInfoAt(s.PlayInfo, tl.CursorPos(), tl.Tempo())
	if got := cli.currentHypotheticalCycleIndex(); got != 1 {
		t.Errorf("cycle index after 4s = %d, want 1", got)
	}

	// Up to one block before the end: still playing, never suspending.
	renderBlocks(c, block, tl, 7)
	if _, ok := c.ClipState().(ScheduledOrPlaying); !ok {
		t.Fatalf("state before last block = %T, want ScheduledOrPlaying", c.ClipState())
	}

	// The final block ends playback without a suspension phase: the
	// fade-out already happened inside it.
	renderBlocks(c, block, tl, 1)
	if _, ok := c.ClipState().(Stopped); !ok {
		t.Errorf("state after 8s = %T, want Stopped", c.ClipState())
	}
	if block.FramesWritten() != testBlockFrames {
		t.Errorf("last block frames written = %d, want full block", block.FramesWritten())
	}
}

func TestCountInProducesSilenceThenAudio(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	// Start scheduled 0.25 s in the future: half of the second... the
	// first block stays entirely in the count-in.
	c.ScheduleStart(0.0, 0.25, true)

	c.ProcessBlock(block, tl)
	tl.Advance(testBlockSeconds)
	s := c.ClipState().(ScheduledOrPlaying)
	if got := s.PlayInfo.NextBlockPos; math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("position after first block = %v, want 0.25", got)
	}
	// The block crossed the start point: its first half (still before
	// the start position) is silent, the second half carries material.
	half := testBlockFrames / 2
	for f := 0; f < half; f++ {
		if block.Audio.Sample(f, 0) != 0 {
			t.Fatalf("count-in frame %d not silent: %v", f, block.Audio.Sample(f, 0))
		}
	}
	var energy float64
	for f := half; f < testBlockFrames; f++ {
		v := float64(block.Audio.Sample(f, 0))
		energy += v * v
	}
	if energy == 0 {
		t.Error("no material after the scheduled start point")
	}
}

func TestPureCountInBlockEmitsNothing(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.ScheduleStart(0.0, 2.0, true)
	c.ProcessBlock(block, tl)
	if block.FramesWritten() != 0 {
		t.Errorf("pure count-in block wrote %d frames", block.FramesWritten())
	}
	s := c.ClipState().(ScheduledOrPlaying)
	if got := s.PlayInfo.NextBlockPos; math.Abs(got-(-1.5)) > 1e-9 {
		t.Errorf("position after block = %v, want -1.5", got)
	}
}

func TestStoppedAndPausedRenderNothing(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.ProcessBlock(block, tl)
	if block.FramesWritten() != 0 {
		t.Errorf("stopped clip wrote %d frames", block.FramesWritten())
	}
	c.state = Paused{NextBlockPos: 1.0}
	c.ProcessBlock(block, tl)
	if block.FramesWritten() != 0 {
		t.Errorf("paused clip wrote %d frames", block.FramesWritten())
	}
}

func TestPausedTimelineFreezesState(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.StartImmediately(0.0, true)
	tl.SetRunning(false)
	before := c.ClipState()
	c.ProcessBlock(block, tl)
	if c.ClipState() != before {
		t.Errorf("state changed while timeline paused: %#v -> %#v", before, c.ClipState())
	}
	if block.FramesWritten() != 0 {
		t.Errorf("paused timeline produced %d frames", block.FramesWritten())
	}
}

func TestSuspensionFadesOutAndStops(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.state = ScheduledOrPlaying{PlayInfo: PlayInfo{NextBlockPos: 1.0}}
	c.StopImmediately(tl.CursorPos())
	c.ProcessBlock(block, tl)

	if _, ok := c.ClipState().(Stopped); !ok {
		t.Fatalf("state after fade block = %T, want Stopped", c.ClipState())
	}
	// The 10 ms fade spans 441 frames; everything after it is silent.
	fadeFrames := 441
	for f := fadeFrames + 1; f < testBlockFrames; f++ {
		if block.Audio.Sample(f, 0) != 0 {
			t.Fatalf("frame %d after fade-out not silent: %v", f, block.Audio.Sample(f, 0))
		}
	}
}

func TestSuspensionRetriggerRestartsAtZero(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.state = ScheduledOrPlaying{PlayInfo: PlayInfo{NextBlockPos: 1.5}}
	c.ScheduleStart(tl.CursorPos(), tl.CursorPos(), true)
	if _, ok := c.ClipState().(Suspending); !ok {
		t.Fatalf("state = %T, want Suspending", c.ClipState())
	}
	c.ProcessBlock(block, tl)
	s, ok := c.ClipState().(ScheduledOrPlaying)
	if !ok {
		t.Fatalf("state after suspension = %T, want ScheduledOrPlaying", c.ClipState())
	}
	// Retriggering restarts at position zero, not at the requested
	// start offset.
	if s.PlayInfo.NextBlockPos != 0 {
		t.Errorf("retrigger position = %v, want 0", s.PlayInfo.NextBlockPos)
	}
}

func TestPauseSuspensionHoldsPosition(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.state = ScheduledOrPlaying{PlayInfo: PlayInfo{NextBlockPos: 2.0}}
	c.Pause(tl.CursorPos())
	c.ProcessBlock(block, tl)
	s, ok := c.ClipState().(Paused)
	if !ok {
		t.Fatalf("state after fade = %T, want Paused", c.ClipState())
	}
	if s.NextBlockPos != 2.0 {
		t.Errorf("paused position = %v, want 2.0", s.NextBlockPos)
	}
}

func TestMidiStopImmediatelyEmitsPanic(t *testing.T) {
	c := newTestMidiClip(t, []clipmidi.Event{
		{Message: gomidi.NoteOn(0, 60, 100), Frame: 0},
	})
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewMidiBlock(testBlockFrames, testFrameRate)

	c.state = ScheduledOrPlaying{PlayInfo: PlayInfo{NextBlockPos: 1.0}}
	c.StopImmediately(tl.CursorPos())
	c.ProcessBlock(block, tl)

	if _, ok := c.ClipState().(Stopped); !ok {
		t.Fatalf("state after panic block = %T, want Stopped", c.ClipState())
	}
	notesOff := make(map[uint8]bool)
	soundOff := make(map[uint8]bool)
	for _, e := range block.Midi.Events() {
		var ch, cc, val uint8
		if e.Message.GetControlChange(&ch, &cc, &val) {
			switch cc {
			case clipmidi.CCAllNotesOff:
				notesOff[ch] = true
			case clipmidi.CCAllSoundOff:
				soundOff[ch] = true
			}
		}
	}
	for ch := 0; ch < clipmidi.NumChannels; ch++ {
		if !notesOff[uint8(ch)] {
			t.Errorf("channel %d missing all-notes-off", ch)
		}
		if !soundOff[uint8(ch)] {
			t.Errorf("channel %d missing all-sound-off", ch)
		}
	}
}

func TestMidiFillEmitsEventsAtBlockOffsets(t *testing.T) {
	c := newTestMidiClip(t, []clipmidi.Event{
		{Message: gomidi.NoteOn(0, 60, 100), Frame: 0},
		{Message: gomidi.NoteOff(0, 60), Frame: 10000},
	})
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewMidiBlock(testBlockFrames, testFrameRate)

	c.StartImmediately(0.0, true)
	c.ProcessBlock(block, tl)

	events := block.Midi.Events()
	if len(events) != 2 {
		t.Fatalf("event count = %d, want 2", len(events))
	}
	if events[0].Frame != 0 || events[1].Frame != 10000 {
		t.Errorf("event frames = %d, %d, want 0, 10000", events[0].Frame, events[1].Frame)
	}
}

func TestMidiLoopWrapKeepsOffsets(t *testing.T) {
	// 0.25 s of material in a 0.5 s block: the second half of the block
	// must repeat the material with offsets after the first pass.
	materialFrames := testBlockFrames / 2
	c := NewMidiClip(source.NewMidiSource([]clipmidi.Event{
		{Message: gomidi.NoteOn(0, 60, 100), Frame: 100},
	}, materialFrames, testFrameRate))
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewMidiBlock(testBlockFrames, testFrameRate)

	c.StartImmediately(0.0, true)
	c.ProcessBlock(block, tl)

	events := block.Midi.Events()
	if len(events) != 2 {
		t.Fatalf("event count = %d, want 2 (original and wrapped)", len(events))
	}
	if events[0].Frame != 100 {
		t.Errorf("first event frame = %d, want 100", events[0].Frame)
	}
	if want := int32(materialFrames + 100); events[1].Frame != want {
		t.Errorf("wrapped event frame = %d, want %d", events[1].Frame, want)
	}
}

func TestAudioLoopWrapFillsBlock(t *testing.T) {
	// 0.3 s of material, infinite repetition: every block comes out
	// full because the looper wraps.
	c := NewAudioClip(source.NewSineSource(440, 0.3, testFrameRate))
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.StartImmediately(0.0, true)
	renderBlocks(c, block, tl, 3)
	if block.FramesWritten() != testBlockFrames {
		t.Errorf("frames written = %d, want full block", block.FramesWritten())
	}
	if _, ok := c.ClipState().(ScheduledOrPlaying); !ok {
		t.Errorf("state = %T, want still ScheduledOrPlaying", c.ClipState())
	}
}

func TestSingleShotStopsAfterOneCycle(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.StartImmediately(0.0, false)
	renderBlocks(c, block, tl, 8)
	if _, ok := c.ClipState().(Stopped); !ok {
		t.Errorf("state after one 4s cycle = %T, want Stopped", c.ClipState())
	}
}

func TestTempoFactorSpeedsUpPlayback(t *testing.T) {
	c := newTestAudioClip(t)
	tl := timeline.NewSteadyTimeline(96.0)
	block := NewAudioBlock(1, testBlockFrames, testFrameRate)

	c.StartImmediately(0.0, true)
	c.SetTempoFactor(2.0)
	c.ProcessBlock(block, tl)
	s := c.ClipState().(ScheduledOrPlaying)
	// At factor 2 a 0.5 s block advances the clip position by 1 s.
	if got := s.PlayInfo.NextBlockPos; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("position after block at factor 2 = %v, want 1.0", got)
	}
}
