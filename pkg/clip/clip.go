package clip

import (
	"github.com/guirod/clipengine/pkg/clip/supplier"
	"github.com/guirod/clipengine/pkg/dsp/fade"
	"github.com/guirod/clipengine/pkg/source"
)

// minTempoFactor is the lower clamp for the final tempo factor. Below
// this, stretched playback degrades too much to be useful.
const minTempoFactor = 0.25

// defaultOriginalTempo is the assumed native tempo of clip material in
// bpm. TODO: determine per clip (guess from length, read metadata, or
// let the user override).
const defaultOriginalTempo = 96.0

// Clip is a schedulable unit of audio or MIDI material with its own
// transport state, distinct from the underlying raw source material.
//
// All methods must be serialized by the caller: the renderer and the
// control operations never execute concurrently on the same clip.
type Clip struct {
	chain  *supplier.Chain
	isMidi bool
	// repetition can change during the lifetime of the clip.
	repetition Repetition
	// manualTempoFactor changes the tempo in addition to the natural
	// timeline tempo adjustment.
	manualTempoFactor float64
	// debugCounter samples the renderer's diagnostics.
	debugCounter uint64
	// state holds only what is non-derivable.
	state State
}

// NewClip wraps the given supplier chain. isMidi selects the MIDI fill
// path (the material kind never changes during the clip's lifetime).
func NewClip(chain *supplier.Chain, isMidi bool) *Clip {
	c := &Clip{
		chain:             chain,
		isMidi:            isMidi,
		repetition:        RepeatTimes(1),
		manualTempoFactor: 1.0,
		state:             Stopped{},
	}
	c.syncLooper()
	return c
}

// NewAudioClip creates a clip playing the given audio material.
func NewAudioClip(material *source.AudioSource) *Clip {
	return NewClip(supplier.NewChain(supplier.NewReadyRecorder(material)), false)
}

// NewMidiClip creates a clip playing the given MIDI material.
func NewMidiClip(material *source.MidiSource) *Clip {
	return NewClip(supplier.NewChain(supplier.NewReadyRecorder(material)), true)
}

// Chain exposes the supplier pipeline for stage-level control.
func (c *Clip) Chain() *supplier.Chain { return c.chain }

// IsMidi reports whether the clip carries MIDI material.
func (c *Clip) IsMidi() bool { return c.isMidi }

// ClipState returns the current transport state.
func (c *Clip) ClipState() State { return c.state }

func (c *Clip) originalTempo() float64 { return defaultOriginalTempo }

func (c *Clip) calcFinalTempoFactor(timelineTempo float64) float64 {
	timelineTempoFactor := timelineTempo / c.originalTempo()
	factor := c.manualTempoFactor * timelineTempoFactor
	if factor < minTempoFactor {
		return minTempoFactor
	}
	return factor
}

// setRepetition updates the repeat setting and keeps the looper stage
// in sync: loop wrapping is only wanted while the clip repeats.
func (c *Clip) setRepetition(r Repetition) {
	c.repetition = r
	c.syncLooper()
}

func (c *Clip) syncLooper() {
	c.chain.Looper().SetEnabled(c.repetition.Infinite() || c.repetition.Times() > 1)
}

// ScheduleStart schedules clip playing at the given start position on
// the timeline.
//
// Reschedules if not yet playing, retriggers (with fade-out) if already
// playing, backpedals if playing and scheduled for stop, resumes
// immediately if paused (the clip may end up out of sync then), and
// records the request if currently suspending so it is not dropped.
func (c *Clip) ScheduleStart(timelineCursorPos, startPos float64, repeated bool) {
	c.startInternal(timelineCursorPos, startPos, repeated)
}

// StartImmediately starts playback right now (no count-in). Otherwise
// behaves like ScheduleStart.
func (c *Clip) StartImmediately(timelineCursorPos float64, repeated bool) {
	c.startInternal(timelineCursorPos, timelineCursorPos, repeated)
}

func (c *Clip) startInternal(timelineCursorPos, startPos float64, repeated bool) {
	switch s := c.state.(type) {
	case Stopped:
		c.scheduleStartInternal(timelineCursorPos, startPos, repeated)
	case ScheduledOrPlaying:
		if s.StopInstruction != nil {
			// Playing already and scheduled for stop. Backpedal.
			c.state = ScheduledOrPlaying{PlayInfo: s.PlayInfo}
			return
		}
		info := s.PlayInfo.cursorInfoAt(timelineCursorPos)
		if info.hasStartedAlready() {
			// Already playing. Retrigger: fade out, then restart from
			// position zero (not from the requested start offset; open
			// product decision, documented behavior).
			c.state = Suspending{
				Reason:              SuspensionReason{Kind: SuspendRetrigger},
				PlayInfo:            s.PlayInfo,
				TransitionCountdown: fade.DefaultFadeSeconds,
			}
			return
		}
		// Not yet playing. Reschedule.
		c.scheduleStartInternal(timelineCursorPos, startPos, repeated)
	case Suspending:
		c.setRepetition(repetitionFromBool(repeated))
		c.state = Suspending{
			Reason: SuspensionReason{
				Kind:         SuspendPlayWhileSuspending,
				NextBlockPos: timelineCursorPos - startPos,
			},
			PlayInfo:            s.PlayInfo,
			TransitionCountdown: s.TransitionCountdown,
		}
	case Paused:
		// Resume at the held position. The requested start position is
		// ignored, so the clip may be out of sync with the timeline
		// afterwards (documented behavior).
		c.state = ScheduledOrPlaying{
			PlayInfo: PlayInfo{NextBlockPos: s.NextBlockPos},
		}
	}
}

func (c *Clip) scheduleStartInternal(timelineCursorPos, startPos float64, repeated bool) {
	c.setRepetition(repetitionFromBool(repeated))
	c.state = ScheduledOrPlaying{
		PlayInfo: PlayInfo{NextBlockPos: timelineCursorPos - startPos},
	}
}

// Pause pauses playback with a fade-out. No-op if stopped, paused or
// not yet actually playing (count-in).
func (c *Clip) Pause(timelineCursorPos float64) {
	switch s := c.state.(type) {
	case Stopped, Paused:
	case ScheduledOrPlaying:
		info := s.PlayInfo.cursorInfoAt(timelineCursorPos)
		if !info.hasStartedAlready() {
			// Not yet playing. Nothing to pause.
			return
		}
		// If the clip is scheduled for stop already, pausing backpedals
		// from that.
		c.state = Suspending{
			Reason:              SuspensionReason{Kind: SuspendPause},
			PlayInfo:            s.PlayInfo,
			TransitionCountdown: fade.DefaultFadeSeconds,
		}
	case Suspending:
		if s.Reason.Kind != SuspendPause {
			// Another transition is in flight. Retarget it to pause;
			// the fade continues, only the destination changes.
			c.state = Suspending{
				Reason:              SuspensionReason{Kind: SuspendPause},
				PlayInfo:            s.PlayInfo,
				TransitionCountdown: s.TransitionCountdown,
			}
		}
	}
}

// ScheduleStopArgs parameterizes ScheduleStop.
type ScheduleStopArgs struct {
	TimelineCursorPos float64
	TimelineTempo     float64
	Pos               StopPosition
}

// ScheduleStop schedules a stop at the requested position. Backpedals
// to Stopped if not yet playing, stops directly if paused, and is a
// no-op if already scheduled for stop or stopped.
func (c *Clip) ScheduleStop(args ScheduleStopArgs) {
	switch s := c.state.(type) {
	case Stopped, Suspending:
	case ScheduledOrPlaying:
		if s.StopInstruction != nil {
			// Already scheduled for stop.
			return
		}
		info := s.PlayInfo.cursorInfoAt(args.TimelineCursorPos)
		if !info.hasStartedAlready() {
			// Not yet playing. Backpedal.
			c.state = Stopped{}
			return
		}
		cli := c.cursorAndLengthInfo(info, args.TimelineTempo)
		if si := cli.determineStopInstruction(args.Pos); si != nil {
			c.state = ScheduledOrPlaying{PlayInfo: s.PlayInfo, StopInstruction: si}
		} else {
			// Looks like we were actually not playing after all.
			c.state = Stopped{}
		}
	case Paused:
		c.state = Stopped{}
	}
}

// StopImmediately stops playback now, with a fade-out if anything is
// audible. Backpedals to Stopped if not yet playing; a paused clip is
// already silent and goes to Stopped directly.
func (c *Clip) StopImmediately(timelineCursorPos float64) {
	switch s := c.state.(type) {
	case Stopped:
	case ScheduledOrPlaying:
		if s.StopInstruction != nil {
			// Scheduled for stop. Transition to stop now.
			c.state = Suspending{
				Reason:              SuspensionReason{Kind: SuspendStop},
				PlayInfo:            s.PlayInfo,
				TransitionCountdown: fade.DefaultFadeSeconds,
			}
			return
		}
		info := s.PlayInfo.cursorInfoAt(timelineCursorPos)
		if info.hasStartedAlready() {
			c.state = Suspending{
				Reason:              SuspensionReason{Kind: SuspendStop},
				PlayInfo:            s.PlayInfo,
				TransitionCountdown: fade.DefaultFadeSeconds,
			}
		} else {
			// Not yet playing. Backpedal.
			c.state = Stopped{}
		}
	case Suspending:
		if s.Reason.Kind != SuspendStop {
			// Retarget the in-flight transition to stop.
			c.state = Suspending{
				Reason:              SuspensionReason{Kind: SuspendStop},
				PlayInfo:            s.PlayInfo,
				TransitionCountdown: s.TransitionCountdown,
			}
		}
	case Paused:
		c.state = Stopped{}
	}
}

// SeekToArgs parameterizes SeekTo.
type SeekToArgs struct {
	TimelineCursorPos float64
	TimelineTempo     float64
	// DesiredPos is the target position as a proportion in [0, 1].
	DesiredPos float64
}

// SeekTo jumps to the given proportional position within the clip. Only
// meaningful while playing or paused; a pending stop instruction is
// preserved.
func (c *Clip) SeekTo(args SeekToArgs) {
	desiredPos := c.ClipLength(args.TimelineTempo) * args.DesiredPos
	switch s := c.state.(type) {
	case Stopped, Suspending:
	case ScheduledOrPlaying:
		c.state = ScheduledOrPlaying{
			PlayInfo:        PlayInfo{NextBlockPos: desiredPos},
			StopInstruction: s.StopInstruction,
		}
	case Paused:
		c.state = Paused{NextBlockPos: desiredPos}
	}
}

// ClipLength returns the effective clip length at the given timeline
// tempo (native length divided by the final tempo factor).
func (c *Clip) ClipLength(timelineTempo float64) float64 {
	return c.NativeClipLength() / c.calcFinalTempoFactor(timelineTempo)
}

// NativeClipLength returns the tempo-independent material length.
func (c *Clip) NativeClipLength() float64 {
	return c.chain.SourceDuration()
}

// SetTempoFactor adjusts the play tempo manually, in addition to the
// automatic timeline tempo adjustment. Clamped to the minimum factor.
func (c *Clip) SetTempoFactor(tempoFactor float64) {
	if tempoFactor < minTempoFactor {
		tempoFactor = minTempoFactor
	}
	c.manualTempoFactor = tempoFactor
}

// TempoFactor returns the manual tempo factor.
func (c *Clip) TempoFactor() float64 { return c.manualTempoFactor }

// SetRepeatedArgs parameterizes SetRepeated.
type SetRepeatedArgs struct {
	TimelineCursorPos float64
	TimelineTempo     float64
	Repeated          bool
}

// SetRepeated changes whether the clip repeats. Switching repetition
// off while playing does not cut the clip mid-cycle: the cycle in
// progress still finishes, then playback stops naturally.
func (c *Clip) SetRepeated(args SetRepeatedArgs) {
	if args.Repeated {
		c.setRepetition(RepeatInfinitely())
		return
	}
	times := uint32(1)
	if playInfo, ok := playInfoOf(c.state); ok {
		info := playInfo.cursorInfoAt(args.TimelineCursorPos)
		times = c.cursorAndLengthInfo(info, args.TimelineTempo).currentHypotheticalCycleIndex() + 1
	}
	c.setRepetition(RepeatTimes(times))
}

// PosWithinClipArgs parameterizes the position queries.
type PosWithinClipArgs struct {
	TimelineCursorPos float64
	TimelineTempo     float64
}

// PosWithinClip returns the position within the clip in seconds,
// wrapped into the current cycle. Negative while counting in. The bool
// result is false when stopped.
func (c *Clip) PosWithinClip(args PosWithinClipArgs) (float64, bool) {
	var pos float64
	switch s := c.state.(type) {
	case ScheduledOrPlaying:
		pos = s.PlayInfo.NextBlockPos
	case Suspending:
		pos = s.PlayInfo.NextBlockPos
	case Paused:
		pos = s.NextBlockPos
	default:
		return 0, false
	}
	if length := c.ClipLength(args.TimelineTempo); pos >= 0 && length > 0 {
		pos = euclidMod(pos, length)
	}
	return pos, true
}

// ProportionalPosWithinClip returns the position as a value in [0, 1].
func (c *Clip) ProportionalPosWithinClip(args PosWithinClipArgs) (float64, bool) {
	length := c.ClipLength(args.TimelineTempo)
	if length == 0 {
		return 0, true
	}
	pos, ok := c.PosWithinClip(args)
	if !ok {
		return 0, false
	}
	proportion := pos / length
	if proportion < 0 {
		proportion = 0
	} else if proportion > 1 {
		proportion = 1
	}
	return proportion, true
}

// PrepareRecording switches the material to a new recording. A short
// fade-out masks the transition away from the old material.
func (c *Clip) PrepareRecording(input supplier.RecordInput, project supplier.ProjectContext) error {
	if err := c.chain.Recorder().PrepareRecording(input, project); err != nil {
		return err
	}
	c.isMidi = input == supplier.RecordInputMidi
	c.chain.Fader().StartFadeOut()
	return nil
}

// CommitRecording makes the captured material the playable material.
func (c *Clip) CommitRecording() (source.Material, error) {
	material, err := c.chain.Recorder().CommitRecording()
	if err != nil {
		return nil, err
	}
	c.chain.Fader().StartFadeIn()
	return material, nil
}

// RollbackRecording discards the capture and restores the previous
// material.
func (c *Clip) RollbackRecording() error {
	if err := c.chain.Recorder().RollbackRecording(); err != nil {
		return err
	}
	c.chain.Fader().StartFadeIn()
	return nil
}

// WriteAudio appends captured audio to an active audio recording.
func (c *Clip) WriteAudio(req supplier.WriteAudioRequest) {
	c.chain.Recorder().WriteAudio(req)
}

// WriteMidi appends captured MIDI at the current position within the
// clip (overdubbing into existing MIDI material when not recording).
func (c *Clip) WriteMidi(req supplier.WriteMidiRequest, args PosWithinClipArgs) {
	pos, ok := c.PosWithinClip(args)
	if !ok || pos < 0 {
		pos = 0
	}
	c.chain.Recorder().WriteMidi(req, pos)
}

func (c *Clip) cursorAndLengthInfoAt(playInfo PlayInfo, timelineCursorPos, timelineTempo float64) cursorAndLengthInfo {
	return c.cursorAndLengthInfo(playInfo.cursorInfoAt(timelineCursorPos), timelineTempo)
}

func (c *Clip) cursorAndLengthInfo(info cursorInfo, timelineTempo float64) cursorAndLengthInfo {
	return cursorAndLengthInfo{
		cursorInfo: info,
		clipLength: c.ClipLength(timelineTempo),
		repetition: c.repetition,
	}
}
