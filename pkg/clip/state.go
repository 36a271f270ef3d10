// Package clip implements the clip playback scheduling engine: a
// transport state machine whose transitions are pure functions of
// (state, event, timeline snapshot), and a block renderer that decides
// per render block which material to emit, at what position and speed,
// and with what fade treatment.
package clip

import (
	"math"
)

// StateKind discriminates the transport states.
type StateKind int

const (
	// StateStopped is the terminal/idle state; no position is tracked.
	StateStopped StateKind = iota
	// StateScheduledOrPlaying covers count-in and actual playback.
	StateScheduledOrPlaying
	// StateSuspending is the short fade-out before another state.
	StateSuspending
	// StatePaused holds a resume position.
	StatePaused
)

func (k StateKind) String() string {
	switch k {
	case StateStopped:
		return "Stopped"
	case StateScheduledOrPlaying:
		return "ScheduledOrPlaying"
	case StateSuspending:
		return "Suspending"
	case StatePaused:
		return "Paused"
	}
	return "Unknown"
}

// State is the transport state of a clip. Exactly one variant is active
// at a time; transitions happen only through the clip's control
// operations and the block renderer.
type State interface {
	Kind() StateKind
}

// Stopped is the terminal/idle state.
type Stopped struct{}

// Kind returns StateStopped.
func (Stopped) Kind() StateKind { return StateStopped }

// ScheduledOrPlaying is active from scheduling through playback.
type ScheduledOrPlaying struct {
	PlayInfo PlayInfo
	// StopInstruction is non-nil only when scheduled for stop.
	StopInstruction StopInstruction
}

// Kind returns StateScheduledOrPlaying.
func (ScheduledOrPlaying) Kind() StateKind { return StateScheduledOrPlaying }

// Suspending is the very short transition state before entering another
// state. PlayInfo is kept so the fade-out stays continuous with the
// audio just rendered.
type Suspending struct {
	Reason              SuspensionReason
	PlayInfo            PlayInfo
	TransitionCountdown float64
}

// Kind returns StateSuspending.
func (Suspending) Kind() StateKind { return StateSuspending }

// Paused holds the position within the clip at which to resume later.
type Paused struct {
	NextBlockPos float64
}

// Kind returns StatePaused.
func (Paused) Kind() StateKind { return StatePaused }

// playInfoOf extracts the play info carried by states that have one.
func playInfoOf(s State) (PlayInfo, bool) {
	switch v := s.(type) {
	case ScheduledOrPlaying:
		return v.PlayInfo, true
	case Suspending:
		return v.PlayInfo, true
	default:
		return PlayInfo{}, false
	}
}

// SuspensionReasonKind identifies why playback is being suspended and
// thereby the state that follows the fade-out.
type SuspensionReasonKind int

const (
	// SuspendRetrigger restarts playback from position zero.
	SuspendRetrigger SuspensionReasonKind = iota
	// SuspendPause transitions to Paused.
	SuspendPause
	// SuspendStop transitions to Stopped.
	SuspendStop
	// SuspendPlayWhileSuspending records a play request that arrived
	// mid-suspension. Skipping the suspension and playing right away
	// would risk hanging notes, and silently dropping the request is
	// worse: the clip would simply not come back the next time the
	// transport starts. So the fade finishes, then playback resumes at
	// the recorded position.
	SuspendPlayWhileSuspending
)

// SuspensionReason carries the suspension kind plus, for
// SuspendPlayWhileSuspending, the position to resume at.
type SuspensionReason struct {
	Kind SuspensionReasonKind
	// NextBlockPos is only meaningful for SuspendPlayWhileSuspending.
	NextBlockPos float64
}

// StopPositionKind discriminates requested stop positions.
type StopPositionKind int

const (
	// StopAt stops at an absolute timeline position.
	StopAt StopPositionKind = iota
	// StopAtEndOfClip stops at the end of the current cycle.
	StopAtEndOfClip
)

// StopPosition is a requested stop position.
type StopPosition struct {
	Kind StopPositionKind
	// Pos is the absolute timeline position for StopAt.
	Pos float64
}

// StopInstruction is a stored, not-yet-resolved stop target: either a
// countdown in time units or the end of a specific cycle.
type StopInstruction interface {
	// countDownBy advances the instruction by a rendered duration.
	countDownBy(duration float64) StopInstruction
}

// StopIn stops after a countdown of time units.
type StopIn struct {
	Countdown float64
}

func (s StopIn) countDownBy(duration float64) StopInstruction {
	next := s.Countdown - duration
	if next < 0 {
		next = 0
	}
	return StopIn{Countdown: next}
}

// StopAtEndOfCycle stops at the end of the given cycle. The first cycle
// is cycle 0.
type StopAtEndOfCycle struct {
	CycleIndex uint32
}

func (s StopAtEndOfCycle) countDownBy(float64) StopInstruction { return s }

// Repetition is either infinite or a fixed number of cycles.
type Repetition struct {
	infinite bool
	times    uint32
}

// RepeatInfinitely repeats until stopped.
func RepeatInfinitely() Repetition { return Repetition{infinite: true} }

// RepeatTimes plays the given number of cycles (minimum 1).
func RepeatTimes(n uint32) Repetition { return Repetition{times: n} }

// repetitionFromBool maps the repeated flag of play requests.
func repetitionFromBool(repeated bool) Repetition {
	if repeated {
		return RepeatInfinitely()
	}
	return RepeatTimes(1)
}

// Infinite reports whether the clip repeats forever.
func (r Repetition) Infinite() bool { return r.infinite }

// Times returns the cycle count for finite repetition.
func (r Repetition) Times() uint32 { return r.times }

// toStopInstruction maps finite repetition to its natural stop. Returns
// nil for infinite repetition.
func (r Repetition) toStopInstruction() StopInstruction {
	if r.infinite {
		return nil
	}
	n := r.times
	if n < 1 {
		n = 1
	}
	return StopAtEndOfCycle{CycleIndex: n - 1}
}

// PlayInfo is the single piece of mutable position state carried across
// blocks.
type PlayInfo struct {
	// NextBlockPos is the position the next rendered block begins at:
	// negative during count-in, then growing monotonically across
	// cycles. The within-clip position is this modulo clip length.
	NextBlockPos float64
}

// cursorInfoAt pairs the play info with the current timeline cursor.
func (p PlayInfo) cursorInfoAt(timelineCursorPos float64) cursorInfo {
	return cursorInfo{playInfo: p, timelineCursorPos: timelineCursorPos}
}

type cursorInfo struct {
	timelineCursorPos float64
	playInfo          PlayInfo
}

func (c cursorInfo) hasStartedAlready() bool {
	return c.playInfo.NextBlockPos >= 0
}

// cursorAndLengthInfo combines play info, the effective clip length
// (native length divided by the final tempo factor) and the repetition
// setting. It is derived fresh every block and never stored.
type cursorAndLengthInfo struct {
	cursorInfo cursorInfo
	clipLength float64
	repetition Repetition
}

// determineStopInstruction resolves a requested stop position into a
// stop instruction. Returns nil if the request cannot apply (stop
// position already passed, or not playing anymore).
func (c cursorAndLengthInfo) determineStopInstruction(pos StopPosition) StopInstruction {
	switch pos.Kind {
	case StopAt:
		countdown := pos.Pos - c.cursorInfo.timelineCursorPos
		if countdown < 0 {
			return nil
		}
		return StopIn{Countdown: countdown}
	case StopAtEndOfClip:
		cycle, ok := c.currentCycleIndex()
		if !ok {
			return nil
		}
		return StopAtEndOfCycle{CycleIndex: cycle}
	default:
		return nil
	}
}

// currentCycleIndex calculates which cycle playback is in (starting
// with 0). The bool result is false if not yet playing or the finite
// repetition is already exceeded.
func (c cursorAndLengthInfo) currentCycleIndex() (uint32, bool) {
	cycle := c.currentHypotheticalCycleIndex()
	if c.repetition.infinite {
		return cycle, true
	}
	if cycle < c.repetition.times {
		return cycle, true
	}
	return 0, false
}

// currentHypotheticalCycleIndex derives the cycle index from the block
// position, ignoring any repetition limit.
func (c cursorAndLengthInfo) currentHypotheticalCycleIndex() uint32 {
	if c.clipLength == 0 || c.cursorInfo.playInfo.NextBlockPos < 0 {
		return 0
	}
	return uint32(c.cursorInfo.playInfo.NextBlockPos / c.clipLength)
}

// effectiveStopCountdown resolves the natural end of repetition and any
// scheduled stop into a single countdown; the smaller one wins. The
// bool result is false when nothing will stop the clip.
func (c cursorAndLengthInfo) effectiveStopCountdown(scheduled StopInstruction) (float64, bool) {
	countdown := math.Inf(1)
	found := false
	if natural := c.repetition.toStopInstruction(); natural != nil {
		countdown = c.resolveStopInstruction(natural)
		found = true
	}
	if scheduled != nil {
		if resolved := c.resolveStopInstruction(scheduled); !found || resolved < countdown {
			countdown = resolved
		}
		found = true
	}
	return countdown, found
}

// resolveStopInstruction turns a stop instruction into a non-negative
// countdown in time units.
func (c cursorAndLengthInfo) resolveStopInstruction(si StopInstruction) float64 {
	switch v := si.(type) {
	case StopIn:
		return v.Countdown
	case StopAtEndOfCycle:
		requestedEndPos := c.clipLength * float64(v.CycleIndex+1)
		duration := requestedEndPos - c.cursorInfo.playInfo.NextBlockPos
		if duration < 0 {
			return 0
		}
		return duration
	default:
		return 0
	}
}
