package source

import (
	"sort"

	"gitlab.com/gomidi/midi/v2"

	clipmidi "github.com/guirod/clipengine/pkg/midi"
)

// MidiSource is in-memory MIDI material: timestamped events over a
// fixed length, at a native frame rate.
type MidiSource struct {
	events     []clipmidi.Event
	frameCount int
	frameRate  float64
	sorted     bool
}

// NewMidiSource creates MIDI material of the given length.
func NewMidiSource(events []clipmidi.Event, frameCount int, frameRate float64) *MidiSource {
	s := &MidiSource{
		events:     append([]clipmidi.Event(nil), events...),
		frameCount: frameCount,
		frameRate:  frameRate,
	}
	s.sortEvents()
	return s
}

// NewEmptyMidiSource returns the shortest valid MIDI material, prepared
// for recording: a tenth of a second containing only an all-notes-off
// event at position zero.
func NewEmptyMidiSource(frameRate float64) *MidiSource {
	return NewMidiSource(
		[]clipmidi.Event{
			{Message: midi.ControlChange(0, clipmidi.CCAllNotesOff, 0), Frame: 0},
		},
		int(frameRate/10),
		frameRate,
	)
}

// FrameCount returns the material length in frames.
func (s *MidiSource) FrameCount() int { return s.frameCount }

// Duration returns the material length in seconds at the native rate.
func (s *MidiSource) Duration() float64 {
	return float64(s.frameCount) / s.frameRate
}

// FrameRate returns the native frame rate.
func (s *MidiSource) FrameRate() (float64, bool) { return s.frameRate, true }

// AppendEvent adds an event to the material, extending its length if
// the event lies beyond the current end. Used while recording.
func (s *MidiSource) AppendEvent(e clipmidi.Event) {
	s.events = append(s.events, e)
	s.sorted = false
	if int(e.Frame) >= s.frameCount {
		s.frameCount = int(e.Frame) + 1
	}
}

// EventCount returns the number of stored events.
func (s *MidiSource) EventCount() int { return len(s.events) }

// SupplyMidi emits the events falling into the requested block window.
//
// Request positions are in frames at the destination rate; event
// timestamps are rescaled from the native rate accordingly, which is
// how tempo changes reach MIDI material (the renderer lowers or raises
// the destination rate instead of moving events around).
//
// A negative start frame is valid: events keep their absolute material
// position, so an event at frame 0 requested from frame -N lands at
// block offset N.
func (s *MidiSource) SupplyMidi(req *SupplyMidiRequest, dest *clipmidi.EventList) SupplyResponse {
	s.sortEvents()
	ratio := 1.0
	if req.DestSampleRate > 0 && req.DestSampleRate != s.frameRate {
		ratio = req.DestSampleRate / s.frameRate
	}
	start := req.StartFrame
	end := start + int64(req.DestFrameCount)
	for _, e := range s.events {
		if e.Frame < 0 {
			continue
		}
		f := int64(float64(e.Frame)*ratio + 0.5)
		if f < start || f >= end {
			continue
		}
		dest.Add(clipmidi.Event{Message: e.Message, Frame: int32(f - start)})
	}
	lengthDest := int64(float64(s.frameCount)*ratio + 0.5)
	remaining := lengthDest - start
	written := int64(req.DestFrameCount)
	if remaining < written {
		written = remaining
	}
	if written < 0 {
		written = 0
	}
	return SupplyResponse{
		NumFramesWritten:  int(written),
		NumFramesConsumed: int(written),
		NextInnerFrame:    start + written,
		ReachedEnd:        end >= lengthDest,
	}
}

func (s *MidiSource) sortEvents() {
	if s.sorted {
		return
	}
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Frame < s.events[j].Frame
	})
	s.sorted = true
}
