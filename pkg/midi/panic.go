package midi

import (
	"gitlab.com/gomidi/midi/v2"
)

// AppendPanic adds an all-notes-off and an all-sound-off control change
// on every channel at the given frame offset. Used to silence a playing
// MIDI clip without waiting for note-off events that will never come.
func AppendPanic(list *EventList, frame int32) {
	for ch := uint8(0); ch < NumChannels; ch++ {
		list.Add(Event{
			Message: midi.ControlChange(ch, CCAllNotesOff, 0),
			Frame:   frame,
		})
		list.Add(Event{
			Message: midi.ControlChange(ch, CCAllSoundOff, 0),
			Frame:   frame,
		})
	}
}
