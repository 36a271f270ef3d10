// Package midi provides the MIDI event list used by the clip engine's
// render path. Events carry a raw MIDI message plus the frame offset
// within the rendered block at which the message occurs.
package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Event is a single timestamped MIDI message within a block.
type Event struct {
	// Message is the raw MIDI message.
	Message midi.Message
	// Frame is the sample frame offset within the block.
	Frame int32
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%d", e.Message.String(), e.Frame)
}

// Controller numbers used by the engine.
const (
	CCAllSoundOff uint8 = 120
	CCAllNotesOff uint8 = 123
)

// NumChannels is the number of MIDI channels.
const NumChannels = 16
