package midi

import (
	"sort"
)

// EventList collects the events produced for one rendered block.
//
// The list is owned by a single render call at a time, so unlike a
// cross-thread queue it carries no lock. Capacity is pre-allocated so
// appending during rendering stays allocation-free in the common case.
type EventList struct {
	events []Event
	sorted bool
}

// NewEventList creates an event list with room for the given number of
// events before reallocation.
func NewEventList(capacity int) *EventList {
	return &EventList{
		events: make([]Event, 0, capacity),
		sorted: true,
	}
}

// Add appends an event.
func (l *EventList) Add(e Event) {
	l.events = append(l.events, e)
	l.sorted = false
}

// AddAll appends multiple events.
func (l *EventList) AddAll(events []Event) {
	if len(events) == 0 {
		return
	}
	l.events = append(l.events, events...)
	l.sorted = false
}

// Events returns the events ordered by frame offset. The returned slice
// aliases internal storage and is valid until the next mutation.
func (l *EventList) Events() []Event {
	if !l.sorted {
		sort.SliceStable(l.events, func(i, j int) bool {
			return l.events[i].Frame < l.events[j].Frame
		})
		l.sorted = true
	}
	return l.events
}

// EventsInRange returns the ordered events with startFrame <= Frame < endFrame.
func (l *EventList) EventsInRange(startFrame, endFrame int32) []Event {
	events := l.Events()
	startIdx := sort.Search(len(events), func(i int) bool {
		return events[i].Frame >= startFrame
	})
	endIdx := startIdx
	for endIdx < len(events) && events[endIdx].Frame < endFrame {
		endIdx++
	}
	return events[startIdx:endIdx]
}

// OffsetFrames shifts every event by the given frame delta.
func (l *EventList) OffsetFrames(delta int32) {
	for i := range l.events {
		l.events[i].Frame += delta
	}
}

// Len returns the number of events.
func (l *EventList) Len() int { return len(l.events) }

// Clear removes all events but keeps the allocated storage.
func (l *EventList) Clear() {
	l.events = l.events[:0]
	l.sorted = true
}
