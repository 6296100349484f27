package timegrid

import "strings"

// DropTarget is where a dragged task may land. The closed set of
// implementations is SlotTarget, DayTarget, UnscheduleTarget and Unresolved;
// the string protocol below exists only at the boundary with the rendering
// layer and is decoded exactly once per drop.
type DropTarget interface {
	dropTarget()
}

// SlotTarget schedules a task on a specific day at a specific slot time.
type SlotTarget struct {
	Day  string // day ID, "2006-01-02"
	Time string // slot-aligned "HH:MM"
}

// DayTarget schedules a task on a day with no time of day; the task appends
// to the bottom of that day's column.
type DayTarget struct {
	Day string
}

// UnscheduleTarget returns a task to the brain-dump inbox, clearing both the
// date and the time.
type UnscheduleTarget struct{}

// Unresolved is a legacy or alternate encoding (a bare day ID or a task card
// ID) that the interaction layer must resolve with a lookup.
type Unresolved struct {
	Raw string
}

func (SlotTarget) dropTarget()       {}
func (DayTarget) dropTarget()        {}
func (UnscheduleTarget) dropTarget() {}
func (Unresolved) dropTarget()       {}

// Wire prefixes for drop-target IDs.
const (
	slotPrefix  = "slot|"
	dayPrefix   = "day|"
	brainDumpID = "brain-dump"
	fieldSep    = "|"
)

// ParseDropTarget decodes a drop-target ID from the rendering layer. A bare
// day ID decodes directly to a DayTarget; anything else unrecognized comes
// back Unresolved for the caller to look up.
func ParseDropTarget(id string) DropTarget {
	switch {
	case id == brainDumpID:
		return UnscheduleTarget{}
	case strings.HasPrefix(id, slotPrefix):
		rest := strings.TrimPrefix(id, slotPrefix)
		day, tm, ok := strings.Cut(rest, fieldSep)
		if !ok {
			return Unresolved{Raw: id}
		}
		if _, err := ParseDayID(day); err != nil {
			return Unresolved{Raw: id}
		}
		if _, err := SlotIndex(tm); err != nil {
			return Unresolved{Raw: id}
		}
		return SlotTarget{Day: day, Time: tm}
	case strings.HasPrefix(id, dayPrefix):
		day := strings.TrimPrefix(id, dayPrefix)
		if _, err := ParseDayID(day); err != nil {
			return Unresolved{Raw: id}
		}
		return DayTarget{Day: day}
	default:
		if _, err := ParseDayID(id); err == nil {
			return DayTarget{Day: id}
		}
		return Unresolved{Raw: id}
	}
}

// ID encodes a SlotTarget for the rendering layer.
func (t SlotTarget) ID() string { return slotPrefix + t.Day + fieldSep + t.Time }

// ID encodes a DayTarget for the rendering layer.
func (t DayTarget) ID() string { return dayPrefix + t.Day }

// ID encodes the unschedule sentinel for the rendering layer.
func (UnscheduleTarget) ID() string { return brainDumpID }
