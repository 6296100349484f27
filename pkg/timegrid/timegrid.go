// Package timegrid maps between calendar coordinates (day index, slot index)
// and task scheduling fields (date, start time, duration). A day is divided
// into fixed 30-minute slots; all functions are pure so placement math is
// testable without any UI.
package timegrid

import (
	"fmt"
	"math"
	"time"
)

const (
	// SlotMinutes is the calendar's placement granularity.
	SlotMinutes = 30

	// SlotsPerHour is the number of slots in one hour.
	SlotsPerHour = 60 / SlotMinutes

	// SlotsPerDay is the number of slots in one day.
	SlotsPerDay = 24 * SlotsPerHour

	// DaysPerWeek is the width of the board.
	DaysPerWeek = 7
)

// dayLayout is the wire format for day IDs.
const dayLayout = "2006-01-02"

// DayID formats a time as a day-granularity key.
func DayID(t time.Time) string {
	return t.Format(dayLayout)
}

// ParseDayID parses a day-granularity key.
func ParseDayID(s string) (time.Time, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day id %q: %w", s, err)
	}
	return t, nil
}

// SlotIndex returns the 0-based slot index for a slot-aligned "HH:MM" time.
// Times inside a slot round down to the slot's start.
func SlotIndex(hhmm string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("parse time %q: %w", hhmm, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", hhmm)
	}
	return hour*SlotsPerHour + minute/SlotMinutes, nil
}

// SlotTime returns the slot-aligned "HH:MM" start time for a slot index.
func SlotTime(slot int) string {
	minutes := slot * SlotMinutes
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// CoordinateToTime converts a (dayIndex, slotIndex) board coordinate into a
// (dayID, "HH:MM") pair, relative to the given week start.
func CoordinateToTime(weekStart time.Time, dayIndex, slotIndex int) (string, string) {
	day := weekStart.AddDate(0, 0, dayIndex)
	return DayID(day), SlotTime(slotIndex)
}

// SlotSpan returns how many slots a duration occupies, never fewer than one.
func SlotSpan(minutes int) int {
	if minutes <= SlotMinutes {
		return 1
	}
	return (minutes + SlotMinutes - 1) / SlotMinutes
}

// SlotDelta converts a vertical pixel delta into whole slots, rounded to the
// nearest slot. Negative deltas shrink, positive deltas grow.
func SlotDelta(deltaPixels, slotHeightPixels float64) int {
	if slotHeightPixels <= 0 {
		return 0
	}
	return int(math.Round(deltaPixels / slotHeightPixels))
}

// ResizeDuration applies a slot delta to a duration. The result never drops
// below one slot's worth of minutes.
func ResizeDuration(originalMinutes, slotDelta int) int {
	d := originalMinutes + slotDelta*SlotMinutes
	if d < SlotMinutes {
		return SlotMinutes
	}
	return d
}

// StartOfWeek returns midnight of the Monday on or before t, in t's location.
func StartOfWeek(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return t.AddDate(0, 0, -offset)
}

// AddWeeks moves a week start by whole weeks.
func AddWeeks(weekStart time.Time, n int) time.Time {
	return weekStart.AddDate(0, 0, n*DaysPerWeek)
}

// WeekDays returns the seven day IDs of the week beginning at weekStart.
func WeekDays(weekStart time.Time) [DaysPerWeek]string {
	var days [DaysPerWeek]string
	for i := range days {
		days[i] = DayID(weekStart.AddDate(0, 0, i))
	}
	return days
}
