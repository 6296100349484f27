package board

import (
	"time"

	"brainboard/pkg/timegrid"
)

// WeekWindow is the board's visible week, navigated by whole weeks.
type WeekWindow struct {
	start time.Time
}

// NewWeekWindow creates a window on the week containing now.
func NewWeekWindow(now time.Time) *WeekWindow {
	return &WeekWindow{start: timegrid.StartOfWeek(now)}
}

// Start returns the current week start.
func (w *WeekWindow) Start() time.Time { return w.start }

// Next advances one week.
func (w *WeekWindow) Next() { w.start = timegrid.AddWeeks(w.start, 1) }

// Prev goes back one week.
func (w *WeekWindow) Prev() { w.start = timegrid.AddWeeks(w.start, -1) }

// Today resets to the week containing now.
func (w *WeekWindow) Today(now time.Time) { w.start = timegrid.StartOfWeek(now) }
