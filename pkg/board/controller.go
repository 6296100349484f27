// Package board bridges pointer gestures to task store operations via the
// time grid: picking a task up and dropping it on a slot, a day, or back into
// the brain dump, and resizing a calendar block to change its duration.
//
// A Controller belongs to one UI event loop and is not safe for concurrent
// use from multiple goroutines.
package board

import (
	"time"

	"brainboard/pkg/task"
	"brainboard/pkg/timegrid"
)

// clickCooldown suppresses the click synthesized from the same pointer-up
// that ends a resize, which would otherwise open the edit view.
const clickCooldown = 250 * time.Millisecond

// Controller turns drag and resize gestures into store mutations.
type Controller struct {
	store *task.Store

	dragging string // task id being dragged, "" when idle

	resizing   string // task id being resized, "" when idle
	original   int    // duration at grip pick-up, minutes
	anchorY    float64
	slotHeight float64
	preview    int

	resizeEnded time.Time
	now         func() time.Time
}

// NewController creates a Controller over the given store.
func NewController(store *task.Store) *Controller {
	return &Controller{store: store, now: time.Now}
}

// BeginDrag captures the task being picked up.
func (c *Controller) BeginDrag(taskID string) {
	if _, ok := c.store.Get(taskID); ok {
		c.dragging = taskID
	}
}

// Dragging returns the id of the task in flight.
func (c *Controller) Dragging() (string, bool) {
	return c.dragging, c.dragging != ""
}

// CancelDrag clears the dragged-task reference without moving anything.
func (c *Controller) CancelDrag() {
	c.dragging = ""
}

// Drop ends the drag gesture on the given drop-target id. An unrecognized
// target makes the gesture a no-op; either way the controller returns to
// idle.
func (c *Controller) Drop(targetID string) {
	id := c.dragging
	c.dragging = ""
	if id == "" {
		return
	}

	switch target := timegrid.ParseDropTarget(targetID).(type) {
	case timegrid.SlotTarget:
		c.store.Move(id, target.Day, target.Time)
	case timegrid.DayTarget:
		c.store.Move(id, target.Day, "")
	case timegrid.UnscheduleTarget:
		c.store.Move(id, "", "")
	case timegrid.Unresolved:
		// Dropping over another task's card: inherit that card's day.
		if over, ok := c.store.Get(target.Raw); ok {
			if over.Scheduled() {
				c.store.Move(id, over.ScheduledDate, "")
			} else {
				c.store.Move(id, "", "")
			}
		}
	}
}

// BeginResize captures the task, its current duration, and the pointer's
// anchor Y. Returns false if the task is unknown.
func (c *Controller) BeginResize(taskID string, y, slotHeight float64) bool {
	t, ok := c.store.Get(taskID)
	if !ok {
		return false
	}
	c.resizing = taskID
	c.original = t.TimeEstimate
	c.anchorY = y
	c.slotHeight = slotHeight
	c.preview = t.TimeEstimate
	return true
}

// ResizeTo recomputes the live preview duration for the current pointer Y.
// Nothing is committed until EndResize.
func (c *Controller) ResizeTo(y float64) int {
	if c.resizing == "" {
		return 0
	}
	delta := timegrid.SlotDelta(y-c.anchorY, c.slotHeight)
	c.preview = timegrid.ResizeDuration(c.original, delta)
	return c.preview
}

// Resizing returns the id of the task being resized and its preview
// duration.
func (c *Controller) Resizing() (string, int, bool) {
	return c.resizing, c.preview, c.resizing != ""
}

// EndResize commits the preview duration if it changed, and starts the click
// cooldown. Date and time are never touched.
func (c *Controller) EndResize() {
	id := c.resizing
	c.resizing = ""
	if id == "" {
		return
	}
	if c.preview != c.original {
		c.store.Update(id, map[string]any{"timeEstimate": c.preview})
	}
	c.resizeEnded = c.now()
}

// CancelResize discards the preview without committing anything.
func (c *Controller) CancelResize() {
	c.resizing = ""
}

// SuppressClick reports whether a click should be swallowed because a resize
// just ended on the same pointer-up.
func (c *Controller) SuppressClick() bool {
	return c.now().Sub(c.resizeEnded) < clickCooldown
}
