// Package task holds the canonical in-memory task collection and its derived
// views. The Store is the only writer of task fields; the sync engine feeds
// remote data through it with an explicit remote origin so downstream
// consumers can tell user edits from sync merges.
package task

import (
	"time"

	"github.com/google/uuid"

	"brainboard/pkg/timegrid"
)

// Priority is a task's urgency bucket.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status is a task's progress state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Task is a unit of work, either sitting in the brain-dump inbox (no
// ScheduledDate) or placed on the board. A task with a ScheduledTime always
// has a ScheduledDate; the Store maintains that invariant.
type Task struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	TimeEstimate  int       `json:"timeEstimate"` // minutes, >= 1
	Priority      Priority  `json:"priority"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	ScheduledDate string    `json:"scheduledDate,omitempty"` // day ID, empty = unscheduled
	ScheduledTime string    `json:"scheduledTime,omitempty"` // "HH:MM", empty = no time of day
	Tags          []string  `json:"tags"`
}

// Scheduled reports whether the task is placed on a day.
func (t *Task) Scheduled() bool { return t.ScheduledDate != "" }

// HasTag reports whether the task carries the given tag value.
func (t *Task) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// Normalized returns a copy with the same defaults and repairs the store
// applies on insert. Fingerprinting an incoming row after Normalized matches
// the fingerprint of the task as it will actually be stored.
func (t Task) Normalized() Task {
	c := t.clone()
	c.normalize()
	return c
}

// clone returns a deep copy so callers can't mutate store state.
func (t *Task) clone() Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	return c
}

// normalize fills defaults for a new task and repairs field invariants.
func (t *Task) normalize() {
	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	if t.Title == "" {
		t.Title = "New Task"
	}
	if t.TimeEstimate < 1 {
		t.TimeEstimate = timegrid.SlotMinutes
	}
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		t.Priority = PriorityMedium
	}
	switch t.Status {
	case StatusPending, StatusInProgress, StatusCompleted:
	default:
		t.Status = StatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().Truncate(time.Microsecond)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.ScheduledDate == "" {
		t.ScheduledTime = ""
	}
}

// DayColumn is one board day, derived on read and never stored.
type DayColumn struct {
	ID      string `json:"id"` // same as Date
	Date    string `json:"date"`
	DayName string `json:"dayName"`
	Tasks   []Task `json:"tasks"`
}
