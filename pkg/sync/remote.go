// Package sync reconciles the local task store with a remote row-store:
// initial load, diffed outbound push on local change, and inbound realtime
// merge with echo suppression. Sync is best-effort; every remote failure is
// logged and absorbed, and an unpushed change stays queued because its
// fingerprint is only advanced on confirmed success.
package sync

import (
	"context"
	"time"

	"brainboard/pkg/task"
)

// EventType classifies a realtime feed event.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one realtime change notification from the remote store.
type Event struct {
	Type EventType
	Row  Row
}

// Remote is the row-store the engine reconciles against. Implementations
// must treat Upsert as full-row last-write-wins keyed by id.
type Remote interface {
	SelectAll(ctx context.Context) ([]Row, error)
	Upsert(ctx context.Context, rows []Row) error
	Delete(ctx context.Context, ids []string) error
	// Subscribe delivers feed events until ctx is cancelled or the returned
	// unsubscribe func is called. Events arrive in delivery order.
	Subscribe(ctx context.Context, onChange func(Event)) (func(), error)
}

// Row is a task in the remote store's wire shape: snake_case fields, empty
// strings for absent date/time.
type Row struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	TimeEstimate  int       `json:"time_estimate"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	ScheduledDate string    `json:"scheduled_date,omitempty"`
	ScheduledTime string    `json:"scheduled_time,omitempty"`
	Tags          []string  `json:"tags"`
}

// RowFromTask maps a task to its remote shape.
func RowFromTask(t task.Task) Row {
	return Row{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		TimeEstimate:  t.TimeEstimate,
		Priority:      string(t.Priority),
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
		ScheduledDate: t.ScheduledDate,
		ScheduledTime: t.ScheduledTime,
		Tags:          append([]string{}, t.Tags...),
	}
}

// Task maps a remote row back to the local shape.
func (r Row) Task() task.Task {
	return task.Task{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		TimeEstimate:  r.TimeEstimate,
		Priority:      task.Priority(r.Priority),
		Status:        task.Status(r.Status),
		CreatedAt:     r.CreatedAt.Truncate(time.Microsecond),
		ScheduledDate: r.ScheduledDate,
		ScheduledTime: r.ScheduledTime,
		Tags:          append([]string{}, r.Tags...),
	}
}

// Cache is the local persistent slot holding the serialized collection. Load
// returns nil with no error when the slot is empty.
type Cache interface {
	Load() ([]task.Task, error)
	Save([]task.Task) error
	Clear() error
}
