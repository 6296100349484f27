// Package gcal imports external calendar events into the task store. Each
// imported task carries a source tag derived from the event id, which makes
// re-importing the same range a no-op.
package gcal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"brainboard/pkg/task"
)

// sourceTagPrefix marks a task as imported from an external event.
const sourceTagPrefix = "source:"

// Event is a normalized external calendar event.
type Event struct {
	ID          string
	Title       string
	Description string
	Date        string // day ID, "2006-01-02"
	Time        string // "HH:MM", empty for all-day events
	Minutes     int
	AllDay      bool
}

// Source produces normalized events for a date range.
type Source interface {
	Events(ctx context.Context, from, to time.Time) ([]Event, error)
}

// Importer converts external events into tasks.
type Importer struct {
	store *task.Store
	src   Source
}

// NewImporter creates an Importer.
func NewImporter(store *task.Store, src Source) *Importer {
	return &Importer{store: store, src: src}
}

// SourceTag returns the dedup tag for an external event id.
func SourceTag(eventID string) string { return sourceTagPrefix + eventID }

// Import fetches the range and adds one task per event not already imported.
// Returns the number of tasks created. Unlike background sync, import is
// user-initiated, so fetch errors propagate for display.
func (i *Importer) Import(ctx context.Context, from, to time.Time) (int, error) {
	events, err := i.src.Events(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("fetch calendar events: %w", err)
	}

	imported := make(map[string]bool)
	for _, t := range i.store.All() {
		for _, tag := range t.Tags {
			if strings.HasPrefix(tag, sourceTagPrefix) {
				imported[tag] = true
			}
		}
	}

	added := 0
	for _, ev := range events {
		tag := SourceTag(ev.ID)
		if imported[tag] {
			continue
		}
		tod := ev.Time
		if ev.AllDay {
			tod = ""
		}
		i.store.Add(task.Task{
			Title:         ev.Title,
			Description:   ev.Description,
			TimeEstimate:  ev.Minutes,
			ScheduledDate: ev.Date,
			ScheduledTime: tod,
			Tags:          []string{tag},
		})
		imported[tag] = true
		added++
	}
	return added, nil
}
