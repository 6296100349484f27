package task

import (
	"sync"
	"time"

	"brainboard/pkg/timegrid"
)

// Origin tags a mutation with its source, so the sync engine can diff local
// edits without re-pushing its own merges.
type Origin int

const (
	// OriginLocal marks a direct user (or API) mutation.
	OriginLocal Origin = iota
	// OriginRemote marks a mutation applied because of remote data.
	OriginRemote
)

// Change describes one store mutation, fanned out to subscribers.
type Change struct {
	Op     string `json:"op"` // "add", "update", "delete", "move", "toggle", "replace"
	Origin Origin `json:"origin"`
	TaskID string `json:"taskId,omitempty"` // empty for wholesale ops
}

// Store is the canonical task collection. All operations are synchronous and
// atomic; slice order is display order (day columns render tasks in iteration
// order, so Move appends to the bottom of its new day).
type Store struct {
	mu    sync.RWMutex
	tasks []*Task
	byID  map[string]*Task

	submu sync.RWMutex
	subs  map[chan Change]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byID: make(map[string]*Task),
		subs: make(map[chan Change]struct{}),
	}
}

// Subscribe returns a buffered channel that receives every change.
func (s *Store) Subscribe() chan Change {
	ch := make(chan Change, 64)
	s.submu.Lock()
	s.subs[ch] = struct{}{}
	s.submu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(ch chan Change) {
	s.submu.Lock()
	delete(s.subs, ch)
	s.submu.Unlock()
	close(ch)
}

func (s *Store) notify(c Change) {
	s.submu.RLock()
	for ch := range s.subs {
		select {
		case ch <- c:
		default:
			// subscriber is behind; drop to avoid blocking the mutation
		}
	}
	s.submu.RUnlock()
}

// Add fills defaults on the given partial task, appends it, and returns the
// stored value.
func (s *Store) Add(partial Task) Task {
	s.mu.Lock()
	t := partial
	t.normalize()
	s.insertLocked(&t)
	out := t.clone()
	s.mu.Unlock()

	s.notify(Change{Op: "add", Origin: OriginLocal, TaskID: out.ID})
	return out
}

// insertLocked appends a task, replacing any existing task with the same id.
func (s *Store) insertLocked(t *Task) {
	if old, ok := s.byID[t.ID]; ok {
		*old = *t
		return
	}
	s.tasks = append(s.tasks, t)
	s.byID[t.ID] = t
}

// Update merges the given fields into the matching task. Supported keys:
// title, description, timeEstimate, priority, status, scheduledDate,
// scheduledTime, tags. Unknown ids and unknown keys are ignored.
func (s *Store) Update(id string, updates map[string]any) {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	for k, v := range updates {
		switch k {
		case "title":
			if title, ok := v.(string); ok && title != "" {
				t.Title = title
			}
		case "description":
			if d, ok := v.(string); ok {
				t.Description = d
			}
		case "timeEstimate":
			switch n := v.(type) {
			case int:
				if n >= 1 {
					t.TimeEstimate = n
				}
			case float64: // JSON numbers decode as float64
				if n >= 1 {
					t.TimeEstimate = int(n)
				}
			}
		case "priority":
			switch Priority(asString(v)) {
			case PriorityLow, PriorityMedium, PriorityHigh:
				t.Priority = Priority(asString(v))
			}
		case "status":
			switch Status(asString(v)) {
			case StatusPending, StatusInProgress, StatusCompleted:
				t.Status = Status(asString(v))
			}
		case "tags":
			if tags, ok := v.([]string); ok {
				t.Tags = append([]string{}, tags...)
			}
		}
	}
	// scheduledDate and scheduledTime interact, so they apply in a fixed
	// order independent of map iteration: date first, then time, then the
	// no-time-without-date invariant.
	if v, ok := updates["scheduledDate"]; ok {
		t.ScheduledDate = asString(v)
	}
	if v, ok := updates["scheduledTime"]; ok && t.ScheduledDate != "" {
		t.ScheduledTime = asString(v)
	}
	if t.ScheduledDate == "" {
		t.ScheduledTime = ""
	}
	s.mu.Unlock()

	s.notify(Change{Op: "update", Origin: OriginLocal, TaskID: id})
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// Delete removes a task by id. Unknown ids are a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return
	}
	s.removeLocked(id)
	s.mu.Unlock()

	s.notify(Change{Op: "delete", Origin: OriginLocal, TaskID: id})
}

func (s *Store) removeLocked(id string) {
	delete(s.byID, id)
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

// Move sets the task's placement. Empty date unschedules (clearing the time
// as well); empty time with a date means "on that day, no time of day". The
// moved task is relocated to the end of iteration order so it renders below
// existing tasks of its new day.
func (s *Store) Move(id, date, tod string) {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	t.ScheduledDate = date
	if date == "" {
		t.ScheduledTime = ""
	} else {
		t.ScheduledTime = tod
	}
	// append to bottom
	for i, cur := range s.tasks {
		if cur.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	s.notify(Change{Op: "move", Origin: OriginLocal, TaskID: id})
}

// ToggleComplete flips a task between completed and pending. A prior
// in-progress state is not restored; un-completing always lands on pending.
func (s *Store) ToggleComplete(id string) {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if t.Status == StatusCompleted {
		t.Status = StatusPending
	} else {
		t.Status = StatusCompleted
	}
	s.mu.Unlock()

	s.notify(Change{Op: "toggle", Origin: OriginLocal, TaskID: id})
}

// Replace swaps the whole collection, preserving the given order.
func (s *Store) Replace(tasks []Task, origin Origin) {
	s.mu.Lock()
	s.tasks = s.tasks[:0]
	s.byID = make(map[string]*Task, len(tasks))
	for i := range tasks {
		t := tasks[i].clone()
		t.normalize()
		s.insertLocked(&t)
	}
	s.mu.Unlock()

	s.notify(Change{Op: "replace", Origin: origin})
}

// ApplyRemote merges one remote task: existing tasks are patched in place
// (keeping their position), new tasks append.
func (s *Store) ApplyRemote(in Task) {
	s.mu.Lock()
	in.normalize()
	if cur, ok := s.byID[in.ID]; ok {
		*cur = in
	} else {
		t := in
		s.tasks = append(s.tasks, &t)
		s.byID[t.ID] = &t
	}
	s.mu.Unlock()

	s.notify(Change{Op: "update", Origin: OriginRemote, TaskID: in.ID})
}

// RemoveRemote removes a task because the remote store deleted it.
func (s *Store) RemoveRemote(id string) {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return
	}
	s.removeLocked(id)
	s.mu.Unlock()

	s.notify(Change{Op: "delete", Origin: OriginRemote, TaskID: id})
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return Task{}, false
	}
	return t.clone(), true
}

// All returns a copy of the collection in iteration order.
func (s *Store) All() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.clone())
	}
	return out
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Unscheduled returns the brain-dump inbox: every task with no date.
func (s *Store) Unscheduled() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.tasks {
		if !t.Scheduled() {
			out = append(out, t.clone())
		}
	}
	return out
}

// ByDay returns the tasks scheduled on the given day, in iteration order.
func (s *Store) ByDay(date string) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.tasks {
		if t.ScheduledDate == date {
			out = append(out, t.clone())
		}
	}
	return out
}

// Week derives the seven day columns of the week beginning at weekStart.
func (s *Store) Week(weekStart time.Time) []DayColumn {
	days := timegrid.WeekDays(weekStart)
	cols := make([]DayColumn, 0, len(days))
	for i, d := range days {
		date := weekStart.AddDate(0, 0, i)
		cols = append(cols, DayColumn{
			ID:      d,
			Date:    d,
			DayName: date.Weekday().String(),
			Tasks:   s.ByDay(d),
		})
	}
	return cols
}
