package task

import (
	"testing"
	"time"
)

// TestAddDefaults verifies that Add fills every required field on a blank
// partial task.
func TestAddDefaults(t *testing.T) {
	s := NewStore()
	got := s.Add(Task{})

	if got.ID == "" {
		t.Error("Add did not assign an id")
	}
	if got.Title != "New Task" {
		t.Errorf("title = %q, want %q", got.Title, "New Task")
	}
	if got.TimeEstimate != 30 {
		t.Errorf("timeEstimate = %d, want 30", got.TimeEstimate)
	}
	if got.Priority != PriorityMedium {
		t.Errorf("priority = %q, want medium", got.Priority)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("createdAt not set")
	}
	if got.Tags == nil {
		t.Error("tags not initialized")
	}
	if got.Scheduled() {
		t.Error("new task should be unscheduled")
	}
}

// TestAddDropsOrphanTime verifies a scheduledTime without a scheduledDate is
// cleared on entry.
func TestAddDropsOrphanTime(t *testing.T) {
	s := NewStore()
	got := s.Add(Task{Title: "x", ScheduledTime: "09:00"})
	if got.ScheduledTime != "" {
		t.Errorf("scheduledTime = %q, want cleared without a date", got.ScheduledTime)
	}
}

// TestMoveSetsAndClearsAtomically covers both directions of the move
// operation: onto a slot and back to the brain dump.
func TestMoveSetsAndClearsAtomically(t *testing.T) {
	s := NewStore()
	created := s.Add(Task{Title: "Draft report"})

	s.Move(created.ID, "2024-06-03", "09:00")
	got, ok := s.Get(created.ID)
	if !ok {
		t.Fatal("task vanished after move")
	}
	if got.ScheduledDate != "2024-06-03" || got.ScheduledTime != "09:00" {
		t.Fatalf("after move: date=%q time=%q", got.ScheduledDate, got.ScheduledTime)
	}

	s.Move(created.ID, "", "")
	got, _ = s.Get(created.ID)
	if got.ScheduledDate != "" || got.ScheduledTime != "" {
		t.Fatalf("after unschedule: date=%q time=%q", got.ScheduledDate, got.ScheduledTime)
	}
}

// TestMoveClearsTimeWithDate verifies unscheduling via an empty date clears a
// still-present time.
func TestMoveClearsTimeWithDate(t *testing.T) {
	s := NewStore()
	created := s.Add(Task{Title: "x"})
	s.Move(created.ID, "2024-06-03", "09:00")
	s.Move(created.ID, "", "09:00")
	got, _ := s.Get(created.ID)
	if got.ScheduledTime != "" {
		t.Errorf("scheduledTime = %q, want cleared", got.ScheduledTime)
	}
}

// TestMoveAppendsToBottom verifies a moved task lands after every existing
// task of its new day in iteration order.
func TestMoveAppendsToBottom(t *testing.T) {
	s := NewStore()
	a := s.Add(Task{Title: "a"})
	b := s.Add(Task{Title: "b"})
	c := s.Add(Task{Title: "c"})

	s.Move(a.ID, "2024-06-03", "")
	s.Move(b.ID, "2024-06-03", "")
	s.Move(c.ID, "2024-06-03", "")
	s.Move(a.ID, "2024-06-03", "") // reschedule onto the same day

	day := s.ByDay("2024-06-03")
	if len(day) != 3 {
		t.Fatalf("day has %d tasks, want 3", len(day))
	}
	gotOrder := []string{day[0].Title, day[1].Title, day[2].Title}
	wantOrder := []string{"b", "c", "a"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("day order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

// TestScenarioDraftReport walks spec-level scenario A: add, schedule, resize.
func TestScenarioDraftReport(t *testing.T) {
	s := NewStore()
	created := s.Add(Task{Title: "Draft report"})

	if got := s.Unscheduled(); len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("unscheduled view = %v", got)
	}

	s.Move(created.ID, "2024-06-03", "09:00")
	if got := s.Unscheduled(); len(got) != 0 {
		t.Fatalf("task still in brain dump after move: %v", got)
	}
	if got := s.ByDay("2024-06-03"); len(got) != 1 {
		t.Fatalf("day column = %v", got)
	}

	s.Update(created.ID, map[string]any{"timeEstimate": 90})
	got, _ := s.Get(created.ID)
	if got.TimeEstimate != 90 {
		t.Fatalf("timeEstimate = %d, want 90", got.TimeEstimate)
	}
}

// TestWholeDayBoard walks scenario B: two tasks moved to a day with no time
// keep move order and no scheduledTime.
func TestWholeDayBoard(t *testing.T) {
	s := NewStore()
	a := s.Add(Task{Title: "first"})
	b := s.Add(Task{Title: "second"})
	s.Move(a.ID, "2024-06-03", "")
	s.Move(b.ID, "2024-06-03", "")

	day := s.ByDay("2024-06-03")
	if len(day) != 2 {
		t.Fatalf("day has %d tasks, want 2", len(day))
	}
	if day[0].ID != a.ID || day[1].ID != b.ID {
		t.Errorf("day order = [%s %s], want move order", day[0].Title, day[1].Title)
	}
	for _, d := range day {
		if d.ScheduledTime != "" {
			t.Errorf("%s has scheduledTime %q, want none", d.Title, d.ScheduledTime)
		}
	}
}

// TestToggleComplete verifies the two-way toggle: completed <-> pending, with
// in-progress collapsing to pending on the way back.
func TestToggleComplete(t *testing.T) {
	s := NewStore()
	created := s.Add(Task{Title: "x"})
	s.Update(created.ID, map[string]any{"status": "in-progress"})

	s.ToggleComplete(created.ID)
	if got, _ := s.Get(created.ID); got.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}

	s.ToggleComplete(created.ID)
	if got, _ := s.Get(created.ID); got.Status != StatusPending {
		t.Fatalf("status = %q, want pending (in-progress is not restored)", got.Status)
	}
}

// TestUpdateUnknownIDIsNoop verifies operations on absent ids neither panic
// nor mutate anything.
func TestUpdateUnknownIDIsNoop(t *testing.T) {
	s := NewStore()
	s.Add(Task{Title: "x"})

	s.Update("nope", map[string]any{"title": "y"})
	s.Delete("nope")
	s.Move("nope", "2024-06-03", "")
	s.ToggleComplete("nope")

	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

// TestUpdateIgnoresEmptyTitle verifies a blank title edit doesn't wipe the
// display string.
func TestUpdateIgnoresEmptyTitle(t *testing.T) {
	s := NewStore()
	created := s.Add(Task{Title: "keep me"})
	s.Update(created.ID, map[string]any{"title": ""})
	if got, _ := s.Get(created.ID); got.Title != "keep me" {
		t.Errorf("title = %q, want %q", got.Title, "keep me")
	}
}

// TestUpdateSchedulesDateAndTimeTogether verifies that one update carrying
// both scheduledDate and scheduledTime places an unscheduled task regardless
// of map iteration order. Repeated because iteration order varies per run.
func TestUpdateSchedulesDateAndTimeTogether(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := NewStore()
		created := s.Add(Task{Title: "x"})

		s.Update(created.ID, map[string]any{
			"scheduledDate": "2024-06-03",
			"scheduledTime": "09:00",
		})

		got, _ := s.Get(created.ID)
		if got.ScheduledDate != "2024-06-03" || got.ScheduledTime != "09:00" {
			t.Fatalf("run %d: scheduled = %q %q, want 2024-06-03 09:00",
				i, got.ScheduledDate, got.ScheduledTime)
		}
	}
}

// TestUpdateClearsDateAndTime verifies an update clearing the date drops the
// time as well, even when the same update tries to set one.
func TestUpdateClearsDateAndTime(t *testing.T) {
	s := NewStore()
	created := s.Add(Task{Title: "x", ScheduledDate: "2024-06-03", ScheduledTime: "09:00"})

	s.Update(created.ID, map[string]any{
		"scheduledDate": "",
		"scheduledTime": "10:00",
	})

	got, _ := s.Get(created.ID)
	if got.ScheduledDate != "" || got.ScheduledTime != "" {
		t.Fatalf("scheduled = %q %q, want both cleared", got.ScheduledDate, got.ScheduledTime)
	}
}

// TestUpdateJSONNumbers verifies timeEstimate accepts float64, which is what
// decoded JSON bodies carry.
func TestUpdateJSONNumbers(t *testing.T) {
	s := NewStore()
	created := s.Add(Task{Title: "x"})
	s.Update(created.ID, map[string]any{"timeEstimate": float64(120)})
	if got, _ := s.Get(created.ID); got.TimeEstimate != 120 {
		t.Errorf("timeEstimate = %d, want 120", got.TimeEstimate)
	}
}

// TestReplacePreservesOrder verifies wholesale replacement keeps the given
// iteration order.
func TestReplacePreservesOrder(t *testing.T) {
	s := NewStore()
	s.Add(Task{Title: "old"})

	s.Replace([]Task{
		{ID: "1", Title: "a"},
		{ID: "2", Title: "b"},
	}, OriginRemote)

	all := s.All()
	if len(all) != 2 || all[0].ID != "1" || all[1].ID != "2" {
		t.Fatalf("all = %v", all)
	}
}

// TestSubscribeOrigins verifies local mutations and remote merges carry their
// origin tags to subscribers.
func TestSubscribeOrigins(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	created := s.Add(Task{Title: "x"})
	s.ApplyRemote(Task{ID: "r1", Title: "remote"})
	s.RemoveRemote("r1")

	want := []Change{
		{Op: "add", Origin: OriginLocal, TaskID: created.ID},
		{Op: "update", Origin: OriginRemote, TaskID: "r1"},
		{Op: "delete", Origin: OriginRemote, TaskID: "r1"},
	}
	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Fatalf("change %d = %+v, want %+v", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for change %d", i)
		}
	}
}

// TestApplyRemoteKeepsPosition verifies a remote patch of an existing task
// does not move it to the bottom.
func TestApplyRemoteKeepsPosition(t *testing.T) {
	s := NewStore()
	a := s.Add(Task{Title: "a"})
	s.Add(Task{Title: "b"})

	patched, _ := s.Get(a.ID)
	patched.Title = "a2"
	s.ApplyRemote(patched)

	all := s.All()
	if all[0].ID != a.ID || all[0].Title != "a2" {
		t.Fatalf("all = %v", all)
	}
}

// TestWeekColumns verifies day-column derivation over a week window.
func TestWeekColumns(t *testing.T) {
	s := NewStore()
	a := s.Add(Task{Title: "monday task"})
	s.Move(a.ID, "2024-06-03", "09:00")

	weekStart := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	cols := s.Week(weekStart)
	if len(cols) != 7 {
		t.Fatalf("got %d columns, want 7", len(cols))
	}
	if cols[0].ID != "2024-06-03" || cols[0].DayName != "Monday" {
		t.Errorf("first column = %+v", cols[0])
	}
	if len(cols[0].Tasks) != 1 || cols[0].Tasks[0].ID != a.ID {
		t.Errorf("monday tasks = %v", cols[0].Tasks)
	}
	for _, col := range cols[1:] {
		if len(col.Tasks) != 0 {
			t.Errorf("column %s unexpectedly has tasks", col.ID)
		}
	}
}
