package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"brainboard/pkg/task"
)

// fakeRemote is an in-memory Remote recording every call.
type fakeRemote struct {
	mu          stdsync.Mutex
	rows        map[string]Row
	order       []string
	upserts     [][]Row
	deletes     [][]string
	failUpsert  bool
	failDelete  bool
	failSelect  bool
	onChange    func(Event)
	unsubscribe int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: make(map[string]Row)}
}

func (f *fakeRemote) SelectAll(ctx context.Context) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSelect {
		return nil, errors.New("remote unreachable")
	}
	out := make([]Row, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.rows[id])
	}
	return out, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, rows []Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return errors.New("upsert failed")
	}
	f.upserts = append(f.upserts, rows)
	for _, r := range rows {
		if _, ok := f.rows[r.ID]; !ok {
			f.order = append(f.order, r.ID)
		}
		f.rows[r.ID] = r
	}
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("delete failed")
	}
	f.deletes = append(f.deletes, ids)
	for _, id := range ids {
		delete(f.rows, id)
	}
	return nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, onChange func(Event)) (func(), error) {
	f.mu.Lock()
	f.onChange = onChange
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubscribe++
		f.mu.Unlock()
	}, nil
}

// emit delivers a feed event as the realtime channel would.
func (f *fakeRemote) emit(ev Event) {
	f.mu.Lock()
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func (f *fakeRemote) upsertedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, batch := range f.upserts {
		for _, r := range batch {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func (f *fakeRemote) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

// fakeCache is an in-memory cache slot.
type fakeCache struct {
	mu    stdsync.Mutex
	tasks []task.Task
	saves int
}

func (c *fakeCache) Load() ([]task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]task.Task(nil), c.tasks...), nil
}

func (c *fakeCache) Save(tasks []task.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append([]task.Task(nil), tasks...)
	c.saves++
	return nil
}

func (c *fakeCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = nil
	return nil
}

// waitFor polls until cond holds or the test deadline expires. The engine's
// outbound worker is asynchronous, so observable effects need a grace period.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// settle gives the worker a moment to process anything pending, for asserting
// that something did NOT happen.
func settle() { time.Sleep(50 * time.Millisecond) }

func startEngine(t *testing.T, remote Remote, opts ...Option) (*task.Store, *Engine) {
	t.Helper()
	store := task.NewStore()
	e := New(store, remote, opts...)
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return store, e
}

func remoteRow(id, title string) Row {
	return Row{
		ID:           id,
		Title:        title,
		TimeEstimate: 30,
		Priority:     "medium",
		Status:       "pending",
		CreatedAt:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Tags:         []string{},
	}
}

// TestInitialLoadRemoteWins verifies a non-empty remote replaces local state
// without triggering a push-back.
func TestInitialLoadRemoteWins(t *testing.T) {
	remote := newFakeRemote()
	remote.rows["r1"] = remoteRow("r1", "from remote")
	remote.order = []string{"r1"}

	store, _ := startEngine(t, remote)

	waitFor(t, func() bool { return store.Len() == 1 })
	got, ok := store.Get("r1")
	if !ok || got.Title != "from remote" {
		t.Fatalf("store after load: %+v", got)
	}

	settle()
	if n := remote.upsertCount(); n != 0 {
		t.Fatalf("initial load caused %d pushes, want 0", n)
	}
}

// TestInitialLoadFailureKeepsLocal verifies an unreachable remote degrades to
// local-only mode with cached tasks intact.
func TestInitialLoadFailureKeepsLocal(t *testing.T) {
	remote := newFakeRemote()
	remote.failSelect = true
	cache := &fakeCache{tasks: []task.Task{{ID: "c1", Title: "cached"}}}

	store, _ := startEngine(t, remote, WithCache(cache))

	waitFor(t, func() bool { return store.Len() == 1 })
	if got, ok := store.Get("c1"); !ok || got.Title != "cached" {
		t.Fatalf("cached task missing: %+v", got)
	}
}

// TestSeedWhenEmpty verifies seed tasks load when both cache and remote are
// empty.
func TestSeedWhenEmpty(t *testing.T) {
	remote := newFakeRemote()
	cache := &fakeCache{}
	seed := []task.Task{{ID: "s1", Title: "seed"}}

	store, _ := startEngine(t, remote, WithCache(cache), WithSeed(seed))

	waitFor(t, func() bool { return store.Len() == 1 })
	settle()
	if n := remote.upsertCount(); n != 0 {
		t.Fatalf("seeding caused %d pushes, want 0", n)
	}
}

// TestLocalChangePushes verifies a local add is upserted and not re-pushed
// once its fingerprint is confirmed.
func TestLocalChangePushes(t *testing.T) {
	remote := newFakeRemote()
	store, e := startEngine(t, remote)

	created := store.Add(task.Task{Title: "push me"})
	waitFor(t, func() bool { return remote.upsertCount() == 1 })

	remote.mu.Lock()
	pushed := remote.upserts[0]
	remote.mu.Unlock()
	if len(pushed) != 1 || pushed[0].ID != created.ID || pushed[0].Title != "push me" {
		t.Fatalf("pushed rows = %+v", pushed)
	}

	// An unrelated mutation must not re-push unchanged content.
	other := store.Add(task.Task{Title: "other"})
	waitFor(t, func() bool { return remote.upsertCount() == 2 })
	remote.mu.Lock()
	second := remote.upserts[1]
	remote.mu.Unlock()
	if len(second) != 1 || second[0].ID != other.ID {
		t.Fatalf("second push re-sent unchanged tasks: %+v", second)
	}

	got, _ := store.Get(created.ID)
	if !e.tracker.Synced(got) {
		t.Error("pushed task not marked synced")
	}
}

// TestPushFailureRetries verifies fingerprints do not advance on error, so
// the next mutation cycle re-sends the change.
func TestPushFailureRetries(t *testing.T) {
	remote := newFakeRemote()
	remote.failUpsert = true
	store, _ := startEngine(t, remote)

	created := store.Add(task.Task{Title: "flaky"})
	settle()
	if remote.upsertCount() != 0 {
		t.Fatal("failed upsert should not be recorded")
	}

	remote.mu.Lock()
	remote.failUpsert = false
	remote.mu.Unlock()

	store.Update(created.ID, map[string]any{"description": "retry now"})
	waitFor(t, func() bool { return remote.upsertCount() == 1 })

	remote.mu.Lock()
	pushed := remote.upserts[0]
	remote.mu.Unlock()
	if len(pushed) != 1 || pushed[0].Description != "retry now" {
		t.Fatalf("retry pushed %+v", pushed)
	}
}

// TestLocalDeletePushes verifies a local delete issues a remote delete and
// clears pending state on success.
func TestLocalDeletePushes(t *testing.T) {
	remote := newFakeRemote()
	store, e := startEngine(t, remote)

	created := store.Add(task.Task{Title: "doomed"})
	waitFor(t, func() bool { return remote.upsertCount() == 1 })

	store.Delete(created.ID)
	waitFor(t, func() bool { return remote.deleteCount() == 1 })

	remote.mu.Lock()
	ids := remote.deletes[0]
	remote.mu.Unlock()
	if len(ids) != 1 || ids[0] != created.ID {
		t.Fatalf("deleted ids = %v", ids)
	}
	if pending := e.tracker.PendingDeletes(); len(pending) != 0 {
		t.Fatalf("pending deletes not cleared: %v", pending)
	}
}

// TestEchoSuppression verifies a feed event whose content matches the local
// task is a no-op: no store change, no outbound push.
func TestEchoSuppression(t *testing.T) {
	remote := newFakeRemote()
	store, _ := startEngine(t, remote)

	created := store.Add(task.Task{Title: "mine"})
	waitFor(t, func() bool { return remote.upsertCount() == 1 })

	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	got, _ := store.Get(created.ID)
	remote.emit(Event{Type: EventUpdate, Row: RowFromTask(got)})

	settle()
	select {
	case c := <-ch:
		t.Fatalf("echo caused store change %+v", c)
	default:
	}
	if n := remote.upsertCount(); n != 1 {
		t.Fatalf("echo caused %d extra pushes", n-1)
	}
}

// TestRemoteUpdateMerges verifies a genuinely different feed event patches
// the local task without a feedback push.
func TestRemoteUpdateMerges(t *testing.T) {
	remote := newFakeRemote()
	store, _ := startEngine(t, remote)

	created := store.Add(task.Task{Title: "v1"})
	waitFor(t, func() bool { return remote.upsertCount() == 1 })

	got, _ := store.Get(created.ID)
	row := RowFromTask(got)
	row.Title = "v2 from elsewhere"
	remote.emit(Event{Type: EventUpdate, Row: row})

	waitFor(t, func() bool {
		cur, _ := store.Get(created.ID)
		return cur.Title == "v2 from elsewhere"
	})
	settle()
	if n := remote.upsertCount(); n != 1 {
		t.Fatalf("remote merge caused %d extra pushes", n-1)
	}
}

// TestRemoteInsertAppends verifies a feed insert for an unknown id appends a
// new task.
func TestRemoteInsertAppends(t *testing.T) {
	remote := newFakeRemote()
	store, _ := startEngine(t, remote)

	remote.emit(Event{Type: EventInsert, Row: remoteRow("new1", "from another tab")})

	waitFor(t, func() bool { return store.Len() == 1 })
	settle()
	if n := remote.upsertCount(); n != 0 {
		t.Fatalf("remote insert caused %d pushes", n)
	}
}

// TestRemoteRowNeedingRepairNotRepushed verifies a feed row with invalid
// fields (stored after normalization) is tracked under the normalized
// fingerprint, so the next local mutation does not re-push it.
func TestRemoteRowNeedingRepairNotRepushed(t *testing.T) {
	remote := newFakeRemote()
	store, _ := startEngine(t, remote)

	remote.emit(Event{Type: EventInsert, Row: Row{
		ID:        "broken1",
		Title:     "", // repaired to "New Task" on insert
		CreatedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}})
	waitFor(t, func() bool { return store.Len() == 1 })

	created := store.Add(task.Task{Title: "unrelated"})
	waitFor(t, func() bool { return remote.upsertCount() >= 1 })
	settle()

	for _, id := range remote.upsertedIDs() {
		if id == "broken1" {
			t.Fatal("repaired remote row was pushed back")
		}
	}
	if got, _ := store.Get(created.ID); got.Title != "unrelated" {
		t.Fatalf("local add missing: %+v", got)
	}
}

// TestRemoteDeleteNoFeedback walks scenario C: a remote delete for a task not
// pending local deletion removes it locally with no outbound delete call.
func TestRemoteDeleteNoFeedback(t *testing.T) {
	remote := newFakeRemote()
	store, _ := startEngine(t, remote)

	created := store.Add(task.Task{Title: "shared"})
	waitFor(t, func() bool { return remote.upsertCount() == 1 })

	remote.emit(Event{Type: EventDelete, Row: Row{ID: created.ID}})

	waitFor(t, func() bool { return store.Len() == 0 })
	settle()
	if n := remote.deleteCount(); n != 0 {
		t.Fatalf("remote delete echoed back %d delete calls", n)
	}
}

// TestResync verifies manual resync clears sync state, refetches, and
// replaces the collection remote-wins.
func TestResync(t *testing.T) {
	remote := newFakeRemote()
	cache := &fakeCache{}
	store, e := startEngine(t, remote, WithCache(cache))

	stale := store.Add(task.Task{Title: "stale local"})
	waitFor(t, func() bool { return remote.upsertCount() == 1 })

	// Another client rewrote the remote store out from under us.
	remote.mu.Lock()
	remote.rows = map[string]Row{"r9": remoteRow("r9", "authoritative")}
	remote.order = []string{"r9"}
	remote.mu.Unlock()

	if err := e.Resync(context.Background()); err != nil {
		t.Fatalf("resync: %v", err)
	}

	if _, ok := store.Get(stale.ID); ok {
		t.Error("stale local task survived resync")
	}
	if got, ok := store.Get("r9"); !ok || got.Title != "authoritative" {
		t.Fatalf("remote task missing after resync: %+v", got)
	}
}

// TestResyncFailurePropagates verifies the one user-facing sync error path.
func TestResyncFailurePropagates(t *testing.T) {
	remote := newFakeRemote()
	_, e := startEngine(t, remote)

	remote.mu.Lock()
	remote.failSelect = true
	remote.mu.Unlock()

	if err := e.Resync(context.Background()); err == nil {
		t.Fatal("resync should surface the fetch error")
	}
}

// TestStopUnsubscribesFeed verifies teardown releases the realtime feed and
// ignores late events.
func TestStopUnsubscribesFeed(t *testing.T) {
	remote := newFakeRemote()
	store := task.NewStore()
	e := New(store, remote)
	e.Start(context.Background())
	e.Stop()

	remote.mu.Lock()
	n := remote.unsubscribe
	remote.mu.Unlock()
	if n != 1 {
		t.Fatalf("unsubscribe called %d times, want 1", n)
	}

	remote.emit(Event{Type: EventInsert, Row: remoteRow("late", "late event")})
	if store.Len() != 0 {
		t.Fatal("event applied after Stop")
	}
}

// TestCachePersistsChanges verifies the cache slot is rewritten after
// collection changes.
func TestCachePersistsChanges(t *testing.T) {
	remote := newFakeRemote()
	cache := &fakeCache{}
	store, _ := startEngine(t, remote, WithCache(cache))

	created := store.Add(task.Task{Title: "persist me"})
	waitFor(t, func() bool {
		saved, _ := cache.Load()
		return len(saved) == 1 && saved[0].ID == created.ID
	})
}
