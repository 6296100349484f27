package sync

import (
	"context"
	"log"
	stdsync "sync"
	"sync/atomic"

	"brainboard/pkg/task"
)

// Engine reconciles the local store with a Remote. One engine runs per
// application instance: constructed at startup, stopped at shutdown, feed
// unsubscribed on stop.
//
// Outbound pushes run on a single worker goroutine fed by the store's change
// channel, so overlapping edits to the same task are sent in issue order
// rather than racing. Only local-origin changes are diffed; remote-origin
// merges never trigger a push.
type Engine struct {
	store   *task.Store
	tracker *Tracker
	remote  Remote
	cache   Cache // may be nil
	seed    []task.Task

	changes chan task.Change
	unsub   func()
	done    chan struct{}
	alive   atomic.Bool
	stop    stdsync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache attaches a local persistent cache slot.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithSeed provides tasks to load when both the remote store and the cache
// are empty.
func WithSeed(seed []task.Task) Option {
	return func(e *Engine) { e.seed = seed }
}

// New creates an Engine.
func New(store *task.Store, remote Remote, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		tracker: NewTracker(),
		remote:  remote,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start brings the engine up: local cache (or seed) first, then the remote
// snapshot if reachable, then the realtime feed. Remote failures degrade to
// local-only mode; they are logged, never returned.
func (e *Engine) Start(ctx context.Context) {
	e.alive.Store(true)

	e.loadLocal()

	e.changes = e.store.Subscribe()
	go e.worker(ctx)

	e.initialLoad(ctx)

	unsub, err := e.remote.Subscribe(ctx, e.onEvent)
	if err != nil {
		log.Printf("sync: subscribe feed: %v", err)
		return
	}
	e.unsub = unsub
}

// Stop tears the engine down and ignores any still-inflight fetch results.
func (e *Engine) Stop() {
	e.stop.Do(func() {
		e.alive.Store(false)
		if e.unsub != nil {
			e.unsub()
		}
		if e.changes != nil {
			e.store.Unsubscribe(e.changes)
			<-e.done
		}
	})
}

// loadLocal seeds the store from the cache slot, or from seed data when the
// cache is empty.
func (e *Engine) loadLocal() {
	if e.cache != nil {
		cached, err := e.cache.Load()
		if err != nil {
			log.Printf("sync: load cache: %v", err)
		}
		if len(cached) > 0 {
			e.store.Replace(cached, task.OriginRemote)
			return
		}
	}
	if len(e.seed) > 0 {
		e.store.Replace(e.seed, task.OriginRemote)
	}
}

// initialLoad fetches the remote snapshot once. A non-empty remote is
// authoritative and replaces the local collection wholesale; an unreachable
// or empty remote leaves local state in place.
func (e *Engine) initialLoad(ctx context.Context) {
	rows, err := e.remote.SelectAll(ctx)
	if err != nil {
		log.Printf("sync: initial load: %v", err)
		return
	}
	if len(rows) == 0 || !e.alive.Load() {
		return
	}
	e.applySnapshot(rows)
}

// applySnapshot replaces the collection with remote rows and records their
// fingerprints as synced so the replacement is not pushed back.
func (e *Engine) applySnapshot(rows []Row) {
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		t := r.Task().Normalized()
		e.tracker.MarkSynced(t.ID, task.Fingerprint(t))
		tasks = append(tasks, t)
	}
	e.store.Replace(tasks, task.OriginRemote)
}

// worker is the serialized sync loop: every store change persists the cache,
// and local-origin changes additionally diff and push.
func (e *Engine) worker(ctx context.Context) {
	defer close(e.done)
	for c := range e.changes {
		if c.Op == "delete" && c.Origin == task.OriginLocal {
			e.tracker.MarkDeleted(c.TaskID)
			e.tracker.Forget(c.TaskID)
		}
		e.saveCache()
		if c.Origin == task.OriginLocal {
			e.push(ctx)
		}
	}
}

func (e *Engine) saveCache() {
	if e.cache == nil {
		return
	}
	if err := e.cache.Save(e.store.All()); err != nil {
		log.Printf("sync: save cache: %v", err)
	}
}

// push sends changed rows and pending deletions. Fingerprints advance and
// deletions clear only on confirmed success, so a failed push is retried on
// the next local mutation.
func (e *Engine) push(ctx context.Context) {
	changed := e.tracker.Changed(e.store.All())
	pending := e.tracker.PendingDeletes()

	if len(changed) > 0 {
		rows := make([]Row, 0, len(changed))
		for _, t := range changed {
			rows = append(rows, RowFromTask(t))
		}
		if err := e.remote.Upsert(ctx, rows); err != nil {
			log.Printf("sync: push %d rows: %v", len(rows), err)
		} else {
			for _, t := range changed {
				e.tracker.MarkSynced(t.ID, task.Fingerprint(t))
			}
		}
	}

	if len(pending) > 0 {
		if err := e.remote.Delete(ctx, pending); err != nil {
			log.Printf("sync: delete %d rows: %v", len(pending), err)
		} else {
			for _, id := range pending {
				e.tracker.ClearDeleted(id)
				e.tracker.Forget(id)
			}
		}
	}
}

// onEvent merges one realtime feed event. An insert/update whose content
// fingerprint matches the current local task is an echo of our own write and
// is dropped without touching the store.
func (e *Engine) onEvent(ev Event) {
	if !e.alive.Load() {
		return
	}
	switch ev.Type {
	case EventDelete:
		e.tracker.Forget(ev.Row.ID)
		e.tracker.ClearDeleted(ev.Row.ID)
		e.store.RemoveRemote(ev.Row.ID)
	case EventInsert, EventUpdate:
		// Fingerprint the row as the store will hold it, or a row needing
		// repair would be tracked under a fingerprint no stored task has.
		in := ev.Row.Task().Normalized()
		fp := task.Fingerprint(in)
		if cur, ok := e.store.Get(in.ID); ok && task.Fingerprint(cur) == fp {
			e.tracker.MarkSynced(in.ID, fp)
			return
		}
		e.tracker.MarkSynced(in.ID, fp)
		e.store.ApplyRemote(in)
	}
}

// Resync clears all sync state and the cache, refetches the remote snapshot,
// and replaces the local collection wholesale. Unlike background sync this is
// user-initiated, so the fetch error propagates for display.
func (e *Engine) Resync(ctx context.Context) error {
	e.tracker.Reset()
	if e.cache != nil {
		if err := e.cache.Clear(); err != nil {
			log.Printf("sync: clear cache: %v", err)
		}
	}
	rows, err := e.remote.SelectAll(ctx)
	if err != nil {
		log.Printf("sync: resync: %v", err)
		return err
	}
	if !e.alive.Load() {
		return nil
	}
	e.applySnapshot(rows)
	return nil
}
