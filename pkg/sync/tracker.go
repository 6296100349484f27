package sync

import (
	stdsync "sync"

	"brainboard/pkg/task"
)

// Tracker remembers, per task id, the fingerprint last confirmed persisted
// remotely, plus the set of deletions not yet confirmed remote. It is the
// engine's answer to two questions: which tasks genuinely changed since the
// last successful push, and is an inbound event an echo of our own write.
type Tracker struct {
	mu            stdsync.Mutex
	synced        map[string]string
	pendingDelete map[string]struct{}
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		synced:        make(map[string]string),
		pendingDelete: make(map[string]struct{}),
	}
}

// Changed returns the subset of tasks whose current fingerprint differs from
// (or is absent in) the last-synced map.
func (tr *Tracker) Changed(tasks []task.Task) []task.Task {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	var out []task.Task
	for _, t := range tasks {
		if tr.synced[t.ID] != task.Fingerprint(t) {
			out = append(out, t)
		}
	}
	return out
}

// Synced reports whether the given task content matches its last-synced
// fingerprint.
func (tr *Tracker) Synced(t task.Task) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.synced[t.ID] == task.Fingerprint(t)
}

// MarkSynced records a fingerprint as confirmed persisted.
func (tr *Tracker) MarkSynced(id, fingerprint string) {
	tr.mu.Lock()
	tr.synced[id] = fingerprint
	tr.mu.Unlock()
}

// Forget drops a task's last-synced fingerprint.
func (tr *Tracker) Forget(id string) {
	tr.mu.Lock()
	delete(tr.synced, id)
	tr.mu.Unlock()
}

// MarkDeleted queues an id for remote deletion.
func (tr *Tracker) MarkDeleted(id string) {
	tr.mu.Lock()
	tr.pendingDelete[id] = struct{}{}
	tr.mu.Unlock()
}

// ClearDeleted removes an id from the pending-deletion set, after the remote
// delete is confirmed (or the remote deleted it first).
func (tr *Tracker) ClearDeleted(id string) {
	tr.mu.Lock()
	delete(tr.pendingDelete, id)
	tr.mu.Unlock()
}

// PendingDeletes returns the ids queued for remote deletion.
func (tr *Tracker) PendingDeletes() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, 0, len(tr.pendingDelete))
	for id := range tr.pendingDelete {
		out = append(out, id)
	}
	return out
}

// Reset clears all fingerprints and pending deletions (manual resync).
func (tr *Tracker) Reset() {
	tr.mu.Lock()
	tr.synced = make(map[string]string)
	tr.pendingDelete = make(map[string]struct{})
	tr.mu.Unlock()
}
