// Package cache persists the task collection to a single JSON file. The file
// is read once at startup and rewritten after every collection change. Watch
// notices writes made by another process and hands the reloaded collection to
// the caller, the way a browser tab reacts to another tab's storage write.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"brainboard/pkg/task"
)

// File is a string-keyed cache slot backed by one JSON file.
type File struct {
	path string
}

// NewFile creates a cache slot at the given path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the cached collection. A missing file is an empty slot, not an
// error.
func (f *File) Load() ([]task.Task, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	var tasks []task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("unmarshal cache: %w", err)
	}
	return tasks, nil
}

// Save writes the collection, creating the parent directory if needed.
func (f *File) Save(tasks []task.Task) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Clear removes the slot.
func (f *File) Clear() error {
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Watch polls the file's modification time and calls onChange with the
// reloaded collection whenever another process rewrites it. Writes made
// through Save between polls are indistinguishable from external ones, so
// callers should apply the result the same way they apply an initial load.
func (f *File) Watch(ctx context.Context, interval time.Duration, onChange func([]task.Task)) {
	var last time.Time
	if info, err := os.Stat(f.path); err == nil {
		last = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(f.path)
			if err != nil {
				continue
			}
			if info.ModTime().Equal(last) {
				continue
			}
			last = info.ModTime()
			tasks, err := f.Load()
			if err != nil {
				continue
			}
			onChange(tasks)
		}
	}
}
