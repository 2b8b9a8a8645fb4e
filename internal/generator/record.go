package generator

import (
	"io/fs"
	"slices"
	"sync"
)

// Record tracks every mutation a transaction made.
type Record struct {
	mu       sync.Mutex
	created  []string
	replaced []snapshot
	merged   []string
	dirs     []string
}

// snapshot is a file's content before the run overwrote it.
type snapshot struct {
	path    string
	content []byte
	mode    fs.FileMode
}

// Created returns files that did not exist before the run.
func (r *Record) Created() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.created)
}

// Replaced returns pre-existing files the run overwrote.
func (r *Record) Replaced() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, len(r.replaced))
	for i, s := range r.replaced {
		paths[i] = s.path
	}
	return paths
}

// Merged returns pre-existing files the run appended to.
func (r *Record) Merged() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.merged)
}

// Dirs returns directories the run created, parents first.
func (r *Record) Dirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.dirs)
}

// Empty reports whether nothing is tracked.
func (r *Record) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)+len(r.replaced)+len(r.merged)+len(r.dirs) == 0
}

func (r *Record) trackCreated(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.created, path) {
		r.created = append(r.created, path)
	}
}

// trackReplaced keeps the first snapshot of a path. A file the run created
// itself is never snapshotted; rollback deletes it.
func (r *Record) trackReplaced(path string, content []byte, mode fs.FileMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.created, path) {
		return
	}
	for _, s := range r.replaced {
		if s.path == path {
			return
		}
	}
	r.replaced = append(r.replaced, snapshot{path: path, content: content, mode: mode})
}

func (r *Record) trackMerged(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.merged, path) {
		r.merged = append(r.merged, path)
	}
}

func (r *Record) trackDir(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.dirs, path) {
		r.dirs = append(r.dirs, path)
	}
}

// take hands the tracked state to the caller and resets the record, so each
// mutation is undone at most once.
func (r *Record) take() (created []string, replaced []snapshot, merged, dirs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created, replaced, merged, dirs = r.created, r.replaced, r.merged, r.dirs
	r.created, r.replaced, r.merged, r.dirs = nil, nil, nil, nil
	return created, replaced, merged, dirs
}
