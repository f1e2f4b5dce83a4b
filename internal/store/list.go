// Package store persists the operator-managed lists (watched channels,
// comment words) as JSON arrays that are rewritten in full on every change.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// List is an ordered, duplicate-free list of T backed by a JSON file.
// Readers get copies, so a snapshot never changes under an in-flight event.
type List[T comparable] struct {
	path string

	mu    sync.RWMutex
	items []T
}

// Load reads path. A missing file yields an empty list; the file is created on first write.
func Load[T comparable](path string) (*List[T], error) {
	l := &List[T]{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return l, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, item := range items {
		if !slices.Contains(l.items, item) {
			l.items = append(l.items, item)
		}
	}
	return l, nil
}

// Path is the backing file.
func (l *List[T]) Path() string { return l.path }

// Add appends v unless present. added is false for duplicates.
// On a write failure the in-memory list is left unchanged.
func (l *List[T]) Add(v T) (added bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if slices.Contains(l.items, v) {
		return false, nil
	}
	next := append(slices.Clone(l.items), v)
	if err := l.save(next); err != nil {
		return false, err
	}
	l.items = next
	return true, nil
}

// Remove deletes v. removed is false when v was not present.
func (l *List[T]) Remove(v T) (removed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := slices.Index(l.items, v)
	if idx < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(l.items), idx, idx+1)
	if err := l.save(next); err != nil {
		return false, err
	}
	l.items = next
	return true, nil
}

// Contains reports whether v is in the list.
func (l *List[T]) Contains(v T) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.items, v)
}

// Snapshot returns a copy of the current items in insertion order.
func (l *List[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// save writes items to a temp file next to path and renames it over path.
func (l *List[T]) save(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.path, err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("replace %s: %w", l.path, err)
	}
	return nil
}
