// Package session persists the signed-in identity for the two session
// domains and decides what a protected area may render.
package session

import (
	"sort"
	"sync"
)

// Storage is a persisted string map shared by every store in a process and,
// for file storage, by every process pointing at the same file.
type Storage interface {
	Get(key string) (string, bool)
	// Update applies set and remove as one batch.
	Update(set map[string]string, remove []string) error
	// Watch calls fn with the keys changed by any writer. The returned func
	// stops delivery.
	Watch(fn func(changed []string)) (cancel func())
}

type watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func([]string)
}

func (w *watchers) add(fn func([]string)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = map[int]func([]string){}
	}
	id := w.next
	w.next++
	w.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.fns)
}

func (w *watchers) notify(changed []string) {
	if len(changed) == 0 {
		return
	}
	w.mu.Lock()
	fns := make([]func([]string), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(changed)
	}
}

// MemoryStorage keeps values in process. Stores sharing one MemoryStorage
// behave like tabs sharing browser storage.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
	watch  watchers
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStorage) Update(set map[string]string, remove []string) error {
	m.mu.Lock()
	changed := applyBatch(m.values, set, remove)
	m.mu.Unlock()
	m.watch.notify(changed)
	return nil
}

func (m *MemoryStorage) Watch(fn func(changed []string)) func() {
	return m.watch.add(fn)
}

// applyBatch mutates values and returns the keys whose value changed.
func applyBatch(values map[string]string, set map[string]string, remove []string) []string {
	var changed []string
	for _, k := range remove {
		if _, ok := values[k]; ok {
			delete(values, k)
			changed = append(changed, k)
		}
	}
	for k, v := range set {
		if old, ok := values[k]; !ok || old != v {
			values[k] = v
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func diffKeys(before, after map[string]string) []string {
	var changed []string
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
