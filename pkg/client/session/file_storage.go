package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

// DefaultPollInterval is how often a watched FileStorage checks its file.
const DefaultPollInterval = time.Second

const (
	lockRetry    = 10 * time.Millisecond
	lockTimeout  = 2 * time.Second
	staleLockAge = 10 * time.Second
)

// ErrLocked is returned when another writer holds the session file lock for
// longer than the wait budget.
var ErrLocked = errors.New("session file is locked by another writer")

// FileStorage keeps the map in a YAML file. Writes by other processes are
// picked up by polling the file's modification time.
type FileStorage struct {
	path     string
	interval time.Duration

	mu      sync.Mutex
	values  map[string]string
	modTime time.Time
	watch   watchers
	stop    chan struct{}
	polling bool
	logg    *logger.Logger
}

type FileOption func(*FileStorage)

// WithFileLogger traces background poll failures at debug level.
func WithFileLogger(logg *logger.Logger) FileOption {
	return func(f *FileStorage) { f.logg = logg }
}

func NewFileStorage(path string, interval time.Duration, opts ...FileOption) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	fsStore := &FileStorage{path: path, interval: interval, values: map[string]string{}, logg: logger.Nop()}
	for _, opt := range opts {
		opt(fsStore)
	}
	if fsStore.logg == nil {
		fsStore.logg = logger.Nop()
	}
	if err := fsStore.reload(); err != nil {
		return nil, err
	}
	return fsStore, nil
}

func (f *FileStorage) Path() string {
	return f.path
}

// reload reads the file into memory. Callers hold f.mu or own f exclusively.
func (f *FileStorage) reload() error {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.values = map[string]string{}
		f.modTime = time.Time{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat session file: %w", err)
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}
	values := map[string]string{}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &values); err != nil {
			return fmt.Errorf("decode session file: %w", err)
		}
	}
	f.values = values
	f.modTime = info.ModTime()
	return nil
}

func (f *FileStorage) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// Update re-reads the file under an advisory lock before applying the
// batch, so keys written by another process survive this write.
func (f *FileStorage) Update(set map[string]string, remove []string) error {
	f.mu.Lock()
	unlock, err := f.lockFile()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	before := f.values
	if err := f.reload(); err != nil {
		unlock()
		f.mu.Unlock()
		return err
	}
	external := diffKeys(before, f.values)
	next := maps.Clone(f.values)
	changed := applyBatch(next, set, remove)
	if len(changed) > 0 {
		if err := f.write(next); err != nil {
			unlock()
			f.mu.Unlock()
			return err
		}
		f.values = next
	}
	unlock()
	f.mu.Unlock()
	f.watch.notify(mergeKeys(external, changed))
	return nil
}

// lockFile takes the sibling ".lock" file with O_EXCL. A lock older than
// staleLockAge is left over from a crashed writer and is broken.
func (f *FileStorage) lockFile() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	lockPath := f.path + ".lock"
	deadline := time.Now().Add(lockTimeout)
	for {
		lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			lock.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("lock session file: %w", err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return nil, ErrLocked
		}
		time.Sleep(lockRetry)
	}
}

func mergeKeys(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, k := range append(append([]string{}, a...), b...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// write replaces the file through a rename so readers never see half a map.
func (f *FileStorage) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("stat session file: %w", err)
	}
	f.modTime = info.ModTime()
	return nil
}

// Watch starts the poll loop on the first watcher and stops it when the
// last one cancels.
func (f *FileStorage) Watch(fn func(changed []string)) func() {
	cancel := f.watch.add(fn)
	f.mu.Lock()
	if !f.polling {
		f.polling = true
		f.stop = make(chan struct{})
		go f.poll(f.stop)
	}
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.polling && f.watch.len() == 0 {
				close(f.stop)
				f.polling = false
			}
		})
	}
}

// Polling reports whether the background poll loop is running.
func (f *FileStorage) Polling() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polling
}

// Poll checks the file once and notifies watchers of keys another writer
// changed.
func (f *FileStorage) Poll() error {
	f.mu.Lock()
	info, err := os.Stat(f.path)
	var modTime time.Time
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		f.mu.Unlock()
		return fmt.Errorf("stat session file: %w", err)
	default:
		modTime = info.ModTime()
	}
	if modTime.Equal(f.modTime) {
		f.mu.Unlock()
		return nil
	}
	before := f.values
	if err := f.reload(); err != nil {
		f.mu.Unlock()
		return err
	}
	changed := diffKeys(before, f.values)
	f.mu.Unlock()
	f.watch.notify(changed)
	return nil
}

func (f *FileStorage) poll(stop <-chan struct{}) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := f.Poll(); err != nil {
				ctx := f.logg.WithFields(context.Background(), map[string]any{
					"path":  f.path,
					"error": err.Error(),
				})
				f.logg.Debug(ctx, "session.file.poll_failed")
			}
		}
	}
}

// Close stops polling.
func (f *FileStorage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.polling {
		close(f.stop)
		f.polling = false
	}
	return nil
}
