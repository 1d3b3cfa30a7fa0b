// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 500 * time.Millisecond

// FileMonitor watches the source tables and reports when one of them has
// been rewritten. Parent directories are watched so editors that replace
// the file on save are still seen.
type FileMonitor struct {
	watcher *fsnotify.Watcher
	targets map[string]struct{}
	settle  time.Duration

	mu      sync.Mutex
	lastMod map[string]time.Time
	pending *time.Timer
}

func NewFileMonitor(paths ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &FileMonitor{
		watcher: watcher,
		targets: make(map[string]struct{}),
		settle:  defaultSettle,
		lastMod: make(map[string]time.Time),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		m.targets[abs] = struct{}{}
		if info, err := os.Stat(abs); err == nil {
			m.lastMod[abs] = info.ModTime()
		}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return m, nil
}

// SetSettle sets how long the monitor waits for writes to stop before it
// calls the handler.
func (m *FileMonitor) SetSettle(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle = d
}

// Watch blocks until ctx is done or the watcher fails. A burst of changes
// results in one handler call with the last changed path.
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	defer m.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			m.stopPending()
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := m.targets[name]; !ok {
				continue
			}
			if m.changed(name) {
				m.schedule(name, handler)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) changed(name string) bool {
	info, err := os.Stat(name)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !info.ModTime().After(m.lastMod[name]) && m.pending == nil {
		return false
	}
	m.lastMod[name] = info.ModTime()
	return true
}

func (m *FileMonitor) schedule(name string, handler func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Stop()
	}
	m.pending = time.AfterFunc(m.settle, func() {
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		handler(name)
	})
}

func (m *FileMonitor) stopPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}
