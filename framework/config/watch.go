package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle before
// reloading.
const DefaultDebounce = 200 * time.Millisecond

// pathSource is a Reloader backed by a file.
type pathSource interface {
	Reloader
	Path() string
}

type watcher struct {
	fs     *fsnotify.Watcher
	files  map[string]bool
	cancel context.CancelFunc
	done   chan struct{}

	timerMu sync.Mutex
	timer   *time.Timer
}

// Watch reloads the repository whenever a file-backed source changes on
// disk. The directories holding the files are watched so editors that
// replace files atomically are picked up. Calling Watch twice is a no-op.
func (r *Repository) Watch(debounce time.Duration) error {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.watch != nil {
		return nil
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &watcher{fs: fs, files: make(map[string]bool), done: make(chan struct{})}
	dirs := make(map[string]bool)
	for _, s := range r.Sources() {
		ps, ok := s.(pathSource)
		if !ok {
			continue
		}
		abs, err := filepath.Abs(ps.Path())
		if err != nil {
			fs.Close()
			return err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	r.watch = w
	go r.watchLoop(ctx, w, debounce)

	r.log.Debugf("watching %d config file(s)", len(w.files))
	return nil
}

func (r *Repository) watchLoop(ctx context.Context, w *watcher, debounce time.Duration) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			abs, _ := filepath.Abs(ev.Name)
			if !w.files[abs] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.timerMu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(debounce, func() {
				if err := r.Reload(); err != nil {
					r.log.Warnf("config reload failed: %v", err)
					return
				}
				r.log.Infof("config reloaded after change to %s", ev.Name)
			})
			w.timerMu.Unlock()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			r.log.Warnf("config watcher: %v", err)
		}
	}
}

// Close stops watching. It is safe to call when Watch was never called.
func (r *Repository) Close() error {
	r.watchMu.Lock()
	w := r.watch
	r.watch = nil
	r.watchMu.Unlock()
	if w == nil {
		return nil
	}

	w.cancel()
	err := w.fs.Close()
	<-w.done
	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()
	return err
}
