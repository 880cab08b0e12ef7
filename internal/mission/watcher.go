package mission

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the burst of events an editor produces on save
const DefaultDebounce = 300 * time.Millisecond

// Reloader is anything that can re-read the catalog
type Reloader interface {
	Reload() error
}

// Watcher reloads a disk catalog when its YAML files change
type Watcher struct {
	root     string
	target   Reloader
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	reloads int
	onLoad  func(error)
}

// NewWatcher creates a watcher for the catalog rooted at dir
func NewWatcher(dir string, target Reloader, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:     dir,
		target:   target,
		logger:   logger.With("component", "mission_watcher"),
		debounce: DefaultDebounce,
	}
}

// SetDebounce changes the quiet period before a reload
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// OnReload registers a callback invoked after each reload attempt
func (w *Watcher) OnReload(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onLoad = fn
}

// Reloads returns how many reloads have run
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Start watches the root directory and every pack directory below it.
// It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	w.watcher = fw
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.run(ctx, fw, w.stopCh, w.doneCh)

	w.logger.Info("watching mission catalog", "path", w.root)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fw := w.stopCh, w.doneCh, w.watcher
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := fw.Close(); err != nil {
		w.logger.Error("close watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.relevant(fw, event) {
				continue
			}
			w.mu.Lock()
			d := w.debounce
			w.mu.Unlock()
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				timer.Reset(d)
			}
			timerCh = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)

		case <-timerCh:
			timerCh = nil
			w.reload()
		}
	}
}

// relevant filters to YAML changes. New pack directories are added to
// the watch list as they appear.
func (w *Watcher) relevant(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.Add(event.Name); err != nil {
				w.logger.Warn("watch new directory", "path", event.Name, "error", err)
			}
			return false
		}
	}
	if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *Watcher) reload() {
	err := w.target.Reload()
	if err != nil {
		w.logger.Warn("mission catalog reload failed, keeping previous catalog", "error", err)
	} else {
		w.logger.Info("mission catalog reloaded")
	}

	w.mu.Lock()
	w.reloads++
	fn := w.onLoad
	w.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}
