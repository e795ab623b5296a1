// Package watch provides a debounced recursive directory watcher.
//
// Bursts of filesystem events (an editor save touches a file several
// times, a formatter rewrites a tree) coalesce into a single
// notification after a quiet window. Hidden files and editor temp
// files are ignored, and directories created under a watched root are
// picked up automatically.
package watch

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

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
)

// DefaultQuietWindow is how long the watcher waits after the last
// filesystem event before it notifies.
const DefaultQuietWindow = 300 * time.Millisecond

// Watcher coalesces filesystem events under one or more roots into
// change notifications on Changes.
type Watcher struct {
	fsw    *fsnotify.Watcher
	quiet  time.Duration
	notify chan struct{}

	readyOnce sync.Once
	ready     chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a watcher with the given quiet window. Zero or negative
// means DefaultQuietWindow.
func New(quiet time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, binderrors.InternalError("create file watcher", err)
	}
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	return &Watcher{
		fsw:    fsw,
		quiet:  quiet,
		notify: make(chan struct{}, 1),
		ready:  make(chan struct{}),
	}, nil
}

// Add watches root and every directory below it.
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return binderrors.InternalError("resolve watch root", err)
	}
	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		return binderrors.ConfigInvalid("watch", fmt.Sprintf("not a directory: %s", abs))
	}
	return w.addTree(abs)
}

// addTree registers root and its subdirectories, skipping hidden ones.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// Changes returns the notification channel. Each receive may stand for
// many filesystem events.
func (w *Watcher) Changes() <-chan struct{} { return w.notify }

// Ready is closed once Run is consuming events. Intended for tests and
// deterministic startup sequencing.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run processes filesystem events until ctx is done or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.readyOnce.Do(func() { close(w.ready) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ignored(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				slog.Warn("watch new directory failed", logfields.Path(ev.Name), logfields.Error(err))
			}
		}
	}
	slog.Debug("file change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.trigger()
}

// trigger restarts the quiet-window timer; the notification fires once
// events stop arriving for a full window.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.quiet, func() {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	})
}

// Close stops the underlying watcher; Run returns after Close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

// ignored reports whether a path should never trigger a rebuild:
// hidden files, editor temp and swap files, OS cruft.
func ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") {
		return true
	}
	if strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
