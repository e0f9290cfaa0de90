// Package watch reports changes to a single save file made by other processes.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 150 * time.Millisecond

var ErrFileRemoved = errors.New("watched file was removed")

// Watcher watches the file's directory, since saves replace the file by rename.
type Watcher struct {
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	changeCh chan struct{}
	errCh    chan error

	mu    sync.Mutex
	timer *time.Timer
}

func New(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		fsw:      fsw,
		changeCh: make(chan struct{}, 1),
		errCh:    make(chan error, 1),
	}, nil
}

func (w *Watcher) Path() string { return w.path }

// Changed receives once per burst of writes. Sends never block; a pending
// notification absorbs later ones.
func (w *Watcher) Changed() <-chan struct{} { return w.changeCh }

func (w *Watcher) Errors() <-chan error { return w.errCh }

// Run forwards events until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stop()
	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op&fsnotify.Remove != 0:
				w.sendErr(ErrFileRemoved)
			case ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.trigger()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendErr(err)
		}
	}
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.changeCh <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) sendErr(err error) {
	select {
	case w.errCh <- err:
	default:
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}
