package tui

import (
	"context"

	"treegrid-cli/internal/watch"

	tea "github.com/charmbracelet/bubbletea"
)

// watchSession follows one save file for the lifetime of the open document.
type watchSession struct {
	w      *watch.Watcher
	ctx    context.Context
	cancel context.CancelFunc
}

func startWatch(path string) (*watchSession, error) {
	w, err := watch.New(path, watch.DefaultDebounce)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	return &watchSession{w: w, ctx: ctx, cancel: cancel}, nil
}

func (s *watchSession) stop() {
	if s != nil {
		s.cancel()
	}
}

// next waits for the next change or error. A stopped session yields nil, which
// Bubble Tea ignores.
func (s *watchSession) next() tea.Cmd {
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-s.ctx.Done():
			return nil
		case <-s.w.Changed():
			return fileChangedMsg{path: s.w.Path()}
		case err := <-s.w.Errors():
			return watchErrMsg{path: s.w.Path(), err: err}
		}
	}
}
