// Package tui is the interactive grid editor.
package tui

import (
	"treegrid-cli/internal/document"
	"treegrid-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type Options struct {
	Config *store.Config
	Logger *zap.Logger
}

// Run edits doc until the user quits. A nil doc starts an untitled tree.
func Run(doc *document.Document, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()
	var ascii bool
	if opts.Config != nil && opts.Config.TUI != nil {
		ascii = opts.Config.TUI.ASCII
		setMarkdownStyle(opts.Config.TUI.MarkdownStyle)
	}
	applyGlyphPreference(ascii)

	m := newAppModel(doc, opts)
	m.restoreView()
	m.restartWatch()
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(appModel); ok {
		fm.stopWatch()
		fm.rememberView()
	}
	return err
}
