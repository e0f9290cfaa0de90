package tui

import (
	"path/filepath"
	"time"

	"treegrid-cli/internal/document"
	"treegrid-cli/internal/layout"
	"treegrid-cli/internal/model"
	"treegrid-cli/internal/store"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

const (
	defaultCellWidth = 22
	minCellWidth     = 8
	sidePaneMinWidth = 90
)

type appModel struct {
	doc  *document.Document
	plan layout.Plan
	cfg  *store.Config
	log  *zap.Logger

	width  int
	height int

	cellWidth int
	// problems is the invariant violation count from the last refresh.
	problems int

	sel  *model.Coordinate
	mark *model.Coordinate
	// Scroll offsets in grid rows and columns.
	top  int
	left int

	modal        modalKind
	form         nodeForm
	titleInput   textinput.Model
	descInput    textinput.Model
	pathInput    textinput.Model
	confirmFocus confirmModalFocus
	pending      pendingAction

	picker filepicker.Model
	// pickerDir is where the last picked file lived.
	pickerDir string

	minibufferText  string
	minibufferSetAt time.Time

	watch *watchSession
}

func newAppModel(doc *document.Document, opts Options) appModel {
	if doc == nil {
		doc = document.New()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &store.Config{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := appModel{
		doc:       doc,
		cfg:       cfg,
		log:       log,
		cellWidth: max(cfg.CellWidth(defaultCellWidth), minCellWidth),
	}

	m.titleInput = textinput.New()
	m.titleInput.Placeholder = "Title"
	m.titleInput.CharLimit = 200
	m.titleInput.Width = 40

	m.descInput = textinput.New()
	m.descInput.Placeholder = "Description (markdown)"
	m.descInput.CharLimit = 2000
	m.descInput.Width = 40

	m.pathInput = textinput.New()
	m.pathInput.Placeholder = "tree.sav"
	m.pathInput.CharLimit = 1024
	m.pathInput.Width = 40

	m.refresh()
	if root, ok := doc.Tree.Root(); ok {
		c := root.Coord
		m.sel = &c
	}
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(tickMinibuffer(), m.watch.next())
}

func tickMinibuffer() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return minibufferTickMsg{} })
}

// refresh recomputes the plan and drops a selection or mark whose node is gone.
func (m *appModel) refresh() {
	m.plan = m.doc.Plan()
	m.problems = len(m.doc.Tree.Check())
	if m.sel != nil && !m.doc.Tree.Has(*m.sel) {
		m.sel = nil
	}
	if m.mark != nil && !m.doc.Tree.Has(*m.mark) {
		m.mark = nil
	}
	m.ensureVisible()
}

func (m *appModel) showMinibuffer(s string) {
	m.minibufferText = s
	m.minibufferSetAt = time.Now()
}

func (m *appModel) showError(prefix string, err error) {
	m.showMinibuffer(prefix + ": " + err.Error())
	m.log.Warn(prefix, zap.Error(err))
}

// replaceDocument swaps in doc and follows its file.
func (m *appModel) replaceDocument(doc *document.Document) tea.Cmd {
	m.rememberView()
	m.doc = doc
	m.sel, m.mark = nil, nil
	m.top, m.left = 0, 0
	m.refresh()
	if root, ok := doc.Tree.Root(); ok {
		c := root.Coord
		m.sel = &c
	}
	m.restoreView()
	return m.restartWatch()
}

// restartWatch follows the document's current path, if any.
func (m *appModel) restartWatch() tea.Cmd {
	if m.watch != nil && m.doc.Path != "" {
		if abs, err := filepath.Abs(m.doc.Path); err == nil && abs == m.watch.w.Path() {
			return nil
		}
	}
	m.stopWatch()
	if m.doc.Path == "" {
		return nil
	}
	ws, err := startWatch(m.doc.Path)
	if err != nil {
		m.log.Warn("watch failed", zap.String("path", m.doc.Path), zap.Error(err))
		return nil
	}
	m.watch = ws
	return ws.next()
}

func (m *appModel) stopWatch() {
	m.watch.stop()
	m.watch = nil
}

func (m *appModel) recordRecent(path string) {
	m.cfg.TouchRecent(path)
	if err := store.RecordRecent(path); err != nil {
		m.log.Debug("record recent failed", zap.String("path", path), zap.Error(err))
	}
}
