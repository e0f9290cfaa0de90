package tui

import (
	"treegrid-cli/internal/store"

	"go.uber.org/zap"
)

// restoreView puts the selection and scroll back where they were when this file was
// last closed.
func (m *appModel) restoreView() {
	if m.doc.Path == "" {
		return
	}
	st, err := store.LoadTUIState()
	if err != nil {
		m.log.Debug("load tui state", zap.Error(err))
		return
	}
	v, ok := st.View(m.doc.Path)
	if !ok {
		return
	}
	if v.Selected != nil && m.doc.Tree.Has(*v.Selected) {
		c := *v.Selected
		m.sel = &c
	}
	m.top = min(max(v.Top, 0), max(m.plan.Rows-1, 0))
	m.left = min(max(v.Left, 0), max(m.plan.Columns-1, 0))
	m.ensureVisible()
}

func (m *appModel) rememberView() {
	if m.doc.Path == "" {
		return
	}
	st, err := store.LoadTUIState()
	if err != nil {
		m.log.Debug("load tui state", zap.Error(err))
		return
	}
	st.Remember(m.doc.Path, store.FileView{Selected: m.sel, Top: m.top, Left: m.left})
	if err := store.SaveTUIState(st); err != nil {
		m.log.Debug("save tui state", zap.Error(err))
	}
}
