package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"treegrid-cli/internal/document"
	"treegrid-cli/internal/model"
	"treegrid-cli/internal/mutate"
	"treegrid-cli/internal/savefile"
	"treegrid-cli/internal/watch"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureVisible()
		return m, nil

	case minibufferTickMsg:
		if m.minibufferText != "" && time.Since(m.minibufferSetAt) > minibufferAutoClearAfter {
			m.minibufferText = ""
		}
		return m, tickMinibuffer()

	case fileChangedMsg:
		return m.handleFileChanged(msg)

	case watchErrMsg:
		if m.watch == nil || msg.path != m.watch.w.Path() {
			return m, nil
		}
		if errors.Is(msg.err, watch.ErrFileRemoved) {
			m.showMinibuffer("File removed on disk; s saves it again")
		} else {
			m.showError("Watch", msg.err)
		}
		return m, m.watch.next()

	case tea.KeyMsg:
		if m.modal != modalNone {
			return m.updateModal(msg)
		}
		return m.updateGrid(msg)
	}
	if m.modal == modalPickFile {
		// Directory listings arrive as plain messages.
		return m.updateFilePicker(msg)
	}
	return m, nil
}

func (m appModel) handleFileChanged(msg fileChangedMsg) (tea.Model, tea.Cmd) {
	if m.watch == nil || msg.path != m.watch.w.Path() {
		return m, nil
	}
	next := m.watch.next()
	onDisk, err := savefile.ReadFile(m.doc.Path)
	if err != nil {
		// Usually a half-written file; the next event will retry.
		m.log.Debug("reload skipped", zap.String("path", m.doc.Path), zap.Error(err))
		return m, next
	}
	if savefile.Same(onDisk, m.doc.Tree) {
		return m, next
	}
	if m.doc.Edited {
		m.showMinibuffer("File changed on disk; r reloads and drops your edits")
		return m, next
	}
	m.doc.Tree = onDisk
	m.refresh()
	m.showMinibuffer("Reloaded: " + m.doc.Name + " changed on disk")
	m.log.Info("reloaded after external change", zap.String("path", m.doc.Path))
	return m, next
}

func (m appModel) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m.guard(actionQuit)
	case "esc":
		m.sel = nil
		return m, nil
	case "left", "h":
		m.moveLeft()
	case "right", "l":
		m.moveRight()
	case "up", "k":
		m.moveVertical(-1)
	case "down", "j":
		m.moveVertical(1)
	case "a":
		m.openAddForm()
	case "e":
		m.openEditForm()
	case "d":
		if m.sel == nil {
			m.showMinibuffer("Select a node to delete")
			return m, nil
		}
		m.modal = modalConfirmDelete
		m.confirmFocus = confirmFocusCancel
	case "m":
		m.toggleMark()
	case "+":
		m.applyLink(true)
	case "-":
		m.applyLink(false)
	case "n":
		return m.guard(actionNew)
	case "o":
		return m.guard(actionOpen)
	case "r":
		if m.doc.Path == "" {
			m.showMinibuffer("Nothing to reload: the tree was never saved")
			return m, nil
		}
		return m.guard(actionReload)
	case "s":
		m.openPathPrompt(modalSavePath, m.doc.Path)
	case "ctrl+s":
		if m.doc.Path == "" {
			m.openPathPrompt(modalSavePath, "")
			return m, nil
		}
		cmd := m.save(m.doc.Path)
		return m, cmd
	case "y":
		if m.sel == nil {
			m.showMinibuffer("Nothing selected")
			return m, nil
		}
		if err := copyToClipboard(m.sel.String()); err != nil {
			m.showError("Copy failed", err)
			return m, nil
		}
		m.showMinibuffer("Copied " + m.sel.String())
	}
	m.ensureVisible()
	return m, nil
}

// guard runs action now, or asks first when it would drop unsaved edits.
func (m appModel) guard(action pendingAction) (tea.Model, tea.Cmd) {
	if m.doc.Edited {
		m.pending = action
		m.modal = modalConfirmDiscard
		m.confirmFocus = confirmFocusCancel
		return m, nil
	}
	return m.run(action)
}

func (m appModel) run(action pendingAction) (tea.Model, tea.Cmd) {
	m.pending = actionNone
	switch action {
	case actionQuit:
		m.stopWatch()
		return m, tea.Quit
	case actionNew:
		cmd := m.replaceDocument(document.New())
		m.showMinibuffer("New tree")
		return m, cmd
	case actionOpen:
		cmd := m.openFilePicker()
		return m, cmd
	case actionReload:
		if err := m.doc.Reload(); err != nil {
			m.showError("Reload failed", err)
			return m, nil
		}
		m.refresh()
		m.showMinibuffer("Reloaded " + m.doc.Path)
	}
	return m, nil
}

func (m *appModel) moveLeft() {
	if m.sel == nil {
		m.selectDefault()
		return
	}
	if par, ok := m.plan.Parent(*m.sel); ok {
		m.sel = &par
	}
}

func (m *appModel) moveRight() {
	if m.sel == nil {
		m.selectDefault()
		return
	}
	if kids := m.plan.Groups[*m.sel]; len(kids) > 0 {
		c := kids[0]
		m.sel = &c
	}
}

// moveVertical steps to the previous or next placed cell in the selection's column.
func (m *appModel) moveVertical(delta int) {
	if m.sel == nil {
		m.selectDefault()
		return
	}
	cell, ok := m.plan.Cells[*m.sel]
	if !ok {
		return
	}
	var column []model.Coordinate
	for _, p := range m.plan.Placements() {
		if p.Column == cell.Column {
			column = append(column, p.Coord)
		}
	}
	for i, c := range column {
		if c != *m.sel {
			continue
		}
		j := i + delta
		if j >= 0 && j < len(column) {
			next := column[j]
			m.sel = &next
		}
		return
	}
}

func (m *appModel) selectDefault() {
	if root, ok := m.doc.Tree.Root(); ok {
		c := root.Coord
		m.sel = &c
		return
	}
	if ps := m.plan.Placements(); len(ps) > 0 {
		c := ps[0].Coord
		m.sel = &c
	}
}

func (m *appModel) toggleMark() {
	switch {
	case m.sel == nil:
		m.showMinibuffer("Select a node to mark")
	case m.mark != nil && *m.mark == *m.sel:
		m.mark = nil
		m.showMinibuffer("Mark cleared")
	default:
		c := *m.sel
		m.mark = &c
		m.showMinibuffer("Marked " + c.String() + "; select another node, then + links or - unlinks")
	}
}

func (m *appModel) applyLink(add bool) {
	if m.mark == nil || m.sel == nil {
		m.showMinibuffer("Mark one node with m and select another first")
		return
	}
	var op mutate.Op = mutate.DeleteLink{A: *m.mark, B: *m.sel}
	if add {
		op = mutate.AddLink{A: *m.mark, B: *m.sel}
	}
	res, ok := m.apply(op)
	if !ok {
		return
	}
	switch {
	case !res.Changed:
		m.showMinibuffer("Already linked")
	case add:
		m.showMinibuffer(fmt.Sprintf("Linked %s and %s", *m.mark, *m.sel))
	default:
		m.showMinibuffer(fmt.Sprintf("Unlinked %s and %s", *m.mark, *m.sel))
	}
}

func (m *appModel) openAddForm() {
	if m.sel == nil {
		if _, ok := m.doc.Tree.Root(); ok {
			m.showMinibuffer("The tree already has a root; select a parent first")
			return
		}
	}
	m.form = nodeForm{}
	if m.sel != nil {
		c := *m.sel
		m.form.parent = &c
	}
	m.titleInput.SetValue("")
	m.descInput.SetValue("")
	m.openForm()
}

func (m *appModel) openEditForm() {
	if m.sel == nil {
		m.showMinibuffer("Select a node to edit")
		return
	}
	n, err := m.doc.Tree.GetNode(*m.sel)
	if err != nil {
		m.showError("Edit", err)
		return
	}
	c := n.Coord
	m.form = nodeForm{editing: &c}
	m.titleInput.SetValue(n.Title)
	m.descInput.SetValue(n.Description)
	m.openForm()
}

func (m *appModel) openForm() {
	m.modal = modalNodeForm
	m.form.focus = formFocusTitle
	m.titleInput.CursorEnd()
	m.descInput.CursorEnd()
	m.titleInput.Focus()
	m.descInput.Blur()
}

func (m *appModel) openPathPrompt(kind modalKind, prefill string) {
	m.modal = kind
	m.pathInput.SetValue(prefill)
	m.pathInput.CursorEnd()
	m.pathInput.Focus()
}

func (m *appModel) closeModal() {
	m.modal = modalNone
	m.pending = actionNone
	m.titleInput.Blur()
	m.descInput.Blur()
	m.pathInput.Blur()
}

func (m appModel) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalNodeForm:
		return m.updateNodeForm(msg)
	case modalConfirmDelete, modalConfirmDiscard:
		return m.updateConfirm(msg)
	case modalPickFile:
		return m.updateFilePicker(msg)
	case modalOpenPath, modalSavePath:
		return m.updatePathPrompt(msg)
	}
	return m, nil
}

func (m appModel) updateNodeForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.closeModal()
		return m, nil
	case "tab", "shift+tab":
		m.switchFormFocus()
		return m, nil
	case "enter":
		if m.form.focus == formFocusTitle {
			m.switchFormFocus()
			return m, nil
		}
		m.submitForm()
		return m, nil
	case "ctrl+s":
		m.submitForm()
		return m, nil
	}
	var cmd tea.Cmd
	if m.form.focus == formFocusTitle {
		m.titleInput, cmd = m.titleInput.Update(msg)
	} else {
		m.descInput, cmd = m.descInput.Update(msg)
	}
	return m, cmd
}

func (m *appModel) switchFormFocus() {
	if m.form.focus == formFocusTitle {
		m.form.focus = formFocusDescription
		m.titleInput.Blur()
		m.descInput.Focus()
		return
	}
	m.form.focus = formFocusTitle
	m.descInput.Blur()
	m.titleInput.Focus()
}

func (m *appModel) submitForm() {
	title := strings.TrimSpace(m.titleInput.Value())
	desc := strings.TrimSpace(m.descInput.Value())
	if title == "" {
		m.showMinibuffer("Title is required")
		return
	}

	var op mutate.Op
	if m.form.editing != nil {
		op = mutate.EditNode{Coord: *m.form.editing, Title: title, Description: desc}
	} else {
		op = mutate.AddNode{Parent: m.form.parent, Title: title, Description: desc}
	}
	res, ok := m.apply(op)
	if !ok {
		return
	}
	m.closeModal()

	c := res.Coord
	m.sel = &c
	m.ensureVisible()
	switch {
	case strings.Contains(title+desc, ","):
		m.showMinibuffer("Commas can't be stored in a .sav file; the saved file will not load")
	case m.form.editing != nil && !res.Changed:
		m.showMinibuffer("No changes")
	case m.form.editing != nil:
		m.showMinibuffer("Updated " + c.String())
	default:
		m.showMinibuffer("Added " + c.String())
	}
}

func (m appModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g", "n", "ctrl+c":
		m.closeModal()
		return m, nil
	case "tab", "shift+tab", "left", "right", "h", "l":
		if m.confirmFocus == confirmFocusConfirm {
			m.confirmFocus = confirmFocusCancel
		} else {
			m.confirmFocus = confirmFocusConfirm
		}
		return m, nil
	case "y":
		return m.confirm()
	case "enter":
		if m.confirmFocus == confirmFocusConfirm {
			return m.confirm()
		}
		m.closeModal()
		return m, nil
	}
	return m, nil
}

func (m appModel) confirm() (tea.Model, tea.Cmd) {
	kind, action := m.modal, m.pending
	m.closeModal()
	if kind == modalConfirmDiscard {
		return m.run(action)
	}
	if m.sel == nil {
		return m, nil
	}
	target := *m.sel
	parent, hasParent := m.plan.Parent(target)
	res, ok := m.apply(mutate.DeleteNode{Coord: target})
	if !ok {
		return m, nil
	}
	m.sel = nil
	if hasParent && m.doc.Tree.Has(parent) {
		m.sel = &parent
	}
	orphaned, _ := res.EventPayload["orphaned"].(int)
	if orphaned > 0 {
		m.showMinibuffer(fmt.Sprintf("Deleted %s; %d child(ren) orphaned", target, orphaned))
	} else {
		m.showMinibuffer("Deleted " + target.String())
	}
	m.ensureVisible()
	return m, nil
}

func (m appModel) updatePathPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.closeModal()
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.pathInput.Value())
		kind := m.modal
		if path == "" {
			m.showMinibuffer("Enter a file path")
			return m, nil
		}
		path = m.cfg.ResolveSavePath(path)
		m.closeModal()
		if kind == modalSavePath {
			cmd := m.save(path)
			return m, cmd
		}
		cmd := m.open(path)
		return m, cmd
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m *appModel) save(path string) tea.Cmd {
	if err := m.doc.Save(path); err != nil {
		m.showError("Save failed", err)
		return nil
	}
	m.recordRecent(m.doc.Path)
	m.log.Info("saved", zap.String("path", m.doc.Path), zap.Int("nodes", m.doc.Tree.Len()))
	m.showMinibuffer("Saved " + m.doc.Path)
	return m.restartWatch()
}

func (m *appModel) open(path string) tea.Cmd {
	doc, err := document.Open(savefile.WithExt(path))
	if err != nil {
		m.showError("Open failed", err)
		return nil
	}
	m.recordRecent(doc.Path)
	m.log.Info("opened", zap.String("path", doc.Path), zap.Int("nodes", doc.Tree.Len()))
	cmd := m.replaceDocument(doc)
	if m.problems > 0 {
		m.showMinibuffer(fmt.Sprintf("Opened %s with %d problem(s); run treegrid check", doc.Path, m.problems))
	} else {
		m.showMinibuffer("Opened " + doc.Path)
	}
	return cmd
}

// apply runs op against the document and reports errors in the minibuffer.
func (m *appModel) apply(op mutate.Op) (mutate.Result, bool) {
	res, err := m.doc.Apply(op)
	if err != nil {
		m.showError(string(op.Kind()), err)
		return res, false
	}
	m.log.Info("op applied",
		zap.String("kind", string(res.Kind)),
		zap.Stringer("coord", res.Coord),
		zap.Bool("changed", res.Changed),
		zap.Any("payload", res.EventPayload),
	)
	m.refresh()
	return res, true
}

// ensureVisible scrolls the grid so the selection is on screen.
func (m *appModel) ensureVisible() {
	if m.sel == nil {
		return
	}
	cell, ok := m.plan.Cells[*m.sel]
	if !ok {
		return
	}
	rows, cols := m.gridRows(), m.gridColumns()
	if cell.Row < m.top {
		m.top = cell.Row
	} else if cell.Row >= m.top+rows {
		m.top = cell.Row - rows + 1
	}
	if cell.Column < m.left {
		m.left = cell.Column
	} else if cell.Column >= m.left+cols {
		m.left = cell.Column - cols + 1
	}
	m.top = max(m.top, 0)
	m.left = max(m.left, 0)
}
