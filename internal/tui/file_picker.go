package tui

import (
	"path/filepath"
	"strings"

	"treegrid-cli/internal/savefile"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func filePickerHeight(screenH int) int {
	// Leave room for the modal title, borders, directory line and help line.
	h := screenH - 14
	if h < 6 {
		h = 6
	}
	if h > 18 {
		h = 18
	}
	return h
}

// openFilePicker lists .sav files, starting next to the open document.
func (m *appModel) openFilePicker() tea.Cmd {
	fp := filepicker.New()
	fp.AllowedTypes = []string{savefile.Ext}
	fp.FileAllowed = true
	fp.DirAllowed = false
	fp.ShowHidden = false
	fp.ShowPermissions = false
	fp.ShowSize = true
	fp.AutoHeight = false
	fp.Height = filePickerHeight(m.height)
	fp.Cursor = "›"
	fp.KeyMap.Back = key.NewBinding(
		key.WithKeys("h", "backspace", "left"),
		key.WithHelp("h", "up"),
	)

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.DisabledFile = styleMuted()
	fp.Styles.DisabledSelected = styleMuted()
	fp.Styles.Permission = styleMuted()
	fp.Styles.FileSize = styleMuted().Width(fp.Styles.FileSize.GetWidth()).Align(lipgloss.Right)

	fp.CurrentDirectory = m.pickerStartDir()

	m.picker = fp
	m.modal = modalPickFile
	return fp.Init()
}

func (m appModel) pickerStartDir() string {
	if m.doc.Path != "" {
		return filepath.Dir(m.doc.Path)
	}
	if d := strings.TrimSpace(m.pickerDir); d != "" {
		return d
	}
	if len(m.cfg.Recent) > 0 {
		return filepath.Dir(m.cfg.Recent[0])
	}
	return "."
}

// recentPrefill is the most recent file other than the open one.
func (m appModel) recentPrefill() string {
	for _, p := range m.cfg.Recent {
		if p != m.doc.Path {
			return p
		}
	}
	return ""
}

func (m appModel) updateFilePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc", "ctrl+g":
			m.closeModal()
			return m, nil
		case "/":
			m.openPathPrompt(modalOpenPath, m.recentPrefill())
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.pickerDir = filepath.Dir(path)
		m.closeModal()
		openCmd := m.open(path)
		return m, tea.Batch(cmd, openCmd)
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.showMinibuffer(filepath.Base(path) + " is not a " + savefile.Ext + " file")
	}
	return m, cmd
}

func (m appModel) renderFilePickerModal(screenW, bodyW int) string {
	dir := styleMuted().Render(fitWidth(m.picker.CurrentDirectory, bodyW))
	help := styleMuted().Render("enter: open   h/backspace: up   l/right: into dir   /: type a path   esc: cancel")
	return renderModalBox(screenW, "Open file", dir+"\n\n"+m.picker.View()+"\n"+help)
}
