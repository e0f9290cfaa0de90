package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	modalMinWidth = 36
	modalMaxWidth = 72
)

// modalBodyWidth is the usable text width inside a modal for a screen width.
func modalBodyWidth(screenWidth int) int {
	w := screenWidth - 8
	if w > modalMaxWidth {
		w = modalMaxWidth
	}
	if w < modalMinWidth {
		w = modalMinWidth
	}
	return w - 4
}

// renderModalBox draws a titled, bordered box sized for screenWidth.
func renderModalBox(screenWidth int, title, content string) string {
	bodyW := modalBodyWidth(screenWidth)

	header := lipgloss.NewStyle().
		Width(bodyW).
		Padding(0, 1).
		Bold(true).
		Foreground(colorModalHeaderFg).
		Background(colorModalHeaderBg).
		Render(title)

	body := lipgloss.NewStyle().
		Width(bodyW).
		Padding(0, 1).
		Foreground(colorModalSurfaceFg).
		Background(colorModalSurfaceBg).
		Render(content)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Background(colorModalSurfaceBg).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body))
}

func renderConfirmModal(width int, title string, body string, confirmLabel string, cancelLabel string, focus confirmModalFocus) string {
	// No borders on the buttons: nested borders inside a colored modal leave artifacts
	// on some terminals.
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)

	confirm := btnBase.Render(confirmLabel)
	cancel := btnBase.Render(cancelLabel)
	if focus == confirmFocusConfirm {
		confirm = btnActive.Render(confirmLabel)
	}
	if focus == confirmFocusCancel {
		cancel = btnActive.Render(cancelLabel)
	}

	sep := lipgloss.NewStyle().Background(colorControlBg).Render(" ")
	controls := lipgloss.JoinHorizontal(lipgloss.Top, confirm, sep, cancel)

	bodyW := modalBodyWidth(width)
	help := styleMuted().Width(bodyW).Render("tab: focus   enter: select   y/n   esc/ctrl+g: cancel")

	content := strings.Join([]string{
		lipgloss.NewStyle().Width(bodyW).Render(body),
		"",
		controls,
		"",
		help,
	}, "\n")
	return renderModalBox(width, title, content)
}
