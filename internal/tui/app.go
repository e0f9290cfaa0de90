package tui

import (
	"fmt"
	"slices"
	"strings"

	"treegrid-cli/internal/layout"
	"treegrid-cli/internal/model"

	"github.com/charmbracelet/lipgloss"
)

const (
	fallbackWidth  = 80
	fallbackHeight = 24
)

func (m appModel) screenSize() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = fallbackWidth
	}
	if h <= 0 {
		h = fallbackHeight
	}
	return w, h
}

// bodyHeight leaves room for the header and footer lines.
func (m appModel) bodyHeight() int {
	_, h := m.screenSize()
	return max(h-2, 3)
}

func (m appModel) paneWidths() (grid, side int) {
	w, _ := m.screenSize()
	if w < sidePaneMinWidth {
		return w, 0
	}
	side = w / 3
	return w - side - 1, side
}

// gridRows is the number of grid rows on screen, below the level header.
func (m appModel) gridRows() int { return max(m.bodyHeight()-1, 1) }

func (m appModel) gridColumns() int {
	gw, _ := m.paneWidths()
	return max(gw/(m.cellWidth+1), 1)
}

func (m appModel) View() string {
	w, _ := m.screenSize()
	bodyH := m.bodyHeight()

	var body string
	if m.modal != modalNone {
		body = lipgloss.Place(w, bodyH, lipgloss.Center, lipgloss.Center, m.viewModal())
	} else {
		gw, sw := m.paneWidths()
		grid := normalizePane(m.renderGrid(), gw, bodyH)
		if sw == 0 {
			body = grid
		} else {
			sep := styleMuted().Render(strings.TrimRight(strings.Repeat(glyphSpan()+"\n", bodyH), "\n"))
			side := normalizePane(m.renderDetail(sw-2), sw-1, bodyH)
			body = lipgloss.JoinHorizontal(lipgloss.Top, grid, sep, lipgloss.NewStyle().PaddingLeft(1).Render(side))
		}
	}
	body = normalizePane(body, w, bodyH)

	return strings.Join([]string{m.renderHeader(w), body, m.renderFooter(w)}, "\n")
}

func (m appModel) renderHeader(w int) string {
	where := m.doc.Path
	if where == "" {
		where = "not saved"
	}
	parts := []string{
		lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render(m.doc.Label()),
		styleMuted().Render(where),
		fmt.Sprintf("%d nodes", m.doc.Tree.Len()),
		fmt.Sprintf("%d levels", m.plan.Columns),
	}
	if m.problems > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorWarnFg).Render(fmt.Sprintf("%d problems", m.problems)))
	}
	return fitWidth("treegrid  "+strings.Join(parts, "  "), w)
}

func (m appModel) renderFooter(w int) string {
	if m.minibufferText != "" {
		return fitWidth(m.minibufferText, w)
	}
	help := "a add  e edit  d delete  m mark  +/- link  s save  o open  n new  y copy  r reload  q quit"
	return styleMuted().Render(fitWidth(help, w))
}

func (m appModel) renderGrid() string {
	if len(m.plan.Cells) == 0 {
		return styleMuted().Render("Empty tree. Press a to add the root.")
	}
	end := min(m.left+m.gridColumns(), m.plan.Columns)
	counts := m.doc.Tree.LevelCounts()
	spans := spanOwners(m.plan)

	var b strings.Builder
	for c := m.left; c < end; c++ {
		label := fmt.Sprintf("Level %d (%d)", c, counts[c])
		b.WriteString(styleMuted().Bold(true).Render(fitWidth(label, m.cellWidth)))
		b.WriteString(" ")
	}
	last := min(m.top+m.gridRows(), m.plan.Rows)
	for r := m.top; r < last; r++ {
		b.WriteString("\n")
		for c := m.left; c < end; c++ {
			b.WriteString(m.renderCell(r, c, spans))
			b.WriteString(m.renderGutter(r, c))
		}
	}
	return b.String()
}

// spanOwners maps the cells below each multi-row node to that node.
func spanOwners(p layout.Plan) map[layout.Cell]model.Coordinate {
	out := map[layout.Cell]model.Coordinate{}
	for c, cell := range p.Cells {
		for r := cell.Row + 1; r < cell.Row+p.Weights[c]; r++ {
			out[layout.Cell{Row: r, Column: cell.Column}] = c
		}
	}
	return out
}

func (m appModel) renderCell(row, column int, spans map[layout.Cell]model.Coordinate) string {
	c, ok := m.plan.At(row, column)
	if !ok {
		if _, spanned := spans[layout.Cell{Row: row, Column: column}]; spanned {
			return styleMuted().Render(fitWidth(" "+glyphSpan(), m.cellWidth))
		}
		return strings.Repeat(" ", m.cellWidth)
	}

	prefix := ""
	st := lipgloss.NewStyle()
	_, hasParent := m.plan.Parent(c)
	switch {
	case c.IsRoot():
		st = st.Bold(true)
	case !hasParent:
		prefix = glyphOrphan() + " "
		st = st.Foreground(colorWarnFg)
	}
	if m.mark != nil && *m.mark == c {
		prefix = glyphMark() + " "
		st = st.Foreground(colorAccent)
	}
	if m.sel != nil && *m.sel == c {
		st = st.Bold(true).Foreground(colorSelectedFg).Background(colorSelectedBg)
	}
	text := fitWidth(prefix+c.String()+" "+m.plan.Title(c), m.cellWidth)
	return st.Render(text)
}

// renderGutter draws the connector between column and column+1 on row.
func (m appModel) renderGutter(row, column int) string {
	child, ok := m.plan.At(row, column+1)
	if !ok {
		return " "
	}
	par, ok := m.plan.Parent(child)
	if !ok || m.plan.Cells[par].Column != column {
		return " "
	}
	return styleMuted().Render(glyphJoin())
}

func (m appModel) renderDetail(w int) string {
	if m.sel == nil {
		return styleMuted().Render("No selection.\n\nArrows or hjkl select a node.")
	}
	n, err := m.doc.Tree.GetNode(*m.sel)
	if err != nil {
		return styleMuted().Render(err.Error())
	}

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(n.Title))
	where := n.Coord.String()
	switch {
	case n.Coord.IsRoot():
		where += "  root"
	case n.Parent == nil:
		where += "  orphan"
	default:
		where += "  parent " + n.Parent.String()
	}
	lines = append(lines, styleMuted().Render(where))
	if kids := m.plan.Groups[n.Coord]; len(kids) > 0 {
		lines = append(lines, styleMuted().Render(fmt.Sprintf("%d children", len(kids))))
	}

	var links []string
	for _, l := range n.Links {
		if n.Parent != nil && l == *n.Parent {
			continue
		}
		if slices.Contains(m.plan.Groups[n.Coord], l) {
			continue
		}
		links = append(links, fmt.Sprintf("%s %s %s", glyphArrow(), l, m.plan.Title(l)))
	}
	if len(links) > 0 {
		lines = append(lines, "", styleMuted().Render("Links"))
		lines = append(lines, links...)
	}

	lines = append(lines, styleMuted().Render(strings.Repeat(glyphHRule(), max(w, 1))))
	if strings.TrimSpace(n.Description) == "" {
		lines = append(lines, styleMuted().Render("(no description)"))
	} else {
		lines = append(lines, renderMarkdown(n.Description, w))
	}
	return strings.Join(lines, "\n")
}

func (m appModel) viewModal() string {
	w, _ := m.screenSize()
	bodyW := modalBodyWidth(w)
	switch m.modal {
	case modalNodeForm:
		title := "Add root"
		switch {
		case m.form.editing != nil:
			title = "Edit " + m.form.editing.String()
		case m.form.parent != nil:
			title = "Add child of " + m.form.parent.String()
		}
		content := strings.Join([]string{
			"Title",
			renderInputLine(bodyW, m.titleInput.View()),
			"",
			"Description",
			renderInputLine(bodyW, m.descInput.View()),
			"",
			styleMuted().Render("tab: next field   enter: next/save   ctrl+s: save   esc/ctrl+g: cancel"),
		}, "\n")
		return renderModalBox(w, title, content)

	case modalConfirmDelete:
		body := "Delete " + m.describeSelection() + "?"
		if m.sel != nil {
			if kids := m.plan.Groups[*m.sel]; len(kids) > 0 {
				body += fmt.Sprintf(" Its %d child(ren) become orphans.", len(kids))
			}
		}
		return renderConfirmModal(w, "Delete node", body, "Delete", "Cancel", m.confirmFocus)

	case modalConfirmDiscard:
		body := fmt.Sprintf("%q has unsaved changes. Discard them and %s?", m.doc.Name, m.pending.verb())
		return renderConfirmModal(w, "Unsaved changes", body, "Discard", "Cancel", m.confirmFocus)

	case modalPickFile:
		return m.renderFilePickerModal(w, bodyW)

	case modalOpenPath, modalSavePath:
		title := "Save as"
		if m.modal == modalOpenPath {
			title = "Open file"
		}
		lines := []string{renderInputLine(bodyW, m.pathInput.View())}
		if m.modal == modalOpenPath && len(m.cfg.Recent) > 0 {
			lines = append(lines, "", styleMuted().Render("Recent"))
			for i, p := range m.cfg.Recent {
				if i == 5 {
					break
				}
				lines = append(lines, styleMuted().Render(fitWidth("  "+p, bodyW)))
			}
		}
		lines = append(lines, "", styleMuted().Render("enter: ok   esc/ctrl+g: cancel"))
		return renderModalBox(w, title, strings.Join(lines, "\n"))
	}
	return ""
}

func (m appModel) describeSelection() string {
	if m.sel == nil {
		return "nothing"
	}
	return fmt.Sprintf("%s %q", *m.sel, m.plan.Title(*m.sel))
}
