package tui

import (
	"strings"
	"testing"

	"treegrid-cli/internal/document"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
)

func useASCII(t *testing.T) {
	t.Helper()
	prev := glyphs()
	setGlyphs(glyphSetASCII)
	t.Cleanup(func() { setGlyphs(prev) })
}

func TestView_GridAndSidePane(t *testing.T) {
	useASCII(t)
	m := newAppModel(sampleDoc(t), Options{})
	mm, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	m = mm.(appModel)

	out := xansi.Strip(m.View())
	for _, want := range []string{"Untitled Tree", "4 nodes", "Level 1 (2)", "(0,0) Start", "(1,1) Right", "(2,0) Deeper", "root"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for i, ln := range lines {
		if w := xansi.StringWidth(ln); w > 120 {
			t.Fatalf("line %d is %d columns wide", i, w)
		}
	}
}

func TestView_EmptyTreeAndOrphans(t *testing.T) {
	useASCII(t)
	m := newAppModel(document.New(), Options{})
	if out := xansi.Strip(m.View()); !strings.Contains(out, "Press a to add the root") {
		t.Fatalf("expected empty-tree hint:\n%s", out)
	}

	d := sampleDoc(t)
	if err := d.Tree.DeleteNode(at(1, 0), true); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	m = newAppModel(d, Options{})
	out := xansi.Strip(m.View())
	if !strings.Contains(out, "o (2,0) Deeper") {
		t.Fatalf("expected orphan marker:\n%s", out)
	}
}

func TestView_Modals(t *testing.T) {
	m := newAppModel(sampleDoc(t), Options{})
	m, _ = press(t, m, runes("d"))
	if out := xansi.Strip(m.View()); !strings.Contains(out, "Delete node") || !strings.Contains(out, `"Start"`) {
		t.Fatalf("expected delete modal:\n%s", out)
	}
	m, _ = press(t, m, runes("n"), runes("a"))
	if out := xansi.Strip(m.View()); !strings.Contains(out, "Add child of (0,0)") {
		t.Fatalf("expected add modal:\n%s", out)
	}

	p := newAppModel(sampleDoc(t), Options{})
	p.pickerDir = t.TempDir()
	p, _ = press(t, p, runes("o"))
	if out := xansi.Strip(p.View()); !strings.Contains(out, "Open file") || !strings.Contains(out, "/: type a path") {
		t.Fatalf("expected file picker modal:\n%s", out)
	}
}

func TestFitWidthAndNormalizePane(t *testing.T) {
	useASCII(t)
	if got := fitWidth("abcdef", 4); got != "abc~" {
		t.Fatalf("fitWidth truncate = %q", got)
	}
	if got := fitWidth("ab", 4); got != "ab  " {
		t.Fatalf("fitWidth pad = %q", got)
	}
	got := normalizePane("one\ntwo\nthree", 3, 2)
	if got != "one\ntwo" {
		t.Fatalf("normalizePane = %q", got)
	}
	if got := normalizePane("x", 2, 3); got != "x \n  \n  " {
		t.Fatalf("normalizePane pad = %q", got)
	}
}

func TestGlyphPreference(t *testing.T) {
	prev := glyphs()
	t.Cleanup(func() { setGlyphs(prev) })

	t.Setenv(envGlyphs, "")
	applyGlyphPreference(true)
	if glyphJoin() != "-" || glyphSpan() != "|" {
		t.Fatalf("expected ASCII glyphs")
	}
	t.Setenv(envGlyphs, "unicode")
	applyGlyphPreference(true)
	if glyphJoin() != "─" {
		t.Fatalf("expected env to force Unicode glyphs")
	}
}

func TestRenderMarkdown(t *testing.T) {
	setMarkdownStyle("notty")
	t.Cleanup(func() { setMarkdownStyle("") })
	out := renderMarkdown("some **bold** text", 40)
	if !strings.Contains(out, "bold") {
		t.Fatalf("unexpected markdown output %q", out)
	}
	if renderMarkdown("   ", 40) != "" {
		t.Fatalf("expected empty output for blank input")
	}
}
