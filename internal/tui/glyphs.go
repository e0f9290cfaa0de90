package tui

import (
	"os"
	"strings"
	"sync"
)

// Terminals can't change the user's font, so the grid chrome picks between Unicode and
// ASCII glyphs. The tui.ascii config key and TREEGRID_TUI_GLYPHS select the set.

const envGlyphs = "TREEGRID_TUI_GLYPHS"

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

// applyGlyphPreference sets the glyph set from config; the environment wins when set.
func applyGlyphPreference(ascii bool) {
	gs := glyphSetUnicode
	if ascii {
		gs = glyphSetASCII
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envGlyphs))) {
	case "unicode", "utf8":
		gs = glyphSetUnicode
	case "ascii":
		gs = glyphSetASCII
	}
	setGlyphs(gs)
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

func pick(unicode, ascii string) string {
	if glyphs() == glyphSetASCII {
		return ascii
	}
	return unicode
}

// glyphJoin connects a parent cell to a child on the same row.
func glyphJoin() string { return pick("─", "-") }

// glyphSpan marks rows a node spans below its own cell.
func glyphSpan() string { return pick("│", "|") }

func glyphMark() string { return pick("◆", "*") }

func glyphOrphan() string { return pick("○", "o") }

func glyphArrow() string { return pick("→", "->") }

func glyphHRule() string { return pick("─", "-") }

func glyphEllipsis() string { return pick("…", "~") }
