package tui

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

const envMarkdownStyle = "TREEGRID_TUI_MD_STYLE"

var (
	mdRendererMu sync.Mutex
	// Renderers are cached by style and wrap width. WithAutoStyle can block on terminal
	// queries, so styles are always chosen up front.
	mdRenderers = map[string]*glamour.TermRenderer{}
	// mdStyleOverride comes from the tui.markdownStyle config key.
	mdStyleOverride string
)

func setMarkdownStyle(name string) {
	mdRendererMu.Lock()
	mdStyleOverride = strings.ToLower(strings.TrimSpace(name))
	mdRendererMu.Unlock()
}

// renderMarkdown renders a node description for the side pane without a document margin.
// On renderer failure the raw text is returned.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	mdRendererMu.Lock()
	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)
	r := mdRenderers[key]
	mdRendererMu.Unlock()

	if r == nil {
		var opt glamour.TermRendererOption
		if style == "notty" {
			opt = glamour.WithStandardStyle(style)
		} else {
			cfg := markdownStyleConfig(style)
			zero := uint(0)
			cfg.Document.Margin = &zero
			opt = glamour.WithStyles(cfg)
		}
		rr, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(width))
		if err != nil {
			return md
		}
		mdRendererMu.Lock()
		if existing := mdRenderers[key]; existing != nil {
			r = existing
		} else {
			mdRenderers[key] = rr
			r = rr
		}
		mdRendererMu.Unlock()
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func markdownStyleConfig(styleName string) ansi.StyleConfig {
	switch styleName {
	case "light":
		cfg := styles.LightStyleConfig
		applyMarkdownPalette(&cfg, "light")
		return cfg
	default:
		cfg := styles.DarkStyleConfig
		applyMarkdownPalette(&cfg, "dark")
		return cfg
	}
}

// markdownStyle picks "dark", "light" or "notty". Callers hold mdRendererMu.
func markdownStyle() string {
	switch mdStyleOverride {
	case "light", "dark", "notty":
		return mdStyleOverride
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envMarkdownStyle))) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	case "notty":
		return "notty"
	}
	// Follow the TUI theme so descriptions stay readable when the theme is forced.
	if dark, ok := themeDarkPreference(); ok {
		if dark {
			return "dark"
		}
		return "light"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func applyMarkdownPalette(cfg *ansi.StyleConfig, styleName string) {
	if cfg == nil {
		return
	}

	headingColor := mdColor(colorSurfaceFg, styleName)
	cfg.Heading.Color = headingColor
	cfg.H1.Color = headingColor
	cfg.H2.Color = headingColor
	cfg.H3.Color = headingColor
	cfg.H4.Color = headingColor
	cfg.H5.Color = headingColor
	cfg.H6.Color = headingColor

	linkColor := mdColor(colorAccent, styleName)
	cfg.Link.Color = linkColor
	cfg.Link.Underline = mdBoolPtr(true)
	cfg.LinkText.Color = linkColor
	cfg.LinkText.Underline = mdBoolPtr(true)

	cfg.Code.Color = mdColor(colorSurfaceFg, styleName)
	cfg.CodeBlock.Color = mdColor(colorSurfaceFg, styleName)
	if cfg.CodeBlock.BackgroundColor == nil {
		cfg.CodeBlock.BackgroundColor = mdColor(colorControlBg, styleName)
	}

	cfg.Text.Color = mdColor(colorSurfaceFg, styleName)
	cfg.Strong.Color = nil
	cfg.Emph.Color = nil
	cfg.BlockQuote.Faint = mdBoolPtr(false)
}

func mdColor(c lipgloss.AdaptiveColor, styleName string) *string {
	if styleName == "light" {
		return mdStrPtr(c.Light)
	}
	return mdStrPtr(c.Dark)
}

func mdStrPtr(s string) *string { return &s }
func mdBoolPtr(b bool) *bool    { return &b }
