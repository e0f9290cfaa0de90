// Package export draws a layout plan as a static SVG or PNG picture.
package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"treegrid-cli/internal/layout"
	"treegrid-cli/internal/model"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

const (
	cellW   = 180
	cellH   = 44
	gapX    = 48
	gapY    = 14
	margin  = 24
	header  = 40
	maxText = 22
)

var (
	colorBackdrop = color.RGBA{0xf8, 0xf9, 0xfb, 0xff}
	colorNode     = color.RGBA{0xe3, 0xec, 0xfa, 0xff}
	colorRoot     = color.RGBA{0xc9, 0xdc, 0xf7, 0xff}
	colorOrphan   = color.RGBA{0xfb, 0xe3, 0xe3, 0xff}
	colorStroke   = color.RGBA{0x55, 0x65, 0x80, 0xff}
	colorEdge     = color.RGBA{0x8a, 0x99, 0xb0, 0xff}
	colorLink     = color.RGBA{0xd0, 0x7b, 0x2c, 0xff}
	colorText     = color.RGBA{0x1d, 0x24, 0x33, 0xff}
	colorSubtle   = color.RGBA{0x6b, 0x75, 0x86, 0xff}
)

type Options struct {
	// Path is the output file; the format comes from its extension unless Format is set.
	Path   string
	Format string
	Title  string
}

// Scene is what gets drawn: the plan plus the cross links between placed nodes
// that are not parent edges.
type Scene struct {
	Plan  layout.Plan
	Title string
	Links [][2]model.Coordinate
}

// NewScene collects the non-parent links of nodes, each pair once.
func NewScene(plan layout.Plan, nodes []model.Node, title string) Scene {
	s := Scene{Plan: plan, Title: title}
	for _, n := range nodes {
		for _, l := range n.Links {
			if !n.Coord.Less(l) {
				continue
			}
			if isParentEdge(plan, n.Coord, l) {
				continue
			}
			s.Links = append(s.Links, [2]model.Coordinate{n.Coord, l})
		}
	}
	return s
}

func isParentEdge(p layout.Plan, a, b model.Coordinate) bool {
	if par, ok := p.Parent(b); ok && par == a {
		return true
	}
	par, ok := p.Parent(a)
	return ok && par == b
}

// Save renders scene to opts.Path as svg or png.
func Save(scene Scene, opts Options) error {
	format, path, err := resolveFormat(opts)
	if err != nil {
		return err
	}
	if opts.Title != "" {
		scene.Title = opts.Title
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if format == "png" {
		err = RenderPNG(f, scene)
	} else {
		err = RenderSVG(f, scene)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

// OutputPath is the file Save writes for opts: a path without extension gets .svg.
func OutputPath(opts Options) (string, error) {
	_, path, err := resolveFormat(opts)
	return path, err
}

func resolveFormat(opts Options) (format, path string, err error) {
	path = opts.Path
	if path == "" {
		return "", "", fmt.Errorf("output path is required")
	}
	format = strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png":
			format = "png"
		case ".svg":
			format = "svg"
		case "":
			format = "svg"
			path += ".svg"
		default:
			return "", "", fmt.Errorf("cannot infer image format from %q (want .svg or .png)", path)
		}
	}
	if format != "svg" && format != "png" {
		return "", "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return format, path, nil
}

type box struct {
	x, y, w, h int
}

func (b box) midLeft() (int, int)  { return b.x, b.y + b.h/2 }
func (b box) midRight() (int, int) { return b.x + b.w, b.y + b.h/2 }

// Size returns the canvas dimensions for a plan.
func Size(p layout.Plan) (int, int) {
	cols, rows := max(p.Columns, 1), max(p.Rows, 1)
	w := 2*margin + cols*cellW + (cols-1)*gapX
	h := header + 2*margin + rows*cellH + (rows-1)*gapY
	return w, h
}

func boxFor(cell layout.Cell) box {
	return box{
		x: margin + cell.Column*(cellW+gapX),
		y: header + margin + cell.Row*(cellH+gapY),
		w: cellW,
		h: cellH,
	}
}

func fillFor(p layout.Plan, c model.Coordinate) color.RGBA {
	switch {
	case c.IsRoot():
		return colorRoot
	case c.Level > 0:
		if _, ok := p.Parent(c); !ok {
			return colorOrphan
		}
	}
	return colorNode
}

func RenderSVG(w io.Writer, scene Scene) error {
	p := scene.Plan
	width, height := Size(p)
	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+css(colorBackdrop))
	canvas.Text(margin, margin+8, scene.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))

	for _, pl := range p.Placements() {
		par, ok := p.Parent(pl.Coord)
		if !ok {
			continue
		}
		x1, y1 := boxFor(p.Cells[par]).midRight()
		x2, y2 := boxFor(p.Cells[pl.Coord]).midLeft()
		canvas.Line(x1, y1, x2, y2, fmt.Sprintf("stroke:%s;stroke-width:2", css(colorEdge)))
	}
	for _, l := range scene.Links {
		a, okA := p.Cells[l[0]]
		b, okB := p.Cells[l[1]]
		if !okA || !okB {
			continue
		}
		x1, y1 := boxFor(a).midRight()
		x2, y2 := boxFor(b).midLeft()
		canvas.Line(x1, y1, x2, y2, fmt.Sprintf("stroke:%s;stroke-width:1.5;stroke-dasharray:6,4", css(colorLink)))
	}

	for _, pl := range p.Placements() {
		b := boxFor(layout.Cell{Row: pl.Row, Column: pl.Column})
		canvas.Roundrect(b.x, b.y, b.w, b.h, 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(fillFor(p, pl.Coord)), css(colorStroke)))
		canvas.Text(b.x+10, b.y+18, truncate(pl.Title, maxText), fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
		canvas.Text(b.x+10, b.y+35, pl.Coord.String(), fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
	}
	canvas.End()
	return nil
}

func RenderPNG(w io.Writer, scene Scene) error {
	p := scene.Plan
	width, height := Size(p)
	dc := gg.NewContext(width, height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorText)
	dc.DrawStringAnchored(scene.Title, margin, margin+4, 0, 0.5)

	dc.SetColor(colorEdge)
	dc.SetLineWidth(2)
	for _, pl := range p.Placements() {
		par, ok := p.Parent(pl.Coord)
		if !ok {
			continue
		}
		x1, y1 := boxFor(p.Cells[par]).midRight()
		x2, y2 := boxFor(p.Cells[pl.Coord]).midLeft()
		dc.DrawLine(float64(x1), float64(y1), float64(x2), float64(y2))
		dc.Stroke()
	}
	dc.SetColor(colorLink)
	dc.SetLineWidth(1.5)
	dc.SetDash(6, 4)
	for _, l := range scene.Links {
		a, okA := p.Cells[l[0]]
		b, okB := p.Cells[l[1]]
		if !okA || !okB {
			continue
		}
		x1, y1 := boxFor(a).midRight()
		x2, y2 := boxFor(b).midLeft()
		dc.DrawLine(float64(x1), float64(y1), float64(x2), float64(y2))
		dc.Stroke()
	}
	dc.SetDash()

	for _, pl := range p.Placements() {
		drawNode(dc, p, pl)
	}
	return dc.EncodePNG(w)
}

func drawNode(dc *gg.Context, p layout.Plan, pl layout.Placement) {
	b := boxFor(layout.Cell{Row: pl.Row, Column: pl.Column})
	x, y, w, h := float64(b.x), float64(b.y), float64(b.w), float64(b.h)
	dc.SetColor(fillFor(p, pl.Coord))
	dc.DrawRoundedRectangle(x, y, w, h, 8)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1.2)
	dc.DrawRoundedRectangle(x, y, w, h, 8)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(truncate(pl.Title, maxText), x+10, y+15, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(pl.Coord.String(), x+10, y+32, 0, 0.5)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
