package publish

import (
	"bytes"
	"fmt"
	"strings"

	"treegrid-cli/internal/model"
	"treegrid-cli/internal/tree"
)

// NodeFile is the page name of a node, relative to the nodes/ directory.
func NodeFile(c model.Coordinate) string {
	return fmt.Sprintf("%d-%d.md", c.Level, c.Index)
}

func nodeLink(t *tree.Store, c model.Coordinate, prefix string) string {
	title := c.String()
	if n, err := t.GetNode(c); err == nil && strings.TrimSpace(n.Title) != "" {
		title = c.String() + " " + strings.TrimSpace(n.Title)
	}
	return fmt.Sprintf("[%s](%s%s)", title, prefix, NodeFile(c))
}

// RenderNodeMarkdown renders one node page: its place in the tree, its cross links
// and its description.
func RenderNodeMarkdown(t *tree.Store, c model.Coordinate) (string, error) {
	n, err := t.GetNode(c)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + strings.TrimSpace(n.Title))
	writeLn("")
	writeLn("## Meta")
	writeLn("")
	writeLn("- Coordinate: " + c.String())
	switch {
	case c.IsRoot():
		writeLn("- Root")
	case n.Parent == nil:
		writeLn("- Orphan (its parent was deleted)")
	default:
		writeLn("- Parent: " + nodeLink(t, *n.Parent, ""))
	}
	children := t.Children(c)
	if len(children) > 0 {
		links := make([]string, 0, len(children))
		for _, ch := range children {
			links = append(links, nodeLink(t, ch, ""))
		}
		writeLn("- Children: " + strings.Join(links, ", "))
	}

	cross := crossLinks(n, children)
	if len(cross) > 0 {
		writeLn("")
		writeLn("## Links")
		writeLn("")
		for _, l := range cross {
			writeLn("- " + nodeLink(t, l, ""))
		}
	}

	if desc := strings.TrimSpace(n.Description); desc != "" {
		writeLn("")
		writeLn("## Description")
		writeLn("")
		writeLn(desc)
	}
	return buf.String(), nil
}

// RenderIndexMarkdown renders the tree as a nested list: the root's subtree first,
// then each orphan's subtree.
func RenderIndexMarkdown(t *tree.Store, name string) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + strings.TrimSpace(name))
	writeLn("")
	if t.Len() == 0 {
		writeLn("(empty tree)")
		return buf.String()
	}

	writeLn("## Nodes")
	writeLn("")
	for _, top := range blockTops(t) {
		renderIndexLine(&buf, t, top, 0)
	}
	return buf.String()
}

func renderIndexLine(buf *bytes.Buffer, t *tree.Store, c model.Coordinate, depth int) {
	fmt.Fprintf(buf, "%s- %s\n", strings.Repeat("  ", depth), nodeLink(t, c, "nodes/"))
	for _, ch := range t.Children(c) {
		renderIndexLine(buf, t, ch, depth+1)
	}
}

// blockTops lists the nodes with no live parent, root first.
func blockTops(t *tree.Store) []model.Coordinate {
	var tops []model.Coordinate
	for _, n := range t.Nodes() {
		if n.Parent == nil {
			tops = append(tops, n.Coord)
		}
	}
	return tops
}

func crossLinks(n model.Node, children []model.Coordinate) []model.Coordinate {
	out := []model.Coordinate{}
	for _, l := range n.Links {
		if n.Parent != nil && l == *n.Parent {
			continue
		}
		isChild := false
		for _, ch := range children {
			if ch == l {
				isChild = true
				break
			}
		}
		if !isChild {
			out = append(out, l)
		}
	}
	return out
}
