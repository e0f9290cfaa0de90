// Package layout turns a tree into a level-ordered grid: one column per level, and for
// every node a block of rows tall enough for its whole subtree.
package layout

import (
	"sort"

	"treegrid-cli/internal/model"
)

type Cell struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

type Placement struct {
	Coord  model.Coordinate `json:"coord"`
	Title  string           `json:"title"`
	Row    int              `json:"row"`
	Column int              `json:"column"`
	// Weight is the number of rows the node's subtree spans (at least 1).
	Weight int `json:"weight"`
}

// Plan is the result of Compute.
type Plan struct {
	Cells   map[model.Coordinate]Cell
	Weights map[model.Coordinate]int
	// Groups lists each parent's children, in index order.
	Groups  map[model.Coordinate][]model.Coordinate
	Rows    int
	Columns int

	titles map[model.Coordinate]string
	parent map[model.Coordinate]model.Coordinate
	byCell map[Cell]model.Coordinate
}

// Compute lays out nodes. levelCounts is the store's per-level count; together with
// the node levels it bounds the deepest level considered.
func Compute(nodes []model.Node, levelCounts map[int]int) Plan {
	p := Plan{
		Cells:   map[model.Coordinate]Cell{},
		Weights: map[model.Coordinate]int{},
		Groups:  map[model.Coordinate][]model.Coordinate{},
		titles:  map[model.Coordinate]string{},
		parent:  map[model.Coordinate]model.Coordinate{},
		byCell:  map[Cell]model.Coordinate{},
	}
	if len(nodes) == 0 {
		return p
	}

	deepest := 0
	for level, n := range levelCounts {
		if n > 0 && level > deepest {
			deepest = level
		}
	}
	present := make(map[model.Coordinate]bool, len(nodes))
	byLevel := map[int][]model.Coordinate{}
	for _, n := range nodes {
		present[n.Coord] = true
		p.titles[n.Coord] = n.Title
		byLevel[n.Coord.Level] = append(byLevel[n.Coord.Level], n.Coord)
		if n.Coord.Level > deepest {
			deepest = n.Coord.Level
		}
	}
	for _, xs := range byLevel {
		model.SortCoordinates(xs)
	}

	// Group children by parent. Only a live parent exactly one level up counts; anything
	// else starts its own block.
	var tops []model.Coordinate
	for _, n := range nodes {
		c := n.Coord
		if n.Parent != nil && present[*n.Parent] && n.Parent.Level == c.Level-1 {
			p.parent[c] = *n.Parent
			continue
		}
		tops = append(tops, c)
	}
	for level := deepest; level >= 1; level-- {
		for _, c := range byLevel[level] {
			if par, ok := p.parent[c]; ok {
				p.Groups[par] = append(p.Groups[par], c)
			}
		}
	}

	// Weights bottom-up: a node spans the rows of its children, and at least one row.
	for level := deepest; level >= 0; level-- {
		for _, c := range byLevel[level] {
			w := 0
			for _, ch := range p.Groups[c] {
				w += max(p.Weights[ch], 1)
			}
			p.Weights[c] = max(w, 1)
		}
	}

	// Top-level blocks: the root first, then orphaned subtrees in coordinate order.
	model.SortCoordinates(tops)
	row := 0
	for _, c := range tops {
		p.Cells[c] = Cell{Row: row, Column: c.Level}
		row += p.Weights[c]
	}

	// Rows level by level: each placed parent hands consecutive rows to its children.
	for level := 1; level <= deepest; level++ {
		parents := make([]model.Coordinate, 0, len(byLevel[level-1]))
		for _, c := range byLevel[level-1] {
			if _, ok := p.Cells[c]; ok && len(p.Groups[c]) > 0 {
				parents = append(parents, c)
			}
		}
		sort.SliceStable(parents, func(i, j int) bool { return p.Cells[parents[i]].Row < p.Cells[parents[j]].Row })
		for _, par := range parents {
			cursor := p.Cells[par].Row
			for _, ch := range p.Groups[par] {
				p.Cells[ch] = Cell{Row: cursor, Column: level}
				cursor += p.Weights[ch]
			}
		}
	}

	// The root sorts first among the blocks, so it always lands on (0,0).
	p.clamp()

	for c, cell := range p.Cells {
		p.byCell[cell] = c
		if end := cell.Row + p.Weights[c]; end > p.Rows {
			p.Rows = end
		}
		if cell.Column+1 > p.Columns {
			p.Columns = cell.Column + 1
		}
	}
	return p
}

// clamp keeps every child inside its parent's vertical span.
func (p *Plan) clamp() {
	for c, cell := range p.Cells {
		par, ok := p.parent[c]
		if !ok {
			continue
		}
		pc, ok := p.Cells[par]
		if !ok {
			continue
		}
		top := pc.Row
		bottom := pc.Row + p.Weights[par] - 1
		switch {
		case cell.Row < top:
			cell.Row = top
		case cell.Row > bottom:
			cell.Row = bottom
		default:
			continue
		}
		p.Cells[c] = cell
	}
}

// Placements returns every placed node ordered by column, then row.
func (p Plan) Placements() []Placement {
	out := make([]Placement, 0, len(p.Cells))
	for c, cell := range p.Cells {
		out = append(out, Placement{
			Coord:  c,
			Title:  p.titles[c],
			Row:    cell.Row,
			Column: cell.Column,
			Weight: p.Weights[c],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Column != out[j].Column {
			return out[i].Column < out[j].Column
		}
		return out[i].Row < out[j].Row
	})
	return out
}

// RowsAt sums the weights of the nodes on level.
func (p Plan) RowsAt(level int) int {
	total := 0
	for c, w := range p.Weights {
		if c.Level == level {
			total += w
		}
	}
	return total
}

// At returns the node drawn at (row, column), if any.
func (p Plan) At(row, column int) (model.Coordinate, bool) {
	c, ok := p.byCell[Cell{Row: row, Column: column}]
	return c, ok
}

// Parent returns the parent a node was grouped under.
func (p Plan) Parent(c model.Coordinate) (model.Coordinate, bool) {
	par, ok := p.parent[c]
	return par, ok
}

// Contains reports whether child's row lies within parent's span.
func (p Plan) Contains(parent, child model.Coordinate) bool {
	pc, ok := p.Cells[parent]
	if !ok {
		return false
	}
	cc, ok := p.Cells[child]
	if !ok {
		return false
	}
	return cc.Row >= pc.Row && cc.Row <= pc.Row+p.Weights[parent]-1
}

// Title returns the title captured when the plan was computed.
func (p Plan) Title(c model.Coordinate) string { return p.titles[c] }
