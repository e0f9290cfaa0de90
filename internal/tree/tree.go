// Package tree owns the node/link bookkeeping for a single rooted tree: coordinate
// allocation per level, symmetric adjacency, deletion and sibling renumbering.
//
// A Store is not safe for concurrent use; callers that share one across goroutines
// must serialize access themselves.
package tree

import (
	"fmt"
	"sort"

	"treegrid-cli/internal/model"
)

type Store struct {
	nodes map[model.Coordinate]*model.Node
	// levels counts live nodes per level. The next index allocated at a level is its count.
	levels map[int]int
}

func New() *Store {
	return &Store{
		nodes:  map[model.Coordinate]*model.Node{},
		levels: map[int]int{},
	}
}

// Clone returns a deep copy of s.
func (s *Store) Clone() *Store {
	out := &Store{
		nodes:  make(map[model.Coordinate]*model.Node, len(s.nodes)),
		levels: make(map[int]int, len(s.levels)),
	}
	for c, n := range s.nodes {
		cp := n.Clone()
		out.nodes[c] = &cp
	}
	for l, n := range s.levels {
		out.levels[l] = n
	}
	return out
}

// CrossLinks returns every link that is not a parent/child edge, once per pair with
// the lower coordinate first, sorted.
func (s *Store) CrossLinks() [][2]model.Coordinate {
	var out [][2]model.Coordinate
	for c, n := range s.nodes {
		for _, l := range n.Links {
			if !c.Less(l) || s.isTreeEdge(c, l) {
				continue
			}
			out = append(out, [2]model.Coordinate{c, l})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0].Less(out[j][0])
		}
		return out[i][1].Less(out[j][1])
	})
	return out
}

func (s *Store) isTreeEdge(a, b model.Coordinate) bool {
	if na := s.nodes[a]; na != nil && na.Parent != nil && *na.Parent == b {
		return true
	}
	nb := s.nodes[b]
	return nb != nil && nb.Parent != nil && *nb.Parent == a
}

// AddNode creates a node under parent and returns its coordinate. A nil parent creates
// the root, which fails if a root already exists.
func (s *Store) AddNode(parent *model.Coordinate, title, description string) (model.Coordinate, error) {
	if parent == nil {
		if _, ok := s.nodes[model.RootCoordinate]; ok {
			return model.Coordinate{}, &DuplicateRootError{}
		}
		s.put(nil, model.RootCoordinate, title, description)
		s.levels[0] = 1
		return model.RootCoordinate, nil
	}

	p := *parent
	if _, ok := s.nodes[p]; !ok {
		return model.Coordinate{}, errNodeNotFound(p)
	}
	level := p.Level + 1
	at := model.Coordinate{Level: level, Index: s.levels[level]}
	if _, taken := s.nodes[at]; taken {
		return model.Coordinate{}, &InvariantViolation{
			Rule:   RuleContiguous,
			Coord:  at,
			Detail: fmt.Sprintf("level %d has index gaps; renumber it before adding", level),
		}
	}
	s.put(&p, at, title, description)
	s.levels[level]++
	return at, nil
}

// AddNodeAt inserts a node at an explicit coordinate. It is the restore path used when
// loading a save file. A nil parent at level 0 creates the root; a nil parent deeper in
// the tree restores an orphan.
func (s *Store) AddNodeAt(parent *model.Coordinate, at model.Coordinate, title, description string) error {
	if at.Level < 0 || at.Index < 0 {
		return fmt.Errorf("invalid coordinate %s", at)
	}
	if _, taken := s.nodes[at]; taken {
		if at.IsRoot() && parent == nil {
			return &DuplicateRootError{}
		}
		return &CoordinateInUseError{Coord: at}
	}
	if at.Level == 0 {
		if parent != nil || at.Index != 0 {
			return &InvariantViolation{Rule: RuleParentLevel, Coord: at, Detail: "level 0 holds only the root"}
		}
	}

	var p *model.Coordinate
	if parent != nil {
		pc := *parent
		if _, ok := s.nodes[pc]; !ok {
			return errNodeNotFound(pc)
		}
		if pc.Level != at.Level-1 {
			return &InvariantViolation{
				Rule:   RuleParentLevel,
				Coord:  at,
				Detail: fmt.Sprintf("parent %s is not on level %d", pc, at.Level-1),
			}
		}
		p = &pc
	}
	s.put(p, at, title, description)
	s.levels[at.Level]++
	return nil
}

func (s *Store) put(parent *model.Coordinate, at model.Coordinate, title, description string) {
	n := &model.Node{
		Coord:       at,
		Title:       title,
		Description: description,
		Parent:      parent,
		Links:       []model.Coordinate{},
	}
	s.nodes[at] = n
	if parent != nil {
		s.link(*parent, at)
	}
}

// DeleteNode removes c and severs all of its links. Children are not removed: they lose
// their parent and stay in the store as orphans. With renumber set, higher siblings
// shift down to close the gap.
func (s *Store) DeleteNode(c model.Coordinate, renumber bool) error {
	n, ok := s.nodes[c]
	if !ok {
		return errNodeNotFound(c)
	}
	for _, l := range n.Links {
		if nb, ok := s.nodes[l]; ok {
			nb.Links = without(nb.Links, c)
		}
	}
	for _, other := range s.nodes {
		if other.Parent != nil && *other.Parent == c {
			other.Parent = nil
		}
	}
	delete(s.nodes, c)

	s.levels[c.Level]--
	if s.levels[c.Level] <= 0 {
		delete(s.levels, c.Level)
	}

	if renumber {
		s.Renumber(c.Level)
	}
	return nil
}

// Renumber closes index gaps on level so live indices become 0..n-1, keeping sibling
// order. It returns how many nodes moved.
func (s *Store) Renumber(level int) int {
	var at []model.Coordinate
	for c := range s.nodes {
		if c.Level == level {
			at = append(at, c)
		}
	}
	model.SortCoordinates(at)

	moved := 0
	for i, old := range at {
		if old.Index == i {
			continue
		}
		// Ascending order guarantees slot i is already free.
		s.move(old, model.Coordinate{Level: level, Index: i})
		moved++
	}
	return moved
}

// move re-keys a node and rewrites every reference to its old coordinate.
func (s *Store) move(from, to model.Coordinate) {
	n := s.nodes[from]
	delete(s.nodes, from)
	n.Coord = to
	s.nodes[to] = n

	for _, l := range n.Links {
		nb, ok := s.nodes[l]
		if !ok {
			continue
		}
		for i := range nb.Links {
			if nb.Links[i] == from {
				nb.Links[i] = to
			}
		}
		model.SortCoordinates(nb.Links)
	}
	for _, other := range s.nodes {
		if other.Parent != nil && *other.Parent == from {
			np := to
			other.Parent = &np
		}
	}
}

func (s *Store) AddLink(a, b model.Coordinate) error {
	if _, ok := s.nodes[a]; !ok {
		return errNodeNotFound(a)
	}
	if _, ok := s.nodes[b]; !ok {
		return errNodeNotFound(b)
	}
	if a == b {
		return &InvariantViolation{Rule: RuleAcyclic, Coord: a, Detail: "a node cannot link to itself"}
	}
	s.link(a, b)
	return nil
}

func (s *Store) DeleteLink(a, b model.Coordinate) error {
	na, ok := s.nodes[a]
	if !ok {
		return errNodeNotFound(a)
	}
	nb, ok := s.nodes[b]
	if !ok {
		return errNodeNotFound(b)
	}
	if !na.HasLink(b) {
		other := b
		return &NotFoundError{Kind: "link", Coord: a, Other: &other}
	}
	na.Links = without(na.Links, b)
	nb.Links = without(nb.Links, a)
	return nil
}

func (s *Store) link(a, b model.Coordinate) {
	na, nb := s.nodes[a], s.nodes[b]
	if !na.HasLink(b) {
		na.Links = append(na.Links, b)
		model.SortCoordinates(na.Links)
	}
	if !nb.HasLink(a) {
		nb.Links = append(nb.Links, a)
		model.SortCoordinates(nb.Links)
	}
}

func without(xs []model.Coordinate, c model.Coordinate) []model.Coordinate {
	out := xs[:0]
	for _, x := range xs {
		if x != c {
			out = append(out, x)
		}
	}
	return out
}

// EditNode replaces the title and description of c.
func (s *Store) EditNode(c model.Coordinate, title, description string) error {
	n, ok := s.nodes[c]
	if !ok {
		return errNodeNotFound(c)
	}
	n.Title = title
	n.Description = description
	return nil
}

func (s *Store) GetNode(c model.Coordinate) (model.Node, error) {
	n, ok := s.nodes[c]
	if !ok {
		return model.Node{}, errNodeNotFound(c)
	}
	return n.Clone(), nil
}

func (s *Store) GetLinks(c model.Coordinate) ([]model.Coordinate, error) {
	n, ok := s.nodes[c]
	if !ok {
		return nil, errNodeNotFound(c)
	}
	return append([]model.Coordinate{}, n.Links...), nil
}

func (s *Store) Has(c model.Coordinate) bool {
	_, ok := s.nodes[c]
	return ok
}

func (s *Store) Len() int { return len(s.nodes) }

// Root returns the root node, if any.
func (s *Store) Root() (model.Node, bool) {
	n, ok := s.nodes[model.RootCoordinate]
	if !ok {
		return model.Node{}, false
	}
	return n.Clone(), true
}

// Nodes returns copies of all nodes ordered by level, then index.
func (s *Store) Nodes() []model.Node {
	out := make([]model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coord.Less(out[j].Coord) })
	return out
}

// Children returns the coordinates whose parent is c, in index order.
func (s *Store) Children(c model.Coordinate) []model.Coordinate {
	var out []model.Coordinate
	for _, n := range s.nodes {
		if n.Parent != nil && *n.Parent == c {
			out = append(out, n.Coord)
		}
	}
	model.SortCoordinates(out)
	return out
}

func (s *Store) LevelCounts() map[int]int {
	out := make(map[int]int, len(s.levels))
	for k, v := range s.levels {
		out[k] = v
	}
	return out
}

// Levels returns the populated levels in ascending order.
func (s *Store) Levels() []int {
	out := make([]int, 0, len(s.levels))
	for k, v := range s.levels {
		if v > 0 {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
