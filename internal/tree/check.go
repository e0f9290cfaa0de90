package tree

import (
	"errors"
	"fmt"
	"sort"

	"treegrid-cli/internal/model"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// Check reports every structural defect it can find. An empty result means the tree
// satisfies all invariants.
func (s *Store) Check() []InvariantViolation {
	var out []InvariantViolation

	byLevel := map[int][]int{}
	for c := range s.nodes {
		byLevel[c.Level] = append(byLevel[c.Level], c.Index)
	}
	levels := make([]int, 0, len(byLevel)+len(s.levels))
	seen := map[int]bool{}
	for l := range byLevel {
		levels = append(levels, l)
		seen[l] = true
	}
	for l := range s.levels {
		if !seen[l] {
			levels = append(levels, l)
		}
	}
	sort.Ints(levels)

	for _, level := range levels {
		idxs := byLevel[level]
		sort.Ints(idxs)
		for i, idx := range idxs {
			if idx != i {
				out = append(out, InvariantViolation{
					Rule:   RuleContiguous,
					Coord:  model.Coordinate{Level: level, Index: i},
					Detail: fmt.Sprintf("index %d is missing (next live index is %d)", i, idx),
				})
				break
			}
		}
		if s.levels[level] != len(idxs) {
			out = append(out, InvariantViolation{
				Rule:   RuleLevelCount,
				Coord:  model.Coordinate{Level: level},
				Detail: fmt.Sprintf("level count is %d but %d nodes are live", s.levels[level], len(idxs)),
			})
		}
	}

	nodes := s.sortedNodes()
	broken := map[model.Coordinate]bool{}
	for _, n := range nodes {
		c := n.Coord
		if c.Level > 0 {
			switch {
			case n.Parent == nil:
				broken[c] = true
				out = append(out, InvariantViolation{Rule: RuleOrphan, Coord: c, Detail: "parent was deleted; subtree is disconnected from the root"})
			case s.nodes[*n.Parent] == nil:
				broken[c] = true
				out = append(out, InvariantViolation{Rule: RuleParentExists, Coord: c, Detail: "parent " + n.Parent.String() + " does not exist"})
			case n.Parent.Level != c.Level-1:
				out = append(out, InvariantViolation{Rule: RuleParentLevel, Coord: c, Detail: "parent " + n.Parent.String() + " is not one level up"})
			case !n.HasLink(*n.Parent):
				out = append(out, InvariantViolation{Rule: RuleParentLinked, Coord: c, Detail: "parent " + n.Parent.String() + " missing from links"})
			}
		}
		for _, l := range n.Links {
			nb := s.nodes[l]
			if nb == nil {
				out = append(out, InvariantViolation{Rule: RuleSymmetric, Coord: c, Detail: "links to missing node " + l.String()})
				continue
			}
			if !nb.HasLink(c) {
				out = append(out, InvariantViolation{Rule: RuleSymmetric, Coord: c, Detail: "link to " + l.String() + " is not reciprocated"})
			}
		}
	}

	out = append(out, s.checkGraph(nodes, broken)...)
	return out
}

// Validate returns the first violation reported by Check, or nil.
func (s *Store) Validate() error {
	vs := s.Check()
	if len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

func (s *Store) sortedNodes() []*model.Node {
	out := make([]*model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coord.Less(out[j].Coord) })
	return out
}

// checkGraph builds the parent->child graph and reports cycles and nodes the root
// cannot reach. Nodes already reported as orphans are not reported again, but their
// descendants are.
func (s *Store) checkGraph(nodes []*model.Node, broken map[model.Coordinate]bool) []InvariantViolation {
	var out []InvariantViolation

	ids := make(map[model.Coordinate]int64, len(nodes))
	g := simple.NewDirectedGraph()
	for i, n := range nodes {
		ids[n.Coord] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for _, n := range nodes {
		if n.Parent == nil {
			continue
		}
		pid, ok := ids[*n.Parent]
		if !ok {
			continue
		}
		cid := ids[n.Coord]
		if pid == cid {
			out = append(out, InvariantViolation{Rule: RuleAcyclic, Coord: n.Coord, Detail: "node is its own parent"})
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(pid), simple.Node(cid)))
	}

	if _, err := topo.Sort(g); err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			for _, comp := range cycles {
				for _, gn := range comp {
					out = append(out, InvariantViolation{Rule: RuleAcyclic, Coord: nodes[gn.ID()].Coord, Detail: "node is its own ancestor"})
				}
			}
		}
	}

	rootID, hasRoot := ids[model.RootCoordinate]
	var bf traverse.BreadthFirst
	if hasRoot {
		bf.Walk(g, simple.Node(rootID), nil)
	}
	for _, n := range nodes {
		if n.Coord.IsRoot() || broken[n.Coord] {
			continue
		}
		var gn graph.Node = simple.Node(ids[n.Coord])
		if hasRoot && bf.Visited(gn) {
			continue
		}
		detail := "not reachable from the root"
		if !hasRoot {
			detail = "tree has no root"
		}
		out = append(out, InvariantViolation{Rule: RuleConnected, Coord: n.Coord, Detail: detail})
	}
	return out
}
