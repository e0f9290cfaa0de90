package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Coordinate identifies a node by generation (Level) and sibling slot (Index).
type Coordinate struct {
	Level int `json:"level"`
	Index int `json:"index"`
}

// RootCoordinate is the only coordinate at level 0.
var RootCoordinate = Coordinate{Level: 0, Index: 0}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.Level, c.Index)
}

func (c Coordinate) IsRoot() bool { return c == RootCoordinate }

// Less orders coordinates by level, then index.
func (c Coordinate) Less(o Coordinate) bool {
	if c.Level != o.Level {
		return c.Level < o.Level
	}
	return c.Index < o.Index
}

// ParseCoordinate accepts "L,I", "L:I" and "(L,I)".
func ParseCoordinate(s string) (Coordinate, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")
	sep := ","
	if !strings.Contains(raw, sep) {
		sep = ":"
	}
	parts := strings.Split(raw, sep)
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q (expected LEVEL,INDEX)", s)
	}
	level, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: level: %w", s, err)
	}
	index, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: index: %w", s, err)
	}
	if level < 0 || index < 0 {
		return Coordinate{}, errors.New("invalid coordinate " + strconv.Quote(s) + ": negative component")
	}
	return Coordinate{Level: level, Index: index}, nil
}

// SortCoordinates sorts xs in place by level, then index.
func SortCoordinates(xs []Coordinate) {
	sort.Slice(xs, func(i, j int) bool { return xs[i].Less(xs[j]) })
}

// Node is a single tree entry.
//
// Parent is nil for the root and for orphans (nodes whose parent was deleted).
// Links holds every directly connected coordinate, parent included.
type Node struct {
	Coord       Coordinate   `json:"coord"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Parent      *Coordinate  `json:"parent,omitempty"`
	Links       []Coordinate `json:"links"`
}

// Clone returns a deep copy, safe to hand to callers outside the store.
func (n Node) Clone() Node {
	out := n
	if n.Parent != nil {
		p := *n.Parent
		out.Parent = &p
	}
	out.Links = append([]Coordinate(nil), n.Links...)
	if out.Links == nil {
		out.Links = []Coordinate{}
	}
	return out
}

func (n Node) HasLink(c Coordinate) bool {
	for _, l := range n.Links {
		if l == c {
			return true
		}
	}
	return false
}
