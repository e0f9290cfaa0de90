// Package mutate defines the edit operations a collaborator can apply to a tree.
// Each operation kind carries its own typed payload.
package mutate

import (
	"strings"

	"treegrid-cli/internal/model"
	"treegrid-cli/internal/tree"
)

type Kind string

const (
	KindAddNode    Kind = "add-node"
	KindDeleteNode Kind = "delete-node"
	KindEditNode   Kind = "edit-node"
	KindAddLink    Kind = "add-link"
	KindDeleteLink Kind = "delete-link"
)

func Kinds() []Kind {
	return []Kind{KindAddNode, KindDeleteNode, KindEditNode, KindAddLink, KindDeleteLink}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", UnknownKindError{Kind: s}
}

// Op is one edit. The set of implementations is closed.
type Op interface {
	Kind() Kind
	apply(t *tree.Store) (Result, error)
}

type Result struct {
	Kind Kind `json:"kind"`
	// Coord is the node the operation created or touched (the first endpoint for links).
	Coord        model.Coordinate `json:"coord"`
	Changed      bool             `json:"changed"`
	EventPayload map[string]any   `json:"payload,omitempty"`
}

// AddNode creates a child of Parent, or the root when Parent is nil.
type AddNode struct {
	Parent      *model.Coordinate
	Title       string
	Description string
}

// DeleteNode removes a node. KeepGaps skips sibling renumbering.
type DeleteNode struct {
	Coord    model.Coordinate
	KeepGaps bool
}

type EditNode struct {
	Coord       model.Coordinate
	Title       string
	Description string
}

type AddLink struct {
	A, B model.Coordinate
}

type DeleteLink struct {
	A, B model.Coordinate
}

func (AddNode) Kind() Kind    { return KindAddNode }
func (DeleteNode) Kind() Kind { return KindDeleteNode }
func (EditNode) Kind() Kind   { return KindEditNode }
func (AddLink) Kind() Kind    { return KindAddLink }
func (DeleteLink) Kind() Kind { return KindDeleteLink }

// Apply runs op against t. On error t is unchanged.
func Apply(t *tree.Store, op Op) (Result, error) {
	return op.apply(t)
}

func (op AddNode) apply(t *tree.Store) (Result, error) {
	c, err := t.AddNode(op.Parent, op.Title, op.Description)
	if err != nil {
		return Result{}, err
	}
	payload := map[string]any{"title": op.Title}
	if op.Parent != nil {
		payload["parent"] = op.Parent.String()
	}
	return Result{Kind: KindAddNode, Coord: c, Changed: true, EventPayload: payload}, nil
}

func (op DeleteNode) apply(t *tree.Store) (Result, error) {
	orphaned := t.Children(op.Coord)
	if err := t.DeleteNode(op.Coord, !op.KeepGaps); err != nil {
		return Result{}, err
	}
	payload := map[string]any{"renumbered": !op.KeepGaps}
	if len(orphaned) > 0 {
		payload["orphaned"] = len(orphaned)
	}
	return Result{Kind: KindDeleteNode, Coord: op.Coord, Changed: true, EventPayload: payload}, nil
}

func (op EditNode) apply(t *tree.Store) (Result, error) {
	before, err := t.GetNode(op.Coord)
	if err != nil {
		return Result{}, err
	}
	if before.Title == op.Title && before.Description == op.Description {
		return Result{Kind: KindEditNode, Coord: op.Coord}, nil
	}
	if err := t.EditNode(op.Coord, op.Title, op.Description); err != nil {
		return Result{}, err
	}
	return Result{
		Kind:         KindEditNode,
		Coord:        op.Coord,
		Changed:      true,
		EventPayload: map[string]any{"title": op.Title},
	}, nil
}

func (op AddLink) apply(t *tree.Store) (Result, error) {
	existed := false
	if n, err := t.GetNode(op.A); err == nil {
		existed = n.HasLink(op.B)
	}
	if err := t.AddLink(op.A, op.B); err != nil {
		return Result{}, err
	}
	return Result{Kind: KindAddLink, Coord: op.A, Changed: !existed, EventPayload: map[string]any{"to": op.B.String()}}, nil
}

func (op DeleteLink) apply(t *tree.Store) (Result, error) {
	if err := t.DeleteLink(op.A, op.B); err != nil {
		return Result{}, err
	}
	return Result{Kind: KindDeleteLink, Coord: op.A, Changed: true, EventPayload: map[string]any{"to": op.B.String()}}, nil
}
