package mutate

import (
	"treegrid-cli/internal/model"

	json "github.com/goccy/go-json"
)

// wireOp is the JSON shape accepted by Decode, e.g.
//
//	{"kind":"add-node","parent":{"level":0,"index":0},"title":"Yes"}
//	{"kind":"delete-link","a":{"level":1,"index":0},"b":{"level":2,"index":3}}
type wireOp struct {
	Kind        string            `json:"kind"`
	Parent      *model.Coordinate `json:"parent,omitempty"`
	Coord       *model.Coordinate `json:"coord,omitempty"`
	A           *model.Coordinate `json:"a,omitempty"`
	B           *model.Coordinate `json:"b,omitempty"`
	Title       *string           `json:"title,omitempty"`
	Description *string           `json:"description,omitempty"`
	KeepGaps    bool              `json:"keepGaps,omitempty"`
}

func Decode(raw []byte) (Op, error) {
	var w wireOp
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return nil, err
	}
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	switch kind {
	case KindAddNode:
		if w.Title == nil {
			return nil, MissingFieldError{Kind: kind, Field: "title"}
		}
		return AddNode{Parent: w.Parent, Title: *w.Title, Description: str(w.Description)}, nil
	case KindDeleteNode:
		if w.Coord == nil {
			return nil, MissingFieldError{Kind: kind, Field: "coord"}
		}
		return DeleteNode{Coord: *w.Coord, KeepGaps: w.KeepGaps}, nil
	case KindEditNode:
		if w.Coord == nil {
			return nil, MissingFieldError{Kind: kind, Field: "coord"}
		}
		if w.Title == nil {
			return nil, MissingFieldError{Kind: kind, Field: "title"}
		}
		return EditNode{Coord: *w.Coord, Title: *w.Title, Description: str(w.Description)}, nil
	case KindAddLink, KindDeleteLink:
		if w.A == nil {
			return nil, MissingFieldError{Kind: kind, Field: "a"}
		}
		if w.B == nil {
			return nil, MissingFieldError{Kind: kind, Field: "b"}
		}
		if kind == KindAddLink {
			return AddLink{A: *w.A, B: *w.B}, nil
		}
		return DeleteLink{A: *w.A, B: *w.B}, nil
	}
	return nil, UnknownKindError{Kind: w.Kind}
}
