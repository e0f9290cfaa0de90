package tree

import (
	"errors"
	"fmt"

	"treegrid-cli/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateRoot = errors.New("root already exists")
)

type NotFoundError struct {
	Kind  string // "node" or "link"
	Coord model.Coordinate
	// Other is the far end when Kind is "link".
	Other *model.Coordinate
}

func (e *NotFoundError) Error() string {
	if e.Other != nil {
		return fmt.Sprintf("%s not found: %s-%s", e.Kind, e.Coord, *e.Other)
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Coord)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func errNodeNotFound(c model.Coordinate) error {
	return &NotFoundError{Kind: "node", Coord: c}
}

type DuplicateRootError struct{}

func (e *DuplicateRootError) Error() string {
	return "root already exists at " + model.RootCoordinate.String()
}

func (e *DuplicateRootError) Is(target error) bool { return target == ErrDuplicateRoot }

type CoordinateInUseError struct {
	Coord model.Coordinate
}

func (e *CoordinateInUseError) Error() string {
	return "coordinate already in use: " + e.Coord.String()
}

// InvariantViolation reports a structural defect in the tree. Check returns these;
// mutations return one when applying them would break the structure.
type InvariantViolation struct {
	Rule   string           `json:"rule"`
	Coord  model.Coordinate `json:"coord"`
	Detail string           `json:"detail"`
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated at %s: %s", e.Rule, e.Coord, e.Detail)
}

// Rule names reported by Check.
const (
	RuleContiguous   = "contiguous-indices"
	RuleLevelCount   = "level-count"
	RuleParentExists = "parent-exists"
	RuleParentLevel  = "parent-level"
	RuleParentLinked = "parent-linked"
	RuleSymmetric    = "symmetric-links"
	RuleAcyclic      = "acyclic"
	RuleConnected    = "connected"
	RuleOrphan       = "orphan"
)
