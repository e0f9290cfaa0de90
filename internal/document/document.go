// Package document holds one editing session: the tree being edited, the file it
// came from, and whether it has unsaved changes.
package document

import (
	"errors"
	"fmt"

	"treegrid-cli/internal/layout"
	"treegrid-cli/internal/mutate"
	"treegrid-cli/internal/savefile"
	"treegrid-cli/internal/tree"
)

const UntitledName = "Untitled Tree"

// ErrNoPath is returned by Save and Reload when the document was never saved.
var ErrNoPath = errors.New("document has no file path")

type Document struct {
	Name   string
	Path   string
	Tree   *tree.Store
	Edited bool
}

func New() *Document {
	return &Document{Name: UntitledName, Tree: tree.New()}
}

func Open(path string) (*Document, error) {
	return OpenWith(path, savefile.ReadOptions{})
}

func OpenWith(path string, opts savefile.ReadOptions) (*Document, error) {
	t, err := savefile.ReadFileWith(path, opts)
	if err != nil {
		return nil, err
	}
	return &Document{Name: savefile.BaseName(path), Path: path, Tree: t}, nil
}

// Save writes the tree to path, or to the current path when path is empty.
// A missing extension gets .sav.
func (d *Document) Save(path string) error {
	if path == "" {
		path = d.Path
	}
	if path == "" {
		return ErrNoPath
	}
	path = savefile.WithExt(path)
	if err := savefile.WriteFile(path, d.Tree); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	d.Path = path
	d.Name = savefile.BaseName(path)
	d.Edited = false
	return nil
}

// Apply runs op against the tree and marks the document edited when it changed.
func (d *Document) Apply(op mutate.Op) (mutate.Result, error) {
	res, err := mutate.Apply(d.Tree, op)
	if err != nil {
		return res, err
	}
	if res.Changed {
		d.Edited = true
	}
	return res, nil
}

// Commit applies op and, when it changed a document that has a path, saves it. If the
// save fails the tree and edited flag are restored and the save error is returned.
func (d *Document) Commit(op mutate.Op) (mutate.Result, error) {
	before, edited := d.Tree.Clone(), d.Edited
	res, err := d.Apply(op)
	if err != nil || !res.Changed || d.Path == "" {
		return res, err
	}
	if err := d.Save(""); err != nil {
		d.Tree, d.Edited = before, edited
		return mutate.Result{}, err
	}
	return res, nil
}

// Label is the name shown in window titles: the save name plus "*" when edited.
func (d *Document) Label() string {
	if d.Edited {
		return d.Name + "*"
	}
	return d.Name
}

func (d *Document) Plan() layout.Plan {
	return layout.Compute(d.Tree.Nodes(), d.Tree.LevelCounts())
}

// Reload replaces the tree with the file's current content, dropping unsaved edits.
func (d *Document) Reload() error {
	if d.Path == "" {
		return ErrNoPath
	}
	t, err := savefile.ReadFile(d.Path)
	if err != nil {
		return err
	}
	d.Tree = t
	d.Edited = false
	return nil
}

// ReloadIfChanged replaces the tree with the file's content when that content differs
// from the tree, which is the case for edits made by other processes but not for the
// document's own saves. It reports whether the tree was replaced.
func (d *Document) ReloadIfChanged() (bool, error) {
	if d.Path == "" {
		return false, ErrNoPath
	}
	t, err := savefile.ReadFile(d.Path)
	if err != nil {
		return false, err
	}
	if savefile.Same(t, d.Tree) {
		return false, nil
	}
	d.Tree = t
	d.Edited = false
	return true, nil
}
