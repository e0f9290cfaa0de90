// Package savefile reads and writes the flat .sav tree format.
//
// Each line is "level,index,parentIndex,title,description". The parent's level is
// implicitly level-1. The root is written with parentIndex 0, and an orphan (a node
// whose parent was deleted) with -1. Fields are not escaped, so a title or
// description containing a comma or newline produces a file that cannot be loaded.
//
// ReadFile and WriteFile also carry cross links in a sidecar file (see LinksPath).
package savefile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"treegrid-cli/internal/model"
	"treegrid-cli/internal/tree"
)

const (
	Ext = ".sav"

	fieldCount     = 5
	orphanParentIx = -1
)

type MalformedLineError struct {
	Line   int // 1-based
	Text   string
	Reason string
	Err    error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

func (e *MalformedLineError) Unwrap() error { return e.Err }

// Serialize renders t in level order, indices ascending within a level.
func Serialize(t *tree.Store) string {
	var b bytes.Buffer
	_ = Write(&b, t)
	return b.String()
}

func Write(w io.Writer, t *tree.Store) error {
	bw := bufio.NewWriter(w)
	for _, n := range t.Nodes() {
		parentIx := 0
		switch {
		case n.Parent != nil:
			parentIx = n.Parent.Index
		case n.Coord.Level > 0:
			parentIx = orphanParentIx
		}
		if _, err := fmt.Fprintf(bw, "%d,%d,%d,%s,%s\n", n.Coord.Level, n.Coord.Index, parentIx, n.Title, n.Description); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func Deserialize(text string) (*tree.Store, error) {
	return Read(strings.NewReader(text))
}

// ReadOptions relaxes loading.
type ReadOptions struct {
	// AllowGaps keeps a level with index gaps instead of rejecting the file, so that
	// tree.Store.Renumber can repair it.
	AllowGaps bool
}

// Read rebuilds a tree from save-file lines. Lines must be in ascending level order so
// every parent exists before its children; blank lines are ignored.
func Read(r io.Reader) (*tree.Store, error) {
	return ReadWith(r, ReadOptions{})
}

func ReadWith(r io.Reader, opts ReadOptions) (*tree.Store, error) {
	t := tree.New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	prevLevel := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		bad := func(reason string, err error) error {
			return &MalformedLineError{Line: lineNo, Text: raw, Reason: reason, Err: err}
		}

		fields := strings.Split(raw, ",")
		if len(fields) != fieldCount {
			return nil, bad(fmt.Sprintf("expected %d fields, got %d", fieldCount, len(fields)), nil)
		}
		level, err := strconv.Atoi(fields[0])
		if err != nil || level < 0 {
			return nil, bad("level is not a non-negative integer", err)
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil || index < 0 {
			return nil, bad("index is not a non-negative integer", err)
		}
		parentIx, err := strconv.Atoi(fields[2])
		if err != nil || parentIx < orphanParentIx {
			return nil, bad("parent index is not an integer >= -1", err)
		}
		if level < prevLevel {
			return nil, bad(fmt.Sprintf("level %d follows level %d; lines must be in ascending level order", level, prevLevel), nil)
		}
		prevLevel = level

		at := model.Coordinate{Level: level, Index: index}
		var parent *model.Coordinate
		if level > 0 && parentIx != orphanParentIx {
			parent = &model.Coordinate{Level: level - 1, Index: parentIx}
		}
		if err := t.AddNodeAt(parent, at, fields[3], fields[4]); err != nil {
			return nil, bad("cannot place node", err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if opts.AllowGaps {
		return t, nil
	}
	for _, v := range t.Check() {
		if v.Rule == tree.RuleContiguous {
			vv := v
			return nil, fmt.Errorf("load: %w", &vv)
		}
	}
	return t, nil
}

func ReadFile(path string) (*tree.Store, error) {
	return ReadFileWith(path, ReadOptions{})
}

func ReadFileWith(path string, opts ReadOptions) (*tree.Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := ReadWith(bytes.NewReader(raw), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := readLinksFile(path, t, Digest(raw)); err != nil {
		return nil, fmt.Errorf("%s: %w", LinksPath(path), err)
	}
	return t, nil
}

// WriteFile saves t to path via a temp file and rename. An existing file is kept as
// path+".bak". Cross links go to the sidecar, which is removed when there are none.
func WriteFile(path string, t *tree.Store) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	content := []byte(Serialize(t))
	if err := writeAtomic(path, content); err != nil {
		return err
	}
	return writeLinksFile(path, t, Digest(content))
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// BaseName returns the save name shown to users: the file name without extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

// WithExt appends the .sav extension when path has none.
func WithExt(path string) string {
	if filepath.Ext(path) == "" {
		return path + Ext
	}
	return path
}
