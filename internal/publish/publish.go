// Package publish writes a tree as a small set of linked markdown pages.
package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"treegrid-cli/internal/tree"
)

type WriteOptions struct {
	Overwrite bool
}

type WriteResult struct {
	Dir     string   `json:"dir"`
	Written []string `json:"written"`
}

// WriteTree writes toDir/<name>/index.md and one page per node under nodes/.
func WriteTree(t *tree.Store, name string, toDir string, opt WriteOptions) (WriteResult, error) {
	if t == nil {
		return WriteResult{}, errors.New("missing tree")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return WriteResult{}, errors.New("missing name")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}

	outDir := filepath.Join(filepath.Clean(toDir), name)
	nodesDir := filepath.Join(outDir, "nodes")
	if err := os.MkdirAll(nodesDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	indexPath := filepath.Join(outDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderIndexMarkdown(t, name)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stop on the first error.
	written := []string{indexPath}
	for _, n := range t.Nodes() {
		md, err := RenderNodeMarkdown(t, n.Coord)
		if err != nil {
			return WriteResult{}, err
		}
		p := filepath.Join(nodesDir, NodeFile(n.Coord))
		if err := writeFile(p, []byte(md), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, p)
	}

	return WriteResult{Dir: outDir, Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
