package cli

import (
	"errors"
	"fmt"
)

var errMissingFile = errors.New("no tree file: pass --file or set TREEGRID_FILE")

type fileExistsError struct {
	path string
}

func (e fileExistsError) Error() string {
	return fmt.Sprintf("%s already exists (use --force to overwrite)", e.path)
}

// problemsError makes `check` exit non-zero after printing its report.
type problemsError struct {
	count int
}

func (e problemsError) Error() string {
	return fmt.Sprintf("%d invariant violation(s)", e.count)
}

type opLineError struct {
	line int
	err  error
}

func (e opLineError) Error() string {
	return fmt.Sprintf("operation %d: %v", e.line, e.err)
}

func (e opLineError) Unwrap() error { return e.err }
