package store

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"treegrid-cli/internal/model"

	json "github.com/goccy/go-json"
)

const (
	tuiStateFileName = "tui_state.json"
	maxFileViews     = 50
)

// TUIState stores small, user-facing UI state for restoring the last screen on relaunch.
// It is best effort: callers should tolerate missing or invalid data.
type TUIState struct {
	Version int `json:"version"`
	// Files is keyed by absolute tree file path.
	Files map[string]FileView `json:"files,omitempty"`
}

// FileView is where the editor was in one file.
type FileView struct {
	Selected *model.Coordinate `json:"selected,omitempty"`
	// Scroll offsets in grid rows and columns.
	Top       int       `json:"top,omitempty"`
	Left      int       `json:"left,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func tuiStatePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tuiStateFileName), nil
}

func viewKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func LoadTUIState() (*TUIState, error) {
	path, err := tuiStatePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &TUIState{Version: 1}, nil
		}
		return nil, err
	}
	var st TUIState
	if err := json.Unmarshal(b, &st); err != nil {
		// Corrupt state is treated as missing.
		return &TUIState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return &st, nil
}

func SaveTUIState(st *TUIState) error {
	if st == nil {
		return nil
	}
	path, err := tuiStatePath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, tuiStateFileName+".*.tmp", path, b, 0o644)
}

// View returns the remembered view of the tree file at path.
func (st *TUIState) View(path string) (FileView, bool) {
	if st == nil || strings.TrimSpace(path) == "" {
		return FileView{}, false
	}
	v, ok := st.Files[viewKey(path)]
	return v, ok
}

// Remember stores v for path. Only the most recently updated files are kept.
func (st *TUIState) Remember(path string, v FileView) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if st.Files == nil {
		st.Files = map[string]FileView{}
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now().UTC()
	}
	st.Files[viewKey(path)] = v
	if len(st.Files) <= maxFileViews {
		return
	}
	keys := make([]string, 0, len(st.Files))
	for k := range st.Files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return st.Files[keys[i]].UpdatedAt.After(st.Files[keys[j]].UpdatedAt) })
	for _, k := range keys[maxFileViews:] {
		delete(st.Files, k)
	}
}
