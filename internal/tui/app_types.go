package tui

import (
	"time"

	"treegrid-cli/internal/model"
)

type modalKind int

const (
	modalNone modalKind = iota
	// modalNodeForm adds a node (editing == nil) or edits one.
	modalNodeForm
	modalConfirmDelete
	// modalConfirmDiscard guards pendingAction when the document has unsaved edits.
	modalConfirmDiscard
	// modalPickFile browses for a .sav; "/" falls back to modalOpenPath.
	modalPickFile
	modalOpenPath
	modalSavePath
)

type confirmModalFocus int

const (
	confirmFocusConfirm confirmModalFocus = iota
	confirmFocusCancel
)

type formFocus int

const (
	formFocusTitle formFocus = iota
	formFocusDescription
)

type pendingAction int

const (
	actionNone pendingAction = iota
	actionNew
	actionOpen
	actionReload
	actionQuit
)

func (a pendingAction) verb() string {
	switch a {
	case actionNew:
		return "start a new tree"
	case actionOpen:
		return "open another file"
	case actionReload:
		return "reload from disk"
	case actionQuit:
		return "quit"
	default:
		return "continue"
	}
}

const minibufferAutoClearAfter = 4 * time.Second

type minibufferTickMsg struct{}

// fileChangedMsg reports that the watched save file changed on disk.
type fileChangedMsg struct{ path string }

type watchErrMsg struct {
	path string
	err  error
}

// nodeForm is the state of the add/edit modal.
type nodeForm struct {
	parent  *model.Coordinate // add: nil adds the root
	editing *model.Coordinate
	focus   formFocus
}
